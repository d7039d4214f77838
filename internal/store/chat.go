package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/campusshare/sharehub/internal/model"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ErrSelfConversation is returned when an owner tries to chat about their own item.
var ErrSelfConversation = errors.New("cannot start a conversation about your own item")

const conversationColumns = `c.id, c.item_id, c.item_title, c.item_owner_id, c.created_at, c.updated_at`

// StartConversation returns the conversation between userID and the owner of
// item, creating it on first contact. created reports whether it is new.
func StartConversation(ctx context.Context, db *sqlx.DB, item *model.Item, userID string) (conv *model.Conversation, created bool, err error) {
	if userID == item.OwnerID {
		return nil, false, ErrSelfConversation
	}

	err = WithTx(ctx, db, func(tx *sqlx.Tx) error {
		existing := &model.Conversation{}
		err := sqlx.GetContext(ctx, tx, existing, tx.Rebind(
			`SELECT `+conversationColumns+` FROM conversations c
			 JOIN conversation_participants p ON p.conversation_id = c.id
			 WHERE c.item_id = ? AND p.user_id = ?
			 LIMIT 1`),
			item.ID, userID,
		)
		if err == nil {
			conv = existing
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("finding conversation: %w", err)
		}

		ts := now()
		conv = &model.Conversation{
			ID:          uuid.NewString(),
			ItemID:      item.ID,
			ItemTitle:   item.Title,
			ItemOwnerID: item.OwnerID,
			CreatedAt:   ts,
			UpdatedAt:   ts,
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(
			`INSERT INTO conversations (id, item_id, item_title, item_owner_id, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`),
			conv.ID, conv.ItemID, conv.ItemTitle, conv.ItemOwnerID, conv.CreatedAt, conv.UpdatedAt,
		); err != nil {
			return fmt.Errorf("creating conversation: %w", err)
		}
		for _, participant := range []string{item.OwnerID, userID} {
			if _, err := tx.ExecContext(ctx, tx.Rebind(
				`INSERT INTO conversation_participants (conversation_id, user_id) VALUES (?, ?)`),
				conv.ID, participant,
			); err != nil {
				return fmt.Errorf("adding participant: %w", err)
			}
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return conv, created, nil
}

// GetConversation returns a conversation by ID.
func GetConversation(ctx context.Context, db sqlx.ExtContext, id string) (*model.Conversation, error) {
	conv := &model.Conversation{}
	err := sqlx.GetContext(ctx, db, conv, db.Rebind(
		`SELECT `+conversationColumns+` FROM conversations c WHERE c.id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting conversation: %w", err)
	}
	return conv, nil
}

// ListParticipants returns the user IDs taking part in a conversation.
func ListParticipants(ctx context.Context, db sqlx.ExtContext, conversationID string) ([]string, error) {
	ids := []string{}
	err := sqlx.SelectContext(ctx, db, &ids, db.Rebind(
		`SELECT user_id FROM conversation_participants WHERE conversation_id = ? ORDER BY user_id`),
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing participants: %w", err)
	}
	return ids, nil
}

// ListChatHeads summarizes userID's conversations, most recently active first.
func ListChatHeads(ctx context.Context, db sqlx.ExtContext, userID string) ([]model.ChatHead, error) {
	var rows []struct {
		model.Conversation
		OtherID   string `db:"other_id"`
		OtherName string `db:"other_name"`
	}
	err := sqlx.SelectContext(ctx, db, &rows, db.Rebind(
		`SELECT `+conversationColumns+`,
		        COALESCE(o.id, '') AS other_id,
		        COALESCE(TRIM(o.first_name || ' ' || o.last_name), '') AS other_name
		 FROM conversations c
		 JOIN conversation_participants p ON p.conversation_id = c.id AND p.user_id = ?
		 LEFT JOIN conversation_participants op ON op.conversation_id = c.id AND op.user_id <> ?
		 LEFT JOIN users o ON o.id = op.user_id
		 ORDER BY c.updated_at DESC`),
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}

	heads := make([]model.ChatHead, 0, len(rows))
	for _, row := range rows {
		head := model.ChatHead{
			ConversationID: row.ID,
			ItemID:         row.ItemID,
			ItemTitle:      row.ItemTitle,
			OtherID:        row.OtherID,
			OtherName:      row.OtherName,
		}

		last := &model.ChatMessage{}
		err := sqlx.GetContext(ctx, db, last, db.Rebind(
			`SELECT id, conversation_id, sender_id, content, is_read, created_at
			 FROM messages WHERE conversation_id = ?
			 ORDER BY created_at DESC LIMIT 1`),
			row.ID,
		)
		switch {
		case err == nil:
			head.LastMessage = last.Content
			head.LastAt = &last.CreatedAt
		case !errors.Is(err, sql.ErrNoRows):
			return nil, fmt.Errorf("getting last message: %w", err)
		}

		if err := sqlx.GetContext(ctx, db, &head.UnreadCount, db.Rebind(
			`SELECT COUNT(*) FROM messages
			 WHERE conversation_id = ? AND sender_id <> ? AND is_read = FALSE`),
			row.ID, userID,
		); err != nil {
			return nil, fmt.Errorf("counting unread messages: %w", err)
		}

		heads = append(heads, head)
	}
	return heads, nil
}

// InsertMessage appends a message and bumps the conversation's activity time.
func InsertMessage(ctx context.Context, db *sqlx.DB, conversationID, senderID, content string) (*model.ChatMessage, error) {
	msg := &model.ChatMessage{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      now(),
	}
	err := WithTx(ctx, db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(
			`INSERT INTO messages (id, conversation_id, sender_id, content, is_read, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`),
			msg.ID, msg.ConversationID, msg.SenderID, msg.Content, false, msg.CreatedAt,
		); err != nil {
			return fmt.Errorf("creating message: %w", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(
			`UPDATE conversations SET updated_at = ? WHERE id = ?`),
			msg.CreatedAt, conversationID,
		); err != nil {
			return fmt.Errorf("touching conversation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages returns a conversation's messages, oldest first.
func ListMessages(ctx context.Context, db sqlx.ExtContext, conversationID string) ([]model.ChatMessage, error) {
	messages := []model.ChatMessage{}
	err := sqlx.SelectContext(ctx, db, &messages, db.Rebind(
		`SELECT id, conversation_id, sender_id, content, is_read, created_at
		 FROM messages WHERE conversation_id = ?
		 ORDER BY created_at`),
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	return messages, nil
}

// MarkMessagesRead marks messages sent to readerID in a conversation as read.
func MarkMessagesRead(ctx context.Context, db sqlx.ExtContext, conversationID, readerID string) (int64, error) {
	res, err := db.ExecContext(ctx, db.Rebind(
		`UPDATE messages SET is_read = ?
		 WHERE conversation_id = ? AND sender_id <> ? AND is_read = FALSE`),
		true, conversationID, readerID,
	)
	if err != nil {
		return 0, fmt.Errorf("marking messages read: %w", err)
	}
	return affected(res, "marking messages read")
}
