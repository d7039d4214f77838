package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campusshare/sharehub/internal/model"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Item errors.
var (
	ErrItemLent     = errors.New("item is currently lent out")
	ErrItemNotFound = errors.New("item not found")
)

const itemSelect = `SELECT i.id, i.owner_id, i.title, i.description, i.category, i.item_condition,
	       i.available, i.image_mime, (i.image IS NOT NULL) AS has_image,
	       i.created_at, i.updated_at, i.deleted_at,
	       TRIM(u.first_name || ' ' || u.last_name) AS owner_name
	FROM items i
	JOIN users u ON u.id = i.owner_id`

// ItemFilter narrows ListItems. Zero values do not filter.
type ItemFilter struct {
	OwnerID        string
	ExcludeOwnerID string
	AvailableOnly  bool
	// Borrowable keeps only items whose owner is active and sharing.
	Borrowable bool
	Category   string
	Search     string
	Limit      int
}

// CreateItem creates a new, available item.
func CreateItem(ctx context.Context, db sqlx.ExtContext, ownerID, title, description, category, condition string) (*model.Item, error) {
	id := uuid.NewString()
	ts := now()
	_, err := db.ExecContext(ctx, db.Rebind(
		`INSERT INTO items (id, owner_id, title, description, category, item_condition, available, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		id, ownerID, title, description, category, condition, true, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	return GetItem(ctx, db, id)
}

// GetItem returns a non-deleted item by ID.
func GetItem(ctx context.Context, db sqlx.ExtContext, id string) (*model.Item, error) {
	item := &model.Item{}
	err := sqlx.GetContext(ctx, db, item, db.Rebind(
		itemSelect+` WHERE i.id = ? AND i.deleted_at IS NULL`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns non-deleted items matching f, newest first.
func ListItems(ctx context.Context, db sqlx.ExtContext, f ItemFilter) ([]model.Item, error) {
	query := itemSelect + ` WHERE i.deleted_at IS NULL`
	var args []any

	if f.OwnerID != "" {
		query += ` AND i.owner_id = ?`
		args = append(args, f.OwnerID)
	}
	if f.ExcludeOwnerID != "" {
		query += ` AND i.owner_id <> ?`
		args = append(args, f.ExcludeOwnerID)
	}
	if f.AvailableOnly {
		query += ` AND i.available = TRUE`
	}
	if f.Borrowable {
		query += ` AND u.deleted_at IS NULL AND u.blocked = FALSE
		   AND NOT EXISTS (SELECT 1 FROM user_settings s WHERE s.user_id = i.owner_id AND s.allow_sharing = FALSE)`
	}
	if f.Category != "" {
		query += ` AND i.category = ?`
		args = append(args, f.Category)
	}
	if f.Search != "" {
		like := likePattern(f.Search)
		query += ` AND (LOWER(i.title) LIKE ? ESCAPE '\' OR LOWER(i.description) LIKE ? ESCAPE '\')`
		args = append(args, like, like)
	}

	query += ` ORDER BY i.created_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	items := []model.Item{}
	if err := sqlx.SelectContext(ctx, db, &items, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	return items, nil
}

// UpdateItem updates an item's descriptive fields. Availability is not
// editable here; it follows the borrow lifecycle.
func UpdateItem(ctx context.Context, db sqlx.ExtContext, id, title, description, category, condition string) error {
	_, err := db.ExecContext(ctx, db.Rebind(
		`UPDATE items SET title = ?, description = ?, category = ?, item_condition = ?, updated_at = ?
		 WHERE id = ? AND deleted_at IS NULL`),
		title, description, category, condition, now(), id,
	)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	return nil
}

// SetItemAvailable flips availability only if it currently equals from.
func SetItemAvailable(ctx context.Context, db sqlx.ExtContext, id string, from, to bool, at time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, db.Rebind(
		`UPDATE items SET available = ?, updated_at = ?
		 WHERE id = ? AND available = ? AND deleted_at IS NULL`),
		to, at, id, from,
	)
	if err != nil {
		return 0, fmt.Errorf("setting item availability: %w", err)
	}
	return affected(res, "setting item availability")
}

// DeleteItem soft-deletes an item that is not lent out and denies its pending
// requests in the same transaction. It returns the denied requests, or
// ErrItemNotFound / ErrItemLent when nothing was deleted.
func DeleteItem(ctx context.Context, db *sqlx.DB, id string) ([]model.BorrowRequest, error) {
	var denied []model.BorrowRequest
	err := WithTx(ctx, db, func(tx *sqlx.Tx) error {
		ts := now()
		res, err := tx.ExecContext(ctx, tx.Rebind(
			`UPDATE items SET deleted_at = ?, updated_at = ?
			 WHERE id = ? AND deleted_at IS NULL
			   AND NOT EXISTS (SELECT 1 FROM borrow_requests r
			                   WHERE r.item_id = items.id AND r.status = 'approved' AND r.returned = FALSE)`),
			ts, ts, id,
		)
		if err != nil {
			return fmt.Errorf("deleting item: %w", err)
		}
		n, err := affected(res, "deleting item")
		if err != nil {
			return err
		}
		if n == 0 {
			var exists int
			if err := sqlx.GetContext(ctx, tx, &exists, tx.Rebind(
				`SELECT COUNT(*) FROM items WHERE id = ? AND deleted_at IS NULL`), id); err != nil {
				return fmt.Errorf("checking item: %w", err)
			}
			if exists == 0 {
				return ErrItemNotFound
			}
			return ErrItemLent
		}

		denied, err = ListRequests(ctx, tx, RequestFilter{ItemID: id, Status: model.RequestPending})
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(
			`UPDATE borrow_requests SET status = 'denied', decided_at = ?
			 WHERE item_id = ? AND status = 'pending'`),
			ts, id,
		); err != nil {
			return fmt.Errorf("denying pending requests: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return denied, nil
}

// SetItemImage stores an item's image and thumbnail.
func SetItemImage(ctx context.Context, db sqlx.ExtContext, id string, image, thumb []byte, mime string) error {
	_, err := db.ExecContext(ctx, db.Rebind(
		`UPDATE items SET image = ?, thumb = ?, image_mime = ?, updated_at = ?
		 WHERE id = ? AND deleted_at IS NULL`),
		image, thumb, mime, now(), id,
	)
	if err != nil {
		return fmt.Errorf("setting item image: %w", err)
	}
	return nil
}

// GetItemImage returns an item's image (or thumbnail) and MIME type.
func GetItemImage(ctx context.Context, db sqlx.ExtContext, id string, thumb bool) ([]byte, string, error) {
	column := "image"
	if thumb {
		column = "COALESCE(thumb, image)"
	}

	var row struct {
		Data []byte `db:"data"`
		Mime string `db:"image_mime"`
	}
	err := sqlx.GetContext(ctx, db, &row, db.Rebind(
		`SELECT `+column+` AS data, image_mime FROM items WHERE id = ? AND deleted_at IS NULL`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item image: %w", err)
	}
	return row.Data, row.Mime, nil
}

// likePattern builds a case-insensitive substring pattern for LIKE ... ESCAPE '\'.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(s)) + "%"
}
