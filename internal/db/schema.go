package db

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// schema is the full database schema. BLOB columns are rewritten per driver.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    email         TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    first_name    TEXT NOT NULL DEFAULT '',
    last_name     TEXT NOT NULL DEFAULT '',
    phone         TEXT NOT NULL DEFAULT '',
    college_dept  TEXT NOT NULL DEFAULT '',
    course        TEXT NOT NULL DEFAULT '',
    year_level    TEXT NOT NULL DEFAULT '',
    role          TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'user')),
    blocked       BOOLEAN NOT NULL DEFAULT FALSE,
    created_at    TIMESTAMP NOT NULL,
    deleted_at    TIMESTAMP
)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_active
    ON users(email) WHERE deleted_at IS NULL`,

	`CREATE TABLE IF NOT EXISTS user_settings (
    user_id             TEXT PRIMARY KEY REFERENCES users(id),
    show_email          BOOLEAN NOT NULL DEFAULT FALSE,
    show_profile        BOOLEAN NOT NULL DEFAULT TRUE,
    allow_sharing       BOOLEAN NOT NULL DEFAULT TRUE,
    profile_visibility  BOOLEAN NOT NULL DEFAULT FALSE,
    contact_information BOOLEAN NOT NULL DEFAULT FALSE,
    contact_email       TEXT NOT NULL DEFAULT '',
    contact_phone       TEXT NOT NULL DEFAULT '',
    updated_at          TIMESTAMP NOT NULL
)`,

	`CREATE TABLE IF NOT EXISTS items (
    id             TEXT PRIMARY KEY,
    owner_id       TEXT NOT NULL REFERENCES users(id),
    title          TEXT NOT NULL,
    description    TEXT NOT NULL DEFAULT '',
    category       TEXT NOT NULL DEFAULT 'other',
    item_condition TEXT NOT NULL DEFAULT 'good',
    available      BOOLEAN NOT NULL DEFAULT TRUE,
    image          BLOB,
    thumb          BLOB,
    image_mime     TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMP NOT NULL,
    updated_at     TIMESTAMP NOT NULL,
    deleted_at     TIMESTAMP
)`,

	`CREATE INDEX IF NOT EXISTS idx_items_owner ON items(owner_id)`,

	`CREATE TABLE IF NOT EXISTS borrow_requests (
    id               TEXT PRIMARY KEY,
    item_id          TEXT NOT NULL REFERENCES items(id),
    requester_id     TEXT NOT NULL REFERENCES users(id),
    status           TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'denied')),
    returned         BOOLEAN NOT NULL DEFAULT FALSE,
    created_at       TIMESTAMP NOT NULL,
    target_return_at TIMESTAMP,
    decided_at       TIMESTAMP,
    returned_at      TIMESTAMP
)`,

	`CREATE INDEX IF NOT EXISTS idx_requests_item ON borrow_requests(item_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_requests_requester ON borrow_requests(requester_id, status)`,

	// At most one active borrow per item.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_requests_active_borrow
    ON borrow_requests(item_id) WHERE status = 'approved' AND returned = FALSE`,

	// At most one pending request per requester and item.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_requests_one_pending
    ON borrow_requests(item_id, requester_id) WHERE status = 'pending'`,

	`CREATE TABLE IF NOT EXISTS notifications (
    id           TEXT PRIMARY KEY,
    recipient_id TEXT NOT NULL REFERENCES users(id),
    message      TEXT NOT NULL,
    type         TEXT NOT NULL,
    is_read      BOOLEAN NOT NULL DEFAULT FALSE,
    created_at   TIMESTAMP NOT NULL
)`,

	`CREATE INDEX IF NOT EXISTS idx_notifications_recipient
    ON notifications(recipient_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS reports (
    id          TEXT PRIMARY KEY,
    reporter_id TEXT NOT NULL REFERENCES users(id),
    request_id  TEXT,
    item_id     TEXT,
    issue_type  TEXT NOT NULL DEFAULT 'other',
    title       TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'in_progress', 'resolved')),
    created_at  TIMESTAMP NOT NULL,
    updated_at  TIMESTAMP NOT NULL
)`,

	`CREATE TABLE IF NOT EXISTS conversations (
    id            TEXT PRIMARY KEY,
    item_id       TEXT NOT NULL REFERENCES items(id),
    item_title    TEXT NOT NULL DEFAULT '',
    item_owner_id TEXT NOT NULL REFERENCES users(id),
    created_at    TIMESTAMP NOT NULL,
    updated_at    TIMESTAMP NOT NULL
)`,

	`CREATE INDEX IF NOT EXISTS idx_conversations_item ON conversations(item_id)`,

	`CREATE TABLE IF NOT EXISTS conversation_participants (
    conversation_id TEXT NOT NULL REFERENCES conversations(id),
    user_id         TEXT NOT NULL REFERENCES users(id),
    PRIMARY KEY (conversation_id, user_id)
)`,

	`CREATE TABLE IF NOT EXISTS messages (
    id              TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL REFERENCES conversations(id),
    sender_id       TEXT NOT NULL REFERENCES users(id),
    content         TEXT NOT NULL,
    is_read         BOOLEAN NOT NULL DEFAULT FALSE,
    created_at      TIMESTAMP NOT NULL
)`,

	`CREATE INDEX IF NOT EXISTS idx_messages_conversation
    ON messages(conversation_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
)`,

	`CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at TIMESTAMP NOT NULL
)`,

	`CREATE TABLE IF NOT EXISTS audit_events (
    id          TEXT PRIMARY KEY,
    type        TEXT NOT NULL,
    subject     TEXT NOT NULL,
    actor_id    TEXT NOT NULL DEFAULT '',
    payload     TEXT NOT NULL DEFAULT '{}',
    occurred_at TIMESTAMP NOT NULL,
    recorded_at TIMESTAMP NOT NULL
)`,
}

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sqlx.DB) error {
	blob := "BLOB"
	if db.DriverName() == DriverPostgres {
		blob = "BYTEA"
	}

	for i, stmt := range schema {
		stmt = strings.ReplaceAll(stmt, " BLOB", " "+blob)
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("creating schema (statement %d): %w", i+1, err)
		}
	}
	return nil
}
