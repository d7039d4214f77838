package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/campusshare/sharehub/internal/model"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const requestSelect = `SELECT r.id, r.item_id, r.requester_id, r.status, r.returned,
	       r.created_at, r.target_return_at, r.decided_at, r.returned_at,
	       i.title AS item_title, i.owner_id AS item_owner_id,
	       TRIM(ru.first_name || ' ' || ru.last_name) AS requester_name,
	       TRIM(ou.first_name || ' ' || ou.last_name) AS owner_name
	FROM borrow_requests r
	JOIN items i ON i.id = r.item_id
	JOIN users ru ON ru.id = r.requester_id
	JOIN users ou ON ou.id = i.owner_id`

// RequestFilter narrows ListRequests. Zero values do not filter.
type RequestFilter struct {
	ItemID      string
	ItemOwnerID string
	RequesterID string
	Status      string
	// Returned, when set, matches the returned flag.
	Returned *bool
}

// InsertRequest records a new pending request.
func InsertRequest(ctx context.Context, db sqlx.ExtContext, itemID, requesterID string, createdAt time.Time, targetReturn *time.Time) (*model.BorrowRequest, error) {
	id := uuid.NewString()
	_, err := db.ExecContext(ctx, db.Rebind(
		`INSERT INTO borrow_requests (id, item_id, requester_id, status, returned, created_at, target_return_at)
		 VALUES (?, ?, ?, 'pending', ?, ?, ?)`),
		id, itemID, requesterID, false, createdAt, targetReturn,
	)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	return GetRequest(ctx, db, id)
}

// GetRequest returns a request by ID with its item and party names joined.
func GetRequest(ctx context.Context, db sqlx.ExtContext, id string) (*model.BorrowRequest, error) {
	r := &model.BorrowRequest{}
	err := sqlx.GetContext(ctx, db, r, db.Rebind(requestSelect+` WHERE r.id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting request: %w", err)
	}
	return r, nil
}

// ListRequests returns requests matching f, newest first.
func ListRequests(ctx context.Context, db sqlx.ExtContext, f RequestFilter) ([]model.BorrowRequest, error) {
	query := requestSelect + ` WHERE 1=1`
	var args []any

	if f.ItemID != "" {
		query += ` AND r.item_id = ?`
		args = append(args, f.ItemID)
	}
	if f.ItemOwnerID != "" {
		query += ` AND i.owner_id = ?`
		args = append(args, f.ItemOwnerID)
	}
	if f.RequesterID != "" {
		query += ` AND r.requester_id = ?`
		args = append(args, f.RequesterID)
	}
	if f.Status != "" {
		query += ` AND r.status = ?`
		args = append(args, f.Status)
	}
	if f.Returned != nil {
		query += ` AND r.returned = ?`
		args = append(args, *f.Returned)
	}

	query += ` ORDER BY r.created_at DESC`

	requests := []model.BorrowRequest{}
	if err := sqlx.SelectContext(ctx, db, &requests, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	return requests, nil
}

// HasPendingRequest reports whether requesterID already has a pending request for itemID.
func HasPendingRequest(ctx context.Context, db sqlx.ExtContext, itemID, requesterID string) (bool, error) {
	var count int
	err := sqlx.GetContext(ctx, db, &count, db.Rebind(
		`SELECT COUNT(*) FROM borrow_requests
		 WHERE item_id = ? AND requester_id = ? AND status = 'pending'`),
		itemID, requesterID,
	)
	if err != nil {
		return false, fmt.Errorf("checking pending request: %w", err)
	}
	return count > 0, nil
}

// DecideRequest moves a pending request to status. Zero affected rows means
// the request was no longer pending.
func DecideRequest(ctx context.Context, db sqlx.ExtContext, id, status string, at time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, db.Rebind(
		`UPDATE borrow_requests SET status = ?, decided_at = ?
		 WHERE id = ? AND status = 'pending'`),
		status, at, id,
	)
	if err != nil {
		return 0, fmt.Errorf("deciding request: %w", err)
	}
	return affected(res, "deciding request")
}

// MarkRequestReturned sets the returned flag on an active borrow.
func MarkRequestReturned(ctx context.Context, db sqlx.ExtContext, id string, at time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, db.Rebind(
		`UPDATE borrow_requests SET returned = ?, returned_at = ?
		 WHERE id = ? AND status = 'approved' AND returned = FALSE`),
		true, at, id,
	)
	if err != nil {
		return 0, fmt.Errorf("marking request returned: %w", err)
	}
	return affected(res, "marking request returned")
}

// ReconcileAvailability repairs items whose available flag disagrees with
// the set of active borrows. It returns the number of items fixed.
func ReconcileAvailability(ctx context.Context, db *sqlx.DB) (int64, error) {
	const active = `SELECT 1 FROM borrow_requests r
		WHERE r.item_id = items.id AND r.status = 'approved' AND r.returned = FALSE`

	var fixed int64
	err := WithTx(ctx, db, func(tx *sqlx.Tx) error {
		ts := now()

		res, err := tx.ExecContext(ctx, tx.Rebind(
			`UPDATE items SET available = ?, updated_at = ?
			 WHERE deleted_at IS NULL AND available = TRUE AND EXISTS (`+active+`)`),
			false, ts,
		)
		if err != nil {
			return fmt.Errorf("marking lent items unavailable: %w", err)
		}
		n, err := affected(res, "marking lent items unavailable")
		if err != nil {
			return err
		}
		fixed += n

		res, err = tx.ExecContext(ctx, tx.Rebind(
			`UPDATE items SET available = ?, updated_at = ?
			 WHERE deleted_at IS NULL AND available = FALSE AND NOT EXISTS (`+active+`)`),
			true, ts,
		)
		if err != nil {
			return fmt.Errorf("marking idle items available: %w", err)
		}
		n, err = affected(res, "marking idle items available")
		if err != nil {
			return err
		}
		fixed += n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return fixed, nil
}
