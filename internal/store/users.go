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

// Profile holds the user-editable profile fields.
type Profile struct {
	FirstName   string
	LastName    string
	Phone       string
	CollegeDept string
	Course      string
	YearLevel   string
}

const userColumns = `id, email, password_hash, first_name, last_name, phone,
	college_dept, course, year_level, role, blocked, created_at, deleted_at`

// CreateUser creates a new user.
func CreateUser(ctx context.Context, db sqlx.ExtContext, email, passwordHash, role string, p Profile) (*model.User, error) {
	id := uuid.NewString()
	_, err := db.ExecContext(ctx, db.Rebind(
		`INSERT INTO users (id, email, password_hash, first_name, last_name, phone,
		                    college_dept, course, year_level, role, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		id, email, passwordHash, p.FirstName, p.LastName, p.Phone,
		p.CollegeDept, p.Course, p.YearLevel, role, now(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return GetUser(ctx, db, id)
}

// GetUser returns a user by ID, including soft-deleted users.
func GetUser(ctx context.Context, db sqlx.ExtContext, id string) (*model.User, error) {
	u := &model.User{}
	err := sqlx.GetContext(ctx, db, u, db.Rebind(
		`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetUserByEmail returns the non-deleted user with the given email.
func GetUserByEmail(ctx context.Context, db sqlx.ExtContext, email string) (*model.User, error) {
	u := &model.User{}
	err := sqlx.GetContext(ctx, db, u, db.Rebind(
		`SELECT `+userColumns+` FROM users WHERE email = ? AND deleted_at IS NULL`), email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return u, nil
}

// CountUsers returns the number of non-deleted users.
func CountUsers(ctx context.Context, db sqlx.ExtContext) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, db, &n, `SELECT COUNT(*) FROM users WHERE deleted_at IS NULL`); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

// ListUsers returns non-deleted users, optionally filtered by a name or email
// substring, newest first.
func ListUsers(ctx context.Context, db sqlx.ExtContext, search string) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE deleted_at IS NULL`
	var args []any

	if search != "" {
		like := likePattern(search)
		query += ` AND (LOWER(email) LIKE ? ESCAPE '\' OR LOWER(first_name || ' ' || last_name) LIKE ? ESCAPE '\')`
		args = append(args, like, like)
	}
	query += ` ORDER BY created_at DESC`

	users := []model.User{}
	if err := sqlx.SelectContext(ctx, db, &users, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// UpdateUserProfile replaces a user's profile fields.
func UpdateUserProfile(ctx context.Context, db sqlx.ExtContext, id string, p Profile) error {
	_, err := db.ExecContext(ctx, db.Rebind(
		`UPDATE users SET first_name = ?, last_name = ?, phone = ?, college_dept = ?,
		                  course = ?, year_level = ?
		 WHERE id = ? AND deleted_at IS NULL`),
		p.FirstName, p.LastName, p.Phone, p.CollegeDept, p.Course, p.YearLevel, id,
	)
	if err != nil {
		return fmt.Errorf("updating user profile: %w", err)
	}
	return nil
}

// UpdateUserRole updates a user's role.
func UpdateUserRole(ctx context.Context, db sqlx.ExtContext, id, role string) (int64, error) {
	res, err := db.ExecContext(ctx, db.Rebind(
		`UPDATE users SET role = ? WHERE id = ? AND deleted_at IS NULL`),
		role, id,
	)
	if err != nil {
		return 0, fmt.Errorf("updating user role: %w", err)
	}
	return affected(res, "updating user role")
}

// SetUserBlocked blocks or unblocks a user.
func SetUserBlocked(ctx context.Context, db sqlx.ExtContext, id string, blocked bool) (int64, error) {
	res, err := db.ExecContext(ctx, db.Rebind(
		`UPDATE users SET blocked = ? WHERE id = ? AND deleted_at IS NULL`),
		blocked, id,
	)
	if err != nil {
		return 0, fmt.Errorf("setting user blocked: %w", err)
	}
	return affected(res, "setting user blocked")
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, db sqlx.ExtContext, id, passwordHash string) error {
	_, err := db.ExecContext(ctx, db.Rebind(
		`UPDATE users SET password_hash = ? WHERE id = ? AND deleted_at IS NULL`),
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	return nil
}

// ErrUserBorrowing is returned when deleting a user who still holds a borrowed item.
var ErrUserBorrowing = errors.New("user still has a borrowed item")

// DeleteUser soft-deletes a user who holds no active borrow. In the same
// transaction it denies the pending requests on the user's items and the
// pending requests the user made. It returns the requests denied on the
// user's items, whose requesters are now waiting on nobody.
func DeleteUser(ctx context.Context, db *sqlx.DB, id string) ([]model.BorrowRequest, error) {
	var denied []model.BorrowRequest
	err := WithTx(ctx, db, func(tx *sqlx.Tx) error {
		var borrowing int
		if err := sqlx.GetContext(ctx, tx, &borrowing, tx.Rebind(
			`SELECT COUNT(*) FROM borrow_requests
			 WHERE requester_id = ? AND status = 'approved' AND returned = FALSE`), id); err != nil {
			return fmt.Errorf("checking active borrows: %w", err)
		}
		if borrowing > 0 {
			return ErrUserBorrowing
		}

		ts := now()
		if _, err := tx.ExecContext(ctx, tx.Rebind(
			`UPDATE users SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`),
			ts, id,
		); err != nil {
			return fmt.Errorf("deleting user: %w", err)
		}

		var err error
		denied, err = ListRequests(ctx, tx, RequestFilter{ItemOwnerID: id, Status: model.RequestPending})
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(
			`UPDATE borrow_requests SET status = 'denied', decided_at = ?
			 WHERE status = 'pending'
			   AND (requester_id = ? OR item_id IN (SELECT id FROM items WHERE owner_id = ?))`),
			ts, id, id,
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
