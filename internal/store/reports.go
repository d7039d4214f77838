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

const reportSelect = `SELECT r.id, r.reporter_id, r.request_id, r.item_id, r.issue_type, r.title,
	       r.description, r.status, r.created_at, r.updated_at,
	       TRIM(u.first_name || ' ' || u.last_name) AS reporter_name
	FROM reports r
	JOIN users u ON u.id = r.reporter_id`

// CreateReport files a new open report.
func CreateReport(ctx context.Context, db sqlx.ExtContext, reporterID string, requestID, itemID *string, issueType, title, description string) (*model.Report, error) {
	id := uuid.NewString()
	ts := now()
	_, err := db.ExecContext(ctx, db.Rebind(
		`INSERT INTO reports (id, reporter_id, request_id, item_id, issue_type, title, description, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 'open', ?, ?)`),
		id, reporterID, requestID, itemID, issueType, title, description, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("creating report: %w", err)
	}
	return GetReport(ctx, db, id)
}

// GetReport returns a report by ID.
func GetReport(ctx context.Context, db sqlx.ExtContext, id string) (*model.Report, error) {
	r := &model.Report{}
	err := sqlx.GetContext(ctx, db, r, db.Rebind(reportSelect+` WHERE r.id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting report: %w", err)
	}
	return r, nil
}

// ListReports returns reports, optionally filtered by status, newest first.
func ListReports(ctx context.Context, db sqlx.ExtContext, status string) ([]model.Report, error) {
	query := reportSelect
	var args []any
	if status != "" {
		query += ` WHERE r.status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY r.created_at DESC`

	reports := []model.Report{}
	if err := sqlx.SelectContext(ctx, db, &reports, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	return reports, nil
}

// UpdateReportStatus sets a report's status.
func UpdateReportStatus(ctx context.Context, db sqlx.ExtContext, id, status string) (int64, error) {
	res, err := db.ExecContext(ctx, db.Rebind(
		`UPDATE reports SET status = ?, updated_at = ? WHERE id = ?`),
		status, now(), id,
	)
	if err != nil {
		return 0, fmt.Errorf("updating report status: %w", err)
	}
	return affected(res, "updating report status")
}
