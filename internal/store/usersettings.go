package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/campusshare/sharehub/internal/model"
	"github.com/jmoiron/sqlx"
)

const userSettingsColumns = `user_id, show_email, show_profile, allow_sharing, profile_visibility,
	contact_information, contact_email, contact_phone, updated_at`

// GetUserSettings returns a user's settings, or the defaults if none were saved.
func GetUserSettings(ctx context.Context, db sqlx.ExtContext, userID string) (*model.UserSettings, error) {
	s := &model.UserSettings{}
	err := sqlx.GetContext(ctx, db, s, db.Rebind(
		`SELECT `+userSettingsColumns+` FROM user_settings WHERE user_id = ?`), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DefaultSettings(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user settings: %w", err)
	}
	return s, nil
}

// SaveUserSettings creates or replaces s.UserID's settings.
func SaveUserSettings(ctx context.Context, db sqlx.ExtContext, s *model.UserSettings) error {
	ts := now()
	_, err := db.ExecContext(ctx, db.Rebind(
		`INSERT INTO user_settings (`+userSettingsColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
		     show_email = excluded.show_email,
		     show_profile = excluded.show_profile,
		     allow_sharing = excluded.allow_sharing,
		     profile_visibility = excluded.profile_visibility,
		     contact_information = excluded.contact_information,
		     contact_email = excluded.contact_email,
		     contact_phone = excluded.contact_phone,
		     updated_at = excluded.updated_at`),
		s.UserID, s.ShowEmail, s.ShowProfile, s.AllowSharing, s.ProfileVisibility,
		s.ContactInformation, s.ContactEmail, s.ContactPhone, ts,
	)
	if err != nil {
		return fmt.Errorf("saving user settings: %w", err)
	}
	s.UpdatedAt = &ts
	return nil
}

// ListContacts returns the public contact of each user in ids that shares
// one. Users sharing nothing are absent from the map.
func ListContacts(ctx context.Context, db sqlx.ExtContext, ids []string) (map[string]*model.Contact, error) {
	contacts := map[string]*model.Contact{}
	if len(ids) == 0 {
		return contacts, nil
	}

	query, args, err := sqlx.In(
		`SELECT u.email, s.user_id, s.show_email, s.show_profile, s.allow_sharing, s.profile_visibility,
		        s.contact_information, s.contact_email, s.contact_phone, s.updated_at
		 FROM user_settings s
		 JOIN users u ON u.id = s.user_id
		 WHERE s.user_id IN (?) AND u.deleted_at IS NULL`, ids)
	if err != nil {
		return nil, fmt.Errorf("building contact query: %w", err)
	}

	var rows []struct {
		Email string `db:"email"`
		model.UserSettings
	}
	if err := sqlx.SelectContext(ctx, db, &rows, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("listing contacts: %w", err)
	}
	for _, row := range rows {
		if c := row.PublicContact(row.Email); c != nil {
			contacts[row.UserID] = c
		}
	}
	return contacts, nil
}
