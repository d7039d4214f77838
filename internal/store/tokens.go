package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// RevokeToken adds a token's JTI to the revocation list.
func RevokeToken(ctx context.Context, db sqlx.ExtContext, jti string, expiresAt time.Time) error {
	_, err := db.ExecContext(ctx, db.Rebind(
		`INSERT INTO revoked_tokens (jti, expires_at) VALUES (?, ?)
		 ON CONFLICT (jti) DO NOTHING`),
		jti, expiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}

	// Opportunistically clean up expired revocations.
	_, _ = db.ExecContext(ctx, db.Rebind(
		`DELETE FROM revoked_tokens WHERE expires_at < ?`), now(),
	)

	return nil
}

// IsTokenRevoked checks if a token's JTI has been revoked.
func IsTokenRevoked(ctx context.Context, db sqlx.ExtContext, jti string) (bool, error) {
	var count int
	err := sqlx.GetContext(ctx, db, &count, db.Rebind(
		`SELECT COUNT(*) FROM revoked_tokens WHERE jti = ?`), jti,
	)
	if err != nil {
		return false, fmt.Errorf("checking token revocation: %w", err)
	}
	return count > 0, nil
}
