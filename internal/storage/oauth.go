package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateOAuthState persists a pending OAuth request.
func (d *DB) CreateOAuthState(ctx context.Context, s *OAuthState) error {
	var userID any
	if s.UserID != nil {
		userID = *s.UserID
	}
	_, err := d.db.ExecContext(ctx, `
	INSERT INTO oauth_states (state, oauth_token, oauth_token_secret, user_id, expires_at)
	VALUES (?, ?, ?, ?, ?)`,
		s.State, s.OAuthToken, s.OAuthTokenSecret, userID, toMillis(s.ExpiresAt),
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert oauth state: %w", err)
	}
	return nil
}

// ConsumeOAuthState loads and deletes the state for oauthToken in one
// transaction. It returns nil when the state is missing or expired, so a
// state can be used at most once.
func (d *DB) ConsumeOAuthState(ctx context.Context, oauthToken string, now time.Time) (*OAuthState, error) {
	var state *OAuthState
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		s := &OAuthState{}
		var userID sql.NullInt64
		var expires int64
		err := tx.QueryRowContext(ctx, `
		SELECT state, oauth_token, oauth_token_secret, user_id, expires_at
		FROM oauth_states WHERE oauth_token = ?`, oauthToken,
		).Scan(&s.State, &s.OAuthToken, &s.OAuthTokenSecret, &userID, &expires)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("select oauth state: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM oauth_states WHERE state = ?`, s.State); err != nil {
			return fmt.Errorf("delete oauth state: %w", err)
		}

		s.ExpiresAt = fromMillis(expires)
		if userID.Valid {
			id := userID.Int64
			s.UserID = &id
		}
		if now.Before(s.ExpiresAt) {
			state = s
		}
		return nil
	})
	return state, err
}

// DeleteExpiredOAuthStates purges states that expired at or before now.
func (d *DB) DeleteExpiredOAuthStates(ctx context.Context, now time.Time) (int64, error) {
	res, err := d.db.ExecContext(ctx, `DELETE FROM oauth_states WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("purge oauth states: %w", err)
	}
	return res.RowsAffected()
}
