package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const userColumns = `id, name, email, password, twitter_id, twitter_token, twitter_secret, created_at`

// CreateUser inserts u and sets its ID. A taken email returns ErrDuplicate.
func (d *DB) CreateUser(ctx context.Context, u *User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO users (name, email, password, created_at) VALUES (?, ?, ?, ?)`,
		u.Name, u.Email, u.Password, toMillis(u.CreatedAt),
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	u.ID, err = res.LastInsertId()
	return err
}

// GetUser retrieves a user by ID
func (d *DB) GetUser(ctx context.Context, id int64) (*User, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByEmail retrieves a user by email
func (d *DB) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

// SetTwitterCredentials stores the access token pair obtained from the OAuth handshake.
func (d *DB) SetTwitterCredentials(ctx context.Context, userID int64, twitterID, token, secret string) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE users SET twitter_id = ?, twitter_token = ?, twitter_secret = ? WHERE id = ?`,
		twitterID, token, secret, userID,
	)
	if err != nil {
		return fmt.Errorf("update twitter credentials: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountUsers returns the total number of users
func (d *DB) CountUsers(ctx context.Context) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

func scanUser(row *sql.Row) (*User, error) {
	u := &User{}
	var twitterID, token, secret sql.NullString
	var created int64
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Password, &twitterID, &token, &secret, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.TwitterID = nullString(twitterID)
	u.TwitterToken = nullString(token)
	u.TwitterSecret = nullString(secret)
	u.CreatedAt = fromMillis(created)
	return u, nil
}
