package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const tweetColumns = `id, user_id, content, twitter_token, twitter_secret, scheduled_time, status,
	attempts, last_error, tweet_id, claimed_at, posted_at, created_at`

// CreateScheduledTweet inserts t as PENDING and sets its ID.
func (d *DB) CreateScheduledTweet(ctx context.Context, t *ScheduledTweet) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	t.Status = TweetPending
	res, err := d.db.ExecContext(ctx, `
	INSERT INTO scheduled_tweets (user_id, content, twitter_token, twitter_secret, scheduled_time, status, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.Content, t.TwitterToken, t.TwitterSecret, toMillis(t.ScheduledTime), string(t.Status), toMillis(t.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert scheduled tweet: %w", err)
	}
	t.ID, err = res.LastInsertId()
	return err
}

// GetScheduledTweet retrieves a scheduled tweet by ID
func (d *DB) GetScheduledTweet(ctx context.Context, id int64) (*ScheduledTweet, error) {
	t, err := scanTweet(d.db.QueryRowContext(ctx, `SELECT `+tweetColumns+` FROM scheduled_tweets WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// ListDueTweetIDs returns PENDING tweets scheduled at or before now, oldest first.
func (d *DB) ListDueTweetIDs(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	rows, err := d.db.QueryContext(ctx, `
	SELECT id FROM scheduled_tweets
	WHERE status = ? AND scheduled_time <= ?
	ORDER BY scheduled_time, id LIMIT ?`,
		string(TweetPending), toMillis(now), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list due tweets: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ClaimTweet moves a PENDING tweet to IN_PROGRESS with a conditional update.
// It returns nil when another ticker already claimed the row.
func (d *DB) ClaimTweet(ctx context.Context, id int64, now time.Time) (*ScheduledTweet, error) {
	var claimed *ScheduledTweet
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
		UPDATE scheduled_tweets SET status = ?, claimed_at = ?, attempts = attempts + 1
		WHERE id = ? AND status = ?`,
			string(TweetInProgress), toMillis(now), id, string(TweetPending),
		)
		if err != nil {
			return fmt.Errorf("claim tweet: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil || n == 0 {
			return err
		}
		claimed, err = scanTweet(tx.QueryRowContext(ctx, `SELECT `+tweetColumns+` FROM scheduled_tweets WHERE id = ?`, id))
		return err
	})
	return claimed, err
}

// FinishTweet moves an IN_PROGRESS tweet to POSTED or FAILED. It reports
// false when the row was not IN_PROGRESS.
func (d *DB) FinishTweet(ctx context.Context, id int64, status TweetStatus, tweetID, lastError string, now time.Time) (bool, error) {
	var postedAt any
	if status == TweetPosted {
		postedAt = toMillis(now)
	}
	res, err := d.db.ExecContext(ctx, `
	UPDATE scheduled_tweets SET status = ?, tweet_id = ?, last_error = ?, posted_at = ?
	WHERE id = ? AND status = ?`,
		string(status), tweetID, lastError, postedAt, id, string(TweetInProgress),
	)
	if err != nil {
		return false, fmt.Errorf("finish tweet: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ExpireStaleClaims fails tweets that have been IN_PROGRESS since before cutoff.
func (d *DB) ExpireStaleClaims(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := d.db.ExecContext(ctx, `
	UPDATE scheduled_tweets SET status = ?, last_error = 'claim expired'
	WHERE status = ? AND claimed_at < ?`,
		string(TweetFailed), string(TweetInProgress), toMillis(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("expire claims: %w", err)
	}
	return res.RowsAffected()
}

func scanTweet(row rowScanner) (*ScheduledTweet, error) {
	t := &ScheduledTweet{}
	var status string
	var scheduled, created int64
	var claimed, posted sql.NullInt64
	err := row.Scan(
		&t.ID, &t.UserID, &t.Content, &t.TwitterToken, &t.TwitterSecret, &scheduled, &status,
		&t.Attempts, &t.LastError, &t.TweetID, &claimed, &posted, &created,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan scheduled tweet: %w", err)
	}
	t.Status = TweetStatus(status)
	t.ScheduledTime = fromMillis(scheduled)
	t.ClaimedAt = timePtr(claimed)
	t.PostedAt = timePtr(posted)
	t.CreatedAt = fromMillis(created)
	return t, nil
}
