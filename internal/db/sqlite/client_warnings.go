package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iamwavecut/tool"
	log "github.com/sirupsen/logrus"
)

func (c *sqliteClient) GetWarnings(ctx context.Context, userID int64) (int, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var count int
	err := c.db.GetContext(ctx, &count, `SELECT warnings_count FROM user_warnings WHERE user_id = ?`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get warnings for user %d: %w", userID, err)
	}
	return count, nil
}

func (c *sqliteClient) IncrementWarnings(ctx context.Context, userID int64) (int, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO user_warnings (user_id, warnings_count)
		VALUES (?, 1)
		ON CONFLICT(user_id) DO UPDATE SET
		warnings_count = warnings_count + 1
		RETURNING warnings_count
	`
	var count int
	if err := c.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("failed to increment warnings for user %d: %w", userID, err)
	}
	return count, nil
}

// IncrementWarningsUntil adds a warning and, once the count reaches limit,
// zeroes it in the same transaction. The returned count is the value before
// the reset.
func (c *sqliteClient) IncrementWarningsUntil(ctx context.Context, userID int64, limit int) (int, bool, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("failed to begin transaction: %w", err)
	}

	rollback := true
	defer func() {
		if rollback {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.WithError(err).Error("failed to rollback transaction")
			}
		}
	}()

	query := `
		INSERT INTO user_warnings (user_id, warnings_count)
		VALUES (?, 1)
		ON CONFLICT(user_id) DO UPDATE SET
		warnings_count = warnings_count + 1
		RETURNING warnings_count
	`
	var count int
	if err := tx.GetContext(ctx, &count, query, userID); err != nil {
		return 0, false, fmt.Errorf("failed to increment warnings for user %d: %w", userID, err)
	}
	reached := limit > 0 && count >= limit
	if reached {
		if _, err := tx.ExecContext(ctx, `UPDATE user_warnings SET warnings_count = 0 WHERE user_id = ?`, userID); err != nil {
			return 0, false, fmt.Errorf("failed to reset warnings for user %d: %w", userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	rollback = false
	return count, reached, nil
}

func (c *sqliteClient) ResetWarnings(ctx context.Context, userID int64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return tool.Err(c.db.ExecContext(ctx, `UPDATE user_warnings SET warnings_count = 0 WHERE user_id = ?`, userID))
}
