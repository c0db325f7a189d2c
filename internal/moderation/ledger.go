package moderation

import (
	"context"
	"fmt"
)

type WarningStore interface {
	GetWarnings(ctx context.Context, userID int64) (int, error)
	IncrementWarnings(ctx context.Context, userID int64) (int, error)
	IncrementWarningsUntil(ctx context.Context, userID int64, limit int) (int, bool, error)
	ResetWarnings(ctx context.Context, userID int64) error
}

// Ledger is the durable per-user warning counter. Unknown users count zero.
type Ledger interface {
	Get(ctx context.Context, userID int64) (int, error)
	Increment(ctx context.Context, userID int64) (int, error)
	// IncrementUntil increments and, when the count reaches limit, resets it
	// in one write. Readers never observe a count at or above limit.
	IncrementUntil(ctx context.Context, userID int64, limit int) (int, bool, error)
	Reset(ctx context.Context, userID int64) error
}

type storeLedger struct {
	store WarningStore
}

func NewLedger(store WarningStore) Ledger {
	return &storeLedger{store: store}
}

func (l *storeLedger) Get(ctx context.Context, userID int64) (int, error) {
	count, err := l.store.GetWarnings(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: get warnings: %w", ErrStorageUnavailable, err)
	}
	return count, nil
}

func (l *storeLedger) Increment(ctx context.Context, userID int64) (int, error) {
	count, err := l.store.IncrementWarnings(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: increment warnings: %w", ErrStorageUnavailable, err)
	}
	return count, nil
}

func (l *storeLedger) IncrementUntil(ctx context.Context, userID int64, limit int) (int, bool, error) {
	count, reached, err := l.store.IncrementWarningsUntil(ctx, userID, limit)
	if err != nil {
		return 0, false, fmt.Errorf("%w: increment warnings: %w", ErrStorageUnavailable, err)
	}
	return count, reached, nil
}

func (l *storeLedger) Reset(ctx context.Context, userID int64) error {
	if err := l.store.ResetWarnings(ctx, userID); err != nil {
		return fmt.Errorf("%w: reset warnings: %w", ErrStorageUnavailable, err)
	}
	return nil
}
