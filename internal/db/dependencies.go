package db

import "context"

type Client interface {
	Close() error

	ListBannedWords(ctx context.Context) ([]*BannedWord, error)
	AddBannedWord(ctx context.Context, word string) (*BannedWord, error)
	RemoveBannedWord(ctx context.Context, word string) error

	GetWarnings(ctx context.Context, userID int64) (int, error)
	IncrementWarnings(ctx context.Context, userID int64) (int, error)
	IncrementWarningsUntil(ctx context.Context, userID int64, limit int) (int, bool, error)
	ResetWarnings(ctx context.Context, userID int64) error

	UpsertMuteTask(ctx context.Context, task *MuteTask) error
	DeleteMuteTask(ctx context.Context, guildID, userID int64, taskID string) error
	ListMuteTasks(ctx context.Context) ([]*MuteTask, error)
}
