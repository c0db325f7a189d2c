package db

import (
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

type (
	BannedWord struct {
		ID   int64  `db:"id"`
		Word string `db:"word"`
	}

	UserWarnings struct {
		UserID        int64 `db:"user_id"`
		WarningsCount int   `db:"warnings_count"`
	}

	// MuteTask is a pending unmute, one per guild and user.
	MuteTask struct {
		GuildID int64     `db:"guild_id"`
		UserID  int64     `db:"user_id"`
		TaskID  string    `db:"task_id"`
		RoleID  string    `db:"role_id"`
		DueAt   time.Time `db:"due_at"`
	}
)
