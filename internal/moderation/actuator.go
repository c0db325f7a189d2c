package moderation

import (
	"context"
	"time"
)

// RoleHandle identifies the capability that denies posting in a guild.
type RoleHandle struct {
	GuildID int64
	ID      string
	Name    string
}

// Actuator performs the outward moderation effects. Every method may fail with
// ErrPermissionDenied, ErrTargetNotFound or ErrGateway; callers treat those as non-fatal.
type Actuator interface {
	// EnsureMuteRole is idempotent: repeated calls for a guild return the same handle.
	EnsureMuteRole(ctx context.Context, guildID int64) (RoleHandle, error)
	GrantMute(ctx context.Context, userID, guildID int64, role RoleHandle) error
	RevokeMute(ctx context.Context, userID, guildID int64, role RoleHandle) error
	DeleteMessage(ctx context.Context, messageID, channelID int64) error
	Notify(ctx context.Context, channelID int64, text string, ttl time.Duration) error
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }
