package moderation

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/ngwarden/internal/observability"
)

type Action string

const (
	ActionWarned Action = "warned"
	ActionMuted  Action = "muted"
)

type EscalationPolicy struct {
	MuteThreshold int
	MuteDuration  time.Duration
}

// Escalation describes what a single violation led to.
type Escalation struct {
	Action   Action
	Warnings int
	// MutedUntil is set only when the mute was applied.
	MutedUntil time.Time
	// MuteErr holds the actuator failure when the threshold was reached but
	// the mute could not be applied. The ledger is reset regardless.
	MuteErr error
}

// MuteApplied reports whether the user is actually restricted now.
func (e Escalation) MuteApplied() bool {
	return e.Action == ActionMuted && e.MuteErr == nil
}

const lockStripes = 64

type userLocks [lockStripes]sync.Mutex

func (l *userLocks) lock(userID int64) *sync.Mutex {
	m := &l[uint64(userID)%lockStripes]
	m.Lock()
	return m
}

// Controller turns violations into warnings and, at the threshold, a timed mute.
type Controller struct {
	policy   EscalationPolicy
	ledger   Ledger
	actuator Actuator
	clock    Clock
	timers   *MuteScheduler
	locks    userLocks
}

func NewController(policy EscalationPolicy, ledger Ledger, actuator Actuator, store TaskStore, clock Clock) *Controller {
	if clock == nil {
		clock = SystemClock()
	}
	c := &Controller{
		policy:   policy,
		ledger:   ledger,
		actuator: actuator,
		clock:    clock,
	}
	c.timers = NewMuteScheduler(clock, store, c.unmute)
	return c
}

func (c *Controller) Start(ctx context.Context) error {
	return c.timers.Start(ctx)
}

func (c *Controller) Stop(ctx context.Context) error {
	return c.timers.Stop(ctx)
}

// Scheduler exposes the pending unmute queue.
func (c *Controller) Scheduler() *MuteScheduler {
	return c.timers
}

// OnViolation records one violation for userID in guildID. Only ledger
// failures are returned; actuator failures end up in Escalation.MuteErr.
func (c *Controller) OnViolation(ctx context.Context, userID, guildID int64) (Escalation, error) {
	count, reached, err := c.countViolation(ctx, userID)
	if err != nil {
		return Escalation{}, err
	}
	if !reached {
		return Escalation{Action: ActionWarned, Warnings: count}, nil
	}

	until, err := c.mute(ctx, userID, guildID)
	if err != nil {
		c.getLogEntry().WithError(err).WithField("user_id", userID).WithField("guild_id", guildID).Warn("mute failed")
		observability.RecordMute("failed")
		return Escalation{Action: ActionMuted, Warnings: count, MuteErr: err}, nil
	}
	observability.RecordMute("applied")
	return Escalation{Action: ActionMuted, Warnings: count, MutedUntil: until}, nil
}

// countViolation increments the ledger and resets it in the same write when
// the threshold is reached, under the user's lock.
func (c *Controller) countViolation(ctx context.Context, userID int64) (int, bool, error) {
	m := c.locks.lock(userID)
	defer m.Unlock()

	return c.ledger.IncrementUntil(ctx, userID, c.policy.MuteThreshold)
}

func (c *Controller) mute(ctx context.Context, userID, guildID int64) (time.Time, error) {
	role, err := c.actuator.EnsureMuteRole(ctx, guildID)
	if err != nil {
		return time.Time{}, fmt.Errorf("ensure mute role: %w", err)
	}
	if err := c.actuator.GrantMute(ctx, userID, guildID, role); err != nil {
		return time.Time{}, fmt.Errorf("grant mute: %w", err)
	}

	until := c.clock.Now().Add(c.policy.MuteDuration)
	_, replaced := c.timers.Schedule(ctx, MuteTask{
		UserID:  userID,
		GuildID: guildID,
		Role:    role,
		DueAt:   until,
	})
	c.getLogEntry().WithField("user_id", userID).
		WithField("guild_id", guildID).
		WithField("until", until.Format(time.RFC3339)).
		WithField("replaced", replaced).
		Info("user muted")
	return until, nil
}

func (c *Controller) unmute(ctx context.Context, task MuteTask) {
	entry := c.getLogEntry().WithField("user_id", task.UserID).WithField("guild_id", task.GuildID)
	if err := c.actuator.RevokeMute(ctx, task.UserID, task.GuildID, task.Role); err != nil {
		entry.WithError(err).Warn("unmute failed")
		observability.RecordUnmute("failed")
		return
	}
	observability.RecordUnmute("applied")
	entry.Info("user unmuted")
}

func (c *Controller) getLogEntry() *log.Entry {
	return log.WithField("object", "Controller")
}
