package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iamwavecut/ngwarden/internal/observability"
)

// MessageEvent is a chat message as seen by the decision engine.
type MessageEvent struct {
	MessageID   int64
	ChannelID   int64
	GuildID     int64
	AuthorID    int64
	AuthorName  string
	AuthorIsBot bool
	Text        string
	ArrivedAt   time.Time
}

type Outcome string

const (
	OutcomeIgnored    Outcome = "ignored"
	OutcomeExempt     Outcome = "exempt"
	OutcomeClean      Outcome = "clean"
	OutcomeBannedTerm Outcome = "banned_term"
	OutcomeSpam       Outcome = "spam"
)

// Verdict is the result of processing one message.
type Verdict struct {
	Outcome    Outcome
	Term       string
	Deleted    []int64
	Escalation *Escalation
}

func (v *Verdict) Violation() bool {
	return v.Outcome == OutcomeBannedTerm || v.Outcome == OutcomeSpam
}

type TermChecker interface {
	Check(text string) (string, bool)
}

type ViolationHandler interface {
	OnViolation(ctx context.Context, userID, guildID int64) (Escalation, error)
}

type IntakeConfig struct {
	SelfID                int64
	ExemptPrefixes        []string
	Language              string
	NoticeTTL             time.Duration
	WarningLimitForNotice int
	MuteThreshold         int
	MuteDuration          time.Duration
}

// Intake routes each message through the banned-term filter and then the
// spam tracker, stopping at the first violation.
type Intake struct {
	cfg        IntakeConfig
	terms      TermChecker
	spam       *SpamTracker
	violations ViolationHandler
	actuator   Actuator
	clock      Clock
	tracer     trace.Tracer
}

func NewIntake(cfg IntakeConfig, terms TermChecker, spam *SpamTracker, violations ViolationHandler, actuator Actuator, clock Clock) *Intake {
	if clock == nil {
		clock = SystemClock()
	}
	return &Intake{
		cfg:        cfg,
		terms:      terms,
		spam:       spam,
		violations: violations,
		actuator:   actuator,
		clock:      clock,
		tracer:     otel.Tracer("github.com/iamwavecut/ngwarden/internal/moderation"),
	}
}

// Process handles one message. The returned error is non-nil only when the
// violation could not be recorded in the ledger.
func (i *Intake) Process(ctx context.Context, ev MessageEvent) (*Verdict, error) {
	ctx, span := i.tracer.Start(ctx, "moderation.intake",
		trace.WithAttributes(
			attribute.Int64("guild_id", ev.GuildID),
			attribute.Int64("user_id", ev.AuthorID),
			attribute.Int64("message_id", ev.MessageID),
		),
	)
	defer span.End()

	started := time.Now()
	verdict, err := i.process(ctx, ev)
	observability.ObserveMessage(string(verdict.Outcome), time.Since(started))
	span.SetAttributes(attribute.String("outcome", string(verdict.Outcome)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return verdict, err
}

func (i *Intake) process(ctx context.Context, ev MessageEvent) (*Verdict, error) {
	if ev.AuthorIsBot || (i.cfg.SelfID != 0 && ev.AuthorID == i.cfg.SelfID) {
		return &Verdict{Outcome: OutcomeIgnored}, nil
	}
	if i.isExempt(ev.Text) {
		return &Verdict{Outcome: OutcomeExempt}, nil
	}
	if ev.ArrivedAt.IsZero() {
		ev.ArrivedAt = i.clock.Now()
	}

	if term, ok := i.terms.Check(ev.Text); ok {
		return i.handleBannedTerm(ctx, ev, term)
	}

	window := i.spam.Track(ev.AuthorID, SpamEntry{
		MessageID: ev.MessageID,
		ChannelID: ev.ChannelID,
		At:        ev.ArrivedAt,
	})
	if !window.Exceeded {
		return &Verdict{Outcome: OutcomeClean}, nil
	}
	return i.handleSpam(ctx, ev, window)
}

func (i *Intake) isExempt(text string) bool {
	for _, prefix := range i.cfg.ExemptPrefixes {
		if prefix != "" && strings.HasPrefix(text, prefix) {
			return true
		}
	}
	return false
}

func (i *Intake) handleBannedTerm(ctx context.Context, ev MessageEvent, term string) (*Verdict, error) {
	entry := i.getLogEntry().WithField("user_id", ev.AuthorID).WithField("guild_id", ev.GuildID)
	observability.RecordViolation(string(OutcomeBannedTerm))
	verdict := &Verdict{Outcome: OutcomeBannedTerm, Term: term}

	if i.deleteMessage(ctx, entry, ev.MessageID, ev.ChannelID) {
		verdict.Deleted = append(verdict.Deleted, ev.MessageID)
	}

	escalation, err := i.violations.OnViolation(ctx, ev.AuthorID, ev.GuildID)
	if err != nil {
		return verdict, fmt.Errorf("record banned term violation: %w", err)
	}
	verdict.Escalation = &escalation
	entry.WithField("term", term).WithField("warnings", escalation.Warnings).Info("banned term removed")

	i.notify(ctx, entry, ev.ChannelID, i.bannedTermNotice(ev, term, escalation))
	return verdict, nil
}

func (i *Intake) handleSpam(ctx context.Context, ev MessageEvent, window Window) (*Verdict, error) {
	entry := i.getLogEntry().WithField("user_id", ev.AuthorID).WithField("guild_id", ev.GuildID)
	observability.RecordViolation(string(OutcomeSpam))
	verdict := &Verdict{Outcome: OutcomeSpam}

	for _, e := range window.Entries {
		if i.deleteMessage(ctx, entry, e.MessageID, e.ChannelID) {
			verdict.Deleted = append(verdict.Deleted, e.MessageID)
		}
	}

	escalation, err := i.violations.OnViolation(ctx, ev.AuthorID, ev.GuildID)
	if err != nil {
		return verdict, fmt.Errorf("record spam violation: %w", err)
	}
	verdict.Escalation = &escalation
	entry.WithField("messages", window.Size()).WithField("warnings", escalation.Warnings).Info("spam burst removed")

	i.notify(ctx, entry, ev.ChannelID, i.spamNotice(ev, escalation))
	return verdict, nil
}

func (i *Intake) deleteMessage(ctx context.Context, entry *log.Entry, messageID, channelID int64) bool {
	if err := i.actuator.DeleteMessage(ctx, messageID, channelID); err != nil {
		entry.WithError(err).WithField("message_id", messageID).Warn("failed to delete message")
		observability.RecordActuatorError("delete_message")
		return false
	}
	return true
}

func (i *Intake) notify(ctx context.Context, entry *log.Entry, channelID int64, text string) {
	if err := i.actuator.Notify(ctx, channelID, text, i.cfg.NoticeTTL); err != nil {
		entry.WithError(err).Warn("failed to notify channel")
		observability.RecordActuatorError("notify")
	}
}

func (i *Intake) getLogEntry() *log.Entry {
	return log.WithField("object", "Intake")
}
