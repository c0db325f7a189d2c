package telegram

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/hashicorp/golang-lru/v2/expirable"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/iamwavecut/ngwarden/internal/moderation"
	"github.com/iamwavecut/ngwarden/internal/policy/permissions"
)

const (
	muteRoleID   = "restrict:send"
	muteRoleName = "Muted"

	roleCacheSize = 1024
	roleCacheTTL  = time.Hour
)

// Actuator applies moderation effects through the Telegram Bot API. A chat is
// both the guild and the channel; the mute role is a send restriction.
type Actuator struct {
	bot     BotAPI
	selfID  int64
	limiter *rate.Limiter

	roles  *expirable.LRU[int64, moderation.RoleHandle]
	flight singleflight.Group

	mu         sync.Mutex
	started    bool
	runtimeCtx context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

var _ moderation.Actuator = (*Actuator)(nil)

// NewActuator limits outgoing calls to rps requests per second.
func NewActuator(bot BotAPI, selfID int64, rps float64) *Actuator {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Actuator{
		bot:     bot,
		selfID:  selfID,
		limiter: rate.NewLimiter(limit, 1),
		roles:   expirable.NewLRU[int64, moderation.RoleHandle](roleCacheSize, nil, roleCacheTTL),
	}
}

func (a *Actuator) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return nil
	}
	a.runtimeCtx, a.cancel = context.WithCancel(ctx)
	a.started = true
	return nil
}

func (a *Actuator) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return nil
	}
	a.started = false
	cancel := a.cancel
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// EnsureMuteRole checks once per chat that the bot may restrict members.
func (a *Actuator) EnsureMuteRole(ctx context.Context, guildID int64) (moderation.RoleHandle, error) {
	if role, ok := a.roles.Get(guildID); ok {
		return role, nil
	}

	v, err, _ := a.flight.Do(strconv.FormatInt(guildID, 10), func() (any, error) {
		if role, ok := a.roles.Get(guildID); ok {
			return role, nil
		}
		member, err := a.chatMember(ctx, guildID, a.selfID)
		if err != nil {
			return moderation.RoleHandle{}, err
		}
		if !permissions.CanRestrict(&member) {
			return moderation.RoleHandle{}, fmt.Errorf("ensure mute role in %d: %w", guildID, moderation.ErrPermissionDenied)
		}
		role := moderation.RoleHandle{GuildID: guildID, ID: muteRoleID, Name: muteRoleName}
		a.roles.Add(guildID, role)
		a.getLogEntry().WithField("chat_id", guildID).Debug("mute role ready")
		return role, nil
	})
	if err != nil {
		return moderation.RoleHandle{}, err
	}
	return v.(moderation.RoleHandle), nil
}

func (a *Actuator) GrantMute(ctx context.Context, userID, guildID int64, _ moderation.RoleHandle) error {
	return a.request(ctx, "grant mute", restrictConfig(guildID, userID, false))
}

func (a *Actuator) RevokeMute(ctx context.Context, userID, guildID int64, _ moderation.RoleHandle) error {
	return a.request(ctx, "revoke mute", restrictConfig(guildID, userID, true))
}

func (a *Actuator) DeleteMessage(ctx context.Context, messageID, channelID int64) error {
	return a.request(ctx, "delete message", api.NewDeleteMessage(channelID, int(messageID)))
}

// Notify posts text to the chat and removes it after ttl, if ttl is positive.
func (a *Actuator) Notify(ctx context.Context, channelID int64, text string, ttl time.Duration) error {
	msg := api.NewMessage(channelID, text)
	msg.ParseMode = api.ModeMarkdown
	msg.DisableNotification = true
	msg.LinkPreviewOptions.IsDisabled = true
	return a.post(ctx, "notify", channelID, msg, ttl)
}

// Reply answers replyTo, or just posts when it is zero, and removes the
// answer after ttl.
func (a *Actuator) Reply(ctx context.Context, chatID, replyTo int64, text string, ttl time.Duration) error {
	msg := api.NewMessage(chatID, text)
	msg.ParseMode = api.ModeMarkdown
	msg.DisableNotification = true
	msg.LinkPreviewOptions.IsDisabled = true
	if replyTo != 0 {
		msg.ReplyParameters.AllowSendingWithoutReply = true
		msg.ReplyParameters.MessageID = int(replyTo)
		msg.ReplyParameters.ChatID = chatID
	}
	return a.post(ctx, "reply", chatID, msg, ttl)
}

// IsAdmin reports whether userID may run moderation commands in chatID.
func (a *Actuator) IsAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	member, err := a.chatMember(ctx, chatID, userID)
	if err != nil {
		return false, err
	}
	return permissions.IsPrivilegedModerator(&member), nil
}

func (a *Actuator) post(ctx context.Context, op string, chatID int64, msg api.MessageConfig, ttl time.Duration) error {
	sent, err := a.send(ctx, op, msg)
	if err != nil {
		return err
	}
	if ttl > 0 {
		messageID := int64(sent.MessageID)
		a.scheduleAfter(ttl, func(runCtx context.Context) {
			if err := a.DeleteMessage(runCtx, messageID, chatID); err != nil {
				a.getLogEntry().WithError(err).WithField("chat_id", chatID).Warn("failed to delete notice")
			}
		})
	}
	return nil
}

func (a *Actuator) scheduleAfter(delay time.Duration, task func(ctx context.Context)) {
	runCtx := a.getRuntimeContext()
	a.wg.Go(func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-runCtx.Done():
			return
		case <-timer.C:
			task(runCtx)
		}
	})
}

func (a *Actuator) getRuntimeContext() context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx != nil {
		return a.runtimeCtx
	}
	return context.Background()
}

func (a *Actuator) getLogEntry() *log.Entry {
	return log.WithField("object", "TelegramActuator")
}
