package bot

import (
	"context"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/ngwarden/internal/handlers/commands"
	"github.com/iamwavecut/ngwarden/internal/moderation"
)

const (
	UpdateTimeout = 5 * time.Minute
)

type Moderator interface {
	Process(ctx context.Context, ev moderation.MessageEvent) (*moderation.Verdict, error)
}

type CommandHandler interface {
	Handle(ctx context.Context, req commands.Request) (bool, error)
}

// MessageLog tracks recent message ids per chat for bulk deletion.
type MessageLog interface {
	Add(chatID, messageID int64)
	Forget(chatID int64, messageIDs ...int64)
}

type UpdateProcessor struct {
	selfID    int64
	moderator Moderator
	commands  CommandHandler
	messages  MessageLog
	now       func() time.Time
}

func NewUpdateProcessor(selfID int64, moderator Moderator, commands CommandHandler, messages MessageLog) *UpdateProcessor {
	return &UpdateProcessor{
		selfID:    selfID,
		moderator: moderator,
		commands:  commands,
		messages:  messages,
		now:       time.Now,
	}
}

func (up *UpdateProcessor) Process(ctx context.Context, u *api.Update) error {
	if u == nil {
		return errors.New("update is nil")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	msg := u.Message
	if msg == nil || msg.From == nil {
		return nil
	}

	updateTime := time.Unix(int64(msg.Date), 0)
	if age := up.now().Sub(updateTime); age > UpdateTimeout {
		log.WithFields(log.Fields{
			"update_time": updateTime,
			"age":         age,
		}).Debug("Skipping outdated update")
		return nil
	}

	ev := NewMessageEvent(msg, up.now())
	if up.messages != nil && ev.AuthorID != up.selfID {
		up.messages.Add(ev.ChannelID, ev.MessageID)
	}

	verdict, err := up.moderator.Process(ctx, ev)
	if verdict != nil && up.messages != nil && len(verdict.Deleted) > 0 {
		up.messages.Forget(ev.ChannelID, verdict.Deleted...)
	}
	if err != nil {
		return errors.WithMessage(err, "moderation error")
	}
	if verdict.Violation() {
		log.WithFields(log.Fields{
			"chat_id": ev.ChannelID,
			"user_id": ev.AuthorID,
			"outcome": verdict.Outcome,
			"deleted": len(verdict.Deleted),
		}).Info("violation handled")
	}
	if verdict.Outcome == moderation.OutcomeIgnored || verdict.Outcome == moderation.OutcomeBannedTerm {
		return nil
	}

	if _, err := up.commands.Handle(ctx, commands.Request{
		ChatID:    ev.ChannelID,
		MessageID: ev.MessageID,
		UserID:    ev.AuthorID,
		Mention:   ev.AuthorName,
		Text:      msg.Text,
	}); err != nil {
		return errors.WithMessage(err, "command error")
	}
	return nil
}

// NewMessageEvent converts a Telegram message; the chat serves as both guild and channel.
func NewMessageEvent(msg *api.Message, arrivedAt time.Time) moderation.MessageEvent {
	return moderation.MessageEvent{
		MessageID:   int64(msg.MessageID),
		ChannelID:   msg.Chat.ID,
		GuildID:     msg.Chat.ID,
		AuthorID:    msg.From.ID,
		AuthorName:  GetMention(msg.From),
		AuthorIsBot: msg.From.IsBot,
		Text:        ExtractContentFromMessage(msg),
		ArrivedAt:   arrivedAt,
	}
}

func GetUpdatesChans(ctx context.Context, bot *api.BotAPI, config api.UpdateConfig) (api.UpdatesChannel, chan error) {
	ch := make(chan api.Update, bot.Buffer)
	chErr := make(chan error, 1)

	go func() {
		defer close(ch)
		defer close(chErr)
		for {
			select {
			case <-ctx.Done():
				chErr <- ctx.Err()
				return
			default:
				updates, err := bot.GetUpdates(config)
				if err != nil {
					chErr <- err
					return
				}

				for _, update := range updates {
					if update.UpdateID >= config.Offset {
						config.Offset = update.UpdateID + 1
						select {
						case ch <- update:
						case <-ctx.Done():
							chErr <- ctx.Err()
							return
						}
					}
				}
			}
		}
	}()

	return ch, chErr
}

func GetUN(user *api.User) string {
	if user == nil {
		return ""
	}
	userName := user.UserName
	if len(userName) == 0 {
		userName = user.FirstName + " " + user.LastName
		userName = strings.TrimSpace(userName)
	}
	return userName
}

// GetMention renders user for a Markdown notice.
func GetMention(user *api.User) string {
	if user == nil {
		return ""
	}
	if user.UserName != "" {
		return api.EscapeText(api.ModeMarkdown, "@"+user.UserName)
	}
	return api.EscapeText(api.ModeMarkdown, GetUN(user))
}

// ExtractContentFromMessage joins the text and caption, the parts a filter can see.
func ExtractContentFromMessage(msg *api.Message) string {
	return strings.TrimSpace(msg.Text + " " + msg.Caption)
}
