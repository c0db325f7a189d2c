package commands

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/iamwavecut/tool"
	pkgerrors "github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/ngwarden/internal/i18n"
	"github.com/iamwavecut/ngwarden/internal/moderation"
)

const (
	CommandAddWord    = "addword"
	CommandRemoveWord = "removeword"
	CommandListWords  = "listwords"
	CommandWarnings   = "warnings"
	CommandClear      = "clear"
)

type Gateway interface {
	IsAdmin(ctx context.Context, chatID, userID int64) (bool, error)
	Reply(ctx context.Context, chatID, replyTo int64, text string, ttl time.Duration) error
	DeleteMessage(ctx context.Context, messageID, chatID int64) error
}

type TermRegistry interface {
	Add(ctx context.Context, term string) (string, error)
	Remove(ctx context.Context, term string) (string, error)
	List() []string
}

type WarningReader interface {
	Get(ctx context.Context, userID int64) (int, error)
}

// Request is a chat message that may carry a command.
type Request struct {
	ChatID    int64
	MessageID int64
	UserID    int64
	Mention   string
	Text      string
}

type Config struct {
	Prefix    string
	Language  string
	ReplyTTL  time.Duration
	NoticeTTL time.Duration
}

type Router struct {
	cfg      Config
	gateway  Gateway
	terms    TermRegistry
	warnings WarningReader
	recent   *RecentMessages
}

func NewRouter(cfg Config, gateway Gateway, terms TermRegistry, warnings WarningReader, recent *RecentMessages) *Router {
	if cfg.Prefix == "" {
		cfg.Prefix = "/"
	}
	if recent == nil {
		recent = NewRecentMessages(0)
	}
	return &Router{cfg: cfg, gateway: gateway, terms: terms, warnings: warnings, recent: recent}
}

// ExemptPrefixes are the command prefixes that bypass content filtering.
func (r *Router) ExemptPrefixes() []string {
	return []string{r.cfg.Prefix + CommandAddWord, r.cfg.Prefix + CommandRemoveWord}
}

// Parse splits text into a lowercased command name and its arguments.
func (r *Router) Parse(text string) (name, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, r.cfg.Prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(text, r.cfg.Prefix)
	name, args, _ = strings.Cut(rest, " ")
	name, _, _ = strings.Cut(name, "@")
	name = strings.ToLower(name)
	if name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(args), true
}

// Handle runs the command in req, if any, and reports whether one ran.
func (r *Router) Handle(ctx context.Context, req Request) (bool, error) {
	name, args, ok := r.Parse(req.Text)
	if !ok {
		return false, nil
	}

	entry := r.getLogEntry().WithFields(log.Fields{
		"command": name,
		"chat_id": req.ChatID,
		"user_id": req.UserID,
	})

	var err error
	switch name {
	case CommandAddWord, CommandRemoveWord, CommandClear:
		var allowed bool
		allowed, err = r.gateway.IsAdmin(ctx, req.ChatID, req.UserID)
		if err != nil {
			r.reply(ctx, entry, req, i18n.Get("An error occurred, please try again later.", r.cfg.Language), r.cfg.NoticeTTL)
			return true, pkgerrors.WithMessage(err, "cant check admin rights")
		}
		if !allowed {
			r.reply(ctx, entry, req, i18n.Get("You don't have permission to use this command. Only administrators can perform this action.", r.cfg.Language), r.cfg.NoticeTTL)
			return true, nil
		}
		switch name {
		case CommandAddWord:
			err = r.addWord(ctx, entry, req, args)
		case CommandRemoveWord:
			err = r.removeWord(ctx, entry, req, args)
		default:
			err = r.clear(ctx, entry, req, args)
		}
	case CommandListWords:
		r.listWords(ctx, entry, req)
	case CommandWarnings:
		err = r.showWarnings(ctx, entry, req)
	default:
		return false, nil
	}

	if err != nil {
		return true, pkgerrors.WithMessagef(err, "command %s", name)
	}
	entry.Debug("command handled")
	return true, nil
}

func (r *Router) addWord(ctx context.Context, entry *log.Entry, req Request, word string) error {
	if word == "" {
		r.reply(ctx, entry, req, i18n.Get("Please specify a word.", r.cfg.Language), r.cfg.NoticeTTL)
		return nil
	}
	_, err := r.terms.Add(ctx, word)
	switch {
	case errors.Is(err, moderation.ErrEmptyTerm):
		r.reply(ctx, entry, req, i18n.Get("Please specify a word.", r.cfg.Language), r.cfg.NoticeTTL)
	case errors.Is(err, moderation.ErrTermExists):
		r.reply(ctx, entry, req, tool.ExecTemplate(i18n.Get("The word {{ .word }} is already in the banned words list.", r.cfg.Language), map[string]any{"word": moderation.CodeSpan(word)}), r.cfg.ReplyTTL)
	case err != nil:
		r.reply(ctx, entry, req, i18n.Get("An error occurred, please try again later.", r.cfg.Language), r.cfg.NoticeTTL)
		return err
	default:
		r.reply(ctx, entry, req, tool.ExecTemplate(i18n.Get("Added {{ .word }} to the banned words list.", r.cfg.Language), map[string]any{"word": moderation.CodeSpan(word)}), r.cfg.ReplyTTL)
	}
	return nil
}

func (r *Router) removeWord(ctx context.Context, entry *log.Entry, req Request, word string) error {
	if word == "" {
		r.reply(ctx, entry, req, i18n.Get("Please specify a word.", r.cfg.Language), r.cfg.NoticeTTL)
		return nil
	}
	_, err := r.terms.Remove(ctx, word)
	switch {
	case errors.Is(err, moderation.ErrEmptyTerm):
		r.reply(ctx, entry, req, i18n.Get("Please specify a word.", r.cfg.Language), r.cfg.NoticeTTL)
	case errors.Is(err, moderation.ErrTermNotFound):
		r.reply(ctx, entry, req, tool.ExecTemplate(i18n.Get("The word {{ .word }} is not in the banned words list and cannot be removed.", r.cfg.Language), map[string]any{"word": moderation.CodeSpan(word)}), r.cfg.ReplyTTL)
	case err != nil:
		r.reply(ctx, entry, req, i18n.Get("An error occurred, please try again later.", r.cfg.Language), r.cfg.NoticeTTL)
		return err
	default:
		r.reply(ctx, entry, req, tool.ExecTemplate(i18n.Get("Removed {{ .word }} from the banned words list.", r.cfg.Language), map[string]any{"word": moderation.CodeSpan(word)}), r.cfg.ReplyTTL)
	}
	return nil
}

func (r *Router) listWords(ctx context.Context, entry *log.Entry, req Request) {
	words := r.terms.List()
	if len(words) == 0 {
		r.reply(ctx, entry, req, i18n.Get("No banned words currently.", r.cfg.Language), r.cfg.ReplyTTL)
		return
	}
	spans := make([]string, len(words))
	for i, word := range words {
		spans[i] = moderation.CodeSpan(word)
	}
	r.reply(ctx, entry, req, tool.ExecTemplate(i18n.Get("Banned words: {{ .words }}", r.cfg.Language), map[string]any{
		"words": strings.Join(spans, ", "),
	}), r.cfg.ReplyTTL)
}

func (r *Router) showWarnings(ctx context.Context, entry *log.Entry, req Request) error {
	count, err := r.warnings.Get(ctx, req.UserID)
	if err != nil {
		r.reply(ctx, entry, req, i18n.Get("An error occurred, please try again later.", r.cfg.Language), r.cfg.NoticeTTL)
		return err
	}
	r.reply(ctx, entry, req, tool.ExecTemplate(i18n.Get("{{ .mention }}, you have {{ .count }} warning(s).", r.cfg.Language), map[string]any{
		"mention": req.Mention,
		"count":   count,
	}), r.cfg.ReplyTTL)
	return nil
}

// clear deletes the N most recent messages of the chat, the command included.
func (r *Router) clear(ctx context.Context, entry *log.Entry, req Request, args string) error {
	amount, err := strconv.Atoi(args)
	if err != nil || amount <= 0 {
		r.reply(ctx, entry, req, i18n.Get("Please specify a valid number of messages to delete.", r.cfg.Language), r.cfg.NoticeTTL)
		return nil
	}

	deleted := 0
	for _, messageID := range r.recent.Take(req.ChatID, amount) {
		if err := r.gateway.DeleteMessage(ctx, messageID, req.ChatID); err != nil {
			entry.WithError(err).WithField("message_id", messageID).Debug("cant delete message")
			continue
		}
		deleted++
	}
	r.notice(ctx, entry, req.ChatID, tool.ExecTemplate(i18n.Get("Deleted {{ .count }} messages.", r.cfg.Language), map[string]any{
		"count": deleted,
	}))
	return nil
}

func (r *Router) reply(ctx context.Context, entry *log.Entry, req Request, text string, ttl time.Duration) {
	if err := r.gateway.Reply(ctx, req.ChatID, req.MessageID, text, ttl); err != nil {
		entry.WithError(err).Warn("cant reply")
	}
}

// notice posts without a reply target, for when the command message is gone.
func (r *Router) notice(ctx context.Context, entry *log.Entry, chatID int64, text string) {
	if err := r.gateway.Reply(ctx, chatID, 0, text, r.cfg.ReplyTTL); err != nil {
		entry.WithError(err).Warn("cant post notice")
	}
}

func (r *Router) getLogEntry() *log.Entry {
	return log.WithField("object", "CommandRouter")
}
