package moderation

import (
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamwavecut/tool"

	"github.com/iamwavecut/ngwarden/internal/i18n"
)

func (i *Intake) bannedTermNotice(ev MessageEvent, term string, escalation Escalation) string {
	lead := tool.ExecTemplate(i18n.Get("{{ .mention }}, your message contained the banned word: {{ .term }}. A warning has been added.", i.cfg.Language), map[string]any{
		"mention": mention(ev),
		"term":    CodeSpan(term),
	})
	return i.withEscalation(lead, ev, escalation)
}

func (i *Intake) spamNotice(ev MessageEvent, escalation Escalation) string {
	lead := tool.ExecTemplate(i18n.Get("{{ .mention }}, please stop spamming. A warning has been added to your record.", i.cfg.Language), map[string]any{
		"mention": mention(ev),
	})
	return i.withEscalation(lead, ev, escalation)
}

func (i *Intake) withEscalation(lead string, ev MessageEvent, escalation Escalation) string {
	parts := []string{lead}
	switch {
	case escalation.MuteApplied():
		parts = append(parts, tool.ExecTemplate(i18n.Get("{{ .mention }} has been muted for {{ .duration }}.", i.cfg.Language), map[string]any{
			"mention":  mention(ev),
			"duration": formatDuration(i.cfg.MuteDuration),
		}))
	case escalation.Action == ActionWarned && i.cfg.WarningLimitForNotice > 0 && escalation.Warnings >= i.cfg.WarningLimitForNotice:
		parts = append(parts, tool.ExecTemplate(i18n.Get("Warnings: {{ .count }}/{{ .limit }}. Reaching the limit mutes you.", i.cfg.Language), map[string]any{
			"count": escalation.Warnings,
			"limit": i.cfg.MuteThreshold,
		}))
	}
	return strings.Join(parts, "\n")
}

// CodeSpan renders s as inline code in legacy Markdown. A backtick cannot be
// escaped inside a code entity, so such text is sent escaped instead.
func CodeSpan(s string) string {
	if strings.Contains(s, "`") {
		return api.EscapeText(api.ModeMarkdown, s)
	}
	return "`" + s + "`"
}

func mention(ev MessageEvent) string {
	if ev.AuthorName != "" {
		return ev.AuthorName
	}
	return "user"
}

func formatDuration(d time.Duration) string {
	s := d.Round(time.Second).String()
	if strings.HasSuffix(s, "m0s") {
		s = s[:len(s)-2]
	}
	if strings.HasSuffix(s, "h0m") {
		s = s[:len(s)-2]
	}
	return s
}
