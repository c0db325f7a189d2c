package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/iamwavecut/ngwarden/internal/handlers/commands"
	"github.com/iamwavecut/ngwarden/internal/moderation"
)

type fakeModerator struct {
	verdict *moderation.Verdict
	err     error
	events  []moderation.MessageEvent
}

func (m *fakeModerator) Process(_ context.Context, ev moderation.MessageEvent) (*moderation.Verdict, error) {
	m.events = append(m.events, ev)
	return m.verdict, m.err
}

type fakeCommands struct {
	requests []commands.Request
}

func (c *fakeCommands) Handle(_ context.Context, req commands.Request) (bool, error) {
	c.requests = append(c.requests, req)
	return true, nil
}

func newMessage(date time.Time, text string) *api.Update {
	return &api.Update{
		Message: &api.Message{
			MessageID: 7,
			Date:      int(date.Unix()),
			Chat:      api.Chat{ID: -100},
			From:      &api.User{ID: 42, UserName: "alice_b", FirstName: "Alice"},
			Text:      text,
		},
	}
}

func TestProcessRoutesThroughModeratorThenCommands(t *testing.T) {
	t.Parallel()

	now := time.Now()
	moderator := &fakeModerator{verdict: &moderation.Verdict{Outcome: moderation.OutcomeClean}}
	cmds := &fakeCommands{}
	recent := commands.NewRecentMessages(0)
	up := NewUpdateProcessor(1, moderator, cmds, recent)

	if err := up.Process(context.Background(), newMessage(now, "/listwords")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(moderator.events) != 1 {
		t.Fatalf("expected one moderated event")
	}
	ev := moderator.events[0]
	if ev.MessageID != 7 || ev.GuildID != -100 || ev.ChannelID != -100 || ev.AuthorID != 42 || ev.ArrivedAt.IsZero() {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.AuthorName != `@alice\_b` {
		t.Fatalf("mention must be markdown escaped, got %q", ev.AuthorName)
	}
	if len(cmds.requests) != 1 || cmds.requests[0].Text != "/listwords" {
		t.Fatalf("unexpected command requests: %+v", cmds.requests)
	}
	if got := recent.Take(-100, 5); len(got) != 1 || got[0] != 7 {
		t.Fatalf("message must be remembered, got %v", got)
	}
}

func TestProcessSkipsCommandsAfterBannedTerm(t *testing.T) {
	t.Parallel()

	moderator := &fakeModerator{verdict: &moderation.Verdict{Outcome: moderation.OutcomeBannedTerm, Deleted: []int64{7}}}
	cmds := &fakeCommands{}
	recent := commands.NewRecentMessages(0)
	up := NewUpdateProcessor(1, moderator, cmds, recent)

	if err := up.Process(context.Background(), newMessage(time.Now(), "/warnings heck")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(cmds.requests) != 0 {
		t.Fatalf("commands must not run for removed messages")
	}
	if got := recent.Take(-100, 5); len(got) != 0 {
		t.Fatalf("deleted messages must be forgotten, got %v", got)
	}
}

func TestProcessDropsOutdatedUpdates(t *testing.T) {
	t.Parallel()

	moderator := &fakeModerator{verdict: &moderation.Verdict{Outcome: moderation.OutcomeClean}}
	up := NewUpdateProcessor(1, moderator, &fakeCommands{}, nil)

	if err := up.Process(context.Background(), newMessage(time.Now().Add(-10*time.Minute), "hi")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(moderator.events) != 0 {
		t.Fatalf("outdated update must be skipped")
	}
	if err := up.Process(context.Background(), &api.Update{}); err != nil {
		t.Fatalf("updates without a message are ignored: %v", err)
	}
	if err := up.Process(context.Background(), nil); err == nil {
		t.Fatalf("nil update must fail")
	}
}

func TestProcessWrapsModerationErrors(t *testing.T) {
	t.Parallel()

	moderator := &fakeModerator{
		verdict: &moderation.Verdict{Outcome: moderation.OutcomeSpam},
		err:     moderation.ErrStorageUnavailable,
	}
	cmds := &fakeCommands{}
	up := NewUpdateProcessor(1, moderator, cmds, nil)

	err := up.Process(context.Background(), newMessage(time.Now(), "hello"))
	if !errors.Is(err, moderation.ErrStorageUnavailable) {
		t.Fatalf("expected wrapped storage error, got %v", err)
	}
	if len(cmds.requests) != 0 {
		t.Fatalf("commands must not run after a failed moderation")
	}
}

func TestGetUN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		user *api.User
		want string
	}{
		{user: nil, want: ""},
		{user: &api.User{UserName: "bob"}, want: "bob"},
		{user: &api.User{FirstName: "Bob", LastName: "Smith"}, want: "Bob Smith"},
		{user: &api.User{FirstName: "Bob"}, want: "Bob"},
	}
	for _, tt := range tests {
		if got := GetUN(tt.user); got != tt.want {
			t.Fatalf("GetUN(%+v) = %q, want %q", tt.user, got, tt.want)
		}
	}
}
