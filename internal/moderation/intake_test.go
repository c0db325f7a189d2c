package moderation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type intakeFixture struct {
	intake   *Intake
	store    *memStore
	actuator *fakeActuator
	clock    *fakeClock
	spam     *SpamTracker
}

func newIntakeFixture(t *testing.T, words ...string) *intakeFixture {
	t.Helper()

	store := newMemStore()
	store.words = words
	terms := NewTerms(store)
	if err := terms.Load(context.Background()); err != nil {
		t.Fatalf("load terms: %v", err)
	}
	actuator := newFakeActuator()
	clock := newFakeClock()
	spam := NewSpamTracker(10*time.Second, 5)
	controller := newTestController(store, actuator, clock)
	intake := NewIntake(IntakeConfig{
		SelfID:                999,
		ExemptPrefixes:        []string{"/addword", "/removeword"},
		Language:              "en",
		NoticeTTL:             5 * time.Second,
		WarningLimitForNotice: 3,
		MuteThreshold:         5,
		MuteDuration:          5 * time.Minute,
	}, terms, spam, controller, actuator, clock)

	return &intakeFixture{intake: intake, store: store, actuator: actuator, clock: clock, spam: spam}
}

func (f *intakeFixture) message(id int64, text string) MessageEvent {
	return MessageEvent{
		MessageID:  id,
		ChannelID:  10,
		GuildID:    10,
		AuthorID:   1,
		AuthorName: "@alice",
		Text:       text,
		ArrivedAt:  f.clock.Now(),
	}
}

func TestSpamBurstDeletesWholeWindow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newIntakeFixture(t)

	var verdict *Verdict
	for i := int64(1); i <= 6; i++ {
		var err error
		verdict, err = f.intake.Process(ctx, f.message(i, "hello"))
		if err != nil {
			t.Fatalf("message %d: %v", i, err)
		}
		if i < 6 && verdict.Outcome != OutcomeClean {
			t.Fatalf("message %d: unexpected outcome %s", i, verdict.Outcome)
		}
		f.clock.Advance(500 * time.Millisecond)
	}

	if verdict.Outcome != OutcomeSpam || len(verdict.Deleted) != 6 {
		t.Fatalf("unexpected verdict: %+v", verdict)
	}
	if verdict.Escalation == nil || verdict.Escalation.Warnings != 1 {
		t.Fatalf("expected one warning, got %+v", verdict.Escalation)
	}
	if count, _ := f.store.GetWarnings(ctx, 1); count != 1 {
		t.Fatalf("expected ledger at 1, got %d", count)
	}
	if f.spam.Len() != 0 {
		t.Fatalf("expected window cleared")
	}
	calls := f.actuator.snapshot()
	if len(calls.notices) != 1 || !strings.Contains(calls.notices[0].text, "@alice, please stop spamming") {
		t.Fatalf("unexpected notices: %+v", calls.notices)
	}
	if calls.notices[0].ttl != 5*time.Second {
		t.Fatalf("unexpected notice ttl: %v", calls.notices[0].ttl)
	}
}

func TestBannedTermSkipsSpamCheck(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newIntakeFixture(t, "ass")

	for i := int64(1); i <= 5; i++ {
		if _, err := f.intake.Process(ctx, f.message(i, "hello")); err != nil {
			t.Fatalf("message %d: %v", i, err)
		}
	}

	verdict, err := f.intake.Process(ctx, f.message(6, "you ass"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if verdict.Outcome != OutcomeBannedTerm || verdict.Term != "ass" || !verdict.Violation() {
		t.Fatalf("unexpected verdict: %+v", verdict)
	}
	if len(verdict.Deleted) != 1 || verdict.Deleted[0] != 6 {
		t.Fatalf("only the offending message must be deleted, got %v", verdict.Deleted)
	}
	if count, _ := f.store.GetWarnings(ctx, 1); count != 1 {
		t.Fatalf("expected a single warning, got %d", count)
	}
	calls := f.actuator.snapshot()
	if len(calls.notices) != 1 || !strings.Contains(calls.notices[0].text, "banned word: `ass`") {
		t.Fatalf("unexpected notices: %+v", calls.notices)
	}
}

func TestSubstringDoesNotTriggerFilter(t *testing.T) {
	t.Parallel()

	f := newIntakeFixture(t, "ass")
	verdict, err := f.intake.Process(context.Background(), f.message(1, "first class service"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if verdict.Outcome != OutcomeClean || verdict.Violation() {
		t.Fatalf("unexpected outcome %s", verdict.Outcome)
	}
}

func TestFifthBannedTermMutes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newIntakeFixture(t, "ass")

	var verdict *Verdict
	for i := int64(1); i <= 5; i++ {
		var err error
		verdict, err = f.intake.Process(ctx, f.message(i, "ass"))
		if err != nil {
			t.Fatalf("message %d: %v", i, err)
		}
		f.clock.Advance(time.Minute)
	}
	if !verdict.Escalation.MuteApplied() {
		t.Fatalf("expected mute on fifth violation, got %+v", verdict.Escalation)
	}
	if count, _ := f.store.GetWarnings(ctx, 1); count != 0 {
		t.Fatalf("expected ledger reset, got %d", count)
	}

	calls := f.actuator.snapshot()
	if !strings.Contains(calls.notices[4].text, "@alice has been muted for 5m.") {
		t.Fatalf("missing mute notice: %q", calls.notices[4].text)
	}
	if !strings.Contains(calls.notices[2].text, "Warnings: 3/5.") {
		t.Fatalf("missing warning hint: %q", calls.notices[2].text)
	}
	if strings.Contains(calls.notices[1].text, "Warnings:") {
		t.Fatalf("hint shown below the notice limit: %q", calls.notices[1].text)
	}
}

func TestIgnoredAndExemptMessages(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newIntakeFixture(t, "ass")

	bot := f.message(1, "ass")
	bot.AuthorIsBot = true
	self := f.message(2, "ass")
	self.AuthorID = 999
	command := f.message(3, "/addword ass")

	for _, ev := range []MessageEvent{bot, self} {
		verdict, err := f.intake.Process(ctx, ev)
		if err != nil || verdict.Outcome != OutcomeIgnored {
			t.Fatalf("expected ignored, got %+v (%v)", verdict, err)
		}
	}
	verdict, err := f.intake.Process(ctx, command)
	if err != nil || verdict.Outcome != OutcomeExempt || verdict.Violation() {
		t.Fatalf("expected exempt, got %+v (%v)", verdict, err)
	}
	if calls := f.actuator.snapshot(); len(calls.deleted) != 0 {
		t.Fatalf("nothing should be deleted, got %v", calls.deleted)
	}
}

func TestActuatorFailuresAreNotFatal(t *testing.T) {
	t.Parallel()

	f := newIntakeFixture(t, "ass")
	f.actuator.deleteErr = ErrPermissionDenied

	verdict, err := f.intake.Process(context.Background(), f.message(1, "ass"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if verdict.Outcome != OutcomeBannedTerm || len(verdict.Deleted) != 0 {
		t.Fatalf("unexpected verdict: %+v", verdict)
	}
	if verdict.Escalation == nil || verdict.Escalation.Warnings != 1 {
		t.Fatalf("warning must still be recorded: %+v", verdict.Escalation)
	}
}

func TestLedgerFailureSurfacesFromProcess(t *testing.T) {
	t.Parallel()

	f := newIntakeFixture(t, "ass")
	f.store.setFailing(true)

	verdict, err := f.intake.Process(context.Background(), f.message(1, "ass"))
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if verdict.Outcome != OutcomeBannedTerm {
		t.Fatalf("unexpected outcome %s", verdict.Outcome)
	}
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	tests := map[time.Duration]string{
		5 * time.Minute:            "5m",
		time.Hour:                  "1h",
		90 * time.Second:           "1m30s",
		10 * time.Second:           "10s",
		time.Hour + 30*time.Minute: "1h30m",
	}
	for d, want := range tests {
		if got := formatDuration(d); got != want {
			t.Fatalf("formatDuration(%v) = %q, want %q", d, got, want)
		}
	}
}

func TestCodeSpan(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"spam":    "`spam`",
		"foo_bar": "`foo_bar`",
		"a`b":     "a\\`b",
		"x`*_y":   "x\\`\\*\\_y",
	}
	for in, want := range tests {
		if got := CodeSpan(in); got != want {
			t.Fatalf("CodeSpan(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBannedTermWithBacktickIsEscaped(t *testing.T) {
	t.Parallel()

	f := newIntakeFixture(t, "bad`word")
	verdict, err := f.intake.Process(context.Background(), f.message(1, "this is bad`word indeed"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if verdict.Outcome != OutcomeBannedTerm {
		t.Fatalf("unexpected outcome %s", verdict.Outcome)
	}
	calls := f.actuator.snapshot()
	if len(calls.notices) != 1 {
		t.Fatalf("expected one notice, got %+v", calls.notices)
	}
	text := calls.notices[0].text
	if !strings.Contains(text, "banned word: bad\\`word.") || strings.Contains(text, "`bad") {
		t.Fatalf("term must be escaped outside a code span: %q", text)
	}
}
