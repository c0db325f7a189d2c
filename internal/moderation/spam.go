package moderation

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// SpamEntry is one message remembered in a user's window.
type SpamEntry struct {
	MessageID int64
	ChannelID int64
	At        time.Time
}

// Window is a snapshot of a user's recent messages after eviction.
type Window struct {
	UserID   int64
	Entries  []SpamEntry
	Exceeded bool
}

func (w Window) Size() int {
	return len(w.Entries)
}

func (w Window) MessageIDs() []int64 {
	ids := make([]int64, 0, len(w.Entries))
	for _, e := range w.Entries {
		ids = append(ids, e.MessageID)
	}
	return ids
}

// SpamTracker keeps per-user sliding windows of recent messages.
// A window is exceeded once it holds strictly more than threshold entries.
type SpamTracker struct {
	interval  time.Duration
	threshold int

	mu      sync.Mutex
	windows map[int64][]SpamEntry

	runMutex  sync.Mutex
	started   bool
	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

func NewSpamTracker(interval time.Duration, threshold int) *SpamTracker {
	return &SpamTracker{
		interval:  interval,
		threshold: threshold,
		windows:   map[int64][]SpamEntry{},
	}
}

// Record appends entry, evicts entries older than the interval relative to
// entry.At and returns the resulting window.
func (t *SpamTracker) Record(userID int64, entry SpamEntry) Window {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recordLocked(userID, entry)
}

// Track records entry and, when the window is exceeded, clears it in the same
// critical section so a burst is punished once.
func (t *SpamTracker) Track(userID int64, entry SpamEntry) Window {
	t.mu.Lock()
	defer t.mu.Unlock()
	w := t.recordLocked(userID, entry)
	if w.Exceeded {
		delete(t.windows, userID)
	}
	return w
}

func (t *SpamTracker) Clear(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.windows, userID)
}

func (t *SpamTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.windows)
}

// Sweep drops windows whose newest entry is already outside the interval.
func (t *SpamTracker) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for userID, entries := range t.windows {
		kept := evict(entries, now, t.interval)
		if len(kept) == 0 {
			delete(t.windows, userID)
			removed++
			continue
		}
		t.windows[userID] = kept
	}
	return removed
}

func (t *SpamTracker) recordLocked(userID int64, entry SpamEntry) Window {
	entries := evict(append(t.windows[userID], entry), entry.At, t.interval)
	t.windows[userID] = entries
	return Window{
		UserID:   userID,
		Entries:  append([]SpamEntry(nil), entries...),
		Exceeded: len(entries) > t.threshold,
	}
}

func evict(entries []SpamEntry, now time.Time, interval time.Duration) []SpamEntry {
	kept := entries[:0]
	for _, e := range entries {
		if now.Sub(e.At) <= interval {
			kept = append(kept, e)
		}
	}
	return kept
}

// Start launches the janitor that sweeps idle windows.
func (t *SpamTracker) Start(ctx context.Context) error {
	t.runMutex.Lock()
	defer t.runMutex.Unlock()
	if t.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	t.runCancel = cancel

	period := t.interval * 6
	if period <= 0 {
		period = time.Minute
	}
	t.wg.Go(func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case now := <-ticker.C:
				if removed := t.Sweep(now); removed > 0 {
					t.getLogEntry().WithField("removed", removed).Trace("swept idle spam windows")
				}
			}
		}
	})

	t.started = true
	return nil
}

func (t *SpamTracker) Stop(ctx context.Context) error {
	t.runMutex.Lock()
	if !t.started {
		t.runMutex.Unlock()
		return nil
	}
	t.started = false
	cancel := t.runCancel
	t.runMutex.Unlock()

	if cancel != nil {
		cancel()
	}
	return waitGroupWithContext(ctx, &t.wg)
}

func (t *SpamTracker) getLogEntry() *log.Entry {
	return log.WithField("object", "SpamTracker")
}

func waitGroupWithContext(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
