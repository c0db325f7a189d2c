package moderation

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/pborman/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/ngwarden/internal/db"
)

// MuteTask is a pending unmute.
type MuteTask struct {
	ID      string
	UserID  int64
	GuildID int64
	Role    RoleHandle
	DueAt   time.Time
}

type TaskStore interface {
	UpsertMuteTask(ctx context.Context, task *db.MuteTask) error
	DeleteMuteTask(ctx context.Context, guildID, userID int64, taskID string) error
	ListMuteTasks(ctx context.Context) ([]*db.MuteTask, error)
}

type taskKey struct {
	guildID int64
	userID  int64
}

type queuedTask struct {
	task  MuteTask
	index int
}

type taskQueue []*queuedTask

func (q taskQueue) Len() int           { return len(q) }
func (q taskQueue) Less(i, j int) bool { return q[i].task.DueAt.Before(q[j].task.DueAt) }
func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x any) {
	item := x.(*queuedTask)
	item.index = len(*q)
	*q = append(*q, item)
}

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*q = old[:n-1]
	return item
}

// MuteScheduler holds at most one pending unmute per (guild, user). Scheduling
// again for the same pair replaces the earlier task.
type MuteScheduler struct {
	clock Clock
	store TaskStore
	fire  func(ctx context.Context, task MuteTask)

	mu      sync.Mutex
	pending map[taskKey]*queuedTask
	queue   taskQueue
	wake    chan struct{}

	runMutex  sync.Mutex
	started   bool
	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

// NewMuteScheduler creates a scheduler; store may be nil for in-memory only.
func NewMuteScheduler(clock Clock, store TaskStore, fire func(ctx context.Context, task MuteTask)) *MuteScheduler {
	if clock == nil {
		clock = SystemClock()
	}
	return &MuteScheduler{
		clock:   clock,
		store:   store,
		fire:    fire,
		pending: map[taskKey]*queuedTask{},
		wake:    make(chan struct{}, 1),
	}
}

// Schedule registers task and reports whether it replaced a pending one.
func (s *MuteScheduler) Schedule(ctx context.Context, task MuteTask) (MuteTask, bool) {
	if task.ID == "" {
		task.ID = uuid.New()
	}
	if s.store != nil {
		if err := s.store.UpsertMuteTask(ctx, toRecord(task)); err != nil {
			s.getLogEntry().WithError(err).WithField("user_id", task.UserID).Warn("failed to persist mute task")
		}
	}

	replaced := s.enqueue(task)
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return task, replaced
}

func (s *MuteScheduler) enqueue(task MuteTask) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := taskKey{guildID: task.GuildID, userID: task.UserID}
	if existing, ok := s.pending[key]; ok {
		existing.task = task
		heap.Fix(&s.queue, existing.index)
		return true
	}
	item := &queuedTask{task: task}
	heap.Push(&s.queue, item)
	s.pending[key] = item
	return false
}

func (s *MuteScheduler) Pending(guildID, userID int64) (MuteTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.pending[taskKey{guildID: guildID, userID: userID}]
	if !ok {
		return MuteTask{}, false
	}
	return item.task, true
}

func (s *MuteScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *MuteScheduler) NextDue() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return time.Time{}, false
	}
	return s.queue[0].task.DueAt, true
}

// RunDue fires every task due at or before now and returns how many ran.
func (s *MuteScheduler) RunDue(ctx context.Context, now time.Time) int {
	s.mu.Lock()
	var due []MuteTask
	for len(s.queue) > 0 && !s.queue[0].task.DueAt.After(now) {
		item := heap.Pop(&s.queue).(*queuedTask)
		delete(s.pending, taskKey{guildID: item.task.GuildID, userID: item.task.UserID})
		due = append(due, item.task)
	}
	s.mu.Unlock()

	for _, task := range due {
		if s.fire != nil {
			s.fire(ctx, task)
		}
		if s.store != nil {
			if err := s.store.DeleteMuteTask(ctx, task.GuildID, task.UserID, task.ID); err != nil {
				s.getLogEntry().WithError(err).WithField("user_id", task.UserID).Warn("failed to delete mute task")
			}
		}
	}
	return len(due)
}

// Start restores persisted tasks and launches the timer loop.
func (s *MuteScheduler) Start(ctx context.Context) error {
	s.runMutex.Lock()
	defer s.runMutex.Unlock()
	if s.started {
		return nil
	}

	if s.store != nil {
		records, err := s.store.ListMuteTasks(ctx)
		if err != nil {
			s.getLogEntry().WithError(err).Error("failed to restore mute tasks")
		}
		for _, record := range records {
			s.enqueue(fromRecord(record))
		}
		if len(records) > 0 {
			s.getLogEntry().WithField("count", len(records)).Info("restored pending unmutes")
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.runCancel = cancel
	s.wg.Go(func() {
		s.loop(runCtx)
	})

	s.started = true
	return nil
}

func (s *MuteScheduler) Stop(ctx context.Context) error {
	s.runMutex.Lock()
	if !s.started {
		s.runMutex.Unlock()
		return nil
	}
	s.started = false
	cancel := s.runCancel
	s.runMutex.Unlock()

	if cancel != nil {
		cancel()
	}
	return waitGroupWithContext(ctx, &s.wg)
}

func (s *MuteScheduler) loop(ctx context.Context) {
	for {
		var timer *time.Timer
		var fired <-chan time.Time
		if next, ok := s.NextDue(); ok {
			timer = time.NewTimer(max(next.Sub(s.clock.Now()), 0))
			fired = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-s.wake:
		case <-fired:
			s.RunDue(ctx, s.clock.Now())
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

func (s *MuteScheduler) getLogEntry() *log.Entry {
	return log.WithField("object", "MuteScheduler")
}

func toRecord(task MuteTask) *db.MuteTask {
	return &db.MuteTask{
		GuildID: task.GuildID,
		UserID:  task.UserID,
		TaskID:  task.ID,
		RoleID:  task.Role.ID,
		DueAt:   task.DueAt,
	}
}

func fromRecord(record *db.MuteTask) MuteTask {
	return MuteTask{
		ID:      record.TaskID,
		UserID:  record.UserID,
		GuildID: record.GuildID,
		Role:    RoleHandle{GuildID: record.GuildID, ID: record.RoleID},
		DueAt:   record.DueAt,
	}
}
