package moderation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/iamwavecut/ngwarden/internal/db"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

type notice struct {
	channelID int64
	text      string
	ttl       time.Duration
}

type fakeActuator struct {
	mu        sync.Mutex
	roles     map[int64]RoleHandle
	created   int
	granted   []int64
	revoked   []int64
	deleted   []int64
	notices   []notice
	grantErr  error
	revokeErr error
	deleteErr error
}

func newFakeActuator() *fakeActuator {
	return &fakeActuator{roles: map[int64]RoleHandle{}}
}

func (a *fakeActuator) EnsureMuteRole(_ context.Context, guildID int64) (RoleHandle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if role, ok := a.roles[guildID]; ok {
		return role, nil
	}
	a.created++
	role := RoleHandle{GuildID: guildID, ID: fmt.Sprintf("muted-%d", guildID), Name: "Muted"}
	a.roles[guildID] = role
	return role, nil
}

func (a *fakeActuator) GrantMute(_ context.Context, userID, _ int64, _ RoleHandle) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.grantErr != nil {
		return a.grantErr
	}
	a.granted = append(a.granted, userID)
	return nil
}

func (a *fakeActuator) RevokeMute(_ context.Context, userID, _ int64, _ RoleHandle) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.revokeErr != nil {
		return a.revokeErr
	}
	a.revoked = append(a.revoked, userID)
	return nil
}

func (a *fakeActuator) DeleteMessage(_ context.Context, messageID, _ int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.deleteErr != nil {
		return a.deleteErr
	}
	a.deleted = append(a.deleted, messageID)
	return nil
}

func (a *fakeActuator) Notify(_ context.Context, channelID int64, text string, ttl time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.notices = append(a.notices, notice{channelID: channelID, text: text, ttl: ttl})
	return nil
}

type actuatorCalls struct {
	created int
	granted []int64
	revoked []int64
	deleted []int64
	notices []notice
}

func (a *fakeActuator) snapshot() actuatorCalls {
	a.mu.Lock()
	defer a.mu.Unlock()
	return actuatorCalls{
		created: a.created,
		granted: append([]int64(nil), a.granted...),
		revoked: append([]int64(nil), a.revoked...),
		deleted: append([]int64(nil), a.deleted...),
		notices: append([]notice(nil), a.notices...),
	}
}

type memStore struct {
	mu       sync.Mutex
	words    []string
	warnings map[int64]int
	tasks    map[[2]int64]*db.MuteTask
	failing  bool
}

func newMemStore() *memStore {
	return &memStore{warnings: map[int64]int{}, tasks: map[[2]int64]*db.MuteTask{}}
}

var errStoreDown = errors.New("store down")

func (s *memStore) ListBannedWords(context.Context) ([]*db.BannedWord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return nil, errStoreDown
	}
	res := make([]*db.BannedWord, 0, len(s.words))
	for i, w := range s.words {
		res = append(res, &db.BannedWord{ID: int64(i + 1), Word: w})
	}
	return res, nil
}

func (s *memStore) AddBannedWord(_ context.Context, word string) (*db.BannedWord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return nil, errStoreDown
	}
	for _, w := range s.words {
		if w == word {
			return nil, db.ErrAlreadyExists
		}
	}
	s.words = append(s.words, word)
	return &db.BannedWord{ID: int64(len(s.words)), Word: word}, nil
}

func (s *memStore) RemoveBannedWord(_ context.Context, word string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errStoreDown
	}
	for i, w := range s.words {
		if w == word {
			s.words = append(s.words[:i], s.words[i+1:]...)
			return nil
		}
	}
	return db.ErrNotFound
}

func (s *memStore) GetWarnings(_ context.Context, userID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return 0, errStoreDown
	}
	return s.warnings[userID], nil
}

func (s *memStore) IncrementWarnings(_ context.Context, userID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return 0, errStoreDown
	}
	s.warnings[userID]++
	return s.warnings[userID], nil
}

func (s *memStore) IncrementWarningsUntil(_ context.Context, userID int64, limit int) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return 0, false, errStoreDown
	}
	s.warnings[userID]++
	count := s.warnings[userID]
	reached := limit > 0 && count >= limit
	if reached {
		s.warnings[userID] = 0
	}
	return count, reached, nil
}

func (s *memStore) ResetWarnings(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errStoreDown
	}
	s.warnings[userID] = 0
	return nil
}

func (s *memStore) UpsertMuteTask(_ context.Context, task *db.MuteTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *task
	s.tasks[[2]int64{task.GuildID, task.UserID}] = &copied
	return nil
}

func (s *memStore) DeleteMuteTask(_ context.Context, guildID, userID int64, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]int64{guildID, userID}
	if task, ok := s.tasks[key]; ok && task.TaskID == taskID {
		delete(s.tasks, key)
	}
	return nil
}

func (s *memStore) ListMuteTasks(context.Context) ([]*db.MuteTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]*db.MuteTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		copied := *task
		res = append(res, &copied)
	}
	return res, nil
}

func (s *memStore) setFailing(failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = failing
}

func (s *memStore) taskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
