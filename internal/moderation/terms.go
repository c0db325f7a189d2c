package moderation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/ngwarden/internal/db"
)

type TermStore interface {
	ListBannedWords(ctx context.Context) ([]*db.BannedWord, error)
	AddBannedWord(ctx context.Context, word string) (*db.BannedWord, error)
	RemoveBannedWord(ctx context.Context, word string) error
}

// Terms owns the banned term set. Writers persist first and then publish a new
// Filter snapshot; Check never blocks on writers.
type Terms struct {
	store   TermStore
	writeMu sync.Mutex
	current atomic.Pointer[Filter]
}

func NewTerms(store TermStore) *Terms {
	t := &Terms{store: store}
	t.current.Store(NewFilter(nil))
	return t
}

func (t *Terms) Start(ctx context.Context) error {
	return t.Load(ctx)
}

func (t *Terms) Stop(context.Context) error {
	return nil
}

func (t *Terms) Load(ctx context.Context) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	words, err := t.store.ListBannedWords(ctx)
	if err != nil {
		return fmt.Errorf("%w: list banned words: %w", ErrStorageUnavailable, err)
	}
	terms := make([]string, 0, len(words))
	for _, w := range words {
		terms = append(terms, w.Word)
	}
	filter := NewFilter(terms)
	t.current.Store(filter)
	t.getLogEntry().WithField("count", filter.Len()).Debug("loaded banned terms")
	return nil
}

func (t *Terms) Add(ctx context.Context, term string) (string, error) {
	term = NormalizeTerm(term)
	if term == "" {
		return "", ErrEmptyTerm
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := t.store.AddBannedWord(ctx, term); err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			return term, ErrTermExists
		}
		return term, fmt.Errorf("%w: add banned word: %w", ErrStorageUnavailable, err)
	}
	t.current.Store(NewFilter(append(t.current.Load().Terms(), term)))
	return term, nil
}

func (t *Terms) Remove(ctx context.Context, term string) (string, error) {
	term = NormalizeTerm(term)
	if term == "" {
		return "", ErrEmptyTerm
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := t.store.RemoveBannedWord(ctx, term); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return term, ErrTermNotFound
		}
		return term, fmt.Errorf("%w: remove banned word: %w", ErrStorageUnavailable, err)
	}
	old := t.current.Load().Terms()
	kept := make([]string, 0, len(old))
	for _, existing := range old {
		if existing != term {
			kept = append(kept, existing)
		}
	}
	t.current.Store(NewFilter(kept))
	return term, nil
}

func (t *Terms) List() []string {
	return t.current.Load().Terms()
}

func (t *Terms) Check(text string) (string, bool) {
	return t.current.Load().Check(text)
}

func (t *Terms) getLogEntry() *log.Entry {
	return log.WithField("object", "Terms")
}
