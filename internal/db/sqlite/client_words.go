package sqlite

import (
	"context"
	"fmt"

	"github.com/iamwavecut/ngwarden/internal/db"
)

func (c *sqliteClient) ListBannedWords(ctx context.Context) ([]*db.BannedWord, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var words []*db.BannedWord
	err := c.db.SelectContext(ctx, &words, `SELECT id, word FROM banned_words ORDER BY id ASC`)
	return words, err
}

func (c *sqliteClient) AddBannedWord(ctx context.Context, word string) (*db.BannedWord, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	result, err := c.db.ExecContext(ctx, `INSERT INTO banned_words (word) VALUES (?) ON CONFLICT(word) DO NOTHING`, word)
	if err != nil {
		return nil, fmt.Errorf("failed to insert word %q: %w", word, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, db.ErrAlreadyExists
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &db.BannedWord{ID: id, Word: word}, nil
}

func (c *sqliteClient) RemoveBannedWord(ctx context.Context, word string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	result, err := c.db.ExecContext(ctx, `DELETE FROM banned_words WHERE word = ?`, word)
	if err != nil {
		return fmt.Errorf("failed to delete word %q: %w", word, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return db.ErrNotFound
	}
	return nil
}
