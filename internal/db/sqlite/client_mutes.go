package sqlite

import (
	"context"

	"github.com/iamwavecut/ngwarden/internal/db"
)

func (c *sqliteClient) UpsertMuteTask(ctx context.Context, task *db.MuteTask) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO mute_tasks (guild_id, user_id, task_id, role_id, due_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(guild_id, user_id) DO UPDATE SET
		task_id = excluded.task_id,
		role_id = excluded.role_id,
		due_at = excluded.due_at
	`
	_, err := c.db.ExecContext(ctx, query,
		task.GuildID,
		task.UserID,
		task.TaskID,
		task.RoleID,
		task.DueAt.UTC(),
	)
	return err
}

// DeleteMuteTask removes the task only if it was not replaced meanwhile.
func (c *sqliteClient) DeleteMuteTask(ctx context.Context, guildID, userID int64, taskID string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `DELETE FROM mute_tasks WHERE guild_id = ? AND user_id = ? AND task_id = ?`, guildID, userID, taskID)
	return err
}

func (c *sqliteClient) ListMuteTasks(ctx context.Context) ([]*db.MuteTask, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var tasks []*db.MuteTask
	err := c.db.SelectContext(ctx, &tasks, `
		SELECT guild_id, user_id, task_id, role_id, due_at
		FROM mute_tasks
		ORDER BY due_at ASC
	`)
	return tasks, err
}
