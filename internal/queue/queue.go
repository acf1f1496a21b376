package queue

import (
	"database/sql"
	"fmt"
	"time"

	"slatewiki/internal/config"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Task is a single queued notification. Payload is opaque to the queue;
// consumers define its deserialization.
type Task struct {
	ID      string `db:"id"`
	Queue   string `db:"queue"`
	Payload []byte `db:"payload"`
	Created int64  `db:"created"`
}

// Queue is a SQLite-backed named task queue with at-least-once delivery.
// A reserved task stays invisible for the configured lease; a consumer
// that dies without acking loses the lease and the task is handed out
// again. Consumers must tolerate duplicates.
type Queue struct {
	db    *sqlx.DB
	lease time.Duration
}

// New opens the SQLite queue at the configured file path and ensures its
// table exists.
func New(cfg config.QueueConfig) (*Queue, error) {
	db, err := sqlx.Connect("sqlite", cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to sqlite queue: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode on sqlite queue: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		queue TEXT NOT NULL,
		payload BLOB,
		created INTEGER NOT NULL,
		lease_until INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_queue ON tasks (queue, created);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create queue schema: %w", err)
	}

	lease := time.Duration(cfg.LeaseSeconds) * time.Second
	if lease <= 0 {
		lease = time.Minute
	}

	return &Queue{db: db, lease: lease}, nil
}

// Enqueue publishes a payload on the named queue.
func (q *Queue) Enqueue(queueName string, payload []byte) error {
	_, err := q.db.Exec(
		`INSERT INTO tasks (id, queue, payload, created) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), queueName, payload, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// Reserve leases the oldest available task on the named queue. It returns
// nil with no error when the queue is empty. The task must be Acked before
// the lease expires or it becomes available again.
func (q *Queue) Reserve(queueName string) (*Task, error) {
	tx, err := q.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin reserve transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	var task Task
	err = tx.Get(&task,
		`SELECT id, queue, payload, created FROM tasks
			WHERE queue = ? AND (lease_until IS NULL OR lease_until < ?)
			ORDER BY created LIMIT 1`,
		queueName, now.UnixNano())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to select task: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE tasks SET lease_until = ? WHERE id = ?`,
		now.Add(q.lease).UnixNano(), task.ID); err != nil {
		return nil, fmt.Errorf("failed to lease task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reserve transaction: %w", err)
	}
	return &task, nil
}

// Ack removes a delivered task.
func (q *Queue) Ack(taskID string) error {
	if _, err := q.db.Exec(`DELETE FROM tasks WHERE id = ?`, taskID); err != nil {
		return fmt.Errorf("failed to ack task: %w", err)
	}
	return nil
}

// Len reports how many tasks sit on the named queue, leased or not.
func (q *Queue) Len(queueName string) (int, error) {
	var n int
	if err := q.db.Get(&n, `SELECT COUNT(*) FROM tasks WHERE queue = ?`, queueName); err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (q *Queue) Close() error {
	return q.db.Close()
}
