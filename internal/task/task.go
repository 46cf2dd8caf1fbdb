package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Domain errors for the task package.
var (
	// ErrTaskNotFound is returned when a task ID does not exist.
	ErrTaskNotFound = errors.New("task: not found")

	// ErrInvalidTask is returned for a missing user or title.
	ErrInvalidTask = errors.New("task: invalid")
)

const (
	// StatusTodo is the status of a freshly created task.
	StatusTodo = "todo"

	// SourceRoutine marks tasks created by a routine step.
	SourceRoutine = "routine"

	maxTitleLength = 200
)

// Task is a to-do item.
type Task struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Notes     *string   `json:"notes,omitempty"`
	Status    string    `json:"status"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// SQLiteStore persists tasks in the tasks table.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore creates a store over db.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

// CreateTask inserts a todo task for userID and returns it.
func (s *SQLiteStore) CreateTask(ctx context.Context, userID, title string) (*Task, error) {
	title = strings.TrimSpace(title)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidTask)
	}
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidTask)
	}
	if len(title) > maxTitleLength {
		return nil, fmt.Errorf("%w: title exceeds %d characters", ErrInvalidTask, maxTitleLength)
	}

	t := &Task{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		Status:    StatusTodo,
		Source:    SourceRoutine,
		CreatedAt: s.now().UTC().Truncate(time.Second),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, user_id, title, notes, status, source, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Title, nil, t.Status, t.Source, t.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting task: %w", err)
	}
	return t, nil
}

// GetTask retrieves a task by ID.
func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, notes, status, source, created_at FROM tasks WHERE id = ?`, id)

	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying task: %w", err)
	}
	return t, nil
}

// ListByUser returns a user's tasks, newest first.
func (s *SQLiteStore) ListByUser(ctx context.Context, userID string) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, notes, status, source, created_at
		 FROM tasks WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, scanErr := scanTask(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning task: %w", scanErr)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}
	return tasks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(s rowScanner) (*Task, error) {
	var t Task
	var notes, source sql.NullString
	var createdAt string

	if err := s.Scan(&t.ID, &t.UserID, &t.Title, &notes, &t.Status, &source, &createdAt); err != nil {
		return nil, err
	}
	if notes.Valid {
		t.Notes = &notes.String
	}
	t.Source = source.String
	if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
		t.CreatedAt = ts
	}
	return &t, nil
}
