package automation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/undarez/synexa-sub001/internal/infrastructure/database"
)

// Repository defines the interface for routine persistence.
// This abstraction allows different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// Routine CRUD. Steps are read and written with their routine.
	GetByID(ctx context.Context, id string) (*Routine, error)
	List(ctx context.Context) ([]Routine, error)
	ListByUser(ctx context.Context, userID string) ([]Routine, error)
	Create(ctx context.Context, routine *Routine) error
	Update(ctx context.Context, routine *Routine) error
	Delete(ctx context.Context, id string) error

	// Run logs
	CreateLog(ctx context.Context, log *RoutineLog) error
	GetLog(ctx context.Context, id string) (*RoutineLog, error)
	ListLogs(ctx context.Context, routineID string, limit int) ([]RoutineLog, error)
}

// logTimeLayout is fixed-width so created_at sorts lexically.
const logTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

const routineColumns = `id, user_id, name, description, trigger_type, trigger_data, active, created_at, updated_at`

const stepColumns = `id, routine_id, step_order, action_type, device_id, payload, delay_seconds`

const logColumns = `id, routine_id, user_id, status, dry_run, details, created_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a routine and its ordered steps.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Routine, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+routineColumns+` FROM routines WHERE id = ?`, id)
	routine, err := scanRoutine(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoutineNotFound
		}
		return nil, fmt.Errorf("querying routine by id: %w", err)
	}

	steps, err := r.querySteps(ctx, `SELECT `+stepColumns+` FROM routine_steps WHERE routine_id = ? ORDER BY step_order`, id)
	if err != nil {
		return nil, err
	}
	routine.Steps = steps[id]
	if routine.Steps == nil {
		routine.Steps = []RoutineStep{}
	}
	return routine, nil
}

// List retrieves all routines ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Routine, error) {
	return r.queryRoutines(ctx,
		`SELECT `+routineColumns+` FROM routines ORDER BY name, id`,
		`SELECT `+stepColumns+` FROM routine_steps ORDER BY routine_id, step_order`,
	)
}

// ListByUser retrieves a user's routines ordered by name.
func (r *SQLiteRepository) ListByUser(ctx context.Context, userID string) ([]Routine, error) {
	return r.queryRoutines(ctx,
		`SELECT `+routineColumns+` FROM routines WHERE user_id = ? ORDER BY name, id`,
		`SELECT `+stepColumns+` FROM routine_steps
		 WHERE routine_id IN (SELECT id FROM routines WHERE user_id = ?)
		 ORDER BY routine_id, step_order`,
		userID,
	)
}

// Create inserts a routine and its steps in one transaction.
func (r *SQLiteRepository) Create(ctx context.Context, routine *Routine) error {
	now := time.Now().UTC()
	if routine.CreatedAt.IsZero() {
		routine.CreatedAt = now
	}
	routine.UpdatedAt = now

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO routines (`+routineColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			routine.ID,
			routine.UserID,
			routine.Name,
			nullableString(routine.Description),
			string(routine.TriggerType),
			nullableRaw(routine.TriggerData),
			boolToInt(routine.Active),
			routine.CreatedAt.Format(time.RFC3339),
			routine.UpdatedAt.Format(time.RFC3339),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return ErrRoutineExists
			}
			return fmt.Errorf("inserting routine: %w", err)
		}
		return insertSteps(ctx, tx, routine)
	})
	return err
}

// Update replaces a routine's fields and its whole step list.
func (r *SQLiteRepository) Update(ctx context.Context, routine *Routine) error {
	routine.UpdatedAt = time.Now().UTC()

	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE routines SET
				name = ?, description = ?, trigger_type = ?, trigger_data = ?,
				active = ?, updated_at = ?
			WHERE id = ?`,
			routine.Name,
			nullableString(routine.Description),
			string(routine.TriggerType),
			nullableRaw(routine.TriggerData),
			boolToInt(routine.Active),
			routine.UpdatedAt.Format(time.RFC3339),
			routine.ID,
		)
		if err != nil {
			return fmt.Errorf("updating routine: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return ErrRoutineNotFound
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM routine_steps WHERE routine_id = ?`, routine.ID); err != nil {
			return fmt.Errorf("clearing steps: %w", err)
		}
		return insertSteps(ctx, tx, routine)
	})
}

// Delete removes a routine. Steps and logs go with it.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM routines WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting routine: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrRoutineNotFound
	}
	return nil
}

// CreateLog inserts a run log. Results and metadata are stored together as
// the details JSON document {results, metadata}.
func (r *SQLiteRepository) CreateLog(ctx context.Context, log *RoutineLog) error {
	details, err := json.Marshal(logDetails{Results: log.Results, Metadata: log.Metadata})
	if err != nil {
		return fmt.Errorf("marshalling log details: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO routine_logs (`+logColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		log.ID,
		log.RoutineID,
		log.UserID,
		string(log.Status),
		boolToInt(log.DryRun),
		string(details),
		log.CreatedAt.UTC().Format(logTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting routine log: %w", err)
	}
	return nil
}

// GetLog retrieves a run log by ID.
func (r *SQLiteRepository) GetLog(ctx context.Context, id string) (*RoutineLog, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+logColumns+` FROM routine_logs WHERE id = ?`, id)
	log, err := scanLog(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLogNotFound
		}
		return nil, fmt.Errorf("querying routine log: %w", err)
	}
	return log, nil
}

// ListLogs retrieves the most recent logs of a routine, newest first.
func (r *SQLiteRepository) ListLogs(ctx context.Context, routineID string, limit int) ([]RoutineLog, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+logColumns+`
		FROM routine_logs
		WHERE routine_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, routineID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying routine logs: %w", err)
	}
	defer rows.Close()

	logs := []RoutineLog{}
	for rows.Next() {
		log, scanErr := scanLog(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning routine log: %w", scanErr)
		}
		logs = append(logs, *log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating routine logs: %w", err)
	}
	return logs, nil
}

// queryRoutines runs a routine query and a matching step query with the
// same args, then attaches steps to their routines.
func (r *SQLiteRepository) queryRoutines(ctx context.Context, routineQuery, stepQuery string, args ...any) ([]Routine, error) {
	rows, err := r.db.QueryContext(ctx, routineQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("querying routines: %w", err)
	}
	defer rows.Close()

	var routines []Routine
	for rows.Next() {
		routine, scanErr := scanRoutine(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning routine: %w", scanErr)
		}
		routines = append(routines, *routine)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating routines: %w", err)
	}
	rows.Close()

	steps, err := r.querySteps(ctx, stepQuery, args...)
	if err != nil {
		return nil, err
	}
	for i := range routines {
		routines[i].Steps = steps[routines[i].ID]
		if routines[i].Steps == nil {
			routines[i].Steps = []RoutineStep{}
		}
	}
	return routines, nil
}

// querySteps returns steps grouped by routine ID, in query order.
func (r *SQLiteRepository) querySteps(ctx context.Context, query string, args ...any) (map[string][]RoutineStep, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying steps: %w", err)
	}
	defer rows.Close()

	steps := make(map[string][]RoutineStep)
	for rows.Next() {
		var s RoutineStep
		var routineID, actionType, payload string
		var deviceID sql.NullString
		var delay sql.NullInt64

		if err := rows.Scan(&s.ID, &routineID, &s.Order, &actionType, &deviceID, &payload, &delay); err != nil {
			return nil, fmt.Errorf("scanning step: %w", err)
		}
		s.ActionType = ActionType(actionType)
		if deviceID.Valid {
			s.DeviceID = &deviceID.String
		}
		if payload != "" {
			s.Payload = json.RawMessage(payload)
		}
		if delay.Valid {
			d := int(delay.Int64)
			s.DelaySeconds = &d
		}
		steps[routineID] = append(steps[routineID], s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating steps: %w", err)
	}
	return steps, nil
}

func insertSteps(ctx context.Context, tx *sql.Tx, routine *Routine) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO routine_steps (`+stepColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing step insert: %w", err)
	}
	defer stmt.Close()

	for i := range routine.Steps {
		s := &routine.Steps[i]
		if s.ID == "" {
			s.ID = GenerateID()
		}
		payload := "{}"
		if len(s.Payload) > 0 {
			payload = string(s.Payload)
		}

		var delay sql.NullInt64
		if s.DelaySeconds != nil {
			delay = sql.NullInt64{Int64: int64(*s.DelaySeconds), Valid: true}
		}

		if _, err := stmt.ExecContext(ctx,
			s.ID, routine.ID, s.Order, string(s.ActionType), nullableString(s.DeviceID), payload, delay,
		); err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("%w: %d", ErrDuplicateOrder, s.Order)
			}
			return fmt.Errorf("inserting step %d: %w", s.Order, err)
		}
	}
	return nil
}

// ─── Row Scanning Helpers ───────────────────────────────────────────────────

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoutine(scanner rowScanner) (*Routine, error) {
	var rt Routine
	var description, triggerData sql.NullString
	var triggerType string
	var active int
	var createdAt, updatedAt string

	err := scanner.Scan(
		&rt.ID,
		&rt.UserID,
		&rt.Name,
		&description,
		&triggerType,
		&triggerData,
		&active,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		rt.Description = &description.String
	}
	if triggerData.Valid && triggerData.String != "" {
		rt.TriggerData = json.RawMessage(triggerData.String)
	}
	rt.TriggerType = TriggerType(triggerType)
	rt.Active = active != 0

	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		rt.CreatedAt = t
	}
	if t, parseErr := time.Parse(time.RFC3339, updatedAt); parseErr == nil {
		rt.UpdatedAt = t
	}
	return &rt, nil
}

func scanLog(scanner rowScanner) (*RoutineLog, error) {
	var l RoutineLog
	var status, details, createdAt string
	var dryRun int

	if err := scanner.Scan(&l.ID, &l.RoutineID, &l.UserID, &status, &dryRun, &details, &createdAt); err != nil {
		return nil, err
	}

	l.Status = RunStatus(status)
	l.DryRun = dryRun != 0
	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		l.CreatedAt = t
	}

	var d logDetails
	if err := json.Unmarshal([]byte(details), &d); err != nil {
		return nil, fmt.Errorf("unmarshalling log details: %w", err)
	}
	l.Results = d.Results
	if l.Results == nil {
		l.Results = []StepResult{}
	}
	if string(d.Metadata) != "null" {
		l.Metadata = d.Metadata
	}
	return &l, nil
}

// ─── SQL Helpers ────────────────────────────────────────────────────────────

func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullableRaw(b json.RawMessage) sql.NullString {
	if len(b) == 0 || string(b) == "null" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
