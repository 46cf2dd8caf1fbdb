package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/undarez/synexa-sub001/internal/infrastructure/influxdb"
)

// EventRoutineExecuted is broadcast after every persisted run.
const EventRoutineExecuted = "routine.executed"

// Broadcaster pushes events to connected clients.
type Broadcaster interface {
	Broadcast(eventType string, payload any)
}

// RunRecorder receives a summary of each run. *influxdb.Client satisfies it.
type RunRecorder interface {
	WriteRoutineRun(run influxdb.RoutineRun)
}

// LogStore persists run logs. Repository satisfies it.
type LogStore interface {
	CreateLog(ctx context.Context, log *RoutineLog) error
}

// Engine sequences a routine's steps and records the run.
//
// Steps run strictly one after another in declared order, and every step
// runs whatever happened to the previous ones. Once started, a run is
// detached from the caller's cancellation; each step is bounded by the
// executor's step timeout instead.
//
// Thread Safety: ExecuteRoutine is safe for concurrent use.
type Engine struct {
	registry  *Registry
	executor  *StepExecutor
	logs      LogStore
	scheduler StepScheduler
	hub       Broadcaster
	recorder  RunRecorder
	now       func() time.Time
	logger    Logger
}

// NewEngine creates a routine engine. The scheduler defaults to
// NoopScheduler.
func NewEngine(registry *Registry, executor *StepExecutor, logs LogStore, logger Logger) *Engine {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Engine{
		registry:  registry,
		executor:  executor,
		logs:      logs,
		scheduler: NoopScheduler{},
		now:       time.Now,
		logger:    logger,
	}
}

// SetScheduler sets the scheduler consulted before each step.
func (e *Engine) SetScheduler(s StepScheduler) {
	e.scheduler = s
}

// SetBroadcaster sets where routine.executed events go (may be nil).
func (e *Engine) SetBroadcaster(b Broadcaster) {
	e.hub = b
}

// SetRecorder sets where run telemetry goes (may be nil).
func (e *Engine) SetRecorder(r RunRecorder) {
	e.recorder = r
}

// ExecuteRoutine runs every step of routineID for the user in ec and
// persists one RoutineLog.
//
// Returns:
//   - the persisted log, with one result per step in declared order
//   - ErrRoutineNotFound if the routine does not exist or belongs to
//     another user
//   - ErrLogPersistence if the log could not be written; the returned log
//     still carries the results
//
// Step failures never surface as errors.
func (e *Engine) ExecuteRoutine(ctx context.Context, routineID string, ec ExecutionContext, opts ExecuteOptions) (*RoutineLog, error) {
	routine, err := e.registry.GetRoutine(ctx, routineID)
	if err != nil {
		return nil, err
	}
	if ec.UserID != "" && routine.UserID != ec.UserID {
		return nil, ErrRoutineNotFound
	}
	if ec.TriggerType == "" {
		ec.TriggerType = TriggerManual
	}

	ctx = context.WithoutCancel(ctx)
	start := e.now()

	e.logger.Info("routine run started",
		"routine_id", routine.ID,
		"routine_name", routine.Name,
		"user_id", ec.UserID,
		"request_id", ec.RequestID,
		"steps", len(routine.Steps),
		"dry_run", opts.DryRun,
	)

	stepOpts := StepOptions{DryRun: opts.DryRun, RoutineID: routine.ID}
	results := make([]StepResult, 0, len(routine.Steps))
	for _, step := range routine.Steps {
		if !opts.DryRun {
			if waitErr := e.scheduler.Wait(ctx, step); waitErr != nil {
				results = append(results, StepResult{
					StepID:     step.ID,
					Order:      step.Order,
					ActionType: step.ActionType,
					Status:     StepFailed,
					Error:      fmt.Sprintf("scheduling step: %v", waitErr),
				})
				continue
			}
		}
		results = append(results, e.executor.ExecuteStep(ctx, step, stepOpts, ec))
	}

	log := &RoutineLog{
		ID:        GenerateID(),
		RoutineID: routine.ID,
		UserID:    ec.UserID,
		Status:    AggregateStatus(results),
		DryRun:    opts.DryRun,
		Results:   results,
		Metadata:  e.normalizeMetadata(opts.Metadata),
		CreatedAt: e.now().UTC().Truncate(time.Microsecond),
	}
	duration := e.now().Sub(start)
	succeeded, failed, skipped := countResults(results)

	e.logger.Info("routine run complete",
		"routine_id", routine.ID,
		"log_id", log.ID,
		"status", log.Status,
		"succeeded", succeeded,
		"failed", failed,
		"skipped", skipped,
		"duration_ms", duration.Milliseconds(),
	)

	if err := e.logs.CreateLog(ctx, log); err != nil {
		e.logger.Error("failed to persist routine log", "routine_id", routine.ID, "error", err)
		return log, fmt.Errorf("%w: %w", ErrLogPersistence, err)
	}

	if e.recorder != nil {
		e.recorder.WriteRoutineRun(influxdb.RoutineRun{
			RoutineID: routine.ID,
			Status:    string(log.Status),
			DryRun:    opts.DryRun,
			Succeeded: succeeded,
			Failed:    failed,
			Skipped:   skipped,
			Duration:  duration,
			At:        log.CreatedAt,
		})
	}
	if e.hub != nil {
		e.hub.Broadcast(EventRoutineExecuted, map[string]any{
			"routineId":   routine.ID,
			"routineName": routine.Name,
			"logId":       log.ID,
			"userId":      ec.UserID,
			"status":      string(log.Status),
			"dryRun":      opts.DryRun,
			"durationMs":  duration.Milliseconds(),
		})
	}

	return log, nil
}

// normalizeMetadata compacts caller metadata so the stored log decodes to
// the same bytes. Invalid JSON is dropped.
func (e *Engine) normalizeMetadata(raw json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		e.logger.Warn("dropping invalid run metadata", "error", err)
		return nil
	}
	return buf.Bytes()
}

func countResults(results []StepResult) (succeeded, failed, skipped int) {
	for _, r := range results {
		switch r.Status {
		case StepSuccess:
			succeeded++
		case StepFailed:
			failed++
		case StepSkipped:
			skipped++
		}
	}
	return succeeded, failed, skipped
}
