package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/undarez/synexa-sub001/internal/infrastructure/news"
	"github.com/undarez/synexa-sub001/internal/infrastructure/traffic"
	"github.com/undarez/synexa-sub001/internal/profile"
	"github.com/undarez/synexa-sub001/internal/task"
)

// DefaultStepTimeout bounds each collaborator call of a step.
const DefaultStepTimeout = 30 * time.Second

// Fallback texts embedded in notification output when a lookup fails.
const (
	trafficUnavailable = "Informations trafic indisponibles pour le moment."
	noDestination      = "Aucune destination configurée : ajoutez une adresse de travail ou de domicile à votre profil."
	newsUnavailable    = "Actualités indisponibles pour le moment."
)

// TaskStore creates tasks. *task.SQLiteStore satisfies it.
type TaskStore interface {
	CreateTask(ctx context.Context, userID, title string) (*task.Task, error)
}

// ProfileReader reads user profiles. *profile.SQLiteRepository satisfies it.
type ProfileReader interface {
	GetProfile(ctx context.Context, userID string) (*profile.Profile, error)
}

// TrafficService looks up route conditions. *traffic.Client satisfies it.
type TrafficService interface {
	GetTraffic(ctx context.Context, q traffic.Query) (*traffic.Report, error)
}

// NewsService searches headlines. *news.Client satisfies it.
type NewsService interface {
	Search(ctx context.Context, query string) (*news.Result, error)
}

// Collaborators are the external services steps call into. Any may be nil;
// a step needing a missing one fails or falls back.
type Collaborators struct {
	Devices  DeviceTransport
	Tasks    TaskStore
	Profiles ProfileReader
	Traffic  TrafficService
	News     NewsService
}

// StepOptions tune a single step execution.
type StepOptions struct {
	DryRun    bool
	RoutineID string
}

// NotificationOutput is the output of a NOTIFICATION step.
type NotificationOutput struct {
	Title           string         `json:"title,omitempty"`
	Message         string         `json:"message"`
	Traffic         *TrafficOutput `json:"traffic,omitempty"`
	News            *NewsOutput    `json:"news,omitempty"`
	RequiresWeather bool           `json:"requiresWeather,omitempty"`
	WorkLocation    *profile.Place `json:"workLocation,omitempty"`
}

// TrafficOutput is the traffic enrichment of a notification.
type TrafficOutput struct {
	Destination       string          `json:"destination,omitempty"`
	DestinationSource string          `json:"destinationSource,omitempty"`
	Report            *traffic.Report `json:"report,omitempty"`
	Fallback          string          `json:"fallback,omitempty"`
}

// NewsOutput is the news enrichment of a notification.
type NewsOutput struct {
	Query    string       `json:"query"`
	Result   *news.Result `json:"result,omitempty"`
	Fallback string       `json:"fallback,omitempty"`
}

// Destination sources, in resolution order.
const (
	destinationPayload = "payload"
	destinationWork    = "work"
	destinationHome    = "home"
)

// StepExecutor runs one routine step against a device or platform
// capability. It never panics and never returns an error: every outcome is
// a StepResult.
type StepExecutor struct {
	collab      Collaborators
	intents     IntentClassifier
	stepTimeout time.Duration
	now         func() time.Time
	logger      Logger
}

// NewStepExecutor creates an executor. A non-positive stepTimeout uses
// DefaultStepTimeout.
func NewStepExecutor(collab Collaborators, stepTimeout time.Duration) *StepExecutor {
	if stepTimeout <= 0 {
		stepTimeout = DefaultStepTimeout
	}
	return &StepExecutor{
		collab:      collab,
		intents:     NewKeywordClassifier(),
		stepTimeout: stepTimeout,
		now:         time.Now,
		logger:      noopLogger{},
	}
}

// SetLogger sets the logger for the executor.
func (e *StepExecutor) SetLogger(logger Logger) {
	e.logger = logger
}

// SetIntentClassifier replaces the notification intent heuristic.
func (e *StepExecutor) SetIntentClassifier(c IntentClassifier) {
	e.intents = c
}

// ExecuteStep runs step and reports its outcome.
//
// In dry-run mode every step succeeds without touching a collaborator.
// Collaborator calls share a per-step timeout. A panic inside a step is
// recovered into a failed result.
func (e *StepExecutor) ExecuteStep(ctx context.Context, step RoutineStep, opts StepOptions, ec ExecutionContext) (result StepResult) {
	result = StepResult{StepID: step.ID, Order: step.Order, ActionType: step.ActionType}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("step panicked", "step_id", step.ID, "action", step.ActionType, "panic", r)
			result.Status = StepFailed
			result.Output = nil
			result.Error = fmt.Sprintf("unexpected error: %v", r)
		}
	}()

	if opts.DryRun {
		return result.succeed(map[string]any{"dryRun": true})
	}

	ctx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	defer cancel()

	switch step.ActionType {
	case ActionDeviceCommand:
		return e.deviceCommand(ctx, step, opts, ec, result)
	case ActionNotification:
		return e.notification(ctx, step, ec, result)
	case ActionTaskCreate:
		return e.taskCreate(ctx, step, ec, result)
	case ActionMediaPlay:
		return result.skip("media playback is not implemented yet")
	case ActionCustom:
		return result.skip("custom actions are not implemented yet")
	default:
		return result.skip(fmt.Sprintf("unknown action type %q", step.ActionType))
	}
}

func (e *StepExecutor) deviceCommand(ctx context.Context, step RoutineStep, opts StepOptions, ec ExecutionContext, result StepResult) StepResult {
	if step.DeviceID == nil || *step.DeviceID == "" {
		return result.skip("no device bound to this step; pick a device to enable it")
	}

	payload, err := decodeAs[DeviceCommandPayload](step)
	if err != nil {
		return result.fail(err)
	}
	if e.collab.Devices == nil {
		return result.fail(errors.New("device transport unavailable"))
	}

	receipt, err := e.collab.Devices.DispatchDeviceCommand(ctx, *step.DeviceID, DeviceCommand{
		ID:          GenerateID(),
		Command:     payload.Command,
		Params:      payload.Params,
		RoutineID:   opts.RoutineID,
		StepID:      step.ID,
		RequestedBy: ec.UserID,
		IssuedAt:    e.now().UTC(),
	})
	if err != nil {
		e.logger.Warn("device command failed", "step_id", step.ID, "device_id", *step.DeviceID, "error", err)
		return result.fail(err)
	}
	return result.succeed(receipt)
}

func (e *StepExecutor) notification(ctx context.Context, step RoutineStep, ec ExecutionContext, result StepResult) StepResult {
	payload, err := decodeAs[NotificationPayload](step)
	if err != nil {
		// Notifications never fail; an undecodable payload is shown as-is.
		e.logger.Debug("notification payload not decoded, using raw text", "step_id", step.ID, "error", err)
		payload = NotificationPayload{Message: strings.TrimSpace(string(step.Payload))}
	}

	out := NotificationOutput{Title: payload.Title, Message: payload.Message}
	intent := e.intents.Classify(payload.Text())

	var prof *profile.Profile
	loadProfile := func() *profile.Profile {
		if prof != nil || ec.UserID == "" || e.collab.Profiles == nil {
			return prof
		}
		p, err := e.collab.Profiles.GetProfile(ctx, ec.UserID)
		if err != nil {
			e.logger.Debug("profile lookup failed", "user_id", ec.UserID, "error", err)
			return nil
		}
		prof = p
		return prof
	}

	if intent.Traffic {
		out.Traffic = e.trafficFor(ctx, payload.Destination, loadProfile)
	}
	if intent.News {
		out.News = e.newsFor(ctx, intent.NewsQuery)
	}
	if intent.Commute {
		out.RequiresWeather = true
		if p := loadProfile(); p != nil && p.Work != nil {
			out.WorkLocation = p.Work
		}
	}

	return result.succeed(out)
}

// trafficFor resolves the destination (payload, then work, then home) and
// queries the traffic collaborator, falling back to a text on failure.
func (e *StepExecutor) trafficFor(ctx context.Context, explicit string, loadProfile func() *profile.Profile) *TrafficOutput {
	out := &TrafficOutput{}
	var origin string

	if dest := strings.TrimSpace(explicit); dest != "" {
		out.Destination, out.DestinationSource = dest, destinationPayload
	} else {
		switch p := loadProfile(); {
		case p != nil && p.Work != nil:
			out.Destination, out.DestinationSource = p.Work.Address, destinationWork
			if p.Home != nil {
				origin = p.Home.Address
			}
		case p != nil && p.Home != nil:
			out.Destination, out.DestinationSource = p.Home.Address, destinationHome
		default:
			out.Fallback = noDestination
			return out
		}
	}

	if e.collab.Traffic == nil {
		out.Fallback = trafficUnavailable
		return out
	}

	report, err := e.collab.Traffic.GetTraffic(ctx, traffic.Query{Origin: origin, Destination: out.Destination})
	if err != nil {
		e.logger.Debug("traffic lookup failed", "destination", out.Destination, "error", err)
		out.Fallback = trafficUnavailable
		return out
	}
	out.Report = report
	return out
}

func (e *StepExecutor) newsFor(ctx context.Context, query string) *NewsOutput {
	out := &NewsOutput{Query: query}
	if e.collab.News == nil {
		out.Fallback = newsUnavailable
		return out
	}

	res, err := e.collab.News.Search(ctx, query)
	if err != nil {
		e.logger.Debug("news lookup failed", "query", query, "error", err)
		out.Fallback = newsUnavailable
		return out
	}
	out.Result = res
	return out
}

func (e *StepExecutor) taskCreate(ctx context.Context, step RoutineStep, ec ExecutionContext, result StepResult) StepResult {
	payload, err := decodeAs[TaskCreatePayload](step)
	if err != nil {
		return result.fail(err)
	}

	title := strings.TrimSpace(payload.Title)
	switch {
	case title == "":
		return result.fail(errors.New("task title is required"))
	case ec.UserID == "":
		return result.fail(errors.New("no user in execution context"))
	case e.collab.Tasks == nil:
		return result.fail(errors.New("task store unavailable"))
	}

	t, err := e.collab.Tasks.CreateTask(ctx, ec.UserID, title)
	if err != nil {
		return result.fail(err)
	}
	return result.succeed(t)
}

// decodeAs decodes the step payload and asserts its variant.
func decodeAs[T Payload](step RoutineStep) (T, error) {
	var zero T
	p, err := step.DecodePayload()
	if err != nil {
		return zero, err
	}
	v, ok := p.(T)
	if !ok {
		return zero, fmt.Errorf("%w: payload is %s, want %s", ErrInvalidStep, p.Action(), zero.Action())
	}
	return v, nil
}

func (r StepResult) succeed(output any) StepResult {
	data, err := json.Marshal(output)
	if err != nil {
		return r.fail(fmt.Errorf("encoding output: %w", err))
	}
	r.Status = StepSuccess
	r.Output = data
	return r
}

func (r StepResult) fail(err error) StepResult {
	r.Status = StepFailed
	r.Error = err.Error()
	return r
}

func (r StepResult) skip(reason string) StepResult {
	r.Status = StepSkipped
	r.Output, _ = json.Marshal(map[string]string{"reason": reason}) //nolint:errcheck // a string map always encodes
	return r
}
