package automation

import (
	"encoding/json"
	"fmt"
	"time"
)

// TriggerType is the event that starts a routine.
type TriggerType string

// Trigger types.
const (
	TriggerManual   TriggerType = "MANUAL"
	TriggerSchedule TriggerType = "SCHEDULE"
	TriggerVoice    TriggerType = "VOICE"
	TriggerLocation TriggerType = "LOCATION"
	TriggerSensor   TriggerType = "SENSOR"
)

// AllTriggerTypes returns all valid trigger types.
func AllTriggerTypes() []TriggerType {
	return []TriggerType{TriggerManual, TriggerSchedule, TriggerVoice, TriggerLocation, TriggerSensor}
}

// ActionType selects what a step does and which payload variant it carries.
type ActionType string

// Action types.
const (
	ActionDeviceCommand ActionType = "DEVICE_COMMAND"
	ActionNotification  ActionType = "NOTIFICATION"
	ActionTaskCreate    ActionType = "TASK_CREATE"
	ActionMediaPlay     ActionType = "MEDIA_PLAY"
	ActionCustom        ActionType = "CUSTOM"
)

// AllActionTypes returns all valid action types.
func AllActionTypes() []ActionType {
	return []ActionType{ActionDeviceCommand, ActionNotification, ActionTaskCreate, ActionMediaPlay, ActionCustom}
}

// StepStatus is the outcome of one step.
type StepStatus string

// Step statuses.
const (
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// RunStatus is the aggregate outcome of a routine run.
type RunStatus string

// Run statuses.
const (
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial"
	RunFailed  RunStatus = "failed"
)

// Routine is a user-authored, ordered sequence of steps.
type Routine struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	TriggerType TriggerType     `json:"triggerType"`
	TriggerData json.RawMessage `json:"triggerData,omitempty"`
	Active      bool            `json:"active"`

	// Steps in declared order.
	Steps []RoutineStep `json:"steps"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RoutineStep is one action within a routine.
//
// Payload is the raw JSON of the variant selected by ActionType; use
// DecodePayload to get the typed value.
type RoutineStep struct {
	ID           string          `json:"id"`
	Order        int             `json:"order"`
	ActionType   ActionType      `json:"actionType"`
	DeviceID     *string         `json:"deviceId,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	DelaySeconds *int            `json:"delaySeconds,omitempty"`
}

// Payload is implemented by every step payload variant.
type Payload interface {
	Action() ActionType
	validate() error
}

// DeviceCommandPayload is sent to the device transport.
type DeviceCommandPayload struct {
	Command string         `json:"command"`
	Params  map[string]any `json:"params,omitempty"`
}

// NotificationPayload is a message shown to the user. Destination
// overrides the address used for traffic lookups.
type NotificationPayload struct {
	Title       string `json:"title,omitempty"`
	Message     string `json:"message"`
	Destination string `json:"destination,omitempty"`
}

// Text is the title and message joined, used for intent detection.
func (p NotificationPayload) Text() string {
	switch {
	case p.Title == "":
		return p.Message
	case p.Message == "":
		return p.Title
	}
	return p.Title + " " + p.Message
}

// TaskCreatePayload creates a task for the running user.
type TaskCreatePayload struct {
	Title string `json:"title"`
}

// MediaPlayPayload names what to play. Playback is not implemented yet.
type MediaPlayPayload struct {
	Source string `json:"source,omitempty"`
	URL    string `json:"url,omitempty"`
	Query  string `json:"query,omitempty"`
}

// CustomPayload is free-form.
type CustomPayload map[string]any

func (DeviceCommandPayload) Action() ActionType { return ActionDeviceCommand }
func (NotificationPayload) Action() ActionType  { return ActionNotification }
func (TaskCreatePayload) Action() ActionType    { return ActionTaskCreate }
func (MediaPlayPayload) Action() ActionType     { return ActionMediaPlay }
func (CustomPayload) Action() ActionType        { return ActionCustom }

// DecodePayload decodes the step payload into the variant for its action
// type. An empty payload decodes to the zero variant.
func (s RoutineStep) DecodePayload() (Payload, error) {
	var p Payload
	switch s.ActionType {
	case ActionDeviceCommand:
		var v DeviceCommandPayload
		if err := decodeRaw(s.Payload, &v); err != nil {
			return nil, err
		}
		p = v
	case ActionNotification:
		var v NotificationPayload
		if err := decodeRaw(s.Payload, &v); err != nil {
			return nil, err
		}
		p = v
	case ActionTaskCreate:
		var v TaskCreatePayload
		if err := decodeRaw(s.Payload, &v); err != nil {
			return nil, err
		}
		p = v
	case ActionMediaPlay:
		var v MediaPlayPayload
		if err := decodeRaw(s.Payload, &v); err != nil {
			return nil, err
		}
		p = v
	case ActionCustom:
		v := CustomPayload{}
		if err := decodeRaw(s.Payload, &v); err != nil {
			return nil, err
		}
		p = v
	default:
		return nil, fmt.Errorf("%w: unknown action type %q", ErrInvalidStep, s.ActionType)
	}
	return p, nil
}

// EncodePayload returns a step carrying p, with ActionType set from p.
func EncodePayload(p Payload) (ActionType, json.RawMessage, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", nil, fmt.Errorf("encoding %s payload: %w", p.Action(), err)
	}
	return p.Action(), data, nil
}

func decodeRaw(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: decoding payload: %w", ErrInvalidStep, err)
	}
	return nil
}

// StepResult is the outcome of executing one step.
//
// Output is kept as raw JSON so a persisted log decodes to exactly what
// was produced.
type StepResult struct {
	StepID     string          `json:"stepId"`
	Order      int             `json:"order"`
	ActionType ActionType      `json:"actionType"`
	Status     StepStatus      `json:"status"`
	Output     json.RawMessage `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// RoutineLog records one run. It is immutable once persisted.
type RoutineLog struct {
	ID        string          `json:"id"`
	RoutineID string          `json:"routineId"`
	UserID    string          `json:"userId"`
	Status    RunStatus       `json:"status"`
	DryRun    bool            `json:"dryRun"`
	Results   []StepResult    `json:"results"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt time.Time       `json:"createdAt"`
}

// logDetails is the stored shape of RoutineLog.details.
type logDetails struct {
	Results  []StepResult    `json:"results"`
	Metadata json.RawMessage `json:"metadata"`
}

// ExecutionContext carries the identity of whoever runs a routine. It is
// passed explicitly to every step.
type ExecutionContext struct {
	UserID      string      `json:"userId"`
	RequestID   string      `json:"requestId,omitempty"`
	TriggerType TriggerType `json:"triggerType,omitempty"`
}

// ExecuteOptions tune a routine run.
type ExecuteOptions struct {
	DryRun   bool            `json:"dryRun"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// AggregateStatus derives the run status from step results: success when
// every step succeeded, failed when none succeeded and at least one failed,
// partial otherwise. An all-skipped (or empty) run is partial.
func AggregateStatus(results []StepResult) RunStatus {
	var succeeded, failed int
	for _, r := range results {
		switch r.Status {
		case StepSuccess:
			succeeded++
		case StepFailed:
			failed++
		}
	}

	switch {
	case len(results) > 0 && succeeded == len(results):
		return RunSuccess
	case succeeded == 0 && failed > 0:
		return RunFailed
	default:
		return RunPartial
	}
}

// DeepCopy returns a copy sharing no slices or pointers with r.
func (r *Routine) DeepCopy() *Routine {
	if r == nil {
		return nil
	}

	cpy := *r
	cpy.Description = cloneStringPtr(r.Description)
	cpy.TriggerData = cloneRaw(r.TriggerData)
	if r.Steps != nil {
		cpy.Steps = make([]RoutineStep, len(r.Steps))
		for i, s := range r.Steps {
			cpy.Steps[i] = s
			cpy.Steps[i].DeviceID = cloneStringPtr(s.DeviceID)
			cpy.Steps[i].Payload = cloneRaw(s.Payload)
			if s.DelaySeconds != nil {
				d := *s.DelaySeconds
				cpy.Steps[i].DelaySeconds = &d
			}
		}
	}
	return &cpy
}

func cloneRaw(b json.RawMessage) json.RawMessage {
	if b == nil {
		return nil
	}
	return append(json.RawMessage(nil), b...)
}

func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
