package automation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength        = 100
	maxDescriptionLength = 500
	maxSteps             = 50
	maxDelaySeconds      = 3600
	maxParamKeys         = 20
	maxMessageLength     = 1000
	maxTaskTitleLength   = 200
	maxCommandLength     = 64
)

// ValidateRoutine checks a routine and every step payload against the
// schema of its action type. Returns the first failure found.
func ValidateRoutine(r *Routine) error {
	if r == nil {
		return ErrInvalidRoutine
	}
	if err := ValidateName(r.Name); err != nil {
		return err
	}
	if r.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidRoutine)
	}
	if r.Description != nil && len(*r.Description) > maxDescriptionLength {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidRoutine, maxDescriptionLength)
	}
	if !slices.Contains(AllTriggerTypes(), r.TriggerType) {
		return fmt.Errorf("%w: invalid trigger type %q", ErrInvalidRoutine, r.TriggerType)
	}

	if len(r.Steps) == 0 {
		return ErrNoSteps
	}
	if len(r.Steps) > maxSteps {
		return fmt.Errorf("%w: exceeds maximum of %d steps", ErrInvalidRoutine, maxSteps)
	}

	seen := make(map[int]struct{}, len(r.Steps))
	for i, step := range r.Steps {
		if _, dup := seen[step.Order]; dup {
			return fmt.Errorf("step[%d]: %w: %d", i, ErrDuplicateOrder, step.Order)
		}
		seen[step.Order] = struct{}{}

		if err := ValidateStep(step); err != nil {
			return fmt.Errorf("step[%d]: %w", i, err)
		}
	}
	return nil
}

// ValidateName checks if a routine name is valid.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateStep checks one step. A DEVICE_COMMAND without a device is valid:
// it is skipped at run time until a device is bound.
func ValidateStep(s RoutineStep) error {
	if s.Order < 0 {
		return fmt.Errorf("%w: order must be >= 0", ErrInvalidStep)
	}
	if s.DelaySeconds != nil && (*s.DelaySeconds < 0 || *s.DelaySeconds > maxDelaySeconds) {
		return fmt.Errorf("%w: delaySeconds must be 0-%d", ErrInvalidStep, maxDelaySeconds)
	}
	if s.DeviceID != nil {
		if strings.TrimSpace(*s.DeviceID) == "" {
			return fmt.Errorf("%w: deviceId cannot be blank", ErrInvalidStep)
		}
		// The id becomes one MQTT topic level.
		if strings.ContainsAny(*s.DeviceID, "/+#\x00") {
			return fmt.Errorf("%w: deviceId cannot contain '/', '+', '#' or NUL", ErrInvalidStep)
		}
	}

	p, err := s.DecodePayload()
	if err != nil {
		return err
	}
	return p.validate()
}

func (p DeviceCommandPayload) validate() error {
	if p.Command == "" {
		return fmt.Errorf("%w: command is required", ErrInvalidStep)
	}
	if len(p.Command) > maxCommandLength {
		return fmt.Errorf("%w: command exceeds %d characters", ErrInvalidStep, maxCommandLength)
	}
	if len(p.Params) > maxParamKeys {
		return fmt.Errorf("%w: params exceeds %d keys", ErrInvalidStep, maxParamKeys)
	}
	return nil
}

func (p NotificationPayload) validate() error {
	if strings.TrimSpace(p.Text()) == "" {
		return fmt.Errorf("%w: notification needs a title or message", ErrInvalidStep)
	}
	if len(p.Message) > maxMessageLength {
		return fmt.Errorf("%w: message exceeds %d characters", ErrInvalidStep, maxMessageLength)
	}
	return nil
}

func (p TaskCreatePayload) validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidStep)
	}
	if len(p.Title) > maxTaskTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", ErrInvalidStep, maxTaskTitleLength)
	}
	return nil
}

func (MediaPlayPayload) validate() error { return nil }

func (CustomPayload) validate() error { return nil }

// GenerateID creates a new UUID for a routine, step, or log.
func GenerateID() string {
	return uuid.New().String()
}
