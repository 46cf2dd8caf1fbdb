package automation

import "errors"

// Domain errors for the automation package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, automation.ErrRoutineNotFound) {
//	    // handle not found case
//	}
var (
	// ErrRoutineNotFound is returned when a routine ID does not exist, or
	// belongs to another user.
	ErrRoutineNotFound = errors.New("routine: not found")

	// ErrRoutineExists is returned when creating a routine with an ID that already exists.
	ErrRoutineExists = errors.New("routine: already exists")

	// ErrInvalidRoutine is returned when routine validation fails.
	ErrInvalidRoutine = errors.New("routine: invalid")

	// ErrInvalidStep is returned when a step or its payload is invalid.
	ErrInvalidStep = errors.New("routine: invalid step")

	// ErrInvalidName is returned when a routine name is empty or too long.
	ErrInvalidName = errors.New("routine: invalid name")

	// ErrNoSteps is returned when a routine has no steps.
	ErrNoSteps = errors.New("routine: no steps")

	// ErrDuplicateOrder is returned when two steps share an order.
	ErrDuplicateOrder = errors.New("routine: duplicate step order")

	// ErrLogPersistence is returned when a run log cannot be written. The
	// run itself has completed; only its record is missing.
	ErrLogPersistence = errors.New("routine: log persistence failed")

	// ErrLogNotFound is returned when a log ID does not exist.
	ErrLogNotFound = errors.New("routine: log not found")
)
