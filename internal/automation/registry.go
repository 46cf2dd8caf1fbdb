package automation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Logger defines the logging interface used by the Registry and Engine.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides routine management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast lookups.
//
// The cache is populated on startup via RefreshCache() and kept in sync by
// the CRUD methods. Routines written by another process are picked up on a
// cache miss.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Routine
	cacheMu sync.RWMutex
	logger  Logger
}

// NewRegistry creates a new routine registry.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Routine),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all routines from the repository into the cache.
func (r *Registry) RefreshCache(ctx context.Context) error {
	routines, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading routines: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Routine, len(routines))
	for i := range routines {
		r.cache[routines[i].ID] = routines[i].DeepCopy()
	}

	r.logger.Info("routine cache refreshed", "count", len(routines))
	return nil
}

// GetRoutine retrieves a routine by ID, falling back to the repository on a
// cache miss. The returned routine is a deep copy.
func (r *Registry) GetRoutine(ctx context.Context, id string) (*Routine, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()
	if ok {
		return cached.DeepCopy(), nil
	}

	routine, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[id] = routine.DeepCopy()
	r.cacheMu.Unlock()
	return routine, nil
}

// ListRoutines returns the cached routines of userID sorted by name. An
// empty userID lists every routine.
func (r *Registry) ListRoutines(_ context.Context, userID string) ([]Routine, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	routines := make([]Routine, 0, len(r.cache))
	for _, rt := range r.cache {
		if userID != "" && rt.UserID != userID {
			continue
		}
		routines = append(routines, *rt.DeepCopy())
	}
	sort.Slice(routines, func(i, j int) bool {
		if routines[i].Name != routines[j].Name {
			return routines[i].Name < routines[j].Name
		}
		return routines[i].ID < routines[j].ID
	})
	return routines, nil
}

// CreateRoutine validates, persists, and caches a new routine. Missing IDs
// are generated and steps are stored in ascending order.
func (r *Registry) CreateRoutine(ctx context.Context, routine *Routine) error {
	if routine.ID == "" {
		routine.ID = GenerateID()
	}
	if routine.TriggerType == "" {
		routine.TriggerType = TriggerManual
	}
	prepareSteps(routine)

	if err := ValidateRoutine(routine); err != nil {
		return err
	}
	if err := r.repo.Create(ctx, routine); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[routine.ID] = routine.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("routine created", "id", routine.ID, "name", routine.Name, "steps", len(routine.Steps))
	return nil
}

// UpdateRoutine validates, persists, and updates the cached routine.
func (r *Registry) UpdateRoutine(ctx context.Context, routine *Routine) error {
	prepareSteps(routine)

	if err := ValidateRoutine(routine); err != nil {
		return err
	}
	if err := r.repo.Update(ctx, routine); err != nil {
		if errors.Is(err, ErrRoutineNotFound) {
			r.evict(routine.ID)
		}
		return err
	}

	r.cacheMu.Lock()
	r.cache[routine.ID] = routine.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("routine updated", "id", routine.ID, "name", routine.Name)
	return nil
}

// DeleteRoutine removes a routine from persistence and cache.
func (r *Registry) DeleteRoutine(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}
	r.evict(id)

	r.logger.Info("routine deleted", "id", id)
	return nil
}

// GetRoutineCount returns the number of cached routines.
func (r *Registry) GetRoutineCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

func (r *Registry) evict(id string) {
	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()
}

// prepareSteps assigns missing step IDs and sorts steps by order.
func prepareSteps(routine *Routine) {
	for i := range routine.Steps {
		if routine.Steps[i].ID == "" {
			routine.Steps[i].ID = GenerateID()
		}
	}
	sort.SliceStable(routine.Steps, func(i, j int) bool {
		return routine.Steps[i].Order < routine.Steps[j].Order
	})
}
