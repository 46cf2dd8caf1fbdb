package automation

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestRegistry_CreateAndGet(t *testing.T) {
	repo := newMockRepository()
	reg := NewRegistry(repo)
	ctx := context.Background()

	r := &Routine{
		UserID: "user-1",
		Name:   "Matin",
		Active: true,
		Steps: []RoutineStep{
			step(20, TaskCreatePayload{Title: "b"}, nil),
			step(10, TaskCreatePayload{Title: "a"}, nil),
		},
	}
	r.Steps[0].ID = ""

	if err := reg.CreateRoutine(ctx, r); err != nil {
		t.Fatalf("CreateRoutine() error = %v", err)
	}
	if r.ID == "" {
		t.Error("ID not generated")
	}
	if r.TriggerType != TriggerManual {
		t.Errorf("TriggerType = %q, want MANUAL", r.TriggerType)
	}
	if r.Steps[0].Order != 10 || r.Steps[1].Order != 20 {
		t.Errorf("steps not sorted: %d,%d", r.Steps[0].Order, r.Steps[1].Order)
	}
	for _, s := range r.Steps {
		if s.ID == "" {
			t.Error("step ID not generated")
		}
	}

	got, err := reg.GetRoutine(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRoutine() error = %v", err)
	}
	if repo.getCalls != 0 {
		t.Errorf("repository hit %d times for a cached routine", repo.getCalls)
	}

	got.Name = "mutated"
	got.Steps[0].Order = 99
	again, _ := reg.GetRoutine(ctx, r.ID)
	if again.Name != "Matin" || again.Steps[0].Order != 10 {
		t.Error("GetRoutine() returned a shared reference into the cache")
	}
}

func TestRegistry_CreateInvalid(t *testing.T) {
	repo := newMockRepository()
	reg := NewRegistry(repo)

	err := reg.CreateRoutine(context.Background(), &Routine{UserID: "user-1", Name: "Vide"})
	if !errors.Is(err, ErrNoSteps) {
		t.Errorf("CreateRoutine() error = %v, want ErrNoSteps", err)
	}
	if len(repo.routines) != 0 {
		t.Error("invalid routine persisted")
	}
	if reg.GetRoutineCount() != 0 {
		t.Error("invalid routine cached")
	}
}

func TestRegistry_CacheMissFallsBackToRepository(t *testing.T) {
	repo := newMockRepository()
	reg := NewRegistry(repo)
	ctx := context.Background()

	// Written by another process.
	repo.routines["external"] = testRoutine("external", step(1, TaskCreatePayload{Title: "x"}, nil))

	if _, err := reg.GetRoutine(ctx, "external"); err != nil {
		t.Fatalf("GetRoutine() error = %v", err)
	}
	if _, err := reg.GetRoutine(ctx, "external"); err != nil {
		t.Fatalf("GetRoutine() error = %v", err)
	}
	if repo.getCalls != 1 {
		t.Errorf("repository calls = %d, want 1", repo.getCalls)
	}

	if _, err := reg.GetRoutine(ctx, "missing"); !errors.Is(err, ErrRoutineNotFound) {
		t.Errorf("GetRoutine(missing) error = %v, want ErrRoutineNotFound", err)
	}
}

func TestRegistry_RefreshCacheAndList(t *testing.T) {
	repo := newMockRepository()
	reg := NewRegistry(repo)
	ctx := context.Background()

	for _, r := range []*Routine{
		{ID: "3", UserID: "user-1", Name: "Soir"},
		{ID: "1", UserID: "user-1", Name: "Matin"},
		{ID: "2", UserID: "user-1", Name: "Matin"},
		{ID: "4", UserID: "user-2", Name: "Autre"},
	} {
		repo.routines[r.ID] = r
	}

	if err := reg.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}
	if reg.GetRoutineCount() != 4 {
		t.Errorf("GetRoutineCount() = %d, want 4", reg.GetRoutineCount())
	}

	list, err := reg.ListRoutines(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListRoutines() error = %v", err)
	}
	var ids []string
	for _, r := range list {
		ids = append(ids, r.ID)
	}
	if len(ids) != 3 || ids[0] != "1" || ids[1] != "2" || ids[2] != "3" {
		t.Errorf("ListRoutines() ids = %v, want [1 2 3]", ids)
	}

	all, _ := reg.ListRoutines(ctx, "")
	if len(all) != 4 {
		t.Errorf("ListRoutines(\"\") len = %d, want 4", len(all))
	}
}

func TestRegistry_Update(t *testing.T) {
	repo := newMockRepository()
	reg := NewRegistry(repo)
	ctx := context.Background()

	r := testRoutine("r1", step(1, TaskCreatePayload{Title: "x"}, nil))
	if err := reg.CreateRoutine(ctx, r); err != nil {
		t.Fatalf("CreateRoutine() error = %v", err)
	}

	r.Name = "Renommée"
	if err := reg.UpdateRoutine(ctx, r); err != nil {
		t.Fatalf("UpdateRoutine() error = %v", err)
	}
	got, _ := reg.GetRoutine(ctx, "r1")
	if got.Name != "Renommée" {
		t.Errorf("Name = %q after update", got.Name)
	}

	// Deleted behind the registry's back: update evicts the stale entry.
	delete(repo.routines, "r1")
	if err := reg.UpdateRoutine(ctx, r); !errors.Is(err, ErrRoutineNotFound) {
		t.Fatalf("UpdateRoutine() error = %v, want ErrRoutineNotFound", err)
	}
	if reg.GetRoutineCount() != 0 {
		t.Error("stale routine left in cache")
	}
}

func TestRegistry_Delete(t *testing.T) {
	repo := newMockRepository()
	reg := NewRegistry(repo)
	ctx := context.Background()

	if err := reg.CreateRoutine(ctx, testRoutine("r1", step(1, TaskCreatePayload{Title: "x"}, nil))); err != nil {
		t.Fatalf("CreateRoutine() error = %v", err)
	}
	if err := reg.DeleteRoutine(ctx, "r1"); err != nil {
		t.Fatalf("DeleteRoutine() error = %v", err)
	}
	if _, err := reg.GetRoutine(ctx, "r1"); !errors.Is(err, ErrRoutineNotFound) {
		t.Errorf("GetRoutine() after delete error = %v", err)
	}
	if err := reg.DeleteRoutine(ctx, "r1"); !errors.Is(err, ErrRoutineNotFound) {
		t.Errorf("second DeleteRoutine() error = %v", err)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	repo := newMockRepository()
	reg := NewRegistry(repo)
	ctx := context.Background()

	if err := reg.CreateRoutine(ctx, testRoutine("shared", step(1, TaskCreatePayload{Title: "x"}, nil))); err != nil {
		t.Fatalf("CreateRoutine() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = reg.GetRoutine(ctx, "shared")
			_, _ = reg.ListRoutines(ctx, "user-1")
		}()
		go func() {
			defer wg.Done()
			_ = reg.CreateRoutine(ctx, &Routine{UserID: "user-1", Name: "n", Steps: []RoutineStep{step(1, TaskCreatePayload{Title: "x"}, nil)}})
		}()
	}
	wg.Wait()

	if reg.GetRoutineCount() != 21 {
		t.Errorf("GetRoutineCount() = %d, want 21", reg.GetRoutineCount())
	}
}
