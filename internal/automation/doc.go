// Package automation runs user routines for Synexa.
//
// A routine is an ordered list of steps (device commands, notifications,
// task creation, media, custom actions). Running one executes every step in
// declared order, derives a run status from the step results, and stores
// one immutable log.
//
// Architecture:
//
//	┌───────────────────────────────────────────────────────┐
//	│                  Engine (engine.go)                   │
//	│  Sequences steps, aggregates status, persists a log   │
//	│  ┌──────────────┐    ┌───────────────┐                │
//	│  │   Registry   │───▶│  Repository   │                │
//	│  │(registry.go) │    │(repository.go)│                │
//	│  └──────────────┘    └───────────────┘                │
//	│        │                                              │
//	│        ▼                                              │
//	│  ┌────────────────────────────────────────────┐       │
//	│  │  Run Pipeline                              │       │
//	│  │  1. Load routine (cached)                  │       │
//	│  │  2. For each step: StepScheduler.Wait      │       │
//	│  │  3. StepExecutor.ExecuteStep               │       │
//	│  │  4. AggregateStatus                        │       │
//	│  │  5. Persist RoutineLog                     │       │
//	│  │  6. Telemetry + routine.executed event     │       │
//	│  └────────────────────────────────────────────┘       │
//	└───────────────────────────────────────────────────────┘
//
// # Step outcomes
//
// Steps never abort a run. A DEVICE_COMMAND with no bound device is
// skipped, a transport error fails the step, MEDIA_PLAY and CUSTOM are
// skipped until implemented. In dry-run mode every step succeeds and no
// collaborator is called.
//
// The run status is success when all steps succeeded, failed when none
// succeeded and at least one failed, and partial otherwise (including a run
// where every step was skipped).
//
// # Usage
//
//	repo := automation.NewSQLiteRepository(db)
//	registry := automation.NewRegistry(repo)
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	executor := automation.NewStepExecutor(automation.Collaborators{
//	    Devices: automation.NewMQTTTransport(mqttClient),
//	    Tasks:   task.NewSQLiteStore(db),
//	}, 30*time.Second)
//
//	engine := automation.NewEngine(registry, executor, repo, log)
//	runLog, err := engine.ExecuteRoutine(ctx, routineID,
//	    automation.ExecutionContext{UserID: userID}, automation.ExecuteOptions{})
package automation
