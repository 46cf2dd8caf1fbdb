package automation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func setupExecutor(t *testing.T) (*StepExecutor, *testCollaborators) {
	t.Helper()
	c := newTestCollaborators()
	return NewStepExecutor(c.collaborators(), time.Second), c
}

var userCtx = ExecutionContext{UserID: "user-1", RequestID: "req-1"}

func decodeOutput[T any](t *testing.T, r StepResult) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(r.Output, &v); err != nil {
		t.Fatalf("decoding output %s: %v", r.Output, err)
	}
	return v
}

// ─── DEVICE_COMMAND ─────────────────────────────────────────────────────────

func TestExecuteStep_DeviceCommand(t *testing.T) {
	e, c := setupExecutor(t)
	s := step(1, DeviceCommandPayload{Command: "turn_on", Params: map[string]any{"brightness": 80}}, ptrString("wled-10.0.0.5-80"))

	res := e.ExecuteStep(context.Background(), s, StepOptions{RoutineID: "r1"}, userCtx)
	if res.Status != StepSuccess {
		t.Fatalf("Status = %s (%s), want success", res.Status, res.Error)
	}
	if res.StepID != s.ID || res.Order != 1 || res.ActionType != ActionDeviceCommand {
		t.Errorf("result identity = %+v", res)
	}

	receipt := decodeOutput[CommandReceipt](t, res)
	if receipt.Topic != "synexa/command/wled-10.0.0.5-80" {
		t.Errorf("Topic = %q", receipt.Topic)
	}

	cmd := c.devices.commands[0]
	if cmd.Command != "turn_on" || cmd.RoutineID != "r1" || cmd.StepID != s.ID || cmd.RequestedBy != "user-1" {
		t.Errorf("dispatched command = %+v", cmd)
	}
}

func TestExecuteStep_DeviceCommandWithoutDeviceIsSkipped(t *testing.T) {
	e, c := setupExecutor(t)

	for _, dev := range []*string{nil, ptrString("")} {
		res := e.ExecuteStep(context.Background(), step(1, DeviceCommandPayload{Command: "turn_on"}, dev), StepOptions{}, userCtx)
		if res.Status != StepSkipped {
			t.Errorf("Status = %s, want skipped", res.Status)
		}
		if !strings.Contains(string(res.Output), "no device bound") {
			t.Errorf("Output = %s, want hint", res.Output)
		}
	}

	c.devices.failWith = errTransport
	res := e.ExecuteStep(context.Background(), step(1, DeviceCommandPayload{Command: "turn_on"}, nil), StepOptions{}, userCtx)
	if res.Status != StepSkipped {
		t.Errorf("unbound step with failing transport: Status = %s, want skipped", res.Status)
	}
	if c.devices.calls() != 0 {
		t.Errorf("transport called %d times for unbound steps", c.devices.calls())
	}
}

func TestExecuteStep_DeviceCommandTransportError(t *testing.T) {
	e, c := setupExecutor(t)
	c.devices.failWith = errTransport

	res := e.ExecuteStep(context.Background(), step(1, DeviceCommandPayload{Command: "turn_on"}, ptrString("d1")), StepOptions{}, userCtx)
	if res.Status != StepFailed {
		t.Fatalf("Status = %s, want failed", res.Status)
	}
	if res.Error != errTransport.Error() {
		t.Errorf("Error = %q, want transport message", res.Error)
	}
}

func TestExecuteStep_DeviceCommandTimesOut(t *testing.T) {
	c := newTestCollaborators()
	c.devices.block = true
	e := NewStepExecutor(c.collaborators(), 50*time.Millisecond)

	start := time.Now()
	res := e.ExecuteStep(context.Background(), step(1, DeviceCommandPayload{Command: "turn_on"}, ptrString("d1")), StepOptions{}, userCtx)
	if res.Status != StepFailed || !strings.Contains(res.Error, "deadline exceeded") {
		t.Errorf("result = %+v, want deadline failure", res)
	}
	if time.Since(start) > time.Second {
		t.Errorf("step took %v, timeout not applied", time.Since(start))
	}
}

func TestExecuteStep_NoTransport(t *testing.T) {
	e := NewStepExecutor(Collaborators{}, time.Second)
	res := e.ExecuteStep(context.Background(), step(1, DeviceCommandPayload{Command: "x"}, ptrString("d1")), StepOptions{}, userCtx)
	if res.Status != StepFailed {
		t.Errorf("Status = %s, want failed", res.Status)
	}
}

// ─── NOTIFICATION ───────────────────────────────────────────────────────────

func TestExecuteStep_NotificationTrafficUsesWorkAddress(t *testing.T) {
	e, c := setupExecutor(t)

	res := e.ExecuteStep(context.Background(), step(1, NotificationPayload{Message: "Rappel trafic vers le travail"}, nil), StepOptions{}, userCtx)
	if res.Status != StepSuccess {
		t.Fatalf("Status = %s, want success", res.Status)
	}

	out := decodeOutput[NotificationOutput](t, res)
	if out.Traffic == nil {
		t.Fatal("Traffic = nil, want enrichment")
	}
	if out.Traffic.Destination != "10 Rue de Rivoli, Paris" || out.Traffic.DestinationSource != destinationWork {
		t.Errorf("Traffic = %+v", out.Traffic)
	}
	if out.Traffic.Report == nil || len(out.Traffic.Report.Routes) != 1 {
		t.Errorf("Report = %+v", out.Traffic.Report)
	}
	if q := c.traffic.queries[0]; q.Destination != "10 Rue de Rivoli, Paris" || q.Origin != "3 Rue Oberkampf, Paris" {
		t.Errorf("traffic query = %+v", q)
	}
}

func TestExecuteStep_NotificationTrafficDestinationOrder(t *testing.T) {
	tests := []struct {
		name       string
		user       string
		explicit   string
		wantDest   string
		wantSource string
	}{
		{"explicit wins", "user-1", "Gare de Lyon", "Gare de Lyon", destinationPayload},
		{"work", "user-1", "", "10 Rue de Rivoli, Paris", destinationWork},
		{"home fallback", "user-home-only", "", "3 Rue Oberkampf, Paris", destinationHome},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := setupExecutor(t)
			s := step(1, NotificationPayload{Message: "Quel trafic ?", Destination: tt.explicit}, nil)

			res := e.ExecuteStep(context.Background(), s, StepOptions{}, ExecutionContext{UserID: tt.user})
			out := decodeOutput[NotificationOutput](t, res)
			if out.Traffic.Destination != tt.wantDest || out.Traffic.DestinationSource != tt.wantSource {
				t.Errorf("Traffic = %+v, want %s from %s", out.Traffic, tt.wantDest, tt.wantSource)
			}
		})
	}
}

func TestExecuteStep_NotificationFallbacks(t *testing.T) {
	e, c := setupExecutor(t)
	c.traffic.err = errors.New("503")
	c.news.err = errors.New("quota exceeded")

	res := e.ExecuteStep(context.Background(),
		step(1, NotificationPayload{Title: "Trafic et actualités", Message: "Les infos sur la météo"}, nil),
		StepOptions{}, userCtx)
	if res.Status != StepSuccess {
		t.Fatalf("Status = %s, want success despite collaborator errors", res.Status)
	}

	out := decodeOutput[NotificationOutput](t, res)
	if out.Traffic == nil || out.Traffic.Fallback != trafficUnavailable || out.Traffic.Report != nil {
		t.Errorf("Traffic = %+v, want fallback", out.Traffic)
	}
	if out.News == nil || out.News.Fallback != newsUnavailable {
		t.Errorf("News = %+v, want fallback", out.News)
	}

	res = e.ExecuteStep(context.Background(), step(1, NotificationPayload{Message: "Trafic ?"}, nil), StepOptions{}, ExecutionContext{UserID: "stranger"})
	out = decodeOutput[NotificationOutput](t, res)
	if res.Status != StepSuccess || out.Traffic.Fallback != noDestination {
		t.Errorf("unknown user: status=%s traffic=%+v", res.Status, out.Traffic)
	}
}

func TestExecuteStep_NotificationNewsQuery(t *testing.T) {
	e, c := setupExecutor(t)

	res := e.ExecuteStep(context.Background(), step(1, NotificationPayload{Message: "Consulte les actualités sur l'économie"}, nil), StepOptions{}, userCtx)
	if res.Status != StepSuccess {
		t.Fatalf("Status = %s", res.Status)
	}

	if len(c.news.queries) != 1 || c.news.queries[0] != "l'économie" {
		t.Errorf("news queries = %q, want [l'économie]", c.news.queries)
	}
	out := decodeOutput[NotificationOutput](t, res)
	if out.News == nil || out.News.Query != "l'économie" || out.News.Result == nil {
		t.Errorf("News = %+v", out.News)
	}
	if out.Traffic != nil {
		t.Errorf("Traffic = %+v, want nil", out.Traffic)
	}
}

func TestExecuteStep_NotificationCommute(t *testing.T) {
	e, c := setupExecutor(t)

	res := e.ExecuteStep(context.Background(), step(1, NotificationPayload{Message: "Départ au travail dans 10 minutes"}, nil), StepOptions{}, userCtx)
	out := decodeOutput[NotificationOutput](t, res)
	if !out.RequiresWeather {
		t.Error("RequiresWeather = false")
	}
	if out.WorkLocation == nil || !out.WorkLocation.HasCoordinates() {
		t.Errorf("WorkLocation = %+v", out.WorkLocation)
	}
	if len(c.traffic.queries) != 0 {
		t.Error("commute reminder should not call traffic inline")
	}
}

func TestExecuteStep_PlainNotification(t *testing.T) {
	e, c := setupExecutor(t)

	res := e.ExecuteStep(context.Background(), step(1, NotificationPayload{Title: "Bonjour", Message: "Bonne journée"}, nil), StepOptions{}, userCtx)
	if res.Status != StepSuccess {
		t.Fatalf("Status = %s", res.Status)
	}
	if c.totalCalls() != 0 {
		t.Errorf("plain notification made %d collaborator calls", c.totalCalls())
	}
}

func TestExecuteStep_NotificationUndecodablePayloadSucceeds(t *testing.T) {
	e, c := setupExecutor(t)
	s := RoutineStep{ID: "s1", Order: 1, ActionType: ActionNotification, Payload: json.RawMessage(`{"message":5}`)}

	res := e.ExecuteStep(context.Background(), s, StepOptions{}, userCtx)
	if res.Status != StepSuccess {
		t.Fatalf("Status = %s (error %q), want success", res.Status, res.Error)
	}
	out := decodeOutput[NotificationOutput](t, res)
	if out.Message != `{"message":5}` {
		t.Errorf("Message = %q, want the raw payload", out.Message)
	}
	if c.totalCalls() != 0 {
		t.Errorf("made %d collaborator calls", c.totalCalls())
	}
}

// ─── TASK_CREATE ────────────────────────────────────────────────────────────

func TestExecuteStep_TaskCreate(t *testing.T) {
	e, c := setupExecutor(t)

	res := e.ExecuteStep(context.Background(), step(2, TaskCreatePayload{Title: "Préparer petit-déjeuner"}, nil), StepOptions{}, userCtx)
	if res.Status != StepSuccess {
		t.Fatalf("Status = %s (%s)", res.Status, res.Error)
	}
	if c.tasks.created[0].Title != "Préparer petit-déjeuner" || c.tasks.created[0].UserID != "user-1" {
		t.Errorf("created = %+v", c.tasks.created[0])
	}
	if !strings.Contains(string(res.Output), "Préparer petit-déjeuner") {
		t.Errorf("Output = %s", res.Output)
	}
}

func TestExecuteStep_TaskCreateFailures(t *testing.T) {
	tests := []struct {
		name string
		s    RoutineStep
		ec   ExecutionContext
	}{
		{"missing title", step(1, TaskCreatePayload{}, nil), userCtx},
		{"blank title", step(1, TaskCreatePayload{Title: "  "}, nil), userCtx},
		{"no user", step(1, TaskCreatePayload{Title: "x"}, nil), ExecutionContext{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, c := setupExecutor(t)
			res := e.ExecuteStep(context.Background(), tt.s, StepOptions{}, tt.ec)
			if res.Status != StepFailed {
				t.Errorf("Status = %s, want failed", res.Status)
			}
			if c.tasks.calls() != 0 {
				t.Error("task store called")
			}
		})
	}
}

// ─── Other actions ──────────────────────────────────────────────────────────

func TestExecuteStep_UnimplementedActionsSkipped(t *testing.T) {
	e, _ := setupExecutor(t)

	steps := []RoutineStep{
		step(1, MediaPlayPayload{Query: "jazz"}, nil),
		step(2, CustomPayload{"webhook": "https://example.org"}, nil),
		{ID: "s3", Order: 3, ActionType: "TELEPORT"},
	}
	for _, s := range steps {
		res := e.ExecuteStep(context.Background(), s, StepOptions{}, userCtx)
		if res.Status != StepSkipped || len(res.Output) == 0 {
			t.Errorf("%s: result = %+v, want skipped with note", s.ActionType, res)
		}
	}
}

func TestExecuteStep_DryRunTouchesNothing(t *testing.T) {
	e, c := setupExecutor(t)
	c.devices.failWith = errTransport

	steps := []RoutineStep{
		step(1, DeviceCommandPayload{Command: "turn_on"}, ptrString("d1")),
		step(2, DeviceCommandPayload{Command: "turn_on"}, nil),
		step(3, NotificationPayload{Message: "Trafic et actualités sur la Bourse"}, nil),
		step(4, TaskCreatePayload{}, nil),
		step(5, MediaPlayPayload{}, nil),
		step(6, CustomPayload{}, nil),
		{ID: "s7", Order: 7, ActionType: "TELEPORT"},
	}
	for _, s := range steps {
		res := e.ExecuteStep(context.Background(), s, StepOptions{DryRun: true}, ExecutionContext{})
		if res.Status != StepSuccess {
			t.Errorf("%s dry run: Status = %s, want success", s.ActionType, res.Status)
		}
	}
	if n := c.totalCalls(); n != 0 {
		t.Errorf("dry run made %d collaborator calls", n)
	}
}

func TestExecuteStep_RecoversPanic(t *testing.T) {
	e, _ := setupExecutor(t)
	e.SetIntentClassifier(panickyClassifier{})

	res := e.ExecuteStep(context.Background(), step(1, NotificationPayload{Message: "x"}, nil), StepOptions{}, userCtx)
	if res.Status != StepFailed || !strings.Contains(res.Error, "classifier exploded") {
		t.Errorf("result = %+v, want recovered failure", res)
	}
}

func TestExecuteStep_BadPayloadFails(t *testing.T) {
	e, _ := setupExecutor(t)
	s := RoutineStep{ID: "s1", Order: 1, ActionType: ActionTaskCreate, Payload: json.RawMessage(`[1,2]`)}

	res := e.ExecuteStep(context.Background(), s, StepOptions{}, userCtx)
	if res.Status != StepFailed {
		t.Errorf("Status = %s, want failed", res.Status)
	}
}
