package automation

import (
	"encoding/json"
	"errors"
	"testing"
)

func results(statuses ...StepStatus) []StepResult {
	out := make([]StepResult, len(statuses))
	for i, s := range statuses {
		out[i] = StepResult{Order: i, Status: s}
	}
	return out
}

func TestAggregateStatus(t *testing.T) {
	tests := []struct {
		name string
		in   []StepResult
		want RunStatus
	}{
		{"empty", nil, RunPartial},
		{"all success", results(StepSuccess, StepSuccess), RunSuccess},
		{"single success", results(StepSuccess), RunSuccess},
		{"all failed", results(StepFailed, StepFailed), RunFailed},
		{"failed and skipped", results(StepFailed, StepSkipped), RunFailed},
		{"all skipped", results(StepSkipped, StepSkipped), RunPartial},
		{"success and failed", results(StepSuccess, StepFailed), RunPartial},
		{"success and skipped", results(StepSuccess, StepSkipped), RunPartial},
		{"mixed", results(StepFailed, StepSuccess, StepSkipped), RunPartial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AggregateStatus(tt.in); got != tt.want {
				t.Errorf("AggregateStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDecodePayload(t *testing.T) {
	s := RoutineStep{ActionType: ActionNotification, Payload: json.RawMessage(`{"title":"Bonjour","message":"Trafic"}`)}
	p, err := s.DecodePayload()
	if err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	n, ok := p.(NotificationPayload)
	if !ok || n.Text() != "Bonjour Trafic" {
		t.Errorf("DecodePayload() = %#v", p)
	}

	empty, err := RoutineStep{ActionType: ActionCustom}.DecodePayload()
	if err != nil {
		t.Fatalf("DecodePayload(empty) error = %v", err)
	}
	if c, ok := empty.(CustomPayload); !ok || len(c) != 0 {
		t.Errorf("DecodePayload(empty) = %#v", empty)
	}

	if _, err := (RoutineStep{ActionType: "TELEPORT"}).DecodePayload(); !errors.Is(err, ErrInvalidStep) {
		t.Errorf("unknown action error = %v, want ErrInvalidStep", err)
	}
}

func TestEncodePayload(t *testing.T) {
	action, raw, err := EncodePayload(TaskCreatePayload{Title: "Courses"})
	if err != nil {
		t.Fatalf("EncodePayload() error = %v", err)
	}
	if action != ActionTaskCreate || string(raw) != `{"title":"Courses"}` {
		t.Errorf("EncodePayload() = %s %s", action, raw)
	}
}

func TestRoutineDeepCopy(t *testing.T) {
	r := testRoutine("r", step(1, DeviceCommandPayload{Command: "on"}, ptrString("lamp")))
	r.Description = ptrString("d")
	r.TriggerData = json.RawMessage(`{"a":1}`)
	r.Steps[0].DelaySeconds = ptrInt(5)

	cpy := r.DeepCopy()
	*cpy.Description = "changed"
	cpy.TriggerData[0] = 'X'
	*cpy.Steps[0].DeviceID = "other"
	*cpy.Steps[0].DelaySeconds = 9
	cpy.Steps[0].Payload[0] = 'X'

	if *r.Description != "d" || r.TriggerData[0] != '{' || *r.Steps[0].DeviceID != "lamp" ||
		*r.Steps[0].DelaySeconds != 5 || r.Steps[0].Payload[0] != '{' {
		t.Error("DeepCopy() shares memory with the original")
	}

	var nilRoutine *Routine
	if nilRoutine.DeepCopy() != nil {
		t.Error("DeepCopy(nil) should be nil")
	}
}
