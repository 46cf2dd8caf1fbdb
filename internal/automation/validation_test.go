package automation

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestValidateRoutine(t *testing.T) {
	valid := func() *Routine {
		return testRoutine("r", step(1, NotificationPayload{Message: "Bonjour"}, nil))
	}

	tests := []struct {
		name    string
		mutate  func(r *Routine)
		wantErr error
	}{
		{"valid", func(*Routine) {}, nil},
		{"empty name", func(r *Routine) { r.Name = "  " }, ErrInvalidName},
		{"long name", func(r *Routine) { r.Name = strings.Repeat("a", 101) }, ErrInvalidName},
		{"no user", func(r *Routine) { r.UserID = "" }, ErrInvalidRoutine},
		{"long description", func(r *Routine) { r.Description = ptrString(strings.Repeat("d", 501)) }, ErrInvalidRoutine},
		{"bad trigger", func(r *Routine) { r.TriggerType = "GEOFENCE" }, ErrInvalidRoutine},
		{"no steps", func(r *Routine) { r.Steps = nil }, ErrNoSteps},
		{"too many steps", func(r *Routine) {
			r.Steps = nil
			for i := 0; i < 51; i++ {
				r.Steps = append(r.Steps, step(i, TaskCreatePayload{Title: "x"}, nil))
			}
		}, ErrInvalidRoutine},
		{"duplicate order", func(r *Routine) {
			r.Steps = append(r.Steps, step(1, TaskCreatePayload{Title: "x"}, nil))
		}, ErrDuplicateOrder},
		{"bad step", func(r *Routine) {
			r.Steps = append(r.Steps, step(2, TaskCreatePayload{}, nil))
		}, ErrInvalidStep},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(r)
			err := ValidateRoutine(r)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateRoutine() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateRoutine() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if !errors.Is(ValidateRoutine(nil), ErrInvalidRoutine) {
		t.Error("ValidateRoutine(nil) should fail")
	}
}

func TestValidateStep(t *testing.T) {
	manyParams := map[string]any{}
	for i := 0; i < 21; i++ {
		manyParams[strings.Repeat("k", i+1)] = i
	}

	tests := []struct {
		name    string
		step    RoutineStep
		wantErr bool
	}{
		{"device command", step(0, DeviceCommandPayload{Command: "turn_on"}, ptrString("lamp")), false},
		{"device command unbound", step(0, DeviceCommandPayload{Command: "turn_on"}, nil), false},
		{"device command blank device", step(0, DeviceCommandPayload{Command: "turn_on"}, ptrString(" ")), true},
		{"device command slash in device", step(0, DeviceCommandPayload{Command: "turn_on"}, ptrString("lamp/1")), true},
		{"device command plus in device", step(0, DeviceCommandPayload{Command: "turn_on"}, ptrString("lamp+")), true},
		{"device command hash in device", step(0, DeviceCommandPayload{Command: "turn_on"}, ptrString("#")), true},
		{"device command dashed device", step(0, DeviceCommandPayload{Command: "turn_on"}, ptrString("hue-lamp_1.salon")), false},
		{"device command no command", step(0, DeviceCommandPayload{}, nil), true},
		{"device command long command", step(0, DeviceCommandPayload{Command: strings.Repeat("c", 65)}, nil), true},
		{"device command many params", step(0, DeviceCommandPayload{Command: "set", Params: manyParams}, nil), true},
		{"notification title only", step(0, NotificationPayload{Title: "Hi"}, nil), false},
		{"notification empty", step(0, NotificationPayload{}, nil), true},
		{"notification long message", step(0, NotificationPayload{Message: strings.Repeat("m", 1001)}, nil), true},
		{"task", step(0, TaskCreatePayload{Title: "Courses"}, nil), false},
		{"task blank title", step(0, TaskCreatePayload{Title: "   "}, nil), true},
		{"task long title", step(0, TaskCreatePayload{Title: strings.Repeat("t", 201)}, nil), true},
		{"media", step(0, MediaPlayPayload{}, nil), false},
		{"custom", step(0, CustomPayload{"anything": true}, nil), false},
		{"negative order", step(-1, TaskCreatePayload{Title: "x"}, nil), true},
		{"unknown action", RoutineStep{ActionType: "TELEPORT"}, true},
		{"malformed payload", RoutineStep{ActionType: ActionTaskCreate, Payload: json.RawMessage(`"nope"`)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStep(tt.step)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateStep() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidStep) {
				t.Errorf("ValidateStep() error = %v, want ErrInvalidStep", err)
			}
		})
	}
}

func TestValidateStep_Delay(t *testing.T) {
	for _, tt := range []struct {
		delay   int
		wantErr bool
	}{{0, false}, {3600, false}, {-1, true}, {3601, true}} {
		s := step(0, TaskCreatePayload{Title: "x"}, nil)
		s.DelaySeconds = ptrInt(tt.delay)
		if err := ValidateStep(s); (err != nil) != tt.wantErr {
			t.Errorf("delay %d: error = %v, wantErr %v", tt.delay, err, tt.wantErr)
		}
	}
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == b || len(a) != 36 {
		t.Errorf("GenerateID() = %q, %q", a, b)
	}
}
