package automation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/undarez/synexa-sub001/internal/infrastructure/influxdb"
	"github.com/undarez/synexa-sub001/internal/infrastructure/news"
	"github.com/undarez/synexa-sub001/internal/infrastructure/traffic"
	"github.com/undarez/synexa-sub001/internal/profile"
	"github.com/undarez/synexa-sub001/internal/task"
)

// ─── Repository ─────────────────────────────────────────────────────────────

// mockRepository is an in-memory implementation of Repository for testing.
type mockRepository struct {
	routines map[string]*Routine
	logs     []RoutineLog
	failLogs error
	getCalls int
	mu       sync.RWMutex
}

func newMockRepository() *mockRepository {
	return &mockRepository{routines: make(map[string]*Routine)}
}

func (m *mockRepository) GetByID(_ context.Context, id string) (*Routine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	r, ok := m.routines[id]
	if !ok {
		return nil, ErrRoutineNotFound
	}
	return r.DeepCopy(), nil
}

func (m *mockRepository) List(_ context.Context) ([]Routine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Routine, 0, len(m.routines))
	for _, r := range m.routines {
		out = append(out, *r.DeepCopy())
	}
	return out, nil
}

func (m *mockRepository) ListByUser(ctx context.Context, userID string) ([]Routine, error) {
	all, _ := m.List(ctx)
	var out []Routine
	for _, r := range all {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRepository) Create(_ context.Context, r *Routine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.routines[r.ID]; ok {
		return ErrRoutineExists
	}
	m.routines[r.ID] = r.DeepCopy()
	return nil
}

func (m *mockRepository) Update(_ context.Context, r *Routine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.routines[r.ID]; !ok {
		return ErrRoutineNotFound
	}
	m.routines[r.ID] = r.DeepCopy()
	return nil
}

func (m *mockRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.routines[id]; !ok {
		return ErrRoutineNotFound
	}
	delete(m.routines, id)
	return nil
}

func (m *mockRepository) CreateLog(_ context.Context, l *RoutineLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLogs != nil {
		return m.failLogs
	}
	m.logs = append(m.logs, *l)
	return nil
}

func (m *mockRepository) GetLog(_ context.Context, id string) (*RoutineLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, l := range m.logs {
		if l.ID == id {
			return &l, nil
		}
	}
	return nil, ErrLogNotFound
}

func (m *mockRepository) ListLogs(_ context.Context, routineID string, _ int) ([]RoutineLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []RoutineLog
	for _, l := range m.logs {
		if l.RoutineID == routineID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockRepository) getLogs() []RoutineLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cpy := make([]RoutineLog, len(m.logs))
	copy(cpy, m.logs)
	return cpy
}

// ─── Collaborators ──────────────────────────────────────────────────────────

// mockTransport records dispatched commands.
type mockTransport struct {
	commands []DeviceCommand
	failWith error
	block    bool
	mu       sync.Mutex
}

func (m *mockTransport) DispatchDeviceCommand(ctx context.Context, deviceID string, cmd DeviceCommand) (*CommandReceipt, error) {
	m.mu.Lock()
	cmd.DeviceID = deviceID
	m.commands = append(m.commands, cmd)
	failWith, block := m.failWith, m.block
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if failWith != nil {
		return nil, failWith
	}
	return &CommandReceipt{CommandID: cmd.ID, Topic: "synexa/command/" + deviceID, PublishedAt: time.Now().UTC()}, nil
}

func (m *mockTransport) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.commands)
}

type mockTasks struct {
	created []task.Task
	mu      sync.Mutex
}

func (m *mockTasks) CreateTask(_ context.Context, userID, title string) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := task.Task{ID: GenerateID(), UserID: userID, Title: title, Status: task.StatusTodo, CreatedAt: time.Now().UTC()}
	m.created = append(m.created, t)
	return &t, nil
}

func (m *mockTasks) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.created)
}

type mockProfiles struct {
	profiles map[string]*profile.Profile
	calls    int
	mu       sync.Mutex
}

func (m *mockProfiles) GetProfile(_ context.Context, userID string) (*profile.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	p, ok := m.profiles[userID]
	if !ok {
		return nil, profile.ErrProfileNotFound
	}
	return p, nil
}

type mockTraffic struct {
	queries []traffic.Query
	err     error
	mu      sync.Mutex
}

func (m *mockTraffic) GetTraffic(_ context.Context, q traffic.Query) (*traffic.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, q)
	if m.err != nil {
		return nil, m.err
	}
	return &traffic.Report{
		Origin:      q.Origin,
		Destination: q.Destination,
		Routes:      []traffic.Route{{Summary: "A1", DistanceMeters: 5200, DurationSeconds: 900}},
		LastUpdate:  time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}, nil
}

type mockNews struct {
	queries []string
	err     error
	mu      sync.Mutex
}

func (m *mockNews) Search(_ context.Context, query string) (*news.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, query)
	if m.err != nil {
		return nil, m.err
	}
	return &news.Result{
		Articles:     []news.Article{{Title: "Croissance", URL: "https://example.org/a"}},
		TotalResults: 1,
		Sources:      []string{"example"},
	}, nil
}

// mockHub captures broadcasts.
type mockHub struct {
	events []string
	mu     sync.Mutex
}

func (m *mockHub) Broadcast(eventType string, _ any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, eventType)
}

func (m *mockHub) getEvents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.events...)
}

type mockRecorder struct {
	runs []influxdb.RoutineRun
	mu   sync.Mutex
}

func (m *mockRecorder) WriteRoutineRun(run influxdb.RoutineRun) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
}

// panickyClassifier panics on every call.
type panickyClassifier struct{}

func (panickyClassifier) Classify(string) Intent { panic("classifier exploded") }

var errTransport = errors.New("device unreachable: connection refused")

// ─── Fixtures ───────────────────────────────────────────────────────────────

type testCollaborators struct {
	devices  *mockTransport
	tasks    *mockTasks
	profiles *mockProfiles
	traffic  *mockTraffic
	news     *mockNews
}

func newTestCollaborators() *testCollaborators {
	return &testCollaborators{
		devices: &mockTransport{},
		tasks:   &mockTasks{},
		profiles: &mockProfiles{profiles: map[string]*profile.Profile{
			"user-1": {
				UserID: "user-1",
				Work:   &profile.Place{Address: "10 Rue de Rivoli, Paris", Lat: ptrFloat(48.8556), Lng: ptrFloat(2.3596)},
				Home:   &profile.Place{Address: "3 Rue Oberkampf, Paris"},
			},
			"user-home-only": {
				UserID: "user-home-only",
				Home:   &profile.Place{Address: "3 Rue Oberkampf, Paris"},
			},
		}},
		traffic: &mockTraffic{},
		news:    &mockNews{},
	}
}

func (c *testCollaborators) collaborators() Collaborators {
	return Collaborators{
		Devices:  c.devices,
		Tasks:    c.tasks,
		Profiles: c.profiles,
		Traffic:  c.traffic,
		News:     c.news,
	}
}

// totalCalls counts every collaborator invocation.
func (c *testCollaborators) totalCalls() int {
	c.profiles.mu.Lock()
	profiles := c.profiles.calls
	c.profiles.mu.Unlock()
	c.traffic.mu.Lock()
	trafficCalls := len(c.traffic.queries)
	c.traffic.mu.Unlock()
	c.news.mu.Lock()
	newsCalls := len(c.news.queries)
	c.news.mu.Unlock()
	return c.devices.calls() + c.tasks.calls() + profiles + trafficCalls + newsCalls
}

func ptrFloat(f float64) *float64 { return &f }

func ptrString(s string) *string { return &s }

func ptrInt(i int) *int { return &i }

// step builds a RoutineStep with the payload encoded from p.
func step(order int, p Payload, deviceID *string) RoutineStep {
	action, raw, err := EncodePayload(p)
	if err != nil {
		panic(err)
	}
	return RoutineStep{ID: GenerateID(), Order: order, ActionType: action, Payload: raw, DeviceID: deviceID}
}

func testRoutine(id string, steps ...RoutineStep) *Routine {
	return &Routine{
		ID:          id,
		UserID:      "user-1",
		Name:        "Morning " + id,
		TriggerType: TriggerManual,
		Active:      true,
		Steps:       steps,
	}
}
