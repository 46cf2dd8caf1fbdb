package api

import (
	"net/http"
	"runtime"
	"sync"
	"time"
)

// scanStats accumulates network discovery outcomes served by this process.
type scanStats struct {
	mu       sync.Mutex
	total    int
	lastAt   time.Time
	lastSeen int
	lastTook time.Duration
}

func (s *scanStats) record(found int, took time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	s.lastAt = time.Now().UTC()
	s.lastSeen = found
	s.lastTook = took
}

func (s *scanStats) snapshot() DiscoveryMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := DiscoveryMetrics{Scans: s.total}
	if s.total > 0 {
		m.LastScanAt = s.lastAt.Format(time.RFC3339)
		m.LastFound = s.lastSeen
		m.LastDurationMS = s.lastTook.Milliseconds()
	}
	return m
}

// Metrics is the body of GET /metrics.
type Metrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Goroutines    int              `json:"goroutines"`
	HeapMB        float64          `json:"heap_mb"`
	Events        EventMetrics     `json:"events"`
	Broker        BrokerMetrics    `json:"broker"`
	Routines      RoutineMetrics   `json:"routines"`
	Discovery     DiscoveryMetrics `json:"discovery"`
	Database      DatabaseMetrics  `json:"database"`
}

// EventMetrics describes the WebSocket event stream.
type EventMetrics struct {
	Sessions       int   `json:"sessions"`
	PendingTickets int   `json:"pending_tickets"`
	Dropped        int64 `json:"dropped"`
}

// BrokerMetrics describes the device-command transport.
type BrokerMetrics struct {
	Configured bool `json:"configured"`
	Connected  bool `json:"connected"`
}

// RoutineMetrics describes the routine cache.
type RoutineMetrics struct {
	Cached int `json:"cached"`
}

// DiscoveryMetrics summarises network discovery calls since start.
type DiscoveryMetrics struct {
	Scans          int    `json:"scans"`
	LastScanAt     string `json:"last_scan_at,omitempty"`
	LastFound      int    `json:"last_found"`
	LastDurationMS int64  `json:"last_duration_ms"`
}

// DatabaseMetrics is a subset of sql.DBStats.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	WaitCount       int64 `json:"wait_count"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	m := Metrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		HeapMB:        float64(mem.HeapAlloc) / (1 << 20),
		Events:        EventMetrics{PendingTickets: s.tickets.pending()},
		Routines:      RoutineMetrics{Cached: s.routines.GetRoutineCount()},
		Discovery:     s.scans.snapshot(),
	}
	if s.hub != nil {
		m.Events.Sessions = s.hub.ClientCount()
		m.Events.Dropped = s.hub.Dropped()
	}
	if s.mqtt != nil {
		m.Broker = BrokerMetrics{Configured: true, Connected: s.mqtt.IsConnected()}
	}
	if s.db != nil {
		st := s.db.Stats()
		m.Database = DatabaseMetrics{OpenConnections: st.OpenConnections, InUse: st.InUse, WaitCount: st.WaitCount}
	}

	writeJSON(w, http.StatusOK, m)
}
