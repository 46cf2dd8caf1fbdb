package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// RoutineRun summarises one routine execution.
type RoutineRun struct {
	RoutineID string
	Status    string
	DryRun    bool
	Succeeded int
	Failed    int
	Skipped   int
	Duration  time.Duration
	At        time.Time
}

// DiscoveryScan summarises one network discovery call.
type DiscoveryScan struct {
	Found    int
	Passive  int
	Active   int
	Filtered bool
	Duration time.Duration
	At       time.Time
}

// WriteRoutineRun records a routine_runs point.
//
// routine_id and status are tags; user ids are deliberately left out to keep
// series cardinality bounded.
func (c *Client) WriteRoutineRun(run RoutineRun) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		"routine_runs",
		map[string]string{
			"routine_id": run.RoutineID,
			"status":     run.Status,
			"dry_run":    strconv.FormatBool(run.DryRun),
		},
		map[string]interface{}{
			"steps":       run.Succeeded + run.Failed + run.Skipped,
			"succeeded":   run.Succeeded,
			"failed":      run.Failed,
			"skipped":     run.Skipped,
			"duration_ms": run.Duration.Milliseconds(),
		},
		pointTime(run.At),
	))
}

// WriteDiscoveryScan records a discovery_scans point.
func (c *Client) WriteDiscoveryScan(scan DiscoveryScan) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		"discovery_scans",
		map[string]string{
			"filtered": strconv.FormatBool(scan.Filtered),
		},
		map[string]interface{}{
			"found":       scan.Found,
			"passive":     scan.Passive,
			"active":      scan.Active,
			"duration_ms": scan.Duration.Milliseconds(),
		},
		pointTime(scan.At),
	))
}

func pointTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
