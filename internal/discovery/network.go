package discovery

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/undarez/synexa-sub001/internal/infrastructure/config"
	"github.com/undarez/synexa-sub001/internal/infrastructure/influxdb"
)

// ScanRecorder receives a summary of each discovery. *influxdb.Client
// satisfies it.
type ScanRecorder interface {
	WriteDiscoveryScan(scan influxdb.DiscoveryScan)
}

// NetworkProbe discovers WiFi devices with passive mDNS listeners and an
// active HTTP scan running concurrently.
type NetworkProbe struct {
	browser        ServiceBrowser
	scanner        *Scanner
	defaultTimeout time.Duration
	mdnsTimeout    time.Duration
	recorder       ScanRecorder
	logger         Logger
}

// NewNetworkProbe creates a probe from the discovery config. A nil browser
// disables the passive strategy.
func NewNetworkProbe(cfg config.DiscoveryConfig, browser ServiceBrowser) *NetworkProbe {
	return &NetworkProbe{
		browser:        browser,
		scanner:        NewScanner(ScanConfigFrom(cfg)),
		defaultTimeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
		mdnsTimeout:    time.Duration(cfg.MDNSTimeoutMS) * time.Millisecond,
		logger:         noopLogger{},
	}
}

// SetLogger sets the logger for the probe and its scanner.
func (p *NetworkProbe) SetLogger(logger Logger) {
	p.logger = logger
	p.scanner.SetLogger(logger)
}

// SetRecorder sets where scan summaries are sent.
func (p *NetworkProbe) SetRecorder(recorder ScanRecorder) {
	p.recorder = recorder
}

// Discover returns the devices found within timeout, filtered by f.
//
// It never fails. Probe errors are dropped and an empty slice means no
// device answered. The call returns within timeout plus one probe timeout.
// A non-positive timeout uses the configured default.
func (p *NetworkProbe) Discover(ctx context.Context, timeout time.Duration, f Filter) []Device {
	if timeout <= 0 {
		timeout = p.defaultTimeout
	}
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	passive, active := NewRegistry(), NewRegistry()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.listen(ctx, timeout, passive)
	}()
	go func() {
		defer wg.Done()
		p.scanner.Scan(ctx, func(d Device) { active.Add(d) })
	}()
	wg.Wait()

	all := Merge(passive.Devices(), active.Devices())
	devices := FilterDevices(all, f)

	p.logger.Info("network discovery complete",
		"passive", passive.Len(),
		"active", active.Len(),
		"merged", len(all),
		"returned", len(devices),
		"duration", time.Since(start),
	)
	if p.recorder != nil {
		p.recorder.WriteDiscoveryScan(influxdb.DiscoveryScan{
			Found:    len(devices),
			Passive:  passive.Len(),
			Active:   active.Len(),
			Filtered: f.Type != "" || f.Manufacturer != "",
			Duration: time.Since(start),
			At:       start,
		})
	}

	return devices
}

// listen runs one browser per known service type, each bounded by
// min(mdnsTimeout, timeout), adding classified entries to reg.
func (p *NetworkProbe) listen(ctx context.Context, timeout time.Duration, reg *Registry) {
	if p.browser == nil {
		return
	}

	sub := timeout
	if p.mdnsTimeout > 0 && p.mdnsTimeout < sub {
		sub = p.mdnsTimeout
	}

	var g errgroup.Group
	for _, svc := range knownServices {
		svc := svc
		g.Go(func() error {
			lctx, cancel := context.WithTimeout(ctx, sub)
			defer cancel()

			err := p.browser.Browse(lctx, svc.Service, func(e ServiceEntry) {
				if d, ok := deviceFromEntry(svc, e); ok {
					reg.Add(d)
				}
			})
			if err != nil {
				p.logger.Debug("mdns listener failed", "service", svc.Service, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // listeners never return errors
}
