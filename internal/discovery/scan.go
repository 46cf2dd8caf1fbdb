package discovery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/undarez/synexa-sub001/internal/infrastructure/config"
)

const (
	// maxProbeTimeout caps a single probe.
	maxProbeTimeout = 800 * time.Millisecond

	// maxProbeBody is how much of a response is read for fingerprinting.
	maxProbeBody = 64 << 10

	defaultConcurrency = 20
)

// ScanConfig controls the active scan.
type ScanConfig struct {
	Subnets        []string
	HostsPerSubnet int
	MaxHosts       int
	Ports          []int
	ProbeTimeout   time.Duration
	Concurrency    int

	// Hosts, when set, replaces the subnet sweep.
	Hosts []string
}

// ScanConfigFrom derives a ScanConfig from the discovery config section.
func ScanConfigFrom(cfg config.DiscoveryConfig) ScanConfig {
	return ScanConfig{
		Subnets:        cfg.Subnets,
		HostsPerSubnet: cfg.HostsPerSubnet,
		MaxHosts:       cfg.MaxHosts,
		Ports:          cfg.Ports,
		ProbeTimeout:   time.Duration(cfg.ProbeTimeoutMS) * time.Millisecond,
		Concurrency:    cfg.Concurrency,
	}
}

// Scanner probes candidate hosts over HTTP.
type Scanner struct {
	cfg    ScanConfig
	client *http.Client
	logger Logger
}

// NewScanner creates a Scanner. ProbeTimeout is clamped to 800ms.
func NewScanner(cfg ScanConfig) *Scanner {
	if cfg.ProbeTimeout <= 0 || cfg.ProbeTimeout > maxProbeTimeout {
		cfg.ProbeTimeout = maxProbeTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}

	return &Scanner{
		cfg: cfg,
		client: &http.Client{
			Transport: &http.Transport{
				DisableKeepAlives:   true,
				MaxIdleConnsPerHost: -1,
			},
			// One request per probe; a redirect is still a hit.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for probe diagnostics.
func (s *Scanner) SetLogger(logger Logger) {
	s.logger = logger
}

// Hosts returns the candidate hosts: Hosts if set, otherwise
// {subnet}.1 .. {subnet}.HostsPerSubnet for each subnet, capped at MaxHosts.
func (s *Scanner) Hosts() []string {
	if len(s.cfg.Hosts) > 0 {
		return s.cfg.Hosts
	}

	var hosts []string
	for _, subnet := range s.cfg.Subnets {
		for i := 1; i <= s.cfg.HostsPerSubnet; i++ {
			if s.cfg.MaxHosts > 0 && len(hosts) >= s.cfg.MaxHosts {
				return hosts
			}
			hosts = append(hosts, fmt.Sprintf("%s.%d", subnet, i))
		}
	}
	return hosts
}

// Scan probes every host × port with at most Concurrency probes in flight,
// calling found for each responding endpoint. It stops dispatching once ctx
// is done and returns after in-flight probes finish, which their own
// timeout bounds.
func (s *Scanner) Scan(ctx context.Context, found func(Device)) {
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)

dispatch:
	for _, host := range s.Hosts() {
		for _, port := range s.cfg.Ports {
			if ctx.Err() != nil {
				break dispatch
			}
			host, port := host, port
			g.Go(func() error {
				if dev, ok := s.probe(ctx, host, port); ok {
					found(dev)
				}
				return nil // A failed probe never cancels its siblings.
			})
		}
	}

	_ = g.Wait() //nolint:errcheck // probes never return errors
}

// probe issues one GET and classifies the answer.
func (s *Scanner) probe(ctx context.Context, host string, port int) (Device, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
	defer cancel()

	url := fmt.Sprintf("http://%s:%d/", host, port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Device{}, false
	}
	req.Header.Set("User-Agent", "synexa-discovery/1")

	resp, err := s.client.Do(req)
	if err != nil {
		return Device{}, false
	}
	defer resp.Body.Close()

	// A truncated read still leaves something to fingerprint.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBody))
	if err != nil {
		s.logger.Debug("probe body read failed", "url", url, "error", err)
	}

	return classifyResponse(host, port, resp.Header.Get("Server"), body), true
}

// classifyResponse turns a probe answer into a Device.
func classifyResponse(host string, port int, server string, body []byte) Device {
	provider := ProviderGeneric
	manufacturer := ""
	typ := TypeOther

	if fp, ok := matchFingerprint(server + "\n" + string(body)); ok {
		provider = fp.Provider
		manufacturer = fp.Manufacturer
		typ = fp.Type
	}

	name := extractTitle(body)
	if name == "" {
		name = fmt.Sprintf("Device %s:%d", host, port)
	}
	if typ == TypeOther {
		typ = typeFromName(name)
	}

	return Device{
		ID:             deviceID(provider, host, port),
		Name:           name,
		Type:           typ,
		ConnectionType: ConnectionWiFi,
		Provider:       provider,
		Capabilities:   CapabilitiesFor(typ),
		Metadata: Metadata{
			IP:           host,
			Port:         port,
			Manufacturer: manufacturer,
		},
	}
}

// extractTitle returns the text of the first <title> element, or "".
func extractTitle(body []byte) string {
	z := html.NewTokenizer(bytes.NewReader(body))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			name, _ := z.TagName()
			if string(name) != "title" {
				continue
			}
			if z.Next() != html.TextToken {
				return ""
			}
			return strings.Join(strings.Fields(string(z.Text())), " ")
		}
	}
}
