package discovery

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/grandcat/zeroconf"
)

// ServiceEntry is one resolved DNS-SD advertisement.
type ServiceEntry struct {
	Instance string
	Service  string
	HostName string
	Port     int
	IPv4     []net.IP
	Text     []string
}

// ServiceBrowser browses one service type until ctx is done, calling found
// for every resolved entry. found may be called from another goroutine.
type ServiceBrowser interface {
	Browse(ctx context.Context, service string, found func(ServiceEntry)) error
}

// ZeroconfBrowser browses the "local." domain with multicast DNS.
type ZeroconfBrowser struct{}

// Browse implements ServiceBrowser.
func (ZeroconfBrowser) Browse(ctx context.Context, service string, found func(ServiceEntry)) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("creating mdns resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, service, "local.", entries); err != nil {
		return fmt.Errorf("browsing %s: %w", service, err)
	}

	for {
		select {
		case <-ctx.Done():
			// The resolver closes entries once it notices ctx; keep it unblocked.
			go func() {
				for range entries { //nolint:revive // drain
				}
			}()
			return nil
		case e, ok := <-entries:
			if !ok {
				return nil
			}
			if e == nil {
				continue
			}
			found(ServiceEntry{
				Instance: e.Instance,
				Service:  service,
				HostName: e.HostName,
				Port:     e.Port,
				IPv4:     e.AddrIPv4,
				Text:     e.Text,
			})
		}
	}
}

// deviceFromEntry classifies an advertisement. ok is false when the entry
// carries no usable address.
func deviceFromEntry(svc serviceType, e ServiceEntry) (Device, bool) {
	host := ""
	if len(e.IPv4) > 0 {
		host = e.IPv4[0].String()
	} else {
		host = strings.TrimSuffix(e.HostName, ".")
	}
	if host == "" {
		return Device{}, false
	}

	name := strings.ReplaceAll(e.Instance, `\ `, " ")
	if name == "" {
		name = fmt.Sprintf("Device %s:%d", host, e.Port)
	}

	typ := refineType(svc.Type, name)
	return Device{
		ID:             deviceID(svc.Provider, host, e.Port),
		Name:           name,
		Type:           typ,
		ConnectionType: ConnectionWiFi,
		Provider:       svc.Provider,
		Capabilities:   CapabilitiesFor(typ),
		Metadata: Metadata{
			IP:           host,
			Port:         e.Port,
			Manufacturer: txtValue(e.Text, "manufacturer", "mf", "vendor"),
			MAC:          txtValue(e.Text, "mac", "id"),
		},
	}, true
}

// txtValue returns the first value among keys found in DNS-SD TXT records.
func txtValue(records []string, keys ...string) string {
	for _, key := range keys {
		prefix := key + "="
		for _, r := range records {
			if len(r) > len(prefix) && strings.EqualFold(r[:len(prefix)], prefix) {
				return r[len(prefix):]
			}
		}
	}
	return ""
}
