package discovery

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Registry merges the devices found during one discovery call.
//
// Devices are keyed by id. A device whose (ip, port) matches one already
// held is folded into it even when the ids differ, which is how the passive
// and active strategies are reconciled. The first device seen wins; later
// ones only fill in capabilities, missing metadata, and a type when the
// first one was OTHER.
//
// Safe for concurrent use; probes add to it from many goroutines.
type Registry struct {
	mu      sync.Mutex
	devices []Device
	byID    map[string]int
	byAddr  map[string]int
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]int),
		byAddr: make(map[string]int),
	}
}

// Add merges devs into the registry.
func (r *Registry) Add(devs ...Device) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range devs {
		if d.ID == "" {
			continue
		}

		if idx, ok := r.byID[d.ID]; ok {
			absorb(&r.devices[idx], d)
			continue
		}

		addr := addressKey(d)
		if addr != "" {
			if idx, ok := r.byAddr[addr]; ok {
				absorb(&r.devices[idx], d)
				r.byID[d.ID] = idx
				continue
			}
		}

		idx := len(r.devices)
		r.devices = append(r.devices, d.Clone())
		r.byID[d.ID] = idx
		if addr != "" {
			r.byAddr[addr] = idx
		}
	}
}

// Devices returns a copy of the merged devices in first-seen order.
func (r *Registry) Devices() []Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Device, len(r.devices))
	for i, d := range r.devices {
		out[i] = d.Clone()
	}
	return out
}

// Len returns the number of distinct devices.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices)
}

// Merge combines lists into one id-unique list. Merge is idempotent:
// merging a result with itself returns the same result.
func Merge(lists ...[]Device) []Device {
	r := NewRegistry()
	for _, l := range lists {
		r.Add(l...)
	}
	return r.Devices()
}

// FilterDevices returns the devices matching f. Type must match exactly;
// Manufacturer matches metadata.manufacturer (substring) or provider
// (exact), ignoring case.
func FilterDevices(devices []Device, f Filter) []Device {
	out := make([]Device, 0, len(devices))
	want := strings.ToLower(strings.TrimSpace(f.Manufacturer))

	for _, d := range devices {
		if f.Type != "" && d.Type != f.Type {
			continue
		}
		if want != "" &&
			!strings.Contains(strings.ToLower(d.Metadata.Manufacturer), want) &&
			!strings.EqualFold(d.Provider, want) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func addressKey(d Device) string {
	if d.Metadata.IP == "" || d.Metadata.Port == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", d.Metadata.IP, d.Metadata.Port)
}

// absorb folds src into dst without overriding anything dst already has.
func absorb(dst *Device, src Device) {
	for _, c := range src.Capabilities {
		if !slices.Contains(dst.Capabilities, c) {
			dst.Capabilities = append(dst.Capabilities, c)
		}
	}

	m := &dst.Metadata
	if m.Manufacturer == "" {
		m.Manufacturer = src.Metadata.Manufacturer
	}
	if m.MAC == "" {
		m.MAC = src.Metadata.MAC
	}
	if m.BluetoothAddress == "" {
		m.BluetoothAddress = src.Metadata.BluetoothAddress
	}
	if m.SignalStrength == nil && src.Metadata.SignalStrength != nil {
		s := *src.Metadata.SignalStrength
		m.SignalStrength = &s
	}
	if dst.Type == TypeOther && src.Type != TypeOther {
		dst.Type = src.Type
	}
	if dst.ConnectionType != src.ConnectionType && src.ConnectionType != "" {
		dst.ConnectionType = ConnectionBoth
	}
}
