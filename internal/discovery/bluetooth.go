package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// GATT services that refine a Bluetooth device.
const (
	ServiceEnvironmentalSensing = "environmental_sensing"
	ServiceBattery              = "battery_service"
)

// serviceAliases maps 16-bit UUIDs to their GATT names.
var serviceAliases = map[string]string{
	"181a": ServiceEnvironmentalSensing,
	"180f": ServiceBattery,
}

// PickedDevice is what the platform picker returns for the chosen device.
type PickedDevice struct {
	Name         string   `json:"name"`
	Address      string   `json:"address,omitempty"`
	RSSI         *int     `json:"rssi,omitempty"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Services     []string `json:"services,omitempty"`
}

// Picker asks the user to choose exactly one device exposing one of the
// accepted services. It returns ErrPickerCancelled when the user dismisses
// the picker and any other error for platform or permission failures.
type Picker interface {
	Pick(ctx context.Context, acceptedServices []string) (PickedDevice, error)
}

// ReportedPicker replays the outcome of a browser-side picker.
//
// The Bluetooth picker only runs in the browser, in response to a user
// gesture. The client posts what happened and the server wraps it here;
// the server itself never scans.
type ReportedPicker struct {
	Device    *PickedDevice
	Cancelled bool
	Error     string
}

// Pick implements Picker.
func (p ReportedPicker) Pick(_ context.Context, _ []string) (PickedDevice, error) {
	switch {
	case p.Cancelled:
		return PickedDevice{}, ErrPickerCancelled
	case p.Error != "":
		return PickedDevice{}, fmt.Errorf("%w: %s", ErrBluetoothUnavailable, p.Error)
	case p.Device == nil:
		return PickedDevice{}, fmt.Errorf("%w: picker reported no device", ErrBluetoothUnavailable)
	}
	return *p.Device, nil
}

// BluetoothProbe turns a picker selection into a Device.
type BluetoothProbe struct {
	picker Picker
	logger Logger
}

// NewBluetoothProbe creates a probe backed by picker.
func NewBluetoothProbe(picker Picker) *BluetoothProbe {
	return &BluetoothProbe{picker: picker, logger: noopLogger{}}
}

// SetLogger sets the logger for the probe.
func (b *BluetoothProbe) SetLogger(logger Logger) {
	b.logger = logger
}

// RequestDevice asks the picker for one device.
//
// ok is false with a nil error when the user cancelled. Platform and
// security failures return an error wrapping ErrBluetoothUnavailable.
func (b *BluetoothProbe) RequestDevice(ctx context.Context, acceptedServices []string) (Device, bool, error) {
	if b.picker == nil {
		return Device{}, false, fmt.Errorf("%w: no picker configured", ErrBluetoothUnavailable)
	}

	picked, err := b.picker.Pick(ctx, acceptedServices)
	if errors.Is(err, ErrPickerCancelled) {
		b.logger.Debug("bluetooth picker cancelled")
		return Device{}, false, nil
	}
	if err != nil {
		if !errors.Is(err, ErrBluetoothUnavailable) {
			err = fmt.Errorf("%w: %w", ErrBluetoothUnavailable, err)
		}
		return Device{}, false, err
	}

	dev := deviceFromPicked(picked)
	b.logger.Info("bluetooth device selected", "id", dev.ID, "type", dev.Type)
	return dev, true, nil
}

func deviceFromPicked(p PickedDevice) Device {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = p.Address
	}
	if name == "" {
		name = "unknown"
	}

	typ := TypeOther
	var caps []string
	services := normalizeServices(p.Services)

	if services[ServiceEnvironmentalSensing] {
		typ = TypeSensor
		caps = append(caps, CapReadTemperature, CapReadHumidity)
	} else {
		typ = typeFromName(name)
		caps = CapabilitiesFor(typ)
	}
	if services[ServiceBattery] {
		caps = append(caps, CapReadBattery)
	}
	if caps == nil {
		caps = []string{}
	}

	return Device{
		ID:             "ble-" + name,
		Name:           name,
		Type:           typ,
		ConnectionType: ConnectionBluetooth,
		Provider:       "bluetooth",
		Capabilities:   caps,
		Metadata: Metadata{
			BluetoothAddress: p.Address,
			SignalStrength:   p.RSSI,
			Manufacturer:     p.Manufacturer,
		},
	}
}

// normalizeServices maps GATT service identifiers in any common form
// ("0x181a", "181a", "environmental_sensing", full 128-bit UUID) to names.
func normalizeServices(services []string) map[string]bool {
	out := make(map[string]bool, len(services))
	for _, s := range services {
		s = strings.ToLower(strings.TrimSpace(s))
		s = strings.TrimPrefix(s, "0x")
		// 0000181a-0000-1000-8000-00805f9b34fb
		if len(s) == 36 && strings.HasSuffix(s, "-0000-1000-8000-00805f9b34fb") {
			s = s[4:8]
		}
		if name, ok := serviceAliases[s]; ok {
			s = name
		}
		out[s] = true
	}
	return out
}
