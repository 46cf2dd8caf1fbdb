package discovery

import "time"

// DeviceType classifies what a device is.
type DeviceType string

// Device types.
const (
	TypeLight      DeviceType = "LIGHT"
	TypeThermostat DeviceType = "THERMOSTAT"
	TypeMedia      DeviceType = "MEDIA"
	TypeOutlet     DeviceType = "OUTLET"
	TypeSensor     DeviceType = "SENSOR"
	TypeOther      DeviceType = "OTHER"
)

// ConnectionType is how a device is reached.
type ConnectionType string

// Connection types.
const (
	ConnectionWiFi      ConnectionType = "WIFI"
	ConnectionBluetooth ConnectionType = "BLUETOOTH"
	ConnectionBoth      ConnectionType = "BOTH"
)

// Capability tokens.
const (
	CapTurnOn          = "turn_on"
	CapTurnOff         = "turn_off"
	CapSetBrightness   = "set_brightness"
	CapSetColor        = "set_color"
	CapReadTemperature = "read_temperature"
	CapSetTemperature  = "set_temperature"
	CapReadHumidity    = "read_humidity"
	CapReadBattery     = "read_battery"
	CapPlay            = "play"
	CapPause           = "pause"
	CapSetVolume       = "set_volume"
)

// Device is a device found by one discovery call.
type Device struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Type           DeviceType     `json:"type"`
	ConnectionType ConnectionType `json:"connectionType"`
	Provider       string         `json:"provider"`
	Capabilities   []string       `json:"capabilities"`
	Metadata       Metadata       `json:"metadata"`

	// ConnectedAt is set by Connector on a successful capability probe.
	ConnectedAt *time.Time `json:"connectedAt,omitempty"`

	// Credentials attached by Connector. Never serialised.
	Credentials *Credentials `json:"-"`
}

// Metadata holds addressing and vendor details. Every field is optional.
type Metadata struct {
	IP               string `json:"ip,omitempty"`
	Port             int    `json:"port,omitempty"`
	MAC              string `json:"mac,omitempty"`
	BluetoothAddress string `json:"bluetoothAddress,omitempty"`
	SignalStrength   *int   `json:"signalStrength,omitempty"`
	Manufacturer     string `json:"manufacturer,omitempty"`
}

// Filter narrows a result set. Empty fields match everything.
type Filter struct {
	Type         DeviceType `json:"type,omitempty"`
	Manufacturer string     `json:"manufacturer,omitempty"`
}

// Clone returns a copy sharing no slices or pointers with d.
func (d Device) Clone() Device {
	cpy := d
	if d.Capabilities != nil {
		cpy.Capabilities = append([]string(nil), d.Capabilities...)
	}
	if d.Metadata.SignalStrength != nil {
		s := *d.Metadata.SignalStrength
		cpy.Metadata.SignalStrength = &s
	}
	if d.ConnectedAt != nil {
		t := *d.ConnectedAt
		cpy.ConnectedAt = &t
	}
	if d.Credentials != nil {
		c := *d.Credentials
		cpy.Credentials = &c
	}
	return cpy
}

// CapabilitiesFor returns the default capabilities of a device type.
// OTHER has none; the result is never nil so it encodes as [].
func CapabilitiesFor(t DeviceType) []string {
	switch t {
	case TypeLight:
		return []string{CapTurnOn, CapTurnOff, CapSetBrightness, CapSetColor}
	case TypeThermostat:
		return []string{CapReadTemperature, CapSetTemperature}
	case TypeMedia:
		return []string{CapPlay, CapPause, CapSetVolume}
	case TypeOutlet:
		return []string{CapTurnOn, CapTurnOff}
	case TypeSensor:
		return []string{CapReadTemperature, CapReadHumidity}
	default:
		return []string{}
	}
}

// IsValidDeviceType reports whether t is a known type.
func IsValidDeviceType(t DeviceType) bool {
	switch t {
	case TypeLight, TypeThermostat, TypeMedia, TypeOutlet, TypeSensor, TypeOther:
		return true
	}
	return false
}

// Logger is the logging interface used throughout the package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
