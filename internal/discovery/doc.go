// Package discovery finds controllable smart-home devices on the local
// network and over Bluetooth.
//
// A network discovery runs two strategies at once and blocks until both are
// done or the caller's timeout elapses:
//   - passive: one mDNS/DNS-SD listener per known service type (HTTP,
//     HomeKit, Cast, AirPlay, Sonos, Tuya, WLED, Hue)
//   - active: short HTTP probes of the first hosts of common private /24
//     ranges on common IoT ports, classified by vendor fingerprints
//
// Probe failures are soft: a discovery never returns an error, and an empty
// result simply means nothing answered.
//
// Bluetooth discovery cannot run headless. The browser's device picker runs
// on a user gesture and reports its selection; BluetoothProbe turns that
// selection into a Device.
//
// Devices are ephemeral. Nothing here persists them.
package discovery
