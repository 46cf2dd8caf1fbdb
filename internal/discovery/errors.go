package discovery

import "errors"

// Domain errors for the discovery package.
var (
	// ErrBluetoothUnavailable covers platform and security failures of the
	// Bluetooth picker. It is distinct from the user cancelling.
	ErrBluetoothUnavailable = errors.New("discovery: bluetooth unavailable")

	// ErrPickerCancelled is returned by a Picker when the user dismissed it.
	// BluetoothProbe turns it into a non-error "cancelled" outcome.
	ErrPickerCancelled = errors.New("discovery: picker cancelled")

	// ErrCredentialsRequired is reported when a provider needs credentials
	// and none were supplied.
	ErrCredentialsRequired = errors.New("discovery: credentials required")

	// ErrInvalidDevice is reported for devices missing an id or provider.
	ErrInvalidDevice = errors.New("discovery: invalid device")
)
