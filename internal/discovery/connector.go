package discovery

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Credentials authorise control of a cloud-backed device.
type Credentials struct {
	Token    string `json:"token,omitempty"`
	APIKey   string `json:"apiKey,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// IsEmpty reports whether no credential was supplied.
func (c *Credentials) IsEmpty() bool {
	return c == nil || (c.Token == "" && c.APIKey == "" && c.Username == "" && c.Password == "")
}

// ConnectResult is the outcome of Connector.Connect.
type ConnectResult struct {
	Success bool    `json:"success"`
	Device  *Device `json:"device,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// Connector checks that a discovered device can be controlled.
//
// It is a capability probe, not pairing: nothing is persisted.
type Connector struct {
	credentialProviders []string
	now                 func() time.Time
	logger              Logger
}

// NewConnector creates a Connector. Providers listed in credentialProviders
// cannot be driven without credentials.
func NewConnector(credentialProviders []string) *Connector {
	lower := make([]string, len(credentialProviders))
	for i, p := range credentialProviders {
		lower[i] = strings.ToLower(p)
	}
	return &Connector{
		credentialProviders: lower,
		now:                 time.Now,
		logger:              noopLogger{},
	}
}

// SetLogger sets the logger for the connector.
func (c *Connector) SetLogger(logger Logger) {
	c.logger = logger
}

// RequiresCredentials reports whether provider needs credentials.
func (c *Connector) RequiresCredentials(provider string) bool {
	return slices.Contains(c.credentialProviders, strings.ToLower(provider))
}

// Connect validates dev and stamps it with a connection time.
//
// It fails deterministically when the provider requires credentials and
// creds is empty. The returned device carries creds but never serialises them.
func (c *Connector) Connect(_ context.Context, dev Device, creds *Credentials) ConnectResult {
	if dev.ID == "" || dev.Provider == "" {
		return ConnectResult{Error: fmt.Sprintf("%v: id and provider are required", ErrInvalidDevice)}
	}

	if c.RequiresCredentials(dev.Provider) && creds.IsEmpty() {
		c.logger.Debug("connect refused, credentials missing", "device_id", dev.ID, "provider", dev.Provider)
		return ConnectResult{Error: fmt.Sprintf("%v for provider %s", ErrCredentialsRequired, dev.Provider)}
	}

	connected := dev.Clone()
	now := c.now().UTC()
	connected.ConnectedAt = &now
	if !creds.IsEmpty() {
		cp := *creds
		connected.Credentials = &cp
	}

	c.logger.Info("device connected", "device_id", dev.ID, "provider", dev.Provider)
	return ConnectResult{Success: true, Device: &connected}
}
