package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Synexa.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site       SiteConfig       `yaml:"site"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
	Security   SecurityConfig   `yaml:"security"`
	Discovery  DiscoveryConfig  `yaml:"discovery"`
	Automation AutomationConfig `yaml:"automation"`
	Services   ServicesConfig   `yaml:"services"`
}

// SiteConfig contains installation-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
// Tokens are issued by the account service; Synexa only verifies them.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// DiscoveryConfig controls WiFi and Bluetooth device discovery.
type DiscoveryConfig struct {
	// TimeoutMS is the default overall discovery budget when the caller gives none.
	TimeoutMS int `yaml:"timeout_ms"`

	// MDNSTimeoutMS bounds each passive service-advertisement listener.
	MDNSTimeoutMS int `yaml:"mdns_timeout_ms"`

	// ProbeTimeoutMS bounds a single active HTTP probe. Capped at 800.
	ProbeTimeoutMS int `yaml:"probe_timeout_ms"`

	// Subnets are /24 prefixes (e.g. "192.168.1") swept by the active scan.
	Subnets []string `yaml:"subnets"`

	HostsPerSubnet int   `yaml:"hosts_per_subnet"`
	MaxHosts       int   `yaml:"max_hosts"`
	Ports          []int `yaml:"ports"`

	// Concurrency caps in-flight active probes.
	Concurrency int `yaml:"concurrency"`

	// CredentialProviders lists providers that cannot be driven without credentials.
	CredentialProviders []string `yaml:"credential_providers"`
}

// AutomationConfig controls routine execution.
type AutomationConfig struct {
	// StepTimeout bounds collaborator calls made by one step (seconds).
	StepTimeout int `yaml:"step_timeout"`

	// EnforceDelays makes the engine honour delay_seconds between steps.
	EnforceDelays bool `yaml:"enforce_delays"`

	// LogHistoryLimit is the default page size for routine log listings.
	LogHistoryLimit int `yaml:"log_history_limit"`
}

// ServicesConfig contains the external collaborator endpoints used by notifications.
type ServicesConfig struct {
	Traffic TrafficConfig `yaml:"traffic"`
	News    NewsConfig    `yaml:"news"`
}

// TrafficConfig contains traffic collaborator settings.
type TrafficConfig struct {
	URL     string `yaml:"url"`
	Timeout int    `yaml:"timeout"`
}

// NewsConfig contains news collaborator settings.
type NewsConfig struct {
	URL     string `yaml:"url"`
	APIKey  string `yaml:"api_key"`
	Timeout int    `yaml:"timeout"`
}

// maxProbeTimeoutMS is the upper bound for a single active probe.
const maxProbeTimeoutMS = 800

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SYNEXA_SECTION_KEY
// For example: SYNEXA_DATABASE_PATH, SYNEXA_JWT_SECRET
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "home",
			Name:     "Synexa",
			Timezone: "Europe/Paris",
		},
		Database: DatabaseConfig{
			Path:        "./data/synexa.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "synexa-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 60,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 15,
			},
		},
		Discovery: DiscoveryConfig{
			TimeoutMS:      5000,
			MDNSTimeoutMS:  3000,
			ProbeTimeoutMS: maxProbeTimeoutMS,
			Subnets:        []string{"192.168.1", "192.168.0", "10.0.0", "192.168.2"},
			HostsPerSubnet: 25,
			MaxHosts:       100,
			Ports:          []int{80, 8080, 8081, 8888, 5000, 3000, 8000},
			Concurrency:    20,
			CredentialProviders: []string{
				"philips-hue", "tuya", "google-nest", "smartthings",
			},
		},
		Automation: AutomationConfig{
			StepTimeout:     30,
			EnforceDelays:   false,
			LogHistoryLimit: 20,
		},
		Services: ServicesConfig{
			Traffic: TrafficConfig{Timeout: 10},
			News:    NewsConfig{Timeout: 10},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SYNEXA_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("SYNEXA_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SYNEXA_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SYNEXA_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("SYNEXA_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("SYNEXA_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("SYNEXA_TRAFFIC_URL"); v != "" {
		cfg.Services.Traffic.URL = v
	}
	if v := os.Getenv("SYNEXA_NEWS_URL"); v != "" {
		cfg.Services.News.URL = v
	}
	if v := os.Getenv("SYNEXA_NEWS_API_KEY"); v != "" {
		cfg.Services.News.APIKey = v
	}

	if v := os.Getenv("SYNEXA_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Discovery.TimeoutMS <= 0 {
		errs = append(errs, "discovery.timeout_ms must be positive")
	}
	if c.Discovery.ProbeTimeoutMS <= 0 || c.Discovery.ProbeTimeoutMS > maxProbeTimeoutMS {
		errs = append(errs, fmt.Sprintf("discovery.probe_timeout_ms must be 1-%d", maxProbeTimeoutMS))
	}
	if c.Discovery.Concurrency <= 0 {
		errs = append(errs, "discovery.concurrency must be positive")
	}
	for _, p := range c.Discovery.Ports {
		if p < 1 || p > 65535 {
			errs = append(errs, fmt.Sprintf("discovery.ports contains invalid port %d", p))
			break
		}
	}

	if c.Automation.StepTimeout <= 0 {
		errs = append(errs, "automation.step_timeout must be positive")
	}

	// Tokens are verified with this secret; a short one makes forging trivial.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set SYNEXA_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// DiscoveryTimeout returns the default discovery budget.
func (c *Config) DiscoveryTimeout() time.Duration {
	return time.Duration(c.Discovery.TimeoutMS) * time.Millisecond
}

// StepTimeout returns the per-step collaborator timeout.
func (c *Config) StepTimeout() time.Duration {
	return time.Duration(c.Automation.StepTimeout) * time.Second
}
