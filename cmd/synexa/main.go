// Synexa Core - home automation hub
//
// This is the main entry point for the Synexa Core application. It serves
// the REST/WebSocket API for device discovery and routine automation, and
// offers one-shot commands for discovering devices and running a routine
// from a shell.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/undarez/synexa-sub001/internal/api"
	"github.com/undarez/synexa-sub001/internal/automation"
	"github.com/undarez/synexa-sub001/internal/discovery"
	"github.com/undarez/synexa-sub001/internal/infrastructure/config"
	"github.com/undarez/synexa-sub001/internal/infrastructure/database"
	"github.com/undarez/synexa-sub001/internal/infrastructure/influxdb"
	"github.com/undarez/synexa-sub001/internal/infrastructure/logging"
	"github.com/undarez/synexa-sub001/internal/infrastructure/mqtt"
	"github.com/undarez/synexa-sub001/internal/infrastructure/news"
	"github.com/undarez/synexa-sub001/internal/infrastructure/traffic"
	"github.com/undarez/synexa-sub001/internal/profile"
	"github.com/undarez/synexa-sub001/internal/task"
	_ "github.com/undarez/synexa-sub001/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// configEnvVar overrides the default configuration path.
const configEnvVar = "SYNEXA_CONFIG"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// rootOptions holds flags shared by every command.
type rootOptions struct {
	ConfigPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "synexa",
		Short:         "Synexa Core - home automation hub",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to config file (default $"+configEnvVar+" or "+defaultConfigPath+")")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newDiscoverCommand(opts))
	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), getConfigPath(opts.ConfigPath))
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "synexa %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

// run is the server lifecycle, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Synexa Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, log, err := loadConfig(configPath, nil)
	if err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = connectMQTT(cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	} else {
		log.Info("MQTT disabled, device commands will fail")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// WebSocket hub, shared by the engine and the API server
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	auto, err := buildAutomation(ctx, cfg, db, mqttClient, log)
	if err != nil {
		return err
	}
	auto.engine.SetBroadcaster(&eventFanout{hub: hub, mqtt: mqttClient, log: log})
	if influxClient != nil {
		auto.engine.SetRecorder(influxClient)
	}

	network := newNetworkProbe(cfg, log)
	if influxClient != nil {
		network.SetRecorder(influxClient)
	}
	connector := discovery.NewConnector(cfg.Discovery.CredentialProviders)
	connector.SetLogger(log)

	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Automation:  cfg.Automation,
		Logger:      log,
		DB:          db.DB,
		MQTT:        mqttClient,
		Network:     network,
		Connector:   connector,
		Routines:    auto.registry,
		Engine:      auto.engine,
		RoutineRepo: auto.repo,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API server, InfluxDB, MQTT, database.

	log.Info("Synexa Core stopped")
	return nil
}

// getConfigPath returns the configuration file path: the --config flag,
// then SYNEXA_CONFIG, then the default.
func getConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv(configEnvVar); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadConfig reads the config file and returns a logger built from it.
// A non-nil logTo overrides logging.output; one-shot commands pass stderr
// so their JSON result stays alone on stdout.
func loadConfig(path string, logTo io.Writer) (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(cfg.Logging, version)
	if logTo != nil {
		log = logging.NewWithWriter(cfg.Logging, version, logTo)
	}
	log.Info("configuration loaded",
		"path", path,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)
	return cfg, log, nil
}

// openDatabase opens the SQLite database and applies pending migrations.
func openDatabase(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	log.Info("database connected", "path", cfg.Database.Path)

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database migrations complete")
	return db, nil
}

func connectMQTT(cfg *config.Config, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log)
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	return client, nil
}

// automationStack is the wired routine registry, repository and engine.
type automationStack struct {
	repo     *automation.SQLiteRepository
	registry *automation.Registry
	engine   *automation.Engine
}

// buildAutomation wires the routine engine over db. mqttClient may be nil,
// in which case device steps fail with a transport error.
func buildAutomation(ctx context.Context, cfg *config.Config, db *database.DB, mqttClient *mqtt.Client, log *logging.Logger) (*automationStack, error) {
	repo := automation.NewSQLiteRepository(db.DB)
	registry := automation.NewRegistry(repo)
	registry.SetLogger(log)
	if err := registry.RefreshCache(ctx); err != nil {
		return nil, fmt.Errorf("loading routine registry: %w", err)
	}
	log.Info("routine registry initialised", "routines", registry.GetRoutineCount())

	collab := automation.Collaborators{
		Tasks:    task.NewSQLiteStore(db.DB),
		Profiles: profile.NewSQLiteRepository(db.DB),
	}
	if mqttClient != nil {
		collab.Devices = automation.NewMQTTTransport(mqttClient)
	}
	if cfg.Services.Traffic.URL != "" {
		collab.Traffic = traffic.New(cfg.Services.Traffic)
	} else {
		log.Info("traffic service not configured")
	}
	if cfg.Services.News.URL != "" {
		collab.News = news.New(cfg.Services.News)
	} else {
		log.Info("news service not configured")
	}

	executor := automation.NewStepExecutor(collab, cfg.StepTimeout())
	executor.SetLogger(log)

	engine := automation.NewEngine(registry, executor, repo, log)
	if cfg.Automation.EnforceDelays {
		engine.SetScheduler(automation.SleepScheduler{})
		log.Info("step delays enforced")
	}

	return &automationStack{repo: repo, registry: registry, engine: engine}, nil
}

func newNetworkProbe(cfg *config.Config, log *logging.Logger) *discovery.NetworkProbe {
	probe := discovery.NewNetworkProbe(cfg.Discovery, discovery.ZeroconfBrowser{})
	probe.SetLogger(log)
	return probe
}

// eventFanout delivers engine events to WebSocket clients and mirrors them
// on synexa/event/{type} when the broker is connected. Either side may be nil.
type eventFanout struct {
	hub  *api.Hub
	mqtt *mqtt.Client
	log  *logging.Logger
}

// Broadcast implements automation.Broadcaster.
func (f *eventFanout) Broadcast(eventType string, payload any) {
	if f.hub != nil {
		f.hub.Broadcast(eventType, payload)
	}

	if f.mqtt == nil || !f.mqtt.IsConnected() {
		return
	}
	if err := f.mqtt.PublishJSON(mqtt.Topics{}.Event(eventType), payload, 1, false); err != nil {
		f.log.Warn("failed to mirror event to MQTT", "event", eventType, "error", err)
	}
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient and influxClient may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// printJSON writes v as indented JSON to the command's output.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
