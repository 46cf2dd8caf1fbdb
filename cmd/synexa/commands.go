package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/undarez/synexa-sub001/internal/automation"
	"github.com/undarez/synexa-sub001/internal/discovery"
	"github.com/undarez/synexa-sub001/internal/infrastructure/mqtt"
)

// discoverOptions holds flags for the discover command.
type discoverOptions struct {
	*rootOptions
	Timeout      time.Duration
	Type         string
	Manufacturer string
}

func newDiscoverCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &discoverOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Run one WiFi discovery and print the devices found",
		Long: `Listen for mDNS advertisements and probe the configured subnets, then
print the merged device list as JSON.

Example:
  synexa discover --timeout 3s
  synexa discover --type LIGHT --manufacturer philips`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDiscover(cmd, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "overall discovery budget (default discovery.timeout_ms)")
	cmd.Flags().StringVar(&opts.Type, "type", "", "only keep devices of this type (LIGHT, SENSOR, ...)")
	cmd.Flags().StringVar(&opts.Manufacturer, "manufacturer", "", "only keep devices whose manufacturer or provider matches")

	return cmd
}

func runDiscover(cmd *cobra.Command, opts *discoverOptions) error {
	filter := discovery.Filter{
		Type:         discovery.DeviceType(opts.Type),
		Manufacturer: opts.Manufacturer,
	}
	if filter.Type != "" && !discovery.IsValidDeviceType(filter.Type) {
		return fmt.Errorf("unknown device type %q", opts.Type)
	}
	if opts.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}

	cfg, log, err := loadConfig(getConfigPath(opts.ConfigPath), cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	devices := newNetworkProbe(cfg, log).Discover(cmd.Context(), opts.Timeout, filter)
	return printJSON(cmd, map[string]any{"devices": devices, "count": len(devices)})
}

// runOptions holds flags for the run command.
type runOptions struct {
	*rootOptions
	UserID   string
	DryRun   bool
	Metadata string
}

func newRunCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &runOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <routine-id>",
		Short: "Execute a routine once and print its log",
		Long: `Execute a stored routine outside the API server and print the run log
as JSON. Device commands are published on MQTT when the broker is enabled.

Example:
  synexa run 3f2a9c --user user-1
  synexa run 3f2a9c --user user-1 --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoutine(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.UserID, "user", "", "id of the user the routine belongs to (required)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report what each step would do without side effects")
	cmd.Flags().StringVar(&opts.Metadata, "metadata", "", "JSON object stored with the run log")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runRoutine(cmd *cobra.Command, opts *runOptions, routineID string) error {
	var metadata json.RawMessage
	if opts.Metadata != "" {
		if !json.Valid([]byte(opts.Metadata)) {
			return fmt.Errorf("--metadata is not valid JSON")
		}
		metadata = json.RawMessage(opts.Metadata)
	}

	ctx := cmd.Context()
	cfg, log, err := loadConfig(getConfigPath(opts.ConfigPath), cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled && !opts.DryRun {
		mqttClient, err = connectMQTT(cfg, log)
		if err != nil {
			return err
		}
		defer mqttClient.Close()
	}

	auto, err := buildAutomation(ctx, cfg, db, mqttClient, log)
	if err != nil {
		return err
	}
	if mqttClient != nil {
		auto.engine.SetBroadcaster(&eventFanout{mqtt: mqttClient, log: log})
	}

	runLog, err := auto.engine.ExecuteRoutine(ctx, routineID, automation.ExecutionContext{
		UserID:      opts.UserID,
		TriggerType: automation.TriggerManual,
	}, automation.ExecuteOptions{DryRun: opts.DryRun, Metadata: metadata})
	if err != nil && runLog == nil {
		return fmt.Errorf("executing routine: %w", err)
	}
	if printErr := printJSON(cmd, runLog); printErr != nil {
		return printErr
	}
	if err != nil {
		return fmt.Errorf("executing routine: %w", err)
	}
	return nil
}
