// Package config handles loading and validating Synexa configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (SYNEXA_*)
//   - Validation of required fields
//   - Default value handling, including discovery and automation tuning
//
// Security Considerations:
//   - Sensitive values (passwords, tokens, API keys) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Discovery.Subnets)
package config
