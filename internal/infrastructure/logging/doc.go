// Package logging provides structured logging for Synexa.
//
// It wraps log/slog so every entry carries the same default fields
// (service, version) and honours the level and format from config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Component("discovery").Info("scan complete", "devices", 3)
//
// Never log secrets, tokens, device credentials, or API keys.
package logging
