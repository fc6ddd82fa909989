package config

import (
	"fmt"

	"avaneesh/dnp3-cache/pkg/internal/logger"
	"avaneesh/dnp3-cache/pkg/types"
)

// Validate checks configuration correctness. It does not mutate cfg.
func Validate(cfg *Config) error {
	if cfg.Station.ID == "" {
		return fmt.Errorf("station: id must not be empty")
	}

	// ---- polling ----
	p := cfg.Polling
	if p.StaleIfLongerThanMs < 0 {
		return fmt.Errorf("polling: stale_if_longer_than_ms must not be negative, got %d", p.StaleIfLongerThanMs)
	}
	if p.NumRetries < 0 {
		return fmt.Errorf("polling: num_retries must not be negative, got %d", p.NumRetries)
	}
	if p.RetryDelayMs <= 0 {
		return fmt.Errorf("polling: retry_delay_ms must be positive, got %d", p.RetryDelayMs)
	}
	if p.ScanPeriodMs < 0 {
		return fmt.Errorf("polling: scan_period_ms must not be negative, got %d", p.ScanPeriodMs)
	}
	for i, id := range p.DefaultPointTypes {
		if _, err := types.ResolveGroupVariation(id.Group, id.Variation); err != nil {
			return fmt.Errorf("polling: default_point_types[%d]: %w", i, err)
		}
	}

	// ---- command ----
	switch cfg.Command.Mode {
	case CommandModeDirect, CommandModeSelectBeforeOperate:
	default:
		return fmt.Errorf("command: mode must be %q or %q, got %q",
			CommandModeDirect, CommandModeSelectBeforeOperate, cfg.Command.Mode)
	}

	// ---- http ----
	if (cfg.HTTP.CertFile == "") != (cfg.HTTP.KeyFile == "") {
		return fmt.Errorf("http: cert_file and key_file must be set together")
	}

	// ---- history ----
	if cfg.History.Path != "" && cfg.History.QueueSize <= 0 {
		return fmt.Errorf("history: queue_size must be positive, got %d", cfg.History.QueueSize)
	}

	// ---- mqtt ----
	if cfg.MQTT.Broker != "" && cfg.MQTT.TopicPrefix == "" {
		return fmt.Errorf("mqtt: topic_prefix must not be empty when broker is set")
	}

	// ---- simulator ----
	s := cfg.Simulator
	if s.LatencyMs < 0 || s.DropFirstPolls < 0 || s.UnsolicitedPeriodMs < 0 {
		return fmt.Errorf("simulator: latency_ms, drop_first_polls and unsolicited_period_ms must not be negative")
	}
	for i, id := range s.UnsolicitedTypes {
		if _, err := types.ResolveGroupVariation(id.Group, id.Variation); err != nil {
			return fmt.Errorf("simulator: unsolicited_point_types[%d]: %w", i, err)
		}
	}
	for i, pt := range s.Points {
		if _, err := types.ResolveGroupVariation(pt.Group, pt.Variation); err != nil {
			return fmt.Errorf("simulator: points[%d]: %w", i, err)
		}
		if pt.Value.IsAbsent() {
			return fmt.Errorf("simulator: points[%d]: value is required", i)
		}
	}

	// ---- log ----
	if _, err := logger.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}

	return nil
}
