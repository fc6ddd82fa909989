// Package config loads the daemon's YAML configuration
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"avaneesh/dnp3-cache/pkg/types"
)

type Config struct {
	Station   StationConfig   `yaml:"station"`
	Polling   PollingConfig   `yaml:"polling"`
	Command   CommandConfig   `yaml:"command"`
	HTTP      HTTPConfig      `yaml:"http"`
	History   HistoryConfig   `yaml:"history"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Simulator SimulatorConfig `yaml:"simulator"`
	Log       LogConfig       `yaml:"log"`
}

// ---- STATION ----

type StationConfig struct {
	ID string `yaml:"id"`
}

// ---- POLLING ----

type PollingConfig struct {
	StaleIfLongerThanMs int           `yaml:"stale_if_longer_than_ms"`
	NumRetries          int           `yaml:"num_retries"`
	RetryDelayMs        int           `yaml:"retry_delay_ms"`
	DefaultPointTypes   []PointTypeID `yaml:"default_point_types"`
	ScanPeriodMs        int           `yaml:"scan_period_ms"` // 0 disables the periodic scan
}

type PointTypeID struct {
	Group     uint16 `yaml:"group"`
	Variation uint16 `yaml:"variation"`
}

// MaxAge returns the staleness threshold
func (p PollingConfig) MaxAge() time.Duration {
	return time.Duration(p.StaleIfLongerThanMs) * time.Millisecond
}

// ScanPeriod returns the interval of the periodic scan
func (p PollingConfig) ScanPeriod() time.Duration {
	return time.Duration(p.ScanPeriodMs) * time.Millisecond
}

// RetryDelay returns the wait per poll attempt
func (p PollingConfig) RetryDelay() time.Duration {
	return time.Duration(p.RetryDelayMs) * time.Millisecond
}

// ---- COMMAND ----

const (
	CommandModeDirect              = "direct"
	CommandModeSelectBeforeOperate = "select_before_operate"
)

type CommandConfig struct {
	Mode string `yaml:"mode"` // direct | select_before_operate
}

// ---- HTTP ----

type HTTPConfig struct {
	Listen      string `yaml:"listen"`
	HTTP3Listen string `yaml:"http3_listen"` // optional; self-signed without cert_file/key_file
	CertFile    string `yaml:"cert_file"`
	KeyFile     string `yaml:"key_file"`
}

// ---- HISTORY ----

type HistoryConfig struct {
	Path      string `yaml:"path"` // sqlite file; empty disables
	QueueSize int    `yaml:"queue_size"`
}

// ---- MQTT ----

type MQTTConfig struct {
	Broker      string `yaml:"broker"` // empty disables
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// ---- SIMULATOR ----

type SimulatorConfig struct {
	LatencyMs           int           `yaml:"latency_ms"`
	DropFirstPolls      int           `yaml:"drop_first_polls"`
	UnsolicitedPeriodMs int           `yaml:"unsolicited_period_ms"`
	UnsolicitedTypes    []PointTypeID `yaml:"unsolicited_point_types"`
	Points              []PointConfig `yaml:"points"`
}

// Latency returns the simulated response delay
func (s SimulatorConfig) Latency() time.Duration {
	return time.Duration(s.LatencyMs) * time.Millisecond
}

// UnsolicitedPeriod returns the unsolicited report period; 0 disables
func (s SimulatorConfig) UnsolicitedPeriod() time.Duration {
	return time.Duration(s.UnsolicitedPeriodMs) * time.Millisecond
}

// PointConfig is one initial point value of the simulated outstation
type PointConfig struct {
	Group     uint16     `yaml:"group"`
	Variation uint16     `yaml:"variation"`
	Index     uint16     `yaml:"index"`
	Value     PointValue `yaml:"value"`
}

// PointValue decodes a YAML scalar into a types.PointValue by its tag
type PointValue struct {
	types.PointValue
}

func (v *PointValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: point value must be a scalar", node.Line)
	}

	switch node.ShortTag() {
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return err
		}
		v.PointValue = types.BoolValue(b)
	case "!!int":
		var i int64
		if err := node.Decode(&i); err != nil {
			return err
		}
		v.PointValue = types.IntValue(i)
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return err
		}
		v.PointValue = types.FloatValue(f)
	case "!!null":
		v.PointValue = types.Absent()
	default:
		return fmt.Errorf("line %d: point value %q is not a number or bool", node.Line, node.Value)
	}
	return nil
}

// ---- LOG ----

type LogConfig struct {
	Level string `yaml:"level"` // debug | info | warn | error
}

// Default returns the configuration used for any key a file leaves out
func Default() Config {
	return Config{
		Station: StationConfig{ID: "master1"},
		Polling: PollingConfig{
			StaleIfLongerThanMs: 2000,
			NumRetries:          2,
			RetryDelayMs:        200,
			DefaultPointTypes: []PointTypeID{
				{Group: 30, Variation: 6},
				{Group: 1, Variation: 2},
				{Group: 40, Variation: 4},
				{Group: 10, Variation: 2},
			},
		},
		Command: CommandConfig{Mode: CommandModeDirect},
		HTTP:    HTTPConfig{Listen: ":8080"},
		History: HistoryConfig{QueueSize: 1024},
		MQTT: MQTTConfig{
			ClientID:    "dnp3cache",
			TopicPrefix: "dnp3",
		},
		Simulator: SimulatorConfig{LatencyMs: 50},
		Log:       LogConfig{Level: "info"},
	}
}

// Load reads, decodes and validates a configuration file
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes and validates a configuration document
func Parse(b []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
