package master

import (
	"time"

	"avaneesh/dnp3-cache/pkg/types"
)

// Defaults applied by DefaultConfig
const (
	DefaultMaxAge     = 2 * time.Second
	DefaultMaxRetries = 2
	DefaultRetryDelay = 200 * time.Millisecond
)

// OperateMode selects how control commands are sent
type OperateMode int

const (
	OperateModeDirect OperateMode = iota
	OperateModeSelectBeforeOperate
)

// String returns string representation of OperateMode
func (m OperateMode) String() string {
	switch m {
	case OperateModeDirect:
		return "DirectOperate"
	case OperateModeSelectBeforeOperate:
		return "SelectBeforeOperate"
	default:
		return "Unknown"
	}
}

// Config configures a coordinator for one remote station
type Config struct {
	// Identity
	ID string

	// Staleness and retry
	MaxAge     time.Duration // cached values younger than this are served without polling
	MaxRetries int           // re-polls after the first one before giving up
	RetryDelay time.Duration // wait per attempt

	// Point types read by ScanAll, Snapshot and the periodic scan
	DefaultPointTypes []types.PointTypeID
	ScanPeriod        time.Duration // zero disables the periodic scan

	// Commands
	OperateMode OperateMode
}

// DefaultPointTypes returns analog input, binary input, analog output status
// and binary output status in their most detailed variations.
func DefaultPointTypes() []types.PointTypeID {
	return []types.PointTypeID{
		{Group: 30, Variation: 6},
		{Group: 1, Variation: 2},
		{Group: 40, Variation: 4},
		{Group: 10, Variation: 2},
	}
}

// DefaultConfig returns a config with the standard staleness and retry settings
func DefaultConfig() Config {
	return Config{
		ID:                "master",
		MaxAge:            DefaultMaxAge,
		MaxRetries:        DefaultMaxRetries,
		RetryDelay:        DefaultRetryDelay,
		DefaultPointTypes: DefaultPointTypes(),
		OperateMode:       OperateModeDirect,
	}
}

// PollPolicy bounds one read
type PollPolicy struct {
	MaxAge     time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// Policy returns the configured read policy
func (c Config) Policy() PollPolicy {
	return PollPolicy{
		MaxAge:     c.MaxAge,
		MaxRetries: c.MaxRetries,
		RetryDelay: c.RetryDelay,
	}
}

// MaxLatency is the longest a read under p waits for data
func (p PollPolicy) MaxLatency() time.Duration {
	return time.Duration(p.MaxRetries) * p.RetryDelay
}

func (c Config) normalized() Config {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if len(c.DefaultPointTypes) == 0 {
		c.DefaultPointTypes = DefaultPointTypes()
	}
	return c
}
