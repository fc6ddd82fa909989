package config

import (
	"avaneesh/dnp3-cache/pkg/internal/logger"
	"avaneesh/dnp3-cache/pkg/master"
	"avaneesh/dnp3-cache/pkg/simulator"
	"avaneesh/dnp3-cache/pkg/types"
)

// MasterConfig returns the coordinator settings
func (c *Config) MasterConfig() master.Config {
	mode := master.OperateModeDirect
	if c.Command.Mode == CommandModeSelectBeforeOperate {
		mode = master.OperateModeSelectBeforeOperate
	}

	return master.Config{
		ID:                c.Station.ID,
		MaxAge:            c.Polling.MaxAge(),
		MaxRetries:        c.Polling.NumRetries,
		RetryDelay:        c.Polling.RetryDelay(),
		DefaultPointTypes: pointTypes(c.Polling.DefaultPointTypes),
		ScanPeriod:        c.Polling.ScanPeriod(),
		OperateMode:       mode,
	}
}

// SimulatorConfig returns the simulated outstation's settings. Unsolicited
// reports cover the default point types unless listed explicitly.
func (c *Config) SimulatorConfig() simulator.Config {
	unsol := c.Simulator.UnsolicitedTypes
	if len(unsol) == 0 {
		unsol = c.Polling.DefaultPointTypes
	}

	sc := simulator.DefaultConfig()
	sc.ID = c.Station.ID + "-outstation"
	sc.Latency = c.Simulator.Latency()
	sc.DropFirstPolls = c.Simulator.DropFirstPolls
	sc.UnsolicitedPeriod = c.Simulator.UnsolicitedPeriod()
	sc.UnsolicitedPointTypes = pointTypes(unsol)
	return sc
}

// LogLevel returns the configured level; Validate has already checked it
func (c *Config) LogLevel() logger.Level {
	level, _ := logger.ParseLevel(c.Log.Level)
	return level
}

// Seed writes the configured initial points into an outstation
func (s SimulatorConfig) Seed(o *simulator.Outstation) error {
	for _, pt := range s.Points {
		gv, err := types.ResolveGroupVariation(pt.Group, pt.Variation)
		if err != nil {
			return err
		}
		if err := o.Update(gv, pt.Index, pt.Value.PointValue); err != nil {
			return err
		}
	}
	return nil
}

func pointTypes(in []PointTypeID) []types.PointTypeID {
	out := make([]types.PointTypeID, 0, len(in))
	for _, id := range in {
		out = append(out, types.PointTypeID{Group: id.Group, Variation: id.Variation})
	}
	return out
}
