package dnp3

import (
	"context"
	"errors"
	"fmt"

	"avaneesh/dnp3-cache/pkg/api"
	"avaneesh/dnp3-cache/pkg/cache"
	"avaneesh/dnp3-cache/pkg/config"
	"avaneesh/dnp3-cache/pkg/history"
	"avaneesh/dnp3-cache/pkg/internal/logger"
	"avaneesh/dnp3-cache/pkg/master"
	"avaneesh/dnp3-cache/pkg/publish"
	"avaneesh/dnp3-cache/pkg/simulator"
)

// Station is one remote station: its cache, the coordinator reading it,
// the engine delivering to it and the optional sinks observing it.
type Station struct {
	ID          string
	Store       *cache.Store
	Coordinator *master.Coordinator
	Outstation  *simulator.Outstation
	API         *api.Server

	history   *history.Recorder
	publisher *publish.Publisher
	logger    logger.Logger
}

func newStation(cfg *config.Config, log logger.Logger) (*Station, error) {
	s := &Station{
		ID:     cfg.Station.ID,
		Store:  cache.New(),
		logger: log,
	}

	if cfg.History.Path != "" {
		rec, err := history.Open(cfg.History.Path, cfg.History.QueueSize, log)
		if err != nil {
			return nil, err
		}
		s.history = rec
		s.Store.Subscribe(rec)
	}

	if cfg.MQTT.Broker != "" {
		pub, err := publish.Connect(publish.Config{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			Station:     cfg.Station.ID,
		}, log)
		if err != nil {
			s.closeSinks()
			return nil, err
		}
		s.publisher = pub
		s.Store.Subscribe(pub)
	}

	s.Outstation = simulator.New(cfg.SimulatorConfig(), log)
	if err := cfg.Simulator.Seed(s.Outstation); err != nil {
		s.closeSinks()
		return nil, fmt.Errorf("station %s: seed outstation: %w", s.ID, err)
	}

	s.Coordinator = master.New(cfg.MasterConfig(), s.Outstation, s.Store, log)
	if err := s.Outstation.Enable(s.Coordinator); err != nil {
		s.closeSinks()
		return nil, err
	}
	s.Coordinator.Start()

	var opts []api.Option
	if s.history != nil {
		opts = append(opts, api.WithHistory(s.history))
	}
	s.API = api.NewServer(s.Coordinator, log, opts...)
	return s, nil
}

// History returns the recorder, or nil when history is disabled
func (s *Station) History() *history.Recorder {
	return s.history
}

// Close stops the API, the engine and the sinks
func (s *Station) Close(ctx context.Context) error {
	var errs []error
	errs = append(errs, s.API.Shutdown(ctx))
	s.Coordinator.Stop()
	errs = append(errs, s.Outstation.Shutdown())
	errs = append(errs, s.closeSinks())
	return errors.Join(errs...)
}

func (s *Station) closeSinks() error {
	var err error
	if s.publisher != nil {
		s.publisher.Close()
	}
	if s.history != nil {
		err = s.history.Close()
	}
	return err
}
