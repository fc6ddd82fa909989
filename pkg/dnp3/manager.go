// Package dnp3 assembles stations from configuration and manages their
// lifetime.
package dnp3

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"avaneesh/dnp3-cache/pkg/config"
	"avaneesh/dnp3-cache/pkg/internal/logger"
)

// Manager is the root object of a running daemon
type Manager struct {
	stations map[string]*Station
	mu       sync.RWMutex
	logger   logger.Logger
}

// NewManager creates a manager logging through the default logger
func NewManager() *Manager {
	return NewManagerWithLogger(logger.GetDefault())
}

// NewManagerWithLogger creates a manager with a custom logger
func NewManagerWithLogger(log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &Manager{
		stations: make(map[string]*Station),
		logger:   log,
	}
}

// AddStation builds and starts the station described by cfg
func (m *Manager) AddStation(cfg *config.Config) (*Station, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.stations[cfg.Station.ID]; exists {
		return nil, fmt.Errorf("station %s already exists", cfg.Station.ID)
	}

	s, err := newStation(cfg, m.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create station %s: %w", cfg.Station.ID, err)
	}

	m.stations[s.ID] = s
	m.logger.Info("Manager: Added station %s", s.ID)
	return s, nil
}

// RemoveStation stops and removes a station
func (m *Manager) RemoveStation(ctx context.Context, id string) error {
	m.mu.Lock()
	s, exists := m.stations[id]
	delete(m.stations, id)
	m.mu.Unlock()

	if !exists {
		return fmt.Errorf("station %s not found", id)
	}

	m.logger.Info("Manager: Removed station %s", id)
	return s.Close(ctx)
}

// GetStation returns a station by ID
func (m *Manager) GetStation(id string) (*Station, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, exists := m.stations[id]
	return s, exists
}

// StationCount returns the number of stations
func (m *Manager) StationCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.stations)
}

// Shutdown stops every station
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	stations := m.stations
	m.stations = make(map[string]*Station)
	m.mu.Unlock()

	m.logger.Info("Manager: Shutting down")

	var errs []error
	for id, s := range stations {
		if err := s.Close(ctx); err != nil {
			m.logger.Error("Error closing station %s: %v", id, err)
			errs = append(errs, err)
		}
	}

	m.logger.Info("Manager: Shutdown complete")
	return errors.Join(errs...)
}
