package dnp3

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avaneesh/dnp3-cache/pkg/config"
	"avaneesh/dnp3-cache/pkg/types"
)

func testConfig(t *testing.T, id string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(`
station:
  id: ` + id + `
polling:
  retry_delay_ms: 50
history:
  path: ":memory:"
simulator:
  latency_ms: 1
  points:
    - {group: 30, variation: 6, index: 0, value: 4.5}
    - {group: 10, variation: 2, index: 1, value: false}
`))
	require.NoError(t, err)
	return cfg
}

func TestManager_Stations(t *testing.T) {
	m := NewManagerWithLogger(nil)
	ctx := context.Background()

	s, err := m.AddStation(testConfig(t, "feeder1"))
	require.NoError(t, err)
	assert.Equal(t, 1, m.StationCount())

	_, err = m.AddStation(testConfig(t, "feeder1"))
	assert.Error(t, err)

	got, ok := m.GetStation("feeder1")
	require.True(t, ok)
	assert.Same(t, s, got)

	v, err := s.Coordinator.GetByPointTypeAndIndex(ctx, 30, 6, 0)
	require.NoError(t, err)
	assert.Equal(t, types.FloatValue(4.5), v)

	// The recorder observes the station's store
	require.NotNil(t, s.History())
	require.Eventually(t, func() bool { return s.History().Written() == 1 }, time.Second, time.Millisecond)
	latest, err := s.History().Latest(ctx, types.PointTypeID{Group: 30, Variation: 6})
	require.NoError(t, err)
	assert.Equal(t, types.FloatValue(4.5), latest.Get(0))

	require.NoError(t, m.RemoveStation(ctx, "feeder1"))
	assert.Error(t, m.RemoveStation(ctx, "feeder1"))
	assert.Equal(t, 0, m.StationCount())
}

func TestStation_ScanAndHistoryRoutes(t *testing.T) {
	cfg := testConfig(t, "scanned")
	cfg.Polling.ScanPeriodMs = 20

	m := NewManagerWithLogger(nil)
	s, err := m.AddStation(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { m.Shutdown(context.Background()) })

	// The scan fills the cache without any read
	require.Eventually(t, func() bool {
		snap, _ := s.Coordinator.Peek(30, 6)
		return snap.Populated()
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return s.History().Written() > 0 }, time.Second, time.Millisecond)

	w := httptest.NewRecorder()
	s.API.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/pointtypes/30/6/0/history", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "4.5")
}

func TestManager_Shutdown(t *testing.T) {
	m := NewManagerWithLogger(nil)

	_, err := m.AddStation(testConfig(t, "a"))
	require.NoError(t, err)
	_, err = m.AddStation(testConfig(t, "b"))
	require.NoError(t, err)

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, 0, m.StationCount())
}

func TestParseLogLevel(t *testing.T) {
	level, err := ParseLogLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, LevelWarn, level)

	_, err = ParseLogLevel("chatty")
	assert.Error(t, err)
}
