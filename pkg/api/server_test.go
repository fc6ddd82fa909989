package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avaneesh/dnp3-cache/pkg/history"
	"avaneesh/dnp3-cache/pkg/master"
	"avaneesh/dnp3-cache/pkg/simulator"
	"avaneesh/dnp3-cache/pkg/types"
)

type testEnv struct {
	server      *httptest.Server
	outstation  *simulator.Outstation
	coordinator *master.Coordinator
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	sc := simulator.DefaultConfig()
	sc.Latency = 2 * time.Millisecond
	sc.TickInterval = time.Millisecond
	o := simulator.New(sc, nil)
	t.Cleanup(func() { o.Shutdown() })

	require.NoError(t, o.Update(types.Group30Var6, 0, types.FloatValue(1.5)))
	require.NoError(t, o.Update(types.Group1Var2, 0, types.BoolValue(true)))
	require.NoError(t, o.Update(types.Group40Var4, 0, types.FloatValue(0)))
	require.NoError(t, o.Update(types.Group10Var2, 0, types.BoolValue(false)))

	mc := master.DefaultConfig()
	mc.RetryDelay = 50 * time.Millisecond
	c := master.New(mc, o, nil, nil)
	require.NoError(t, o.Enable(c))

	srv := httptest.NewServer(NewServer(c, nil, opts...).Handler())
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, outstation: o, coordinator: c}
}

func (e *testEnv) get(t *testing.T, path string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (e *testEnv) post(t *testing.T, path, body string, out interface{}) int {
	t.Helper()
	resp, err := http.Post(e.server.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestGetPointType(t *testing.T) {
	env := newTestEnv(t)

	var resp pointTypeResponse
	status := env.get(t, "/pointtypes/30/6", &resp)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Group30Var6", resp.Name)
	assert.Equal(t, types.FloatValue(1.5), resp.Values.Get(0))
	assert.Empty(t, resp.Error)
}

func TestGetPoint(t *testing.T) {
	env := newTestEnv(t)

	var resp pointResponse
	assert.Equal(t, http.StatusOK, env.get(t, "/pointtypes/1/2/0", &resp))
	assert.Equal(t, types.BoolValue(true), resp.Value)

	resp = pointResponse{}
	assert.Equal(t, http.StatusOK, env.get(t, "/pointtypes/1/2/9", &resp))
	assert.True(t, resp.Value.IsAbsent())
}

func TestGet_Errors(t *testing.T) {
	env := newTestEnv(t)

	t.Run("Unknown point type", func(t *testing.T) {
		var resp pointTypeResponse
		assert.Equal(t, http.StatusBadRequest, env.get(t, "/pointtypes/999/1", &resp))
		assert.Contains(t, resp.Error, "unknown point type")
	})

	t.Run("Index out of range", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, env.get(t, "/pointtypes/30/6/70000", nil))
	})

	t.Run("Unknown route", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, env.get(t, "/points", nil))
	})

	t.Run("Poll timeout", func(t *testing.T) {
		env.outstation.SetOnline(false)
		defer env.outstation.SetOnline(true)

		var resp pointTypeResponse
		assert.Equal(t, http.StatusGatewayTimeout, env.get(t, "/pointtypes/40/4", &resp))
		assert.NotNil(t, resp.Values)
		assert.Empty(t, resp.Values)
		assert.NotEmpty(t, resp.Error)
	})
}

func TestSetPoint(t *testing.T) {
	env := newTestEnv(t)

	t.Run("Accepted", func(t *testing.T) {
		var resp commandResponse
		status := env.post(t, "/pointtypes/40/4/0", `{"value": 3.25}`, &resp)
		assert.Equal(t, http.StatusAccepted, status)
		assert.Equal(t, "AnalogOutputDouble64", resp.Command)
		assert.Equal(t, types.FloatValue(3.25), resp.Value)

		var point pointResponse
		env.get(t, "/pointtypes/40/4/0", &point)
		assert.Equal(t, types.FloatValue(3.25), point.Value)
	})

	t.Run("Wait for completion", func(t *testing.T) {
		var resp commandResponse
		status := env.post(t, "/pointtypes/10/2/0?wait=true", `{"value": true}`, &resp)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "Success", resp.Status)
	})

	t.Run("Outstation rejects", func(t *testing.T) {
		var resp commandResponse
		status := env.post(t, "/pointtypes/10/2/5?wait=true", `{"value": true}`, &resp)
		assert.Equal(t, http.StatusBadGateway, status)
		assert.Equal(t, "NotSupported", resp.Status)
	})

	tests := []struct {
		name string
		path string
		body string
	}{
		{"Input point", "/pointtypes/30/6/0", `{"value": 1}`},
		{"Wrong value type", "/pointtypes/10/2/0", `{"value": 1}`},
		{"Missing value", "/pointtypes/40/4/0", `{}`},
		{"Malformed body", "/pointtypes/40/4/0", `{"value":`},
		{"Unknown point type", "/pointtypes/41/9/0", `{"value": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp errorResponse
			assert.Equal(t, http.StatusBadRequest, env.post(t, tt.path, tt.body, &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestSnapshotAndStats(t *testing.T) {
	env := newTestEnv(t)

	var view map[string]types.IndexValueMap
	assert.Equal(t, http.StatusOK, env.get(t, "/snapshot", &view))
	assert.Equal(t, types.FloatValue(1.5), view["Analog"].Get(0))
	assert.Equal(t, types.BoolValue(true), view["Binary"].Get(0))
	assert.Contains(t, view, "AnalogOutputStatus")
	assert.Contains(t, view, "BinaryOutputStatus")

	var stats master.StatisticsSnapshot
	assert.Equal(t, http.StatusOK, env.get(t, "/stats", &stats))
	assert.Equal(t, uint64(4), stats.PollsIssued)
	assert.Equal(t, uint64(4), stats.CollectionsIngested)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusOK, statusFor(nil))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(master.ErrPollTimeout))
	assert.Equal(t, http.StatusBadRequest, statusFor(types.ErrUnknownPointType))
	assert.Equal(t, http.StatusInternalServerError, statusFor(master.ErrNoStack))
	assert.Equal(t, http.StatusBadRequest, statusFor(master.ErrEmptyCommandSet))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(context.Canceled))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(fmt.Errorf("read: %w", context.Canceled)))
}

func TestGetPointType_NonFinite(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.outstation.Update(types.Group30Var6, 1, types.FloatValue(math.NaN())))
	require.NoError(t, env.outstation.Update(types.Group30Var6, 2, types.FloatValue(math.Inf(-1))))

	var resp pointTypeResponse
	assert.Equal(t, http.StatusOK, env.get(t, "/pointtypes/30/6", &resp))
	assert.Empty(t, resp.Error)

	f, ok := resp.Values.Get(1).Float()
	require.True(t, ok)
	assert.True(t, math.IsNaN(f))
	f, _ = resp.Values.Get(2).Float()
	assert.True(t, math.IsInf(f, -1))
	assert.Equal(t, types.FloatValue(1.5), resp.Values.Get(0))
}

func TestWriteJSON_EncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusOK, map[string]interface{}{"bad": make(chan int)})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "failed to encode response")
}

func TestSetPoints(t *testing.T) {
	env := newTestEnv(t)
	const set = `{"commands": [
		{"group": 40, "variation": 4, "index": 0, "value": 2.5},
		{"group": 10, "variation": 2, "index": %d, "value": true}
	]}`

	t.Run("Accepted", func(t *testing.T) {
		var resp commandSetResponse
		assert.Equal(t, http.StatusAccepted, env.post(t, "/commands", fmt.Sprintf(set, 0), &resp))
		require.Len(t, resp.Commands, 2)
		assert.Equal(t, "AnalogOutputDouble64", resp.Commands[0].Command)
		assert.Equal(t, "CROB", resp.Commands[1].Command)
		assert.Equal(t, uint16(10), resp.Commands[1].Group)

		var point pointResponse
		env.get(t, "/pointtypes/40/4/0", &point)
		assert.Equal(t, types.FloatValue(2.5), point.Value)
	})

	t.Run("Wait for completion", func(t *testing.T) {
		var resp commandSetResponse
		assert.Equal(t, http.StatusOK, env.post(t, "/commands?wait=true", fmt.Sprintf(set, 0), &resp))
		require.Len(t, resp.Commands, 2)
		assert.Equal(t, "Success", resp.Commands[0].Status)
		assert.Equal(t, "Success", resp.Commands[1].Status)
	})

	t.Run("One element rejected", func(t *testing.T) {
		var resp commandSetResponse
		assert.Equal(t, http.StatusBadGateway, env.post(t, "/commands?wait=true", fmt.Sprintf(set, 5), &resp))
		require.Len(t, resp.Commands, 2)
		assert.Equal(t, "Success", resp.Commands[0].Status)
		assert.Equal(t, "NotSupported", resp.Commands[1].Status)
	})

	tests := []struct {
		name string
		body string
	}{
		{"Empty set", `{"commands": []}`},
		{"Missing value", `{"commands": [{"group": 40, "variation": 4, "index": 0}]}`},
		{"Input point", `{"commands": [{"group": 40, "variation": 4, "index": 0, "value": 1}, {"group": 30, "variation": 6, "index": 0, "value": 1}]}`},
		{"Malformed body", `{"commands": [`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp errorResponse
			assert.Equal(t, http.StatusBadRequest, env.post(t, "/commands", tt.body, &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestHistoryRoutes(t *testing.T) {
	rec, err := history.Open(":memory:", 16, nil)
	require.NoError(t, err)
	t.Cleanup(func() { rec.Close() })

	env := newTestEnv(t, WithHistory(rec))
	env.coordinator.Store().Subscribe(rec)

	assert.Equal(t, http.StatusOK, env.get(t, "/pointtypes/30/6", nil))
	require.Eventually(t, func() bool { return rec.Written() == 1 }, time.Second, time.Millisecond)

	t.Run("Latest", func(t *testing.T) {
		var resp pointTypeResponse
		assert.Equal(t, http.StatusOK, env.get(t, "/pointtypes/30/6/history", &resp))
		assert.Equal(t, "Group30Var6", resp.Name)
		assert.Equal(t, types.FloatValue(1.5), resp.Values.Get(0))
	})

	t.Run("One point", func(t *testing.T) {
		var resp historyResponse
		assert.Equal(t, http.StatusOK, env.get(t, "/pointtypes/30/6/0/history?limit=5", &resp))
		require.Len(t, resp.Records, 1)
		assert.Equal(t, types.FloatValue(1.5), resp.Records[0].Value)
		assert.Equal(t, "solicited", resp.Records[0].Source)
	})

	t.Run("Nothing recorded", func(t *testing.T) {
		var resp historyResponse
		assert.Equal(t, http.StatusOK, env.get(t, "/pointtypes/30/6/7/history", &resp))
		assert.NotNil(t, resp.Records)
		assert.Empty(t, resp.Records)
	})

	t.Run("Bad requests", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, env.get(t, "/pointtypes/30/6/0/history?limit=-1", nil))
		assert.Equal(t, http.StatusBadRequest, env.get(t, "/pointtypes/999/1/history", nil))
	})
}

func TestHistoryRoutes_Disabled(t *testing.T) {
	env := newTestEnv(t)

	var resp errorResponse
	assert.Equal(t, http.StatusNotFound, env.get(t, "/pointtypes/30/6/history", &resp))
	assert.Equal(t, ErrHistoryDisabled.Error(), resp.Error)
	assert.Equal(t, http.StatusNotFound, env.get(t, "/pointtypes/30/6/0/history", nil))
}
