// internal/api/server_test.go
package api

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/broadcast"
	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/engine"
	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/reading"
	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/status"
)

const line = "DR:0.15uSv/h;D:1.63uSv;CPS:0001;CPM:000060;AVG:0.14uSv/h;DT:0000123;S:0.00uSv;W:0"

var t0 = time.Date(2025, 8, 13, 14, 0, 0, 0, time.Local)

type fakeEngine struct {
	snap    status.Snapshot
	latest  *reading.Reading
	history []reading.Reading
	hub     *broadcast.Hub
	window  time.Duration
}

func (f *fakeEngine) Health() status.Snapshot { return f.snap }

func (f *fakeEngine) Latest() (reading.Reading, error) {
	if f.latest == nil {
		return reading.Reading{}, engine.ErrNotYetAvailable
	}
	return *f.latest, nil
}

func (f *fakeEngine) OpenStream() (*broadcast.Subscriber, error) { return f.hub.Subscribe() }

func (f *fakeEngine) Export(window time.Duration) []reading.Reading {
	f.window = window
	return f.history
}

func mustParse(t *testing.T, sec int) reading.Reading {
	t.Helper()
	r, err := reading.ParseLine(line, t0.Add(time.Duration(sec)*time.Second))
	require.NoError(t, err)
	return r
}

func newTestServer(t *testing.T, eng *fakeEngine, opts Options) *httptest.Server {
	t.Helper()
	if eng.hub == nil {
		eng.hub = broadcast.New(4, nil, nil)
	}
	srv := httptest.NewServer(New(eng, opts, zap.NewNop()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitSubscribers(t *testing.T, hub *broadcast.Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Stats().Subscribers == n }, time.Second, 5*time.Millisecond)
}

// ---- plain HTTP ----

func TestHealth(t *testing.T) {
	since := time.Date(2025, 8, 13, 14, 0, 0, 0, time.UTC)
	srv := newTestServer(t, &fakeEngine{snap: status.Snapshot{
		Health:              status.Degraded,
		ConsecutiveFailures: 3,
		Stale:               true,
		LastError:           "timeout: no frame",
		Since:               since,
	}}, Options{})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, 3.0, body["consecutive_failures"])
	assert.Equal(t, true, body["stale"])
	assert.Equal(t, "timeout: no frame", body["last_error"])
	assert.Equal(t, "2025-08-13T14:00:00Z", body["since"])
}

func TestHealth_UnknownBeforeFirstTick(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{}, Options{})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "unknown", body["status"])
	assert.NotContains(t, body, "since")
}

func TestDose_NoDataYet(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{}, Options{})

	resp, err := http.Get(srv.URL + "/dose")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "No data yet", body["error"])
}

func TestDose_Latest(t *testing.T) {
	r := mustParse(t, 0)
	srv := newTestServer(t, &fakeEngine{latest: &r}, Options{})

	resp, err := http.Get(srv.URL + "/dose")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, map[string]string{
		"timestamp": "2025-08-13T14:00:00",
		"DR":        "0.15uSv/h",
		"D":         "1.63uSv",
		"CPS":       "0001",
		"CPM":       "000060",
		"AVG":       "0.14uSv/h",
		"DT":        "0000123",
		"S":         "0.00uSv",
		"W":         "0",
	}, body)
}

func TestExportCSV(t *testing.T) {
	eng := &fakeEngine{history: []reading.Reading{mustParse(t, 0), mustParse(t, 1)}}
	srv := newTestServer(t, eng, Options{})

	resp, err := http.Get(srv.URL + "/export.csv?window=10m")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 10*time.Minute, eng.window)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/csv"))

	rows, err := csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, reading.CSVHeader, rows[0])
	assert.Equal(t, "2025-08-13T14:00:01", rows[2][0])
}

func TestExportCSV_BadWindow(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{}, Options{})

	resp, err := http.Get(srv.URL + "/export.csv?window=soon")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("fs5000_readings_total 1\n"))
	})
	srv := newTestServer(t, &fakeEngine{}, Options{Metrics: metrics})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{}, Options{})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/dose", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

// ---- websocket ----

func TestStream_PushesReadingsInOrder(t *testing.T) {
	eng := &fakeEngine{}
	srv := newTestServer(t, eng, Options{})
	conn := dial(t, srv)
	waitSubscribers(t, eng.hub, 1)

	eng.hub.Publish(mustParse(t, 1))
	eng.hub.Publish(mustParse(t, 2))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for _, want := range []string{"2025-08-13T14:00:01", "2025-08-13T14:00:02"} {
		mt, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.TextMessage, mt)

		var w reading.Wire
		require.NoError(t, json.Unmarshal(msg, &w))
		assert.Equal(t, want, w.Timestamp)
		assert.Equal(t, line, w.Line())
	}
}

func TestStream_ClientCloseUnsubscribes(t *testing.T) {
	eng := &fakeEngine{}
	srv := newTestServer(t, eng, Options{})
	conn := dial(t, srv)
	waitSubscribers(t, eng.hub, 1)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))

	waitSubscribers(t, eng.hub, 0)
}

func TestStream_ShutdownSendsGoingAway(t *testing.T) {
	eng := &fakeEngine{}
	srv := newTestServer(t, eng, Options{})
	conn := dial(t, srv)
	waitSubscribers(t, eng.hub, 1)

	eng.hub.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestStream_SlowClientEvictedWithTryAgainLater(t *testing.T) {
	eng := &fakeEngine{hub: broadcast.New(1, nil, nil)}
	srv := newTestServer(t, eng, Options{})
	conn := dial(t, srv)
	waitSubscribers(t, eng.hub, 1)

	// publish faster than any pump can drain a one-slot queue
	r := mustParse(t, 1)
	for i := 0; i < 100000 && eng.hub.Stats().Evicted == 0; i++ {
		eng.hub.Publish(r)
	}
	require.Equal(t, uint64(1), eng.hub.Stats().Evicted)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, 1013), "got %v", err)
			return
		}
	}
}

func TestStream_RejectedAfterShutdown(t *testing.T) {
	eng := &fakeEngine{hub: broadcast.New(4, nil, nil)}
	eng.hub.Close()
	srv := newTestServer(t, eng, Options{})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStream_Ping(t *testing.T) {
	eng := &fakeEngine{}
	srv := newTestServer(t, eng, Options{PingPeriod: 20 * time.Millisecond})
	conn := dial(t, srv)

	pinged := make(chan struct{}, 1)
	conn.SetPingHandler(func(string) error {
		select {
		case pinged <- struct{}{}:
		default:
		}
		return nil
	})
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-pinged:
	case <-time.After(2 * time.Second):
		t.Fatal("no ping")
	}
}
