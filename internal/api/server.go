// internal/api/server.go
package api

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gobwas/ws"
	"go.uber.org/zap"

	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/broadcast"
	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/reading"
	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/status"
)

// Engine is the read side of the core the API serves.
type Engine interface {
	Health() status.Snapshot
	Latest() (reading.Reading, error)
	OpenStream() (*broadcast.Subscriber, error)
	Export(window time.Duration) []reading.Reading
}

// Options tune the websocket keepalive. Zero values select defaults.
type Options struct {
	WriteWait  time.Duration
	PongWait   time.Duration
	PingPeriod time.Duration

	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// Server maps HTTP requests onto engine queries.
type Server struct {
	eng  Engine
	opts Options
	log  *zap.Logger
}

// New creates a Server.
func New(eng Engine, opts Options, log *zap.Logger) *Server {
	if opts.WriteWait <= 0 {
		opts.WriteWait = 5 * time.Second
	}
	if opts.PongWait <= 0 {
		opts.PongWait = 60 * time.Second
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 50 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{eng: eng, opts: opts, log: log}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /dose", s.handleDose)
	mux.HandleFunc("GET /ws", s.handleStream)
	mux.HandleFunc("GET /export.csv", s.handleExport)
	if s.opts.Metrics != nil {
		mux.Handle("GET /metrics", s.opts.Metrics)
	}
	return withCORS(mux)
}

type healthResponse struct {
	Status              string `json:"status"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	Stale               bool   `json:"stale"`
	LastError           string `json:"last_error,omitempty"`
	Since               string `json:"since,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.eng.Health()

	resp := healthResponse{
		Status:              snap.Health.String(),
		ConsecutiveFailures: snap.ConsecutiveFailures,
		Stale:               snap.Stale,
		LastError:           snap.LastError,
	}
	if !snap.Since.IsZero() {
		resp.Since = snap.Since.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDose(w http.ResponseWriter, r *http.Request) {
	rd, err := s.eng.Latest()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "No data yet"})
		return
	}
	writeJSON(w, http.StatusOK, reading.Encode(rd))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var window time.Duration
	if v := r.URL.Query().Get("window"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid window"})
			return
		}
		window = d
	}

	rows := s.eng.Export(window)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="fs5000.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write(reading.CSVHeader)
	for _, rd := range rows {
		_ = cw.Write(reading.Encode(rd).CSV())
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		s.log.Debug("export write failed", zap.Error(err))
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sub, err := s.eng.OpenStream()
	if err != nil {
		if errors.Is(err, broadcast.ErrClosed) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "shutting down"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		sub.Close()
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	c := newStreamClient(conn, sub, s.opts, s.log)
	c.Start()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
