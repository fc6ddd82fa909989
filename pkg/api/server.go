// Package api serves a station's points over HTTP. Reads go through the
// coordinator's cache and poll on staleness; writes issue control commands.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/quic-go/quic-go/http3"

	"avaneesh/dnp3-cache/pkg/history"
	"avaneesh/dnp3-cache/pkg/internal/logger"
	"avaneesh/dnp3-cache/pkg/master"
	"avaneesh/dnp3-cache/pkg/types"
)

// Station is the coordinator surface the API serves
type Station interface {
	GetByPointType(ctx context.Context, group, variation uint16) (types.IndexValueMap, error)
	GetByPointTypeAndIndex(ctx context.Context, group, variation, index uint16) (types.PointValue, error)
	SendControlCommand(group, variation, index uint16, value types.PointValue) (*master.CommandReceipt, error)
	SendControlCommands(cmds []master.PointCommand) ([]*master.CommandReceipt, error)
	Snapshot(ctx context.Context) (map[string]types.IndexValueMap, error)
	Statistics() *master.Statistics
}

var _ Station = (*master.Coordinator)(nil)

// History serves recorded point values
type History interface {
	Latest(ctx context.Context, id types.PointTypeID) (types.IndexValueMap, error)
	History(ctx context.Context, id types.PointTypeID, index uint16, limit int) ([]history.Record, error)
}

var _ History = (*history.Recorder)(nil)

// ErrHistoryDisabled is returned by the history routes without a recorder
var ErrHistoryDisabled = errors.New("history is disabled")

// Option configures a Server
type Option func(*Server)

// WithHistory serves recorded values under /pointtypes/.../history
func WithHistory(h History) Option {
	return func(s *Server) {
		s.history = h
	}
}

// DefaultCommandWait bounds POST ?wait=true
const DefaultCommandWait = 5 * time.Second

// Server routes HTTP requests to a station
type Server struct {
	station Station
	history History
	logger  logger.Logger
	router  *mux.Router

	mu    sync.Mutex
	http  *http.Server
	http3 *http3.Server
}

// NewServer creates the router for station
func NewServer(station Station, log logger.Logger, opts ...Option) *Server {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	s := &Server{
		station: station,
		logger:  log,
		router:  mux.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router.HandleFunc("/pointtypes/{group:[0-9]+}/{variation:[0-9]+}", s.getPointType).Methods("GET")
	s.router.HandleFunc("/pointtypes/{group:[0-9]+}/{variation:[0-9]+}/{index:[0-9]+}", s.getPoint).Methods("GET")
	s.router.HandleFunc("/pointtypes/{group:[0-9]+}/{variation:[0-9]+}/{index:[0-9]+}", s.setPoint).Methods("POST")
	s.router.HandleFunc("/pointtypes/{group:[0-9]+}/{variation:[0-9]+}/history", s.getLatest).Methods("GET")
	s.router.HandleFunc("/pointtypes/{group:[0-9]+}/{variation:[0-9]+}/{index:[0-9]+}/history", s.getHistory).Methods("GET")
	s.router.HandleFunc("/commands", s.setPoints).Methods("POST")
	s.router.HandleFunc("/snapshot", s.getSnapshot).Methods("GET")
	s.router.HandleFunc("/stats", s.getStats).Methods("GET")
	s.router.Use(s.logRequests)

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves HTTP/1.1 and HTTP/2 on addr until Shutdown
func (s *Server) ListenAndServe(addr string) error {
	h := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.mu.Lock()
	s.http = h
	s.mu.Unlock()

	s.logger.Info("API listening on %s", addr)
	if err := h.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServeHTTP3 serves HTTP/3 over QUIC on addr until Shutdown.
// Without certFile and keyFile a self-signed certificate is generated.
func (s *Server) ListenAndServeHTTP3(addr, certFile, keyFile string) error {
	tlsConf, err := loadTLSConfig(certFile, keyFile)
	if err != nil {
		return err
	}

	h := &http3.Server{
		Addr:      addr,
		Handler:   s.router,
		TLSConfig: http3.ConfigureTLSConfig(tlsConf),
	}

	s.mu.Lock()
	s.http3 = h
	s.mu.Unlock()

	s.logger.Info("API listening on %s (HTTP/3)", addr)
	if err := h.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops both listeners
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	h, h3 := s.http, s.http3
	s.mu.Unlock()

	var errs []error
	if h != nil {
		errs = append(errs, h.Shutdown(ctx))
	}
	if h3 != nil {
		errs = append(errs, h3.Close())
	}
	return errors.Join(errs...)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("API %s %s (%s) %s", r.Method, r.URL.Path, r.Proto, time.Since(start))
	})
}
