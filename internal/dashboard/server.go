// Package dashboard serves the pull side of the system: the Prometheus
// scrape endpoint plus a small JSON status surface for operators.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"ratewatch/internal/metrics"
	"ratewatch/internal/poller"
	"ratewatch/logger"
)

// StatusProvider is implemented by every poller shown on /status.
type StatusProvider interface {
	Status() poller.Status
}

// Server hosts /metrics, /healthz and /status.
type Server struct {
	name       string
	version    string
	address    string
	reg        *metrics.Registry
	providers  []StatusProvider
	sampler    *resourceSampler
	log        *logger.Log
	httpServer *http.Server
	started    time.Time
}

// NewServer builds the server. resourceInterval controls host sampling.
func NewServer(name, version, address string, resourceInterval time.Duration, reg *metrics.Registry, providers []StatusProvider) *Server {
	log := logger.GetLogger()
	return &Server{
		name:      name,
		version:   version,
		address:   address,
		reg:       reg,
		providers: providers,
		sampler:   newResourceSampler(resourceInterval, "/", log),
		log:       log,
	}
}

// Run starts the HTTP server and blocks until the context is cancelled or
// the listener fails. Failure to bind is the one fatal error of the process.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.reg.Handler())
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)

	s.sampler.start(ctx)
	defer s.sampler.stop()

	s.started = time.Now()
	s.httpServer = &http.Server{
		Addr:    s.address,
		Handler: mux,
	}

	s.log.WithComponent("dashboard").WithFields(logger.Fields{
		"address": s.address,
	}).Info("starting metrics server")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type statusPayload struct {
	Name      string                   `json:"name"`
	Version   string                   `json:"version"`
	Uptime    string                   `json:"uptime"`
	Pollers   []poller.Status          `json:"pollers"`
	Resources *resourceSnapshot        `json:"resources,omitempty"`
	Logs      map[string]logger.Counts `json:"log_counters"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	payload := statusPayload{
		Name:    s.name,
		Version: s.version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		Logs:    logger.Counters(),
	}
	for _, p := range s.providers {
		payload.Pollers = append(payload.Pollers, p.Status())
	}
	if snap, ok := s.sampler.snapshot(); ok {
		payload.Resources = &snap
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.WithComponent("dashboard").WithError(err).Warn("failed to encode status")
	}
}
