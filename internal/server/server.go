// Package server is the demo backend the sync client talks to: a job
// simulator with a status endpoint, two streamed feeds, a chat relay and a
// slow aggregate dashboard.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/realtime-sync/syncdemo/internal/client"
	"github.com/realtime-sync/syncdemo/internal/config"
)

type Server struct {
	cfg      *config.Config
	log      *zap.SugaredLogger
	jobs     *JobStore
	sim      *Simulator
	hub      *ChatHub
	meter    *requestMeter
	sampler  HostSampler
	upgrader websocket.Upgrader
	now      func() time.Time

	// jobCtx outlives single requests; Close cancels it.
	jobCtx    context.Context
	cancelJob context.CancelFunc
}

// Option configures a Server.
type Option func(*Server)

// WithHostSampler replaces the gopsutil sampler behind the monitoring feed.
func WithHostSampler(s HostSampler) Option {
	return func(srv *Server) { srv.sampler = s }
}

func New(cfg *config.Config, log *zap.SugaredLogger, opts ...Option) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	jobCtx, cancel := context.WithCancel(context.Background())
	jobs := NewJobStore()
	s := &Server{
		cfg:       cfg,
		log:       log,
		jobs:      jobs,
		sim:       NewSimulator(jobs, cfg.Demo.JobSteps, cfg.Demo.StepDelay, log.Named("jobs")),
		hub:       NewChatHub(log.Named("chat")),
		meter:     newRequestMeter(),
		sampler:   NewSystemSampler("/"),
		now:       time.Now,
		jobCtx:    jobCtx,
		cancelJob: cancel,
	}
	// The demo is meant to be reached from any local page.
	s.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /jobs", s.handleCreateJob)
	mux.HandleFunc("GET /jobs", s.handleListJobs)
	mux.HandleFunc("GET /jobs/{id}/status", s.handleJobStatus)
	mux.HandleFunc("GET /logs/stream", s.handleLogStream)
	mux.HandleFunc("GET /monitoring/stream", s.handleMetricStream)
	mux.HandleFunc("GET /dashboard", s.handleDashboard)
	mux.HandleFunc("GET /ws/chat/{clientID}", s.handleChat)
	return s.logRequests(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := s.cfg.Server.Addr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops running jobs and disconnects chat clients.
func (s *Server) Close() {
	s.cancelJob()
	s.hub.Close()
	s.sim.Wait()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer cannot hijack")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.meter.Mark()
		id := r.Header.Get(client.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(client.RequestIDHeader, id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debugw("request", "method", r.Method, "path", r.URL.Path, "status", rec.status,
			"request_id", id, "duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req client.JobRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, client.ErrorResponse{Error: "invalid body: " + err.Error()})
		return
	}
	id := s.sim.Start(s.jobCtx, req.Items)
	writeJSON(w, http.StatusOK, client.JobCreated{JobID: id, Message: "Task started"})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, client.JobList{Jobs: s.jobs.All()})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	st, ok := s.jobs.Get(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, client.ErrorResponse{Error: "Job not found"})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleLogStream(w http.ResponseWriter, r *http.Request) {
	n, err := streamEvents(w, r, s.cfg.Demo.LogCount, s.cfg.Demo.LogInterval, func(i int) (any, error) {
		return newLogEntry(i, s.now()), nil
	})
	s.logStreamEnd("logs", n, err)
}

func (s *Server) handleMetricStream(w http.ResponseWriter, r *http.Request) {
	n, err := streamEvents(w, r, s.cfg.Demo.MetricCount, s.cfg.Demo.MetricInterval, func(int) (any, error) {
		u, err := s.sampler.Sample(r.Context())
		if err != nil {
			// Keep the feed alive on hosts gopsutil cannot read.
			s.log.Debugw("host sample failed, using synthetic values", "error", err)
			u = HostUsage{CPU: 10 + rand.Float64()*80, Memory: 20 + rand.Float64()*60, Disk: 30 + rand.Float64()*40}
		}
		return metricEntry{
			Timestamp:         s.now().Format(naiveISO),
			CPU:               u.CPU,
			Memory:            u.Memory,
			Disk:              u.Disk,
			ActiveConnections: s.hub.ClientCount(),
			RequestsPerMinute: s.meter.PerMinute(),
		}, nil
	})
	s.logStreamEnd("metrics", n, err)
}

func (s *Server) logStreamEnd(feed string, sent int, err error) {
	switch {
	case err == nil:
		s.log.Infow("feed finished", "feed", feed, "records", sent)
	case errors.Is(err, context.Canceled):
		s.log.Infow("feed client went away", "feed", feed, "records", sent)
	default:
		s.log.Warnw("feed failed", "feed", feed, "records", sent, "error", err)
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := gatherDashboard(r.Context(), s.cfg.Demo.DashboardDelay, s.now)
	if err != nil {
		writeJSON(w, http.StatusGatewayTimeout, client.ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("clientID")
	if _, err := strconv.Atoi(id); err != nil {
		http.Error(w, "client id must be a number", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("ws upgrade failed", "client", id, "error", err)
		return
	}
	c := s.hub.Join(id, conn)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.hub.Say(id, string(msg))
	}
	if s.hub.Leave(c) {
		s.log.Infow("chat client left", "client", id)
		s.hub.Broadcast("Client #" + id + " left the chat")
	}
}
