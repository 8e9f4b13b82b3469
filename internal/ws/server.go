package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/flip-racer/flipsim/internal/logging"
	"github.com/flip-racer/flipsim/internal/runner"
	"github.com/flip-racer/flipsim/internal/sim"
	"github.com/gorilla/websocket"
)

var _ runner.Publisher = (*Broadcaster)(nil)

const maxBodyBytes = 1 << 16

// Options configures a Server.
type Options struct {
	AuthToken      string
	AllowedOrigins []string

	// Defaults used when a configure body omits a field.
	DefaultPattern  string
	DefaultSessions int
	DefaultMaxFlips int

	Logger *slog.Logger
}

type Server struct {
	runner         *runner.Runner
	broadcaster    *Broadcaster
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	authToken      string
	defaults       runner.ConfigureRequest
	log            *slog.Logger
	started        time.Time

	// baseCtx outlives individual requests; runs started over HTTP derive
	// from it.
	baseCtx context.Context
}

func NewServer(ctx context.Context, r *runner.Runner, b *Broadcaster, opts Options) *Server {
	s := &Server{
		runner:         r,
		broadcaster:    b,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		authToken:      opts.AuthToken,
		defaults: runner.ConfigureRequest{
			PatternKey:  opts.DefaultPattern,
			NumSessions: opts.DefaultSessions,
			MaxFlips:    opts.DefaultMaxFlips,
		},
		log:     logging.OrDefault(opts.Logger),
		started: time.Now(),
		baseCtx: ctx,
	}
	if s.defaults.PatternKey == "" {
		s.defaults.PatternKey = "2_consecutive_tails"
	}
	if s.defaults.NumSessions <= 0 {
		s.defaults.NumSessions = sim.DefaultSessions
	}
	if s.defaults.MaxFlips <= 0 {
		s.defaults.MaxFlips = sim.DefaultMaxFlips
	}

	for _, origin := range opts.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /api/health", s.authed(s.handleHealth))
	mux.HandleFunc("GET /api/patterns", s.authed(s.handlePatterns))
	mux.HandleFunc("GET /api/statistics", s.authed(s.handleStatistics))
	mux.HandleFunc("GET /api/sessions", s.authed(s.handleSessions))
	mux.HandleFunc("GET /api/simulation/status", s.authed(s.handleStatus))
	mux.HandleFunc("POST /api/simulation/configure", s.authed(s.handleConfigure))
	mux.HandleFunc("POST /api/simulation/start", s.authed(s.handleStart))
	mux.HandleFunc("POST /api/simulation/stop", s.authed(s.handleStop))
	mux.HandleFunc("POST /api/simulation/reset", s.authed(s.handleReset))
	mux.HandleFunc("POST /api/simulation/step", s.authed(s.handleStep))
}

// Handler returns the full route table wrapped in the security headers.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return securityHeaders(mux)
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authed(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authorize(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		h(w, r)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade error", "err", err)
		return
	}

	c, err := s.broadcaster.AddClient(conn)
	if err != nil {
		s.log.Warn("ws client rejected", "remote", r.RemoteAddr, "err", err)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	s.log.Info("websocket client connected", "remote", r.RemoteAddr)
	s.broadcaster.SendTo(c, MsgStatus, s.status("Connected to simulation server"))

	go func() {
		defer func() {
			s.broadcaster.RemoveClient(c)
			s.log.Info("websocket client disconnected", "remote", r.RemoteAddr)
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg ClientMessage
			if json.Unmarshal(data, &msg) != nil {
				continue
			}
			if msg.Type == MsgResync {
				s.broadcaster.SendTo(c, MsgStatus, s.status("Resynchronised"))
			}
		}
	}()
}

func (s *Server) status(message string) StatusPayload {
	p := StatusPayload{
		Message: message,
		State:   s.runner.State(),
	}
	if st, ok := s.runner.Statistics(); ok {
		p.Statistics = &st
	}
	return p
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.health())
}

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.Patterns())
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	st, ok := s.runner.Statistics()
	if !ok {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// statusResponse is the statistics object, when there is one, with the
// lifecycle state added alongside its fields.
type statusResponse struct {
	*sim.Statistics
	State sim.State `json:"state"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{State: s.runner.State()}
	if st, ok := s.runner.Statistics(); ok {
		resp.Statistics = &st
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.Sessions())
}

// configureBody distinguishes absent fields from zero values.
type configureBody struct {
	PatternKey  *string `json:"pattern_type"`
	NumSessions *int    `json:"num_sessions"`
	MaxFlips    *int    `json:"max_flips_per_session"`
}

func (s *Server) request(b configureBody) runner.ConfigureRequest {
	req := s.defaults
	if b.PatternKey != nil {
		req.PatternKey = *b.PatternKey
	}
	if b.NumSessions != nil {
		req.NumSessions = *b.NumSessions
	}
	if b.MaxFlips != nil {
		req.MaxFlips = *b.MaxFlips
	}
	return req
}

func decodeBody(r *http.Request, v interface{}) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) handleConfigure(w http.ResponseWriter, r *http.Request) {
	var body configureBody
	if err := decodeBody(r, &body); err != nil {
		writeFailure(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if err := s.runner.Configure(s.request(body)); err != nil {
		writeFailure(w, statusFor(err), err)
		return
	}
	writeSuccess(w, "Simulation configured")
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var body configureBody
	if err := decodeBody(r, &body); err != nil {
		writeFailure(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	var req *runner.ConfigureRequest
	if body.PatternKey != nil {
		cr := s.request(body)
		req = &cr
	}
	if err := s.runner.Start(s.baseCtx, req); err != nil {
		writeFailure(w, statusFor(err), err)
		return
	}
	writeSuccess(w, "Simulation started")
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.runner.Stop()
	writeSuccess(w, "Simulation stopped")
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.runner.Reset()
	writeSuccess(w, "Simulation reset")
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.Step())
}

// statusFor maps caller mistakes to 400 and everything else to 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, sim.ErrUnknownPattern),
		errors.Is(err, sim.ErrInvalidConfig),
		errors.Is(err, sim.ErrNotConfigured),
		errors.Is(err, sim.ErrAlreadyRunning):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeSuccess(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, result{Success: true, Message: message})
}

func writeFailure(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, result{Success: false, Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) authorize(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}

	if r.URL.Query().Get("token") == s.authToken {
		return true
	}

	if r.Header.Get("X-Flipsim-Token") == s.authToken {
		return true
	}

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.authToken {
		return true
	}

	return false
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}

	if host == r.Host {
		return true
	}

	hostname := parsed.Hostname()
	return hostname == "localhost" || hostname == "127.0.0.1" || hostname == "::1"
}

// ListenAndServe serves h on addr until ctx is cancelled, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) error {
	logger = logging.OrDefault(logger)
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
