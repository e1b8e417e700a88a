package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/botconsole/botconsole/internal/backend"
	"github.com/botconsole/botconsole/internal/config"
	"github.com/botconsole/botconsole/internal/loader"
	"github.com/botconsole/botconsole/internal/metrics"
	"github.com/botconsole/botconsole/internal/scheduler"
	"github.com/botconsole/botconsole/internal/stats"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// Server is the console REST API and dashboard server.
type Server struct {
	loader     *loader.Loader
	client     *backend.Client
	poller     *stats.Poller
	sched      *scheduler.Scheduler
	metrics    *metrics.Collector
	httpServer *http.Server
	startTime  time.Time
	listenCfg  config.ListenConfig
}

// NewServer creates a new API server.
func NewServer(l *loader.Loader, c *backend.Client, p *stats.Poller, sc *scheduler.Scheduler, m *metrics.Collector, lc config.ListenConfig) *Server {
	return &Server{
		loader:    l,
		client:    c,
		poller:    p,
		sched:     sc,
		metrics:   m,
		startTime: time.Now(),
		listenCfg: lc,
	}
}

// authMiddleware returns a middleware that checks the Bearer token against
// the configured bcrypt hash. Probes and metrics are excluded.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/health" || path == "/ready" || path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		hash := s.listenCfg.APITokenHash
		if hash == "" {
			// No token configured — allow all requests
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "unauthorized: missing bearer token")
			return
		}
		token := strings.TrimPrefix(auth, "Bearer ")
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized: invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Start starts the HTTP API server.
func (s *Server) Start(port int) error {
	r := s.routes()

	// Wrap with security headers, then auth middleware
	handler := s.securityHeaders(s.authMiddleware(r))

	bind := s.listenCfg.APIBind
	if bind == "" {
		bind = "127.0.0.1"
	}
	addr := fmt.Sprintf("%s:%d", bind, port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	if s.listenCfg.APITokenHash == "" {
		slog.Warn("API token not configured — console endpoints are unauthenticated")
	}
	slog.Info("console API listening", "addr", addr)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("API server error", "err", err)
		}
	}()

	return nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	// User detail cache
	r.HandleFunc("/api/users/{id}", s.getUser).Methods("GET")
	r.HandleFunc("/api/cache/users/{id}", s.invalidateUser).Methods("DELETE")
	r.HandleFunc("/api/cache/clear", s.clearCache).Methods("POST")
	r.HandleFunc("/api/cache/stats", s.cacheStats).Methods("GET")

	// Polled stats feeds
	r.HandleFunc("/api/stats", s.feedHandler(stats.FeedDashboard)).Methods("GET")
	r.HandleFunc("/api/realtime/stats", s.feedHandler(stats.FeedRealtime)).Methods("GET")
	r.HandleFunc("/api/bot/info", s.feedHandler(stats.FeedBotInfo)).Methods("GET")

	// Bot control
	r.HandleFunc("/api/bot/status", s.botStatus).Methods("POST")
	r.HandleFunc("/api/bot/send-message", s.sendMessage).Methods("POST")
	r.HandleFunc("/api/bot/send-message-all", s.sendMessageAll).Methods("POST")

	// Health & readiness
	r.HandleFunc("/health", s.healthHandler).Methods("GET")
	r.HandleFunc("/ready", s.readyHandler).Methods("GET")

	// Server status & config
	r.HandleFunc("/status", s.statusHandler).Methods("GET")
	r.HandleFunc("/config", s.configHandler).Methods("GET")

	// Prometheus metrics
	if s.metrics != nil && s.metrics.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	} else {
		r.Handle("/metrics", promhttp.Handler())
	}

	// Admin dashboard (registered last — catch-all for "/" and "/dashboard")
	r.HandleFunc("/", s.dashboardHandler).Methods("GET")
	r.HandleFunc("/dashboard", s.dashboardHandler).Methods("GET")

	return r
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// --- User Handlers ---

type userResponse struct {
	Success bool          `json:"success"`
	User    *backend.User `json:"user,omitempty"`
	Cache   string        `json:"cache"`
	Slow    bool          `json:"slow,omitempty"`
	Elapsed float64       `json:"elapsed_ms"`
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	res, err := s.loader.Load(r.Context(), id)
	if err != nil {
		var ipe *backend.InvalidPayloadError
		if errors.As(err, &ipe) {
			writeError(w, http.StatusBadGateway, "backend returned invalid user payload: "+ipe.Error())
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	cacheState := "miss"
	if res.FromCache {
		cacheState = "hit"
	}
	writeJSON(w, http.StatusOK, userResponse{
		Success: true,
		User:    res.User,
		Cache:   cacheState,
		Slow:    res.Slow,
		Elapsed: float64(res.Elapsed) / float64(time.Millisecond),
	})
}

func (s *Server) invalidateUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	s.loader.Invalidate(id)
	slog.Info("cache entry invalidated", "user_id", id)
	writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "user_id": id})
}

func (s *Server) clearCache(w http.ResponseWriter, r *http.Request) {
	s.loader.ClearCache()
	slog.Info("cache cleared")
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) cacheStats(w http.ResponseWriter, r *http.Request) {
	snap := s.loader.MetricsSnapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"cache_hits":           snap.CacheHits,
		"cache_misses":         snap.CacheMisses,
		"total_loads":          snap.TotalLoads,
		"average_load_time_ms": snap.AverageLoadTimeMs,
		"entries":              s.loader.CacheLen(),
	})
}

// --- Stats Feed Handlers ---

// feedHandler serves the latest polled snapshot for a feed. ?refresh=1
// forces a fetch; concurrent forced refreshes collapse into one request.
func (s *Server) feedHandler(feed string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var snap stats.Snapshot
		if r.URL.Query().Get("refresh") == "1" {
			snap = s.poller.Refresh(r.Context(), feed)
		} else {
			snap = s.poller.Get(feed)
		}

		if snap.Data == nil && snap.LastError != "" {
			writeError(w, http.StatusBadGateway, snap.LastError)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// --- Bot Control Handlers ---

func (s *Server) botStatus(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Action != "start" && req.Action != "stop" {
		writeError(w, http.StatusBadRequest, "action must be start or stop")
		return
	}

	result, err := s.client.BotStatus(r.Context(), req.Action)
	s.metrics.BotAction(req.Action, err == nil)
	if err != nil {
		slog.Warn("bot action failed", "action", req.Action, "err", err)
		writeActionError(w, result, err)
		return
	}

	slog.Info("bot action dispatched", "action", req.Action, "status", result.Status)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req struct {
		UserID  int64  `json:"user_id"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.UserID <= 0 || req.Message == "" {
		writeError(w, http.StatusBadRequest, "user_id and message are required")
		return
	}

	result, err := s.client.SendMessage(r.Context(), req.UserID, req.Message)
	s.metrics.BotAction("send-message", err == nil)
	if err != nil {
		slog.Warn("send message failed", "user_id", req.UserID, "err", err)
		writeActionError(w, result, err)
		return
	}

	slog.Info("message sent", "user_id", req.UserID)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) sendMessageAll(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	result, err := s.client.SendMessageAll(r.Context(), req.Message)
	s.metrics.BotAction("send-message-all", err == nil)
	if err != nil {
		slog.Warn("broadcast failed", "err", err)
		writeActionError(w, result, err)
		return
	}

	slog.Info("broadcast sent")
	writeJSON(w, http.StatusOK, result)
}

// --- Health Handlers ---

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	feeds := map[string]stats.Snapshot{
		stats.FeedDashboard: s.poller.Get(stats.FeedDashboard),
		stats.FeedRealtime:  s.poller.Get(stats.FeedRealtime),
		stats.FeedBotInfo:   s.poller.Get(stats.FeedBotInfo),
	}

	healthy := true
	for _, snap := range feeds {
		if snap.LastError != "" {
			healthy = false
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]any{
		"status": boolToStatus(healthy),
		"feeds":  feeds,
	})
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	// Ready once the process is serving; backend reachability is reported
	// by /health, but a flaky backend should not flip readiness.
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// --- Status & Config Handlers ---

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	uptime := time.Since(s.startTime).Seconds()

	writeJSON(w, http.StatusOK, map[string]any{
		"uptime_seconds": int(uptime),
		"go_version":     runtime.Version(),
		"goroutines":     runtime.NumGoroutine(),
		"memory_mb":      float64(mem.Alloc) / 1024 / 1024,
		"cache_entries":  s.loader.CacheLen(),
		"ticks": map[string]int64{
			"stats":    s.sched.TickCount(stats.FeedDashboard),
			"realtime": s.sched.TickCount(stats.FeedRealtime),
			"sweep":    s.sched.TickCount("sweep"),
		},
	})
}

func (s *Server) configHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"listen": map[string]any{
			"api_port":     s.listenCfg.APIPort,
			"api_bind":     s.listenCfg.APIBind,
			"auth_enabled": s.listenCfg.APITokenHash != "",
			"tls_enabled":  s.listenCfg.TLSEnabled(),
		},
	})
}

// securityHeaders adds security-related HTTP headers to all responses.
func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeActionError reports a failed bot action. The backend's reply, when
// present, is forwarded so the dashboard can show its message.
func writeActionError(w http.ResponseWriter, result *backend.ActionResult, err error) {
	if result != nil {
		writeJSON(w, http.StatusBadGateway, result)
		return
	}
	writeError(w, http.StatusBadGateway, err.Error())
}

func boolToStatus(b bool) string {
	if b {
		return "healthy"
	}
	return "unhealthy"
}
