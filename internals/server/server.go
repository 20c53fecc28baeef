package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Champion1102/Crossdrop-sub000/internals/config"
	"github.com/Champion1102/Crossdrop-sub000/internals/signaling"
	"github.com/Champion1102/Crossdrop-sub000/internals/state"
	"github.com/Champion1102/Crossdrop-sub000/internals/utils"
)

// Server binds the WebSocket endpoint and the control surface (health,
// stats, room probe, metrics) and coordinates graceful start and stop of
// the hub, its supervisor, and the HTTP listener.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	hub      *signaling.Hub
	presence *state.Presence

	httpServer *http.Server
	upgrader   websocket.Upgrader
	startedAt  time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

func New(cfg *config.Config) *Server {
	logger := utils.GetLogger()
	ctx, cancel := context.WithCancel(context.Background())

	var presence *state.Presence
	if cfg.Redis.Enabled {
		p, err := state.NewPresence(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Warn("Redis connection failed, running without presence mirror", zap.Error(err))
		} else {
			presence = p
		}
	}

	return &Server{
		cfg:      cfg,
		logger:   logger,
		hub:      signaling.NewHub(cfg, presence, logger),
		presence: presence,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		startedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Handler builds the route table. Exposed separately from Start so tests
// can mount it on an httptest server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.WebSocket.Path, s.handleWebSocket)
	mux.HandleFunc("/health", s.cors(s.handleHealth))
	mux.HandleFunc("/stats", s.cors(s.handleStats))
	mux.HandleFunc("/room/", s.cors(s.handleRoomProbe))
	mux.HandleFunc("/", s.cors(s.handleRoot))

	if s.cfg.Metrics.Enabled {
		mux.Handle(s.cfg.Metrics.Path, promhttp.Handler())
	}
	return mux
}

func (s *Server) Start() error {
	go s.hub.Run(s.ctx)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	s.logger.Info("Server started",
		zap.String("host", s.cfg.Server.Host),
		zap.Int("port", s.cfg.Server.Port),
		zap.String("wsPath", s.cfg.WebSocket.Path),
	)

	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop notifies and disconnects every peer, stops the supervisor, and
// shuts the HTTP listener down within the configured bound.
func (s *Server) Stop() {
	s.logger.Info("Stopping signaling server")
	s.cancel()
	s.hub.Shutdown()
	s.presence.Close()

	if s.httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("HTTP shutdown error", zap.Error(err))
		}
	}
	s.logger.Info("Server stopped")
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}
	s.hub.Attach(conn, r.URL.Query().Get("name"))
}

func (s *Server) cors(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.cfg.CORS.Origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
		return
	}
	s.handleHealth(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.hub.Snapshot()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    time.Since(s.startedAt).Seconds(),
		"peers":     snap.PeerCount,
		"rooms":     snap.Rooms,
		"timestamp": time.Now().UnixMilli(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	snap := s.hub.Snapshot()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	s.writeJSON(w, http.StatusOK, map[string]any{
		"uptime": time.Since(s.startedAt).Seconds(),
		"peers":  snap.Peers,
		"rooms":  snap.Rooms,
		"memory": map[string]uint64{
			"alloc":      mem.Alloc,
			"totalAlloc": mem.TotalAlloc,
			"sys":        mem.Sys,
			"numGC":      uint64(mem.NumGC),
		},
		"timestamp": time.Now().UnixMilli(),
	})
}

// handleRoomProbe reports room existence. The key is taken from the path
// as-is; both minted ids and client-supplied codes work.
func (s *Server) handleRoomProbe(w http.ResponseWriter, r *http.Request) {
	roomID := strings.TrimPrefix(r.URL.Path, "/room/")
	if roomID == "" {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"exists": s.hub.RoomExists(roomID),
		"roomId": roomID,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
	}
}
