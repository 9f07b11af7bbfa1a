package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/gobwas/ws"
)

type HTTPHandler struct {
	Server *Server
	Config *Config
}

func NewHTTPServer(server *Server, cfg *Config) http.Handler {
	httpHandler := HTTPHandler{server, cfg}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET"},
		AllowCredentials: false,
	}))
	r.Use(middleware.RealIP)
	r.Use(middleware.Heartbeat("/"))

	r.Group(func(r chi.Router) {
		if cfg.UpgradeRateLimit > 0 {
			r.Use(httprate.Limit(cfg.UpgradeRateLimit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		}
		r.Get("/ws", httpHandler.websocket())
	})
	r.Get("/room/{roomCode}", httpHandler.getRoom())
	r.Get("/stats", httpHandler.getStats())
	return r
}

func (h HTTPHandler) websocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			LogErrorWhileUpgradingHTTP(err)
			return
		}
		peerWs := NewPeerWebsocket(conn, r.RemoteAddr, h.Config.WebsocketOptions())
		defer peerWs.Close()
		h.Server.HandleConnection(peerWs)
	}
}

func (h HTTPHandler) getRoom() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "roomCode")
		room, exists := h.Server.Room(code)
		if !exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, room)
	}
}

func (h HTTPHandler) getStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, h.Server.Stats())
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
