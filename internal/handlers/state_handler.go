package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/benmeehan/signage-agent/internal/materializer"
	"github.com/benmeehan/signage-agent/internal/state_managers"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The renderer is served from a different local origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StateProvider is the read side of the sync engine.
type StateProvider interface {
	State() state_managers.EngineState
	Subscribe() (<-chan state_managers.EngineState, func())
}

// MediaLocator resolves a media URL to a prefetched local file.
type MediaLocator interface {
	LocalFile(mediaURL string) (materializer.MediaFile, bool)
}

// StateHandler serves the engine state to the local renderer.
type StateHandler struct {
	engine StateProvider
	media  MediaLocator
	logger zerolog.Logger
}

// NewStateHandler creates a new StateHandler. media may be nil.
func NewStateHandler(engine StateProvider, media MediaLocator, logger zerolog.Logger) *StateHandler {
	return &StateHandler{
		engine: engine,
		media:  media,
		logger: logger,
	}
}

// Register mounts the handler's routes on r.
func (h *StateHandler) Register(r chi.Router) {
	r.Get("/health", h.Health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/state", h.GetState)
		r.Get("/state/stream", h.StreamState)
		r.Get("/media", h.GetMedia)
	})
}

// Health reports liveness.
func (h *StateHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetState returns the current engine state.
func (h *StateHandler) GetState(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.engine.State())
}

// GetMedia serves a prefetched media file by its source URL.
func (h *StateHandler) GetMedia(w http.ResponseWriter, r *http.Request) {
	mediaURL := r.URL.Query().Get("url")
	if mediaURL == "" {
		http.Error(w, "url query parameter required", http.StatusBadRequest)
		return
	}
	if h.media == nil {
		http.NotFound(w, r)
		return
	}

	file, ok := h.media.LocalFile(mediaURL)
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("ETag", `"`+file.SHA256+`"`)
	http.ServeFile(w, r, file.Path)
}

// StreamState upgrades to a WebSocket and sends one JSON frame per state change.
func (h *StateHandler) StreamState(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	logger := h.logger.With().Str("client_id", uuid.NewString()).Logger()
	logger.Debug().Msg("State stream client connected")

	updates, unsubscribe := h.engine.Subscribe()
	defer unsubscribe()

	closed := make(chan struct{})
	go h.readPump(conn, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case state := <-updates:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(state); err != nil {
				logger.Debug().Err(err).Msg("State stream write failed")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			logger.Debug().Msg("State stream client disconnected")
			return
		case <-r.Context().Done():
			return
		}
	}
}

// readPump discards client frames and signals when the connection closes.
func (h *StateHandler) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *StateHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}
