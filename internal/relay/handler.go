// Package relay is a self-hostable sync gateway: it exposes an in-memory
// document store over the websocket sync protocol so game clients can share
// a room document without an external store service.
package relay

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"decrypto/internal/store"
)

// Handler upgrades HTTP requests to sync protocol connections against a
// shared backing store.
type Handler struct {
	st       store.Store
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a sync handler over the given store.
func NewHandler(st store.Store, logger *slog.Logger) *Handler {
	return &Handler{
		st: st,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// The relay carries no credentials; rooms are only
				// guessable by their 4-letter code.
				return true
			},
		},
		logger: logger,
	}
}

// ServeHTTP handles a websocket upgrade and runs the connection until the
// peer goes away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	h.logger.Info("sync client connected", "remote", r.RemoteAddr)
	c := newConn(ws, h.st, h.logger)
	c.run()
	h.logger.Info("sync client disconnected", "remote", r.RemoteAddr)
}
