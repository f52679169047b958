package ws

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"pv_forecast/internal/results"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SnapshotSource provides the table of the current run.
type SnapshotSource interface {
	Snapshot() (string, results.Snapshot)
}

// Handler manages WebSocket connections: it sends the current table on
// connect and serves snapshot and cancel requests.
type Handler struct {
	hub    *Hub
	source SnapshotSource
	cancel func()
	log    zerolog.Logger
}

// NewHandler returns a handler. cancel may be nil when runs cannot be
// canceled remotely.
func NewHandler(hub *Hub, source SnapshotSource, cancel func()) *Handler {
	return &Handler{hub: hub, source: source, cancel: cancel, log: hub.log}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := &Client{
		hub:  h.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}

	h.hub.Register(client)
	go client.writePump()

	// Send the current table
	h.sendSnapshot(client)

	// Read messages from client
	h.readPump(client)
}

func (h *Handler) readPump(c *Client) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		h.handleMessage(c, msg)
	}
}

func (h *Handler) handleMessage(c *Client, msg []byte) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		h.log.Warn().Err(err).Msg("invalid message")
		return
	}

	switch env.Type {
	case TypeSnapshotRequest:
		h.sendSnapshot(c)

	case TypeRunCancel:
		if h.cancel == nil {
			h.log.Warn().Msg("run cancel requested but not supported")
			return
		}
		h.log.Info().Msg("run cancel requested")
		h.cancel()

	default:
		h.log.Warn().Str("type", env.Type).Msg("unknown message type")
	}
}

func (h *Handler) snapshotMessage() ([]byte, error) {
	id, table := h.source.Snapshot()
	return NewEnvelope(TypeRunSnapshot, SnapshotPayload{RunID: id, Table: table})
}

func (h *Handler) sendSnapshot(c *Client) {
	msg, err := h.snapshotMessage()
	if err != nil {
		h.log.Error().Err(err).Msg("creating run:snapshot message")
		return
	}

	h.hub.Send(c, msg)
}
