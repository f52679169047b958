package ws

import (
	"github.com/rs/zerolog"

	"pv_forecast/internal/runner"
)

// Bridge implements runner.Observer and broadcasts events to the WebSocket hub.
type Bridge struct {
	hub *Hub
	log zerolog.Logger
}

func NewBridge(hub *Hub) *Bridge {
	return &Bridge{hub: hub, log: hub.log}
}

func (b *Bridge) OnRunStarted(i runner.RunInfo) {
	b.broadcast(TypeRunStarted, RunStartedFromInfo(i))
}

func (b *Bridge) OnCell(c runner.CellResult) {
	b.broadcast(TypeRunCell, CellFromResult(c))
}

func (b *Bridge) OnRunFinished(s runner.Summary) {
	b.broadcast(TypeRunFinished, RunFinishedFromSummary(s))
}

func (b *Bridge) broadcast(msgType string, payload any) {
	msg, err := NewEnvelope(msgType, payload)
	if err != nil {
		b.log.Error().Err(err).Str("type", msgType).Msg("marshaling message")
		return
	}
	b.hub.Broadcast(msg)
}
