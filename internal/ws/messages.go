package ws

import (
	"encoding/json"
	"time"

	"pv_forecast/internal/results"
	"pv_forecast/internal/runner"
)

// Envelope wraps all WebSocket messages with a type discriminator.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message type constants
const (
	// Client -> Server
	TypeSnapshotRequest = "run:get_snapshot"
	TypeRunCancel       = "run:cancel"

	// Server -> Client
	TypeRunStarted  = "run:started"
	TypeRunCell     = "run:cell"
	TypeRunFinished = "run:finished"
	TypeRunSnapshot = "run:snapshot"
)

// Server -> Client messages

type RunStartedPayload struct {
	RunID     string   `json:"run_id"`
	Locations []string `json:"locations"`
	Windows   []string `json:"windows"`
	Models    []string `json:"models"`
	Columns   []string `json:"columns"`
	Rows      int      `json:"rows"`
}

type CellPayload struct {
	RunID     string             `json:"run_id"`
	Row       string             `json:"row"`
	Location  string             `json:"location"`
	Window    string             `json:"window"`
	Filter    []string           `json:"filter,omitempty"`
	Model     string             `json:"model"`
	Scores    map[string]float64 `json:"scores,omitempty"`
	Error     string             `json:"error,omitempty"`
	Warnings  []string           `json:"warnings,omitempty"`
	ElapsedMs int64              `json:"elapsed_ms"`
}

type RunFinishedPayload struct {
	RunID     string `json:"run_id"`
	Cells     int    `json:"cells"`
	Failed    int    `json:"failed"`
	Canceled  bool   `json:"canceled"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

type SnapshotPayload struct {
	RunID string           `json:"run_id"`
	Table results.Snapshot `json:"table"`
}

func NewEnvelope(msgType string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

func RunStartedFromInfo(i runner.RunInfo) RunStartedPayload {
	return RunStartedPayload{
		RunID:     i.RunID,
		Locations: i.Locations,
		Windows:   i.Windows,
		Models:    i.Models,
		Columns:   i.Columns,
		Rows:      i.Rows,
	}
}

func CellFromResult(c runner.CellResult) CellPayload {
	p := CellPayload{
		RunID:     c.RunID,
		Row:       c.Row,
		Location:  c.Location,
		Window:    c.Window,
		Filter:    c.Filter,
		Model:     c.Model,
		Scores:    c.Scores,
		Warnings:  c.Warnings,
		ElapsedMs: c.Elapsed.Milliseconds(),
	}
	if c.Err != nil {
		p.Error = c.Err.Error()
	}
	return p
}

func RunFinishedFromSummary(s runner.Summary) RunFinishedPayload {
	return RunFinishedPayload{
		RunID:     s.RunID,
		Cells:     s.Cells,
		Failed:    s.Failed,
		Canceled:  s.Canceled,
		ElapsedMs: s.Elapsed.Round(time.Millisecond).Milliseconds(),
	}
}
