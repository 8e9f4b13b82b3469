package client

import (
	"encoding/json"

	"github.com/flip-racer/flipsim/internal/runner"
	"github.com/flip-racer/flipsim/internal/session"
	"github.com/flip-racer/flipsim/internal/sim"
	"github.com/flip-racer/flipsim/internal/ws"
)

// Wire types shared with the server.
type (
	MessageType      = ws.MessageType
	StatusPayload    = ws.StatusPayload
	ErrorPayload     = ws.ErrorPayload
	Statistics       = sim.Statistics
	StepResult       = sim.StepResult
	Update           = session.Update
	Snapshot         = session.Snapshot
	ConfigureRequest = runner.ConfigureRequest
)

const (
	MsgStatus     = ws.MsgStatus
	MsgUpdate     = ws.MsgUpdate
	MsgStatistics = ws.MsgStatistics
	MsgCompleted  = ws.MsgCompleted
	MsgError      = ws.MsgError
	MsgResync     = ws.MsgResync
)

// WSMessage is an inbound envelope with the payload left undecoded.
type WSMessage struct {
	Type    MessageType     `json:"type"`
	Seq     uint64          `json:"seq"`
	Payload json.RawMessage `json:"payload"`
}

// StatusResponse is the body of GET /api/simulation/status. Statistics is nil
// before the first run.
type StatusResponse struct {
	State      sim.State
	Statistics *Statistics
}
