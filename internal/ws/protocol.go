package ws

import (
	"github.com/flip-racer/flipsim/internal/sim"
)

type MessageType string

const (
	MsgStatus     MessageType = "status"
	MsgUpdate     MessageType = "simulation_update"
	MsgStatistics MessageType = "statistics_update"
	MsgCompleted  MessageType = "simulation_completed"
	MsgError      MessageType = "error"

	// MsgResync is the only message type accepted from clients.
	MsgResync MessageType = "resync"
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Seq     uint64      `json:"seq"`
	Payload interface{} `json:"payload"`
}

// ClientMessage is an inbound frame. Anything other than a resync is ignored.
type ClientMessage struct {
	Type MessageType `json:"type"`
}

type StatusPayload struct {
	Message    string          `json:"message"`
	State      sim.State       `json:"state"`
	Statistics *sim.Statistics `json:"statistics,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
