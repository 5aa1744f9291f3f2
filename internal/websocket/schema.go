package websocket

import "github.com/stemsi/examflow-backend/internal/model"

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventSnapshot Event = "snapshot"
	EventSession  Event = "session"
	EventPing     Event = "ping"
	EventError    Event = "error"
)

// SnapshotResponse carries the full result listing sent once on attach.
type SnapshotResponse struct {
	Event   Event              `json:"event"`
	Results []model.ExamResult `json:"results"`
}

// SessionEventResponse carries one live session transition.
type SessionEventResponse struct {
	Event   Event              `json:"event"`
	Session model.MonitorEvent `json:"session"`
}

// PingResponse keeps idle connections alive through proxies.
type PingResponse struct {
	Event Event `json:"event"`
}

// ErrorResponse reports a stream-level failure before closing.
type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}
