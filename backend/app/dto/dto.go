package dto

// BlockEventResponse is one log entry as seen by clients.
type BlockEventResponse struct {
	ID        uint   `json:"id"`
	AgentID   string `json:"agentId,omitempty"`
	Platform  string `json:"platform"`
	Action    string `json:"action"`
	URL       string `json:"url"`
	CreatedAt int64  `json:"createdAt"` // epoch millis
}

// FocusStatusResponse reports the focus/pomodoro signal.
type FocusStatusResponse struct {
	Active bool   `json:"active"`
	Kind   string `json:"kind,omitempty"`
	EndsAt int64  `json:"endsAt,omitempty"` // epoch millis, 0 when open-ended
}

// PingResponse answers the liveness probe.
type PingResponse struct {
	Alive bool  `json:"alive"`
	Time  int64 `json:"time"` // epoch millis
}
