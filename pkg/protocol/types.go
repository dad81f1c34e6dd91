// Package protocol holds the JSON-RPC method names and payloads shared by
// the triad daemon and its clients.
package protocol

const (
	MethodExecute = "triad/execute"
	MethodRefresh = "triad/refresh"
	MethodStats   = "triad/stats"
	MethodPing    = "ping"
)

type ExecuteParams struct {
	AIType string `json:"ai_type" validate:"required,oneof=brain heart system"`
	Prompt string `json:"prompt" validate:"required"`
	Mode   string `json:"mode,omitempty" validate:"omitempty,oneof=standard professional advanced"`
}

type RefreshResult struct {
	Refreshed bool   `json:"refreshed"`
	Error     string `json:"error,omitempty"`
}

type PingResult struct {
	Status string `json:"status"`
	Uptime int64  `json:"uptime"`
}
