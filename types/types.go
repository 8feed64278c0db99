package types

// ---- Common service state (retained) ----

type ServiceState struct {
	Level  string `json:"level"`  // "idle", "up", "degraded", "error", "stopped"
	Status string `json:"status"` // short machine string
	TS     int64  `json:"ts_ms"`
	Error  string `json:"error,omitempty"`
}
