package models

import "time"

// Screen event types
const (
	EventScreenStarted   = "screen_started"
	EventSymbolScored    = "symbol_scored"
	EventSymbolFailed    = "symbol_failed"
	EventScreenCompleted = "screen_completed"
)

// ScreenEvent reports progress of a screening pass to live subscribers.
type ScreenEvent struct {
	Type       string    `json:"type"`
	RunID      string    `json:"run_id"`
	Symbol     string    `json:"symbol,omitempty"`
	Score      float64   `json:"score,omitempty"`
	Potential  bool      `json:"potential,omitempty"`
	Error      string    `json:"error,omitempty"`
	Universe   int       `json:"universe,omitempty"`
	Candidates int       `json:"candidates,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
