package models

import "time"

// SubScores holds the three independently bounded components of a score.
type SubScores struct {
	Technical   float64 `json:"technical"`
	Momentum    float64 `json:"momentum"`
	Fundamental float64 `json:"fundamental"`
}

// ScoreSnapshot holds the market context a ScoreCard was computed from.
type ScoreSnapshot struct {
	Name   string  `json:"name"`
	Sector string  `json:"sector"`
	Price  float64 `json:"price"`
	Volume int64   `json:"volume"`
}

// ScoreCard is a candidate's composite ranking record. It is created once per
// screening pass and only compared afterwards.
type ScoreCard struct {
	Symbol     string           `json:"symbol"`
	Scores     SubScores        `json:"scores"`
	Total      float64          `json:"total_score"`
	Potential  bool             `json:"potential"`
	Snapshot   ScoreSnapshot    `json:"snapshot"`
	Indicators *IndicatorSet    `json:"indicators,omitempty"`
	Condition  *MarketCondition `json:"condition,omitempty"`
	Commentary string           `json:"commentary,omitempty"`
}

// ScreenResult is the output of one screening pass.
type ScreenResult struct {
	RunID      string       `json:"run_id"`
	Candidates []*ScoreCard `json:"candidates"`
	Universe   int          `json:"universe"`
	Evaluated  int          `json:"evaluated"`
	Failed     int          `json:"failed"`
	BelowCut   int          `json:"below_cutoff"`
	TimedOut   bool         `json:"timed_out"`
	StartedAt  time.Time    `json:"started_at"`
	Elapsed    string       `json:"elapsed"`
}
