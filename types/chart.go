package types

import (
	"time"
)

// Chart holds the series a plotting collaborator needs, index-aligned with Times.
type Chart struct {
	Ticker   string      `json:"ticker"`
	Times    []time.Time `json:"times"`
	Equity   []float64   `json:"equity"`
	Drawdown []float64   `json:"drawdown"`
	Returns  []float64   `json:"returns"`
	Buys     []time.Time `json:"buys"`
	Sells    []time.Time `json:"sells"`
}
