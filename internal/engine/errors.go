package engine

import "errors"

var (
	ErrAlignment  = errors.New("bars and signals are misaligned")
	ErrConfig     = errors.New("invalid backtest config")
	ErrEngineUsed = errors.New("engine already ran, call Reset before running again")
)
