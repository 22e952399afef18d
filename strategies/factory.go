package strategies

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

const (
	NameSMACross  = "sma_cross"
	NameRSI       = "rsi"
	NameBollinger = "bollinger"
	NameDonchian  = "donchian"
)

// Params holds numeric strategy parameters by key. Missing keys fall back to
// the strategy's defaults.
type Params map[string]float64

var defaults = map[string]Params{
	NameSMACross:  {"short": 20, "long": 50},
	NameRSI:       {"period": 14, "oversold": 30, "overbought": 70},
	NameBollinger: {"window": 20, "k": 2},
	NameDonchian:  {"window": 20},
}

// Names lists the registered strategies.
func Names() []string {
	names := make([]string, 0, len(defaults))
	for name := range defaults {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Defaults returns a copy of the default parameters of a strategy.
func Defaults(name string) (Params, error) {
	def, ok := defaults[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownStrategy, name, strings.Join(Names(), ", "))
	}
	out := make(Params, len(def))
	for k, v := range def {
		out[k] = v
	}
	return out, nil
}

// New builds the named generator, overlaying params on its defaults.
func New(name string, params Params) (Generator, error) {
	p, err := Defaults(name)
	if err != nil {
		return nil, err
	}
	for k, v := range params {
		if _, known := p[k]; !known {
			return nil, fmt.Errorf("%w: %s does not take parameter %q", ErrInvalidParams, name, k)
		}
		p[k] = v
	}

	switch name {
	case NameSMACross:
		short, err := p.intParam("short")
		if err != nil {
			return nil, err
		}
		long, err := p.intParam("long")
		if err != nil {
			return nil, err
		}
		return NewSMACross(short, long)
	case NameRSI:
		period, err := p.intParam("period")
		if err != nil {
			return nil, err
		}
		return NewRSIReversion(period, p["oversold"], p["overbought"])
	case NameBollinger:
		window, err := p.intParam("window")
		if err != nil {
			return nil, err
		}
		return NewBollingerReversion(window, p["k"])
	default:
		window, err := p.intParam("window")
		if err != nil {
			return nil, err
		}
		return NewDonchian(window)
	}
}

func (p Params) intParam(key string) (int, error) {
	v := p[key]
	if v != math.Trunc(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s must be a whole number, got %v", ErrInvalidParams, key, v)
	}
	return int(v), nil
}
