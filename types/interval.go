package types

import "time"

type Interval string

const (
	Day   Interval = "D"
	Week  Interval = "W"
	Month Interval = "M"
)

var IntervalToTime = map[Interval]time.Duration{
	Day:  time.Hour * 24,
	Week: time.Hour * 24 * 7,
}

// BarsPerYear is the annualization factor used by the analyzer for each interval.
var BarsPerYear = map[Interval]int{
	Day:   252,
	Week:  52,
	Month: 12,
}

var ConvertInterval = map[string]Interval{
	"D": Day,
	"W": Week,
	"M": Month,
}
