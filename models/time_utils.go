package models

import (
	"fmt"
	"strings"
	"time"
)

// Timeframe is a candle interval in the provider's notation
type Timeframe string

const (
	Timeframe1Min  Timeframe = "1min"
	Timeframe5Min  Timeframe = "5min"
	Timeframe15Min Timeframe = "15min"
	Timeframe30Min Timeframe = "30min"
	Timeframe45Min Timeframe = "45min"
	Timeframe1H    Timeframe = "1h"
	Timeframe2H    Timeframe = "2h"
	Timeframe4H    Timeframe = "4h"
	Timeframe8H    Timeframe = "8h"
	Timeframe1Day  Timeframe = "1day"
	Timeframe1Week Timeframe = "1week"
)

var timeframeDurations = map[Timeframe]time.Duration{
	Timeframe1Min:  time.Minute,
	Timeframe5Min:  5 * time.Minute,
	Timeframe15Min: 15 * time.Minute,
	Timeframe30Min: 30 * time.Minute,
	Timeframe45Min: 45 * time.Minute,
	Timeframe1H:    time.Hour,
	Timeframe2H:    2 * time.Hour,
	Timeframe4H:    4 * time.Hour,
	Timeframe8H:    8 * time.Hour,
	Timeframe1Day:  24 * time.Hour,
	Timeframe1Week: 7 * 24 * time.Hour,
}

// ParseTimeframe validates an interval string
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := timeframeDurations[tf]; !ok {
		return "", fmt.Errorf("unsupported timeframe %q", s)
	}
	return tf, nil
}

// ParseTimeframes parses a comma separated list, dropping duplicates
func ParseTimeframes(s string) ([]Timeframe, error) {
	var out []Timeframe
	seen := make(map[Timeframe]bool)
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		tf, err := ParseTimeframe(part)
		if err != nil {
			return nil, err
		}
		if seen[tf] {
			continue
		}
		seen[tf] = true
		out = append(out, tf)
	}
	return out, nil
}

// Duration returns the length of one candle, zero for unknown intervals
func (tf Timeframe) Duration() time.Duration {
	return timeframeDurations[tf]
}

// Valid reports whether the interval is supported
func (tf Timeframe) Valid() bool {
	_, ok := timeframeDurations[tf]
	return ok
}

// Longer reports whether tf spans more time than other
func (tf Timeframe) Longer(other Timeframe) bool {
	return tf.Duration() > other.Duration()
}

// StartOfDayUTC truncates t to midnight UTC
func StartOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDayUTC reports whether a and b fall on the same UTC calendar day
func SameDayUTC(a, b time.Time) bool {
	return StartOfDayUTC(a).Equal(StartOfDayUTC(b))
}
