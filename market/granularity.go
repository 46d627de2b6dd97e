package market

import (
	"errors"
	"fmt"
	"strings"
)

// Granularity is the bucket size of a bar, e.g. "1h" or "1d".
type Granularity string

const (
	Minute         Granularity = "1m"
	FiveMinutes    Granularity = "5m"
	FifteenMinutes Granularity = "15m"
	ThirtyMinutes  Granularity = "30m"
	Hour           Granularity = "1h"
	FourHours      Granularity = "4h"
	Day            Granularity = "1d"
	Week           Granularity = "1w"
	Month          Granularity = "1M"
)

// ErrUnsupportedGranularity is returned when a granularity is unknown or a
// provider cannot serve it.
var ErrUnsupportedGranularity = errors.New("unsupported granularity")

var supported = map[Granularity]bool{
	Minute:         true,
	FiveMinutes:    true,
	FifteenMinutes: true,
	ThirtyMinutes:  true,
	Hour:           true,
	FourHours:      true,
	Day:            true,
	Week:           true,
	Month:          true,
}

// ParseGranularity validates s. Month is case sensitive ("1M" vs "1m");
// everything else is matched case-insensitively.
func ParseGranularity(s string) (Granularity, error) {
	s = strings.TrimSpace(s)
	if s == "1M" {
		return Month, nil
	}
	g := Granularity(strings.ToLower(s))
	if !supported[g] {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedGranularity, s)
	}
	return g, nil
}

func (g Granularity) String() string { return string(g) }
