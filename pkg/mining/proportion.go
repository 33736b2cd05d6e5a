package mining

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/defectlab/pkg/alg/stats"
	"github.com/Sumatoshi-tech/defectlab/pkg/dataset"
)

// Strategy selects how historical proportions are aggregated.
type Strategy string

const (
	// Incremental averages the proportion of every earlier resolved ticket.
	Incremental Strategy = "incremental"
	// MovingWindow averages the proportion of the most recent resolved tickets.
	MovingWindow Strategy = "moving_window"
)

// Proportion defaults.
const (
	DefaultRatio      = 1.0
	DefaultWindowSize = 5
)

// ErrUnknownStrategy is returned for unsupported proportion strategies.
var ErrUnknownStrategy = errors.New("unknown proportion strategy")

// ParseStrategy parses a strategy name.
func ParseStrategy(name string) (Strategy, error) {
	switch s := Strategy(strings.ToLower(name)); s {
	case Incremental, MovingWindow:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// ProportionOptions configures injected version estimation.
type ProportionOptions struct {
	Strategy   Strategy
	WindowSize int
	// DefaultRatio is used while no resolved ticket with a known injected
	// version precedes the estimated one.
	DefaultRatio float64
}

// Ratio returns P = (FV - IV) / (FV - OV) for a ticket with a known injected
// version. The denominator is at least 1.
func Ratio(t dataset.Ticket) float64 {
	return float64(t.Fixed-t.Injected) / float64(max(t.Fixed-t.Opening, 1))
}

// EstimateInjected fills the injected version of tickets without one and sets
// their affected versions to [IV, FV). Tickets are visited in resolution
// order, so an estimate uses only tickets resolved before it. Estimates are
// clamped to [OV, FV]. A new slice is returned.
func EstimateInjected(tickets []dataset.Ticket, opts ProportionOptions) []dataset.Ticket {
	if opts.WindowSize <= 0 {
		opts.WindowSize = DefaultWindowSize
	}

	if opts.DefaultRatio <= 0 || math.IsNaN(opts.DefaultRatio) {
		opts.DefaultRatio = DefaultRatio
	}

	out := make([]dataset.Ticket, len(tickets))
	for i, t := range tickets {
		out[i] = t.Clone()
	}

	order := make([]int, len(out))
	for i := range order {
		order[i] = i
	}

	slices.SortStableFunc(order, func(a, b int) int {
		return out[a].Resolved.Compare(out[b].Resolved)
	})

	var history []float64

	for _, i := range order {
		t := &out[i]

		if t.Injected > 0 {
			history = append(history, Ratio(*t))

			continue
		}

		p := opts.DefaultRatio

		switch opts.Strategy {
		case MovingWindow:
			if mean, ok := stats.WindowMean(history, opts.WindowSize); ok {
				p = mean
			}
		default:
			if len(history) > 0 {
				p = stats.Mean(history)
			}
		}

		t.Injected = EstimateIV(t.Opening, t.Fixed, p)
		t.Estimated = true
		t.AffectedVersions = t.AffectedVersions[:0]

		for av := t.Injected; av < t.Fixed; av++ {
			t.AffectedVersions = append(t.AffectedVersions, av)
		}
	}

	return out
}

// EstimateIV solves the proportion for the injected version and clamps the
// result to [opening, fixed].
func EstimateIV(opening, fixed int, p float64) int {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		p = DefaultRatio
	}

	iv := int(math.Round(float64(fixed) - float64(fixed-opening)*p))

	return stats.Clamp(iv, opening, fixed)
}
