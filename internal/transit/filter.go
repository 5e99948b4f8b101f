package transit

import (
	"fmt"
	"sort"
	"time"

	"github.com/dlclark/regexp2"
)

// MaxSnapshotDepartures is how many departures a snapshot retains.
const MaxSnapshotDepartures = 3

// FilterConfigError indicates an invalid filter configuration, currently an
// unparseable destination pattern. It is raised when a subscription is
// created, never during a poll cycle.
type FilterConfigError struct {
	Pattern string
	Err     error
}

func (e *FilterConfigError) Error() string {
	return fmt.Sprintf("invalid destination filter %q: %v", e.Pattern, e.Err)
}

func (e *FilterConfigError) Unwrap() error {
	return e.Err
}

// Filters holds a subscription's departure filters. The destination pattern
// is compiled at construction so poll cycles only ever see a valid regexp.
type Filters struct {
	Platform string
	Line     string

	destinationPattern string
	destination        *regexp2.Regexp
}

// destinationMatchTimeout bounds a single destination match. Patterns come
// from user configuration and regexp2 permits backtracking, so a runaway
// pattern must not stall a poll cycle.
const destinationMatchTimeout = 100 * time.Millisecond

// NewFilters builds the filter set for a subscription. An empty value
// disables the corresponding filter. An invalid destination pattern returns
// a FilterConfigError.
//
// Destination patterns use regexp2 rather than the standard library engine
// so that lookaround-based exclusion patterns like ^((?!Bismarckplatz).)*$
// keep working for users migrating filter configs from PCRE-based tools.
func NewFilters(platform, line, destinationPattern string) (Filters, error) {
	f := Filters{
		Platform:           platform,
		Line:               line,
		destinationPattern: destinationPattern,
	}
	if destinationPattern != "" {
		re, err := regexp2.Compile(destinationPattern, regexp2.None)
		if err != nil {
			return Filters{}, &FilterConfigError{Pattern: destinationPattern, Err: err}
		}
		re.MatchTimeout = destinationMatchTimeout
		f.destination = re
	}
	return f, nil
}

// DestinationPattern returns the configured destination pattern, empty when
// no destination filter is set.
func (f Filters) DestinationPattern() string {
	return f.destinationPattern
}

// Match reports whether a departure passes all configured filters. Platform
// and line are exact matches; the destination pattern is a substring search.
func (f Filters) Match(d Departure) bool {
	if f.Platform != "" && d.Platform != f.Platform {
		return false
	}
	if f.Line != "" && d.Line != f.Line {
		return false
	}
	if f.destination != nil {
		matched, err := f.destination.MatchString(d.Destination)
		if err != nil || !matched {
			// err can only be a match timeout; treat it as a non-match.
			return false
		}
	}
	return true
}

// Select applies the filters and returns the next departures in display
// order, at most MaxSnapshotDepartures. Departures whose effective time is
// more than grace before now are dropped; grace lets backends with jittery
// realtime feeds keep just-departed vehicles visible. Fewer than three
// matches yield a shorter, possibly empty, result.
func Select(departures []Departure, f Filters, now time.Time, grace time.Duration) []Departure {
	earliest := now.Add(-grace)

	selected := make([]Departure, 0, len(departures))
	for _, d := range departures {
		if !f.Match(d) {
			continue
		}
		t := d.EffectiveTime()
		if t.Before(earliest) {
			continue
		}
		// Without a grace window only strictly future departures count.
		if grace == 0 && t.Equal(earliest) {
			continue
		}
		selected = append(selected, d)
	}

	// Ascending by effective time; ties broken by line label so the order is
	// deterministic across polls.
	sort.SliceStable(selected, func(i, j int) bool {
		ti, tj := selected[i].EffectiveTime(), selected[j].EffectiveTime()
		if ti.Equal(tj) {
			return selected[i].Line < selected[j].Line
		}
		return ti.Before(tj)
	})

	if len(selected) > MaxSnapshotDepartures {
		selected = selected[:MaxSnapshotDepartures]
	}
	return selected
}
