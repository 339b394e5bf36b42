package poll

import (
	"fmt"
	"time"
)

// State is the loop's current phase.
type State int

const (
	Idle State = iota
	Fetching
	Filtering
	Processing
	Sleeping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Filtering:
		return "filtering"
	case Processing:
		return "processing"
	case Sleeping:
		return "sleeping"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText renders the state by name in JSON output.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for c := Idle; c <= Sleeping; c++ {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown loop state %q", b)
}

// Stats are cumulative loop counters.
type Stats struct {
	State         State     `json:"state"`
	Cycles        int       `json:"cycles"`
	FetchFailures int       `json:"fetch_failures"`
	Processed     int       `json:"processed"`
	Failed        int       `json:"failed"`
	Empty         int       `json:"empty"`
	SkippedKnown  int       `json:"skipped_known"`
	LastCycle     time.Time `json:"last_cycle,omitzero"`
}

// Stats returns a snapshot of the counters. Safe for concurrent use.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	l.stats.State = s
	l.mu.Unlock()
}

func (l *Loop) addKnown(n int) {
	l.mu.Lock()
	l.stats.SkippedKnown += n
	l.mu.Unlock()
}

func (l *Loop) finishCycle(r CycleReport, fetchFailed bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stats.Cycles++
	if fetchFailed {
		l.stats.FetchFailures++
	}
	l.stats.Processed += r.Processed
	l.stats.Failed += r.Failed
	l.stats.Empty += r.Empty
	l.stats.LastCycle = time.Now().UTC()
}
