package transform

import "fmt"

// Outcome is the terminal state of one file transformation.
type Outcome int

const (
	Written Outcome = iota
	SkippedAlreadyDone
	SkippedNotFound
)

func (o Outcome) String() string {
	switch o {
	case Written:
		return "written"
	case SkippedAlreadyDone:
		return "skipped (already done)"
	case SkippedNotFound:
		return "skipped (not found)"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Stats counts what a run did.
type Stats struct {
	Written    int `json:"written"`
	Skipped    int `json:"skipped"`
	Statements int `json:"statements"`
	Rewrites   int `json:"rewrites"`
	Assets     int `json:"assets"`
	Failures   int `json:"failures"`
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Written += other.Written
	s.Skipped += other.Skipped
	s.Statements += other.Statements
	s.Rewrites += other.Rewrites
	s.Assets += other.Assets
	s.Failures += other.Failures
}

// State is the traversal state of one run: the set of output paths already
// produced and the counters. It belongs to a single run and is not safe for
// concurrent use.
type State struct {
	done    map[string]struct{}
	written []string

	Stats Stats
}

// NewState returns an empty state.
func NewState() *State {
	return &State{done: make(map[string]struct{})}
}

// Done reports whether output was already produced in this run.
func (s *State) Done(output string) bool {
	_, ok := s.done[output]
	return ok
}

func (s *State) markDone(output string) {
	s.done[output] = struct{}{}
	s.written = append(s.written, output)
	s.Stats.Written++
}

// Len returns the number of outputs produced.
func (s *State) Len() int {
	return len(s.done)
}

// Written returns the produced outputs in the order they were written.
func (s *State) Written() []string {
	return append([]string(nil), s.written...)
}

// Reset forgets every produced output and zeroes the counters.
func (s *State) Reset() {
	s.done = make(map[string]struct{})
	s.written = nil
	s.Stats = Stats{}
}
