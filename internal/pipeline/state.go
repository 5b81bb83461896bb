package pipeline

import (
	"deepdefender/internal/acquire"
	"deepdefender/internal/classifier"
	"deepdefender/internal/preview"
)

// Phase is the orchestrator's coarse lifecycle position.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseInFlight
	PhaseSettled
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseInFlight:
		return "in_flight"
	case PhaseSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// Outcome is one of Pending, Verdict or Failure.
type Outcome interface {
	outcome()
}

// Pending marks an attempt whose response has not arrived.
type Pending struct{}

// Verdict is the derived classification for a successful response.
type Verdict struct {
	Probability   float64
	FakePercent   float64
	IsManipulated bool
	// Confidence is an integer percentage in [50, 100].
	Confidence int
	// EstimatedProcessingSeconds is a display placeholder in [1.0, 3.0]. It is
	// not a measurement.
	EstimatedProcessingSeconds float64
	FrameCount                 int
	AnomalyCount               int
}

// Failure is a user-visible error message for a failed attempt.
type Failure struct {
	Message    string
	Kind       classifier.ErrorKind
	StatusCode int
}

func (Pending) outcome() {}
func (Verdict) outcome() {}
func (Failure) outcome() {}

// State is an immutable snapshot of the pipeline. Consumers must not mutate
// File or Preview.
type State struct {
	Phase   Phase
	Attempt string
	File    *acquire.InputFile
	Preview *preview.Handle
	Outcome Outcome
	// InFlight is true exactly while Outcome is Pending.
	InFlight bool
	// Version increases with every published snapshot.
	Version uint64
}

// Verdict returns the settled verdict, if any.
func (s State) Verdict() (Verdict, bool) {
	v, ok := s.Outcome.(Verdict)
	return v, ok
}

// Failure returns the settled failure, if any.
func (s State) Failure() (Failure, bool) {
	f, ok := s.Outcome.(Failure)
	return f, ok
}

// Settled reports whether the current attempt has produced its outcome.
func (s State) Settled() bool {
	return s.Phase == PhaseSettled
}
