package materializer

import "github.com/roomyhq/spacepeer/internal/schema"

// Outcome is the per-event result spec.md §4.4 requires: applied,
// parked, or failed(reason).
type Outcome int

const (
	Applied Outcome = iota
	Parked
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Parked:
		return "parked"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// EventResult is one event's outcome within a BatchResult.
type EventResult struct {
	EventID schema.ID
	Outcome Outcome
	Reason  string // non-empty only for Failed
}

// BatchResult is what Apply returns: the per-event outcomes plus the
// set of table names the batch's commit touched, for the Live Query
// Engine to re-evaluate against.
type BatchResult struct {
	BatchID       schema.ID
	Events        []EventResult
	TouchedTables []string
}

// AllSucceeded reports whether every event in the batch applied or
// parked (neither is a store-level failure requiring retry).
func (r BatchResult) AllSucceeded() bool {
	for _, e := range r.Events {
		if e.Outcome == Failed {
			return false
		}
	}
	return true
}
