// Package events is the in-process signal bus between the data layer and the
// UI. One signal exists per causal direction so a handler never re-raises the
// signal it is reacting to.
package events

import "time"

// Signal represents the canonical signal names on the bus.
type Signal string

// Class groups signals by causal role; re-entrancy is controlled per class.
type Class string

// Canonical signals
const (
	SignalSaleRecorded     Signal = "sale_recorded"
	SignalStockChanged     Signal = "stock_changed"
	SignalProductListStale Signal = "product_list_stale"
	SignalSaleListStale    Signal = "sale_list_stale"
	SignalSyncFinished     Signal = "sync_finished"
	SignalCacheCleared     Signal = "cache_cleared"
	SignalViewModeChanged  Signal = "view_mode_changed"
)

// Signal classes
const (
	ClassMutation     Class = "mutation"     // a record changed in the store
	ClassInvalidation Class = "invalidation" // cached lists are no longer trustworthy
	ClassRefresh      Class = "refresh"      // visible lists must be rebuilt
	ClassSync         Class = "sync"         // sync engine lifecycle
)

// Payload carries the small facts a signal announces. Unused fields stay zero.
type Payload struct {
	SaleID     string
	ProductIDs []string
	Quantity   int
	ViewMode   string
	Message    string
	Time       time.Time
}

// classes maps every signal to its class.
var classes = map[Signal]Class{
	SignalSaleRecorded:     ClassMutation,
	SignalStockChanged:     ClassMutation,
	SignalProductListStale: ClassRefresh,
	SignalSaleListStale:    ClassRefresh,
	SignalSyncFinished:     ClassSync,
	SignalCacheCleared:     ClassInvalidation,
	SignalViewModeChanged:  ClassInvalidation,
}

// CausedSignals is the causation graph: which signals a handler of each
// signal may legitimately publish. The graph must stay acyclic; anything a
// handler publishes outside its row is a programming error.
var CausedSignals = map[Signal][]Signal{
	SignalSaleRecorded:     {SignalStockChanged, SignalSaleListStale},
	SignalStockChanged:     {SignalProductListStale},
	SignalSyncFinished:     {SignalProductListStale, SignalSaleListStale},
	SignalViewModeChanged:  {SignalCacheCleared},
	SignalCacheCleared:     {SignalProductListStale, SignalSaleListStale},
	SignalProductListStale: nil,
	SignalSaleListStale:    nil,
}

// AllSignals returns all valid signals.
func AllSignals() map[Signal]bool {
	all := make(map[Signal]bool, len(classes))
	for sig := range classes {
		all[sig] = true
	}
	return all
}

// IsValidSignal checks if the given signal name is valid.
func IsValidSignal(s string) bool {
	_, ok := classes[Signal(s)]
	return ok
}

// ClassOf returns the class of a signal.
func ClassOf(s Signal) Class {
	return classes[s]
}

// MayCause reports whether a handler of `from` is allowed to publish `to`.
func MayCause(from, to Signal) bool {
	for _, allowed := range CausedSignals[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidateCausationGraph checks the graph is acyclic and mentions only known
// signals. Returns the first offending chain found.
func ValidateCausationGraph() error {
	for sig, caused := range CausedSignals {
		if _, ok := classes[sig]; !ok {
			return &GraphError{Signal: sig, Reason: "unknown signal"}
		}
		for _, c := range caused {
			if _, ok := classes[c]; !ok {
				return &GraphError{Signal: c, Reason: "unknown caused signal"}
			}
		}
	}

	// DFS cycle detection
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[Signal]int)
	var visit func(Signal) error
	visit = func(s Signal) error {
		color[s] = gray
		for _, next := range CausedSignals[s] {
			switch color[next] {
			case gray:
				return &GraphError{Signal: next, Reason: "causation cycle"}
			case white:
				if err := visit(next); err != nil {
					return err
				}
			}
		}
		color[s] = black
		return nil
	}
	for sig := range CausedSignals {
		if color[sig] == white {
			if err := visit(sig); err != nil {
				return err
			}
		}
	}
	return nil
}

// GraphError describes an invalid causation graph.
type GraphError struct {
	Signal Signal
	Reason string
}

func (e *GraphError) Error() string {
	return "causation graph: " + string(e.Signal) + ": " + e.Reason
}
