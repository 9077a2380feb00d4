// Package lifecycle holds the pieces shared by every status-bearing record:
// closed-enum parsing, transition tables and transition observers.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidTransition is wrapped by every refused status change.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrUnknownValue is wrapped when a raw string is not a member of an enum.
	ErrUnknownValue = errors.New("unknown value")
)

// TransitionError describes a refused status change on one record kind.
type TransitionError struct {
	Kind string
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %s to %s", e.Kind, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// Table lists the statuses reachable from each status. A status with no
// entry is terminal.
type Table[S ~string] map[S][]S

// Allows reports whether to is reachable from from in a single step.
func (t Table[S]) Allows(from, to S) bool {
	for _, s := range t[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (t Table[S]) Terminal(s S) bool {
	return len(t[s]) == 0
}

// Check returns a *TransitionError when the table does not allow from -> to.
func (t Table[S]) Check(kind string, from, to S) error {
	if t.Allows(from, to) {
		return nil
	}
	return &TransitionError{Kind: kind, From: string(from), To: string(to)}
}

// Parse maps raw onto one of values, ignoring case and surrounding space.
// Blank input yields def.
func Parse[S ~string](kind, raw string, def S, values ...S) (S, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	for _, v := range values {
		if strings.EqualFold(raw, string(v)) {
			return v, nil
		}
	}
	return def, fmt.Errorf("%w for %s: %q", ErrUnknownValue, kind, raw)
}

// Is reports whether v equals want ignoring case. Used by predicates that
// must tolerate values loaded from legacy rows.
func Is[S ~string](v, want S) bool {
	return strings.EqualFold(strings.TrimSpace(string(v)), string(want))
}
