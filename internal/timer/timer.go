// Package timer holds the countdown state machine. Every function is pure:
// callers pass a Set in and get the next Set back, the input is never mutated.
package timer

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrDurationZero is returned when a timer is created without a duration.
	ErrDurationZero = errors.New("duration must be greater than zero")
	// ErrDuplicateName is returned when a timer with the same name already exists.
	ErrDuplicateName = errors.New("timer already exists")
	// ErrNotFound is returned when a mutation targets a timer that does not exist.
	ErrNotFound = errors.New("timer not found")
	// ErrEmptyName is returned when a timer is created without a name.
	ErrEmptyName = errors.New("timer name must not be empty")
)

// Timer is a single named countdown. The name is the key in a Set.
type Timer struct {
	TotalSeconds int  `json:"total_seconds"`
	SecondsLeft  int  `json:"seconds_left"`
	Loop         bool `json:"loop"`
	Active       bool `json:"active"`

	// NoticePending is true only in the cycle the timer expired in.
	// It is never persisted.
	NoticePending bool `json:"-"`
}

// Remaining formats the seconds left as MM:SS.
func (t Timer) Remaining() string {
	return fmt.Sprintf("%02d:%02d", t.SecondsLeft/60, t.SecondsLeft%60)
}

// Progress returns the elapsed fraction of the timer between 0 and 1.
func (t Timer) Progress() float64 {
	if t.TotalSeconds <= 0 {
		return 1
	}
	return float64(t.TotalSeconds-t.SecondsLeft) / float64(t.TotalSeconds)
}

// Validate checks the record invariants.
func (t Timer) Validate() error {
	if t.TotalSeconds < 1 {
		return fmt.Errorf("total_seconds must be at least 1, got %d", t.TotalSeconds)
	}
	if t.SecondsLeft < 0 || t.SecondsLeft > t.TotalSeconds {
		return fmt.Errorf("seconds_left %d out of range [0, %d]", t.SecondsLeft, t.TotalSeconds)
	}
	if !t.Active && t.SecondsLeft != 0 {
		return fmt.Errorf("inactive timer has %d seconds left", t.SecondsLeft)
	}
	return nil
}

// Set maps timer names to timers.
type Set map[string]Timer

// Clone returns a copy of s. A nil Set clones to an empty one.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for name, t := range s {
		out[name] = t
	}
	return out
}

// Names returns the timer names in lexical order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Equal reports whether both sets hold the same persisted fields.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for name, t := range s {
		o, ok := other[name]
		if !ok {
			return false
		}
		t.NoticePending, o.NoticePending = false, false
		if t != o {
			return false
		}
	}
	return true
}

// ExpiredEvent reports that a timer reached zero during a tick.
type ExpiredEvent struct {
	Name string `json:"name"`
	Loop bool   `json:"loop"`
}
