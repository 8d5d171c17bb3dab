package timer

import (
	"fmt"
	"sort"
)

// Add inserts a new active timer with its full duration left.
// On error the returned set is s itself.
func Add(s Set, name string, totalSeconds int, loop bool) (Set, error) {
	if name == "" {
		return s, ErrEmptyName
	}
	if totalSeconds < 1 {
		return s, fmt.Errorf("%w: %q", ErrDurationZero, name)
	}
	if _, ok := s[name]; ok {
		return s, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}

	next := s.Clone()
	next[name] = Timer{
		TotalSeconds: totalSeconds,
		SecondsLeft:  totalSeconds,
		Loop:         loop,
		Active:       true,
	}

	return next, nil
}

// Remove deletes a timer. Removing an unknown name is a no-op.
func Remove(s Set, name string) Set {
	next := s.Clone()
	delete(next, name)
	return next
}

// SetLoop updates the loop flag of an existing timer.
// An inactive timer stays inactive.
func SetLoop(s Set, name string, loop bool) (Set, error) {
	t, ok := s[name]
	if !ok {
		return s, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	next := s.Clone()
	t.Loop = loop
	next[name] = t

	return next, nil
}

// Tick advances every active timer by one second.
//
// A timer expires in the tick that brings it to zero: it emits one event and
// is either rearmed to its full duration (loop) or deactivated. Events are
// sorted by name.
func Tick(s Set) (Set, []ExpiredEvent) {
	next := make(Set, len(s))
	var expired []ExpiredEvent

	for name, t := range s {
		if !t.Active {
			t.NoticePending = false
			next[name] = t
			continue
		}

		if t.SecondsLeft > 0 {
			t.SecondsLeft--
			t.NoticePending = false
			if t.SecondsLeft > 0 {
				next[name] = t
				continue
			}
		}

		// Reached zero in this tick, or was loaded already sitting at zero.
		if !t.NoticePending {
			expired = append(expired, ExpiredEvent{Name: name, Loop: t.Loop})
		}
		t.NoticePending = true
		if t.Loop {
			t.SecondsLeft = t.TotalSeconds
		} else {
			t.Active = false
			t.SecondsLeft = 0
		}
		next[name] = t
	}

	sort.Slice(expired, func(i, j int) bool { return expired[i].Name < expired[j].Name })

	return next, expired
}
