package timer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdd(t *testing.T) {
	t.Run("new timer starts full and active", func(t *testing.T) {
		for _, total := range []int{1, 10, 90, 3600} {
			s, err := Add(Set{}, "Boss", total, false)
			require.NoError(t, err)
			assert.Equal(t, Timer{TotalSeconds: total, SecondsLeft: total, Active: true}, s["Boss"])
		}
	})

	t.Run("zero duration is rejected", func(t *testing.T) {
		s := Set{"A": {TotalSeconds: 5, SecondsLeft: 5, Active: true}}
		next, err := Add(s, "T", 0, false)
		assert.ErrorIs(t, err, ErrDurationZero)
		assert.True(t, next.Equal(s))
		assert.NotContains(t, next, "T")
	})

	t.Run("negative duration is rejected", func(t *testing.T) {
		_, err := Add(Set{}, "T", -3, true)
		assert.ErrorIs(t, err, ErrDurationZero)
	})

	t.Run("duplicate name is rejected", func(t *testing.T) {
		s, err := Add(Set{}, "Boss", 90, false)
		require.NoError(t, err)

		next, err := Add(s, "Boss", 30, true)
		assert.ErrorIs(t, err, ErrDuplicateName)
		assert.Equal(t, Timer{TotalSeconds: 90, SecondsLeft: 90, Active: true}, next["Boss"])
	})

	t.Run("empty name is rejected", func(t *testing.T) {
		_, err := Add(Set{}, "", 10, false)
		assert.ErrorIs(t, err, ErrEmptyName)
	})

	t.Run("input set is not mutated", func(t *testing.T) {
		s := Set{}
		_, err := Add(s, "Boss", 10, false)
		require.NoError(t, err)
		assert.Empty(t, s)
	})
}

func TestRemove(t *testing.T) {
	s := Set{"Boss": {TotalSeconds: 5, SecondsLeft: 3, Active: true}}

	t.Run("absent name is a no-op", func(t *testing.T) {
		next := Remove(s, "Ghost")
		assert.True(t, next.Equal(s))
	})

	t.Run("present name is removed", func(t *testing.T) {
		next := Remove(s, "Boss")
		assert.Empty(t, next)
		assert.Contains(t, s, "Boss")
	})

	t.Run("removing twice is idempotent", func(t *testing.T) {
		once := Remove(s, "Boss")
		twice := Remove(once, "Boss")
		assert.True(t, once.Equal(twice))
	})
}

func TestSetLoop(t *testing.T) {
	s := Set{"Boss": {TotalSeconds: 5, SecondsLeft: 3, Active: true}}

	next, err := SetLoop(s, "Boss", true)
	require.NoError(t, err)
	assert.True(t, next["Boss"].Loop)
	assert.False(t, s["Boss"].Loop)

	again, err := SetLoop(next, "Boss", true)
	require.NoError(t, err)
	assert.True(t, again.Equal(next))

	_, err = SetLoop(s, "Ghost", true)
	assert.ErrorIs(t, err, ErrNotFound)

	t.Run("does not reactivate an expired timer", func(t *testing.T) {
		dormant := Set{"Done": {TotalSeconds: 5}}
		next, err := SetLoop(dormant, "Done", true)
		require.NoError(t, err)
		assert.False(t, next["Done"].Active)

		ticked, events := Tick(next)
		assert.Empty(t, events)
		assert.Equal(t, 0, ticked["Done"].SecondsLeft)
	})
}

func TestTick_NonLooping(t *testing.T) {
	for _, total := range []int{1, 2, 7, 60} {
		s, err := Add(Set{}, "Boss", total, false)
		require.NoError(t, err)

		var events []ExpiredEvent
		for i := 0; i < total; i++ {
			var expired []ExpiredEvent
			s, expired = Tick(s)
			events = append(events, expired...)
			if i < total-1 {
				assert.True(t, s["Boss"].Active)
				assert.Equal(t, total-i-1, s["Boss"].SecondsLeft)
			}
		}

		assert.Equal(t, []ExpiredEvent{{Name: "Boss"}}, events)
		assert.Equal(t, 0, s["Boss"].SecondsLeft)
		assert.False(t, s["Boss"].Active)
		assert.True(t, s["Boss"].NoticePending)

		// Further ticks change nothing and emit nothing.
		for i := 0; i < 3; i++ {
			next, expired := Tick(s)
			assert.Empty(t, expired)
			assert.True(t, next.Equal(s))
			assert.False(t, next["Boss"].NoticePending)
			s = next
		}
	}
}

func TestTick_Looping(t *testing.T) {
	for _, total := range []int{1, 3, 10} {
		s, err := Add(Set{}, "Loop", total, true)
		require.NoError(t, err)

		for cycle := 0; cycle < 3; cycle++ {
			count := 0
			for i := 0; i < total; i++ {
				var expired []ExpiredEvent
				s, expired = Tick(s)
				count += len(expired)
				assert.NotZero(t, s["Loop"].SecondsLeft, "looping timer must never rest at zero")
			}
			assert.Equal(t, 1, count, "one event per cycle")
			assert.Equal(t, total, s["Loop"].SecondsLeft)
			assert.True(t, s["Loop"].Active)
		}
	}
}

func TestTick_OneSecondTimer(t *testing.T) {
	s, err := Add(Set{}, "Boss", 1, false)
	require.NoError(t, err)

	next, events := Tick(s)
	assert.Equal(t, []ExpiredEvent{{Name: "Boss"}}, events)
	assert.Equal(t, 0, next["Boss"].SecondsLeft)
	assert.False(t, next["Boss"].Active)
}

func TestTick_LoadedAtZero(t *testing.T) {
	s := Set{
		"Stop": {TotalSeconds: 5, SecondsLeft: 0, Active: true},
		"Loop": {TotalSeconds: 5, SecondsLeft: 0, Loop: true, Active: true},
	}

	next, events := Tick(s)
	assert.Equal(t, []ExpiredEvent{{Name: "Loop", Loop: true}, {Name: "Stop"}}, events)
	assert.False(t, next["Stop"].Active)
	assert.Equal(t, 5, next["Loop"].SecondsLeft)
	assert.True(t, next["Loop"].Active)
}

func TestTick_Independent(t *testing.T) {
	s := Set{
		"a": {TotalSeconds: 2, SecondsLeft: 1, Active: true},
		"b": {TotalSeconds: 4, SecondsLeft: 4, Active: true},
		"c": {TotalSeconds: 3},
	}

	next, events := Tick(s)
	assert.Equal(t, []ExpiredEvent{{Name: "a"}}, events)
	assert.Equal(t, 3, next["b"].SecondsLeft)
	assert.Equal(t, Timer{TotalSeconds: 3}, next["c"])
	assert.Equal(t, 1, s["a"].SecondsLeft, "input must not change")

	for _, name := range next.Names() {
		assert.NoError(t, next[name].Validate())
	}
}

func TestStep_TickBeforeMutations(t *testing.T) {
	s := Set{"old": {TotalSeconds: 3, SecondsLeft: 3, Active: true}}

	next, events, errs := Step(s,
		AddOp{Name: "new", TotalSeconds: 5},
		SetLoopOp{Name: "missing", Loop: true},
		AddOp{Name: "old", TotalSeconds: 1},
		RemoveOp{Name: "ghost"},
	)

	assert.Empty(t, events)
	assert.Equal(t, 5, next["new"].SecondsLeft, "added timer is not decremented in its first cycle")
	assert.Equal(t, 2, next["old"].SecondsLeft)
	require.Len(t, errs, 4)
	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], ErrNotFound)
	assert.ErrorIs(t, errs[2], ErrDuplicateName)
	assert.NoError(t, errs[3])
}

func TestTimerView(t *testing.T) {
	tm := Timer{TotalSeconds: 200, SecondsLeft: 125, Active: true}
	assert.Equal(t, "02:05", tm.Remaining())
	assert.InDelta(t, 0.375, tm.Progress(), 0.0001)

	assert.Equal(t, "00:00", Timer{TotalSeconds: 1}.Remaining())
	assert.Equal(t, 1.0, Timer{}.Progress())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		timer     Timer
		expectErr bool
	}{
		{timer: Timer{TotalSeconds: 10, SecondsLeft: 10, Active: true}},
		{timer: Timer{TotalSeconds: 10, SecondsLeft: 0}},
		{timer: Timer{TotalSeconds: 0, SecondsLeft: 0}, expectErr: true},
		{timer: Timer{TotalSeconds: 10, SecondsLeft: 11, Active: true}, expectErr: true},
		{timer: Timer{TotalSeconds: 10, SecondsLeft: -1, Active: true}, expectErr: true},
		{timer: Timer{TotalSeconds: 10, SecondsLeft: 4}, expectErr: true},
	}

	for _, test := range tests {
		err := test.timer.Validate()
		assert.Equal(t, test.expectErr, err != nil, "timer %+v: %v", test.timer, err)
	}
}
