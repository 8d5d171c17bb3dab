package timer

// Op is a user mutation applied to a Set.
type Op interface {
	Apply(Set) (Set, error)
}

// AddOp creates a timer.
type AddOp struct {
	Name         string
	TotalSeconds int
	Loop         bool
}

// Apply implements Op.
func (o AddOp) Apply(s Set) (Set, error) {
	return Add(s, o.Name, o.TotalSeconds, o.Loop)
}

// RemoveOp deletes a timer.
type RemoveOp struct {
	Name string
}

// Apply implements Op.
func (o RemoveOp) Apply(s Set) (Set, error) {
	return Remove(s, o.Name), nil
}

// SetLoopOp changes the loop flag of a timer.
type SetLoopOp struct {
	Name string
	Loop bool
}

// Apply implements Op.
func (o SetLoopOp) Apply(s Set) (Set, error) {
	return SetLoop(s, o.Name, o.Loop)
}

// Apply runs ops in order. A failing op leaves the set as it was before that
// op; the remaining ops still run. errs[i] is the result of ops[i].
func Apply(s Set, ops ...Op) (Set, []error) {
	errs := make([]error, len(ops))
	for i, op := range ops {
		next, err := op.Apply(s)
		if err != nil {
			errs[i] = err
			continue
		}
		s = next
	}
	return s, errs
}

// Step is one refresh cycle: tick first, then the mutations collected since
// the previous cycle. A timer added here is not decremented until the next
// cycle.
func Step(s Set, ops ...Op) (Set, []ExpiredEvent, []error) {
	next, expired := Tick(s)
	next, errs := Apply(next, ops...)
	return next, expired, errs
}
