package appointment

var transitions = map[Status][]Status{
	StatusPending:   {StatusAccepted, StatusCancelled},
	StatusScheduled: {StatusCompleted, StatusCancelled, StatusNoShow},
	StatusAccepted:  {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the statuses reachable from from. Terminal
// statuses have none.
func AllowedTransitions(from Status) []Status {
	next := transitions[from]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// ApplyTransition returns a copy of a with status to. a itself is never
// modified.
func ApplyTransition(a Appointment, to Status) (Appointment, error) {
	if !CanTransition(a.Status, to) {
		return a, &InvalidTransitionError{From: a.Status, To: to}
	}
	a.Status = to
	return a, nil
}
