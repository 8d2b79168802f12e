package invert

// activeSet is the ordered set of user-function names currently being
// inlined on the inversion call stack. It detects re-entry into a
// function's own definition (self-recursion) and, together with the
// depth counter, bounds inlining.
//
// Created fresh per top-level inversion call and never shared across
// calls. Push copies; an activeSet value held by an outer frame is never
// mutated by an inner one.
type activeSet struct {
	names []string
}

// push returns a new active set with the name appended.
func (a activeSet) push(name string) activeSet {
	names := make([]string, len(a.names)+1)
	copy(names, a.names)
	names[len(a.names)] = name
	return activeSet{names: names}
}

// contains reports whether the name is being inlined.
func (a activeSet) contains(name string) bool {
	for _, n := range a.names {
		if n == name {
			return true
		}
	}
	return false
}

// top returns the innermost function being inlined, or "".
func (a activeSet) top() string {
	if len(a.names) == 0 {
		return ""
	}
	return a.names[len(a.names)-1]
}

// without returns a new active set with every occurrence of the name
// removed. Used when inverting a recursive predicate's base case, which
// must be analyzed outside its own definition.
func (a activeSet) without(name string) activeSet {
	names := make([]string, 0, len(a.names))
	for _, n := range a.names {
		if n != name {
			names = append(names, n)
		}
	}
	return activeSet{names: names}
}

// depth returns the number of functions currently being inlined.
func (a activeSet) depth() int {
	return len(a.names)
}
