package paginator

// State is a step of the pagination state machine:
//
//	Init -> Fetching -> Persisting -> {Fetching | Exhausted | Failed}
//
// Exhausted and Failed are terminal.
type State int

const (
	StateInit State = iota
	StateFetching
	StatePersisting
	StateExhausted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateFetching:
		return "fetching"
	case StatePersisting:
		return "persisting"
	case StateExhausted:
		return "exhausted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return s == StateExhausted || s == StateFailed
}

// PageKind tells a full page request from the trailing remainder request
type PageKind string

const (
	KindFull      PageKind = "full"
	KindRemainder PageKind = "remainder"
)
