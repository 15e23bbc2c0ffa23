package pipeline

// State is the position of a run in its lifecycle.
type State int

const (
	Pending State = iota
	Fetching
	KeyBuilt
	Stored
	Dispatched
	Failed
)

var stateNames = [...]string{
	Pending:    "pending",
	Fetching:   "fetching",
	KeyBuilt:   "key_built",
	Stored:     "stored",
	Dispatched: "dispatched",
	Failed:     "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == Dispatched || s == Failed
}

// next is the only state a successful stage may move s to.
func (s State) next() State {
	switch s {
	case Pending:
		return Fetching
	case Fetching:
		return KeyBuilt
	case KeyBuilt:
		return Stored
	case Stored:
		return Dispatched
	default:
		return Failed
	}
}
