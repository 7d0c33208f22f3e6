package vectordb

// State is the lifecycle stage of a collection.
type State int

// Lifecycle: Uninitialized -> Created -> (Populated <-> Optimized) -> Dropped.
// Dropped discards every stored document; a later Create starts a new,
// empty collection.
const (
	Uninitialized State = iota
	Created
	Populated
	Optimized
	Dropped
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Created:
		return "created"
	case Populated:
		return "populated"
	case Optimized:
		return "optimized"
	case Dropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Exists reports whether the collection is readable in this state.
func (s State) Exists() bool {
	return s == Created || s == Populated || s == Optimized
}
