package branchsync

// State is a partition's lifecycle state.
//
//	StateInactive -> StateConnecting -> StateConnected <-> StateError -> StateInactive
//
// First subscribe moves Inactive to Connecting; listener establishment plus a
// successful fetch reach Connected; a dropped listener or failed fetch moves
// to Error, which auto-retries back through Connecting until the retry cap,
// after which only ForceRefresh re-arms the partition. Refcount zero tears
// down to Inactive from anywhere.
type State int

const (
	StateInactive State = iota
	StateConnecting
	StateConnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
