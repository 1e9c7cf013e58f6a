package staticserver

// State is the lifecycle state of a StaticServer handle.
type State string

const (
	// StateStopped is the initial state and the state after Stop. No child
	// process is associated with the handle.
	StateStopped State = "stopped"

	// StateRunning means Start spawned a child that survived the startup
	// check. The child may still exit on its own later; Exited reports that.
	StateRunning State = "running"
)

// String satisfies fmt.Stringer.
func (s State) String() string {
	return string(s)
}

// IsValid reports whether s is one of the defined states.
func (s State) IsValid() bool {
	switch s {
	case StateStopped, StateRunning:
		return true
	default:
		return false
	}
}
