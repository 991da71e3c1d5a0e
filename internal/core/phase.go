package core

// Phase is the orchestrator lifecycle state.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseValidated
	PhaseInitialized
	PhaseRunning
	PhaseStopped
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseValidated:
		return "validated"
	case PhaseInitialized:
		return "initialized"
	case PhaseRunning:
		return "running"
	case PhaseStopped:
		return "stopped"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether p is stopped or failed.
func (p Phase) Terminal() bool {
	return p == PhaseStopped || p == PhaseFailed
}
