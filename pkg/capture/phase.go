package capture

// CapturePhase is the state of a single device's capture workflow. It is
// owned by one Machine and only mutated by that machine's own methods.
type CapturePhase int

const (
	PhaseIdle CapturePhase = iota
	PhasePreparing
	PhasePrepared
	PhaseCapturing
	PhaseComplete
	PhaseError
)

func (p CapturePhase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePreparing:
		return "preparing"
	case PhasePrepared:
		return "prepared"
	case PhaseCapturing:
		return "capturing"
	case PhaseComplete:
		return "complete"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}
