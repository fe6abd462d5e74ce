package narrator

// Phase is the position of the narrator inside a turn.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAnalyzing
	PhaseRequesting
	PhaseApplying
	PhasePersisted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAnalyzing:
		return "analyzing"
	case PhaseRequesting:
		return "requesting"
	case PhaseApplying:
		return "applying"
	case PhasePersisted:
		return "persisted"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}
