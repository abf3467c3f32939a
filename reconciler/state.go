package reconciler

// State is a node of the meal-confirmation state machine.
type State int

const (
	Idle State = iota
	Identifying
	AwaitingConfirmation
	Finalizing
	Logged
	Cancelled
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Identifying:
		return "IDENTIFYING"
	case AwaitingConfirmation:
		return "AWAITING_CONFIRMATION"
	case Finalizing:
		return "FINALIZING"
	case Logged:
		return "LOGGED"
	case Cancelled:
		return "CANCELLED"
	case Errored:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MarshalText lets states appear by name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// busy reports whether a remote call is outstanding.
func (s State) busy() bool {
	return s == Identifying || s == Finalizing
}
