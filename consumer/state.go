package consumer

type State int32

const (
	StateUnsubscribed State = iota
	StateSubscribed
	StateAssigned
	StateDraining
	StateIdle
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnsubscribed:
		return "unsubscribed"
	case StateSubscribed:
		return "subscribed"
	case StateAssigned:
		return "assigned"
	case StateDraining:
		return "draining"
	case StateIdle:
		return "idle"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
