package livesync

// State is the lifecycle of a Subscription.
//
//	idle → connecting → open ⟲ heartbeat
//	open → (error | watchdog) → backoff → connecting
//	backoff → exhausted                 (retries used up)
//	any → closed                        (explicit Close)
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateBackoff
	StateClosed
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateBackoff:
		return "backoff"
	case StateClosed:
		return "closed"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further connection attempt will be made.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateExhausted
}
