package session

// State is the synchronizer's observable phase. There is no terminal state:
// the machine can always re-enter Authenticating from NoAdmin or Rejected.
type State int

const (
	StateNoAdmin State = iota
	StateAuthenticating
	StateAuthenticated
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRejected:
		return "rejected"
	default:
		return "no_admin"
	}
}

// eventKind enumerates the inputs that drive the machine. All state changes
// funnel through nextState so the transition graph lives in exactly one
// place, with no effect-ordering ambiguity between triggers.
type eventKind int

const (
	evLoginStarted eventKind = iota
	evLoginSucceeded
	evLoginFailed
	evWalletDisconnected
	evRoleCleared
	evLoggedOut
	evSessionRestored
)

// nextState is the pure transition function. Effects (persist, clear,
// notify, audit) are performed by the Manager after the transition commits.
func nextState(cur State, ev eventKind) State {
	switch ev {
	case evLoginStarted:
		return StateAuthenticating
	case evLoginSucceeded:
		if cur == StateAuthenticating {
			return StateAuthenticated
		}
		return cur
	case evLoginFailed:
		if cur == StateAuthenticating {
			return StateRejected
		}
		return cur
	case evWalletDisconnected, evRoleCleared, evLoggedOut:
		return StateNoAdmin
	case evSessionRestored:
		if cur == StateNoAdmin {
			return StateAuthenticated
		}
		return cur
	default:
		return cur
	}
}
