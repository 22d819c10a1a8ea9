package peripheral

// action is the side effect a transition asks the Manager to perform once
// the state lock is released.
type action int

const (
	actionNone action = iota
	actionIgnore
	actionCentralConnected
	actionCentralDisconnected
	actionAdvertisingStarted
	actionAdvertisingFailed
	actionServeRead
)

func (a action) String() string {
	switch a {
	case actionNone:
		return "none"
	case actionIgnore:
		return "ignore"
	case actionCentralConnected:
		return "central-connected"
	case actionCentralDisconnected:
		return "central-disconnected"
	case actionAdvertisingStarted:
		return "advertising-started"
	case actionAdvertisingFailed:
		return "advertising-failed"
	case actionServeRead:
		return "serve-read"
	default:
		return "unknown"
	}
}

// transition is the lifecycle transition table. requested reports whether a
// StartAdvertising is outstanding; advertise results arriving after a stop
// belong to a cancelled request and change nothing.
//
//	ConnectionChanged  success, connected     any         -> Connected    (notify, stop advertising)
//	ConnectionChanged  success, disconnected  any         -> Advertising  (notify, restart advertising)
//	ConnectionChanged  failure                any         -> unchanged
//	AdvertiseStarted   not requested          any         -> unchanged
//	AdvertiseFailed    not requested          any         -> unchanged
//	AdvertiseStarted                          Connected   -> Connected    (notify)
//	AdvertiseStarted                          otherwise   -> Advertising  (notify)
//	AdvertiseFailed    already started        Advertising -> Advertising  (notify)
//	AdvertiseFailed    other code             Advertising -> Idle         (notify)
//	AdvertiseFailed                           otherwise   -> unchanged    (notify)
//	ReadRequested                             any         -> unchanged    (serve)
func transition(cur State, requested bool, ev Event) (State, action) {
	switch ev.Kind {
	case EventConnectionChanged:
		if ev.Status != StatusSuccess {
			return cur, actionIgnore
		}
		switch ev.LinkState {
		case LinkConnected:
			return StateConnected, actionCentralConnected
		case LinkDisconnected:
			return StateAdvertising, actionCentralDisconnected
		}
		return cur, actionIgnore

	case EventAdvertiseStarted:
		if !requested {
			return cur, actionIgnore
		}
		if cur == StateConnected {
			return cur, actionAdvertisingStarted
		}
		return StateAdvertising, actionAdvertisingStarted

	case EventAdvertiseFailed:
		if !requested {
			return cur, actionIgnore
		}
		if cur == StateAdvertising && ev.ErrorCode != AdvertiseFailedAlreadyStarted {
			return StateIdle, actionAdvertisingFailed
		}
		return cur, actionAdvertisingFailed

	case EventReadRequested:
		return cur, actionServeRead
	}
	return cur, actionNone
}
