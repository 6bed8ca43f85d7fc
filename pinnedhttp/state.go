package pinnedhttp

import "fmt"

// ConnState is the lifecycle state of one pinned connection.
//
//	idle → connecting → ready → sending → receiving → closed
//	          ↘           ↘        ↘          ↘
//	                       failed
//
// closed and failed are terminal. A connection carries exactly one exchange.
type ConnState uint8

const (
	StateIdle ConnState = iota
	StateConnecting
	StateReady
	StateSending
	StateReceiving
	StateClosed
	StateFailed
)

var stateNames = map[ConnState]string{
	StateIdle:       "idle",
	StateConnecting: "connecting",
	StateReady:      "ready",
	StateSending:    "sending",
	StateReceiving:  "receiving",
	StateClosed:     "closed",
	StateFailed:     "failed",
}

func (s ConnState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ConnState(%d)", uint8(s))
}

var transitions = map[ConnState][]ConnState{
	StateIdle:       {StateConnecting, StateFailed},
	StateConnecting: {StateReady, StateFailed},
	StateReady:      {StateSending, StateFailed},
	StateSending:    {StateReceiving, StateFailed},
	StateReceiving:  {StateReceiving, StateClosed, StateFailed},
}

// CanTransition reports whether moving from s to next is legal.
func (s ConnState) CanTransition(next ConnState) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s is closed or failed.
func (s ConnState) Terminal() bool {
	return s == StateClosed || s == StateFailed
}
