package reactor

import "time"

// TimerID names one outstanding timer. Node distinguishes a subnode's
// timers from its parent's (spec.md §4.2, "subnode timer-id namespacing");
// Seq is a per-node monotonic counter.
type TimerID struct {
	Node uint32
	Seq  uint32
}

type timerEvent struct {
	receiver Addr
	id       TimerID
}

// timers owns every live *time.Timer plus the staging vector and
// cancellation set that eliminate false-alarm timer deliveries: a fired
// timer stages its event under the same mutex Unset uses to mark
// cancellation, so a timer stopped before its callback observes the
// staged event never reaches the drain, and one that already staged
// before being stopped is skipped by the drain, which checks the
// cancellation set (spec.md §4.2: "engineered to never deliver a cancelled
// timer", grounded on src/context/tokio.rs's timer_lock staging vector +
// rendezvous notification, adapted to a single mutex + non-blocking
// notify channel since Go's stdlib timers don't need a second channel to
// avoid tokio's rendezvous-channel bug the original comment works around).
type timers struct {
	live      map[TimerID]*time.Timer
	cancelled map[TimerID]bool
	staged    []timerEvent
}

func newTimers() *timers {
	return &timers{live: make(map[TimerID]*time.Timer), cancelled: make(map[TimerID]bool)}
}
