package reactor

import (
	"testing"
	"time"
)

type testMsg struct{ n int }

func encodeTestMsg(m testMsg) []byte { return []byte{byte(m.n)} }
func decodeTestMsg(b []byte) (testMsg, error) {
	if len(b) != 1 {
		panic("bad test message")
	}
	return testMsg{n: int(b[0])}, nil
}
func verifyTestMsg(testMsg) error { return nil }

type falseAlarmReceiver struct {
	ctx      *Context[testMsg]
	id       TimerID
	handled  bool
	alarmed  bool
	unsetHit bool
	t        *testing.T
}

func (r *falseAlarmReceiver) Handle(receiver, remote Addr, message testMsg) {
	if !r.handled {
		r.ctx.Unset(r.id)
		r.unsetHit = true
	}
	r.handled = true
}
func (r *falseAlarmReceiver) HandleLoopback(Addr, testMsg) {}
func (r *falseAlarmReceiver) OnTimer(Addr, TimerID) {
	r.alarmed = true
	if r.handled {
		r.t.Fatalf("timer fired after being unset: a cancelled timer must never be delivered once the handler observed the cancellation happen-before the callback's staging")
	}
}
func (r *falseAlarmReceiver) OnPace() {}

// TestFalseAlarmElimination is the Go analogue of
// src/context/tokio.rs's false_alarm test: a timer set for 10ms races
// against a message arriving at 9ms whose handler unsets that same timer.
// The timer must never fire after being unset.
func TestFalseAlarmElimination(t *testing.T) {
	for i := 0; i < 50; i++ {
		mp := New(nil)
		ctx := Register[testMsg](mp, Replica(0), encodeTestMsg, nil)
		id := ctx.Set(10 * time.Millisecond)
		recv := &falseAlarmReceiver{ctx: ctx, id: id, t: t}

		handle := mp.Handle()
		go func() {
			time.Sleep(9 * time.Millisecond)
			mp.deliverInbound(Replica(0), Replica(1), encodeTestMsg(testMsg{n: 1}))
			time.Sleep(2 * time.Millisecond)
			handle.Stop()
		}()

		Run[testMsg](mp, recv, Decoder[testMsg]{Decode: decodeTestMsg, Verify: verifyTestMsg})
		if !recv.unsetHit {
			t.Fatalf("handler never ran before stop")
		}
	}
}

type paceReceiver struct {
	paceCount int
	handled   int
	stopAfter int
	handle    Handle
}

func (r *paceReceiver) Handle(receiver, remote Addr, message testMsg) {
	r.handled++
}
func (r *paceReceiver) HandleLoopback(Addr, testMsg) {}
func (r *paceReceiver) OnTimer(Addr, TimerID)        {}
func (r *paceReceiver) OnPace() {
	r.paceCount++
	if r.paceCount >= r.stopAfter {
		r.handle.Stop()
	}
}

func TestPaceFiresOnceQueueDrains(t *testing.T) {
	mp := New(nil)
	recv := &paceReceiver{stopAfter: 3, handle: mp.Handle()}
	go func() {
		for i := 0; i < 5; i++ {
			mp.deliverInbound(Replica(0), Replica(1), encodeTestMsg(testMsg{n: i}))
		}
	}()
	Run[testMsg](mp, recv, Decoder[testMsg]{Decode: decodeTestMsg, Verify: verifyTestMsg})
	if recv.handled == 0 {
		t.Fatalf("expected at least some messages to be handled before pace stopped the loop")
	}
}
