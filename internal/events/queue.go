// Package events holds the pending-event queue that coroutines wait on, the
// observer bus the scheduler publishes its activity to, and the JSONL trace
// writer that can subscribe to that bus.
package events

import (
	"github.com/msageha/cotest/internal/model"
)

// Kind tags the two things a coroutine can wait for.
type Kind string

const (
	// KindMockCall is a mock call awaiting disposition.
	KindMockCall Kind = "mock_call"
	// KindLaunchDone is a launch completion awaiting collection.
	KindLaunchDone Kind = "launch_completed"
)

// Event is one unresolved event. Target is the id of the coroutine the
// event is currently offered to; Payload is the engine's call or launch
// record.
type Event struct {
	ID      string
	Seq     uint64
	Kind    Kind
	Target  string
	Payload any
}

// Queue is the ordered set of unresolved events. It is not internally
// locked: every access happens under the test context's scheduling token.
type Queue struct {
	items []*Event
	seq   uint64
}

func NewQueue() *Queue {
	return &Queue{}
}

// NextSeq returns a fresh sequence number. Watches record the sequence
// current at their creation so they never match earlier calls.
func (q *Queue) NextSeq() uint64 {
	q.seq++
	return q.seq
}

// Offer appends an event and returns it.
func (q *Queue) Offer(kind Kind, target string, payload any) *Event {
	e := &Event{
		ID:      model.MustGenerateID(model.IDTypeEvent),
		Seq:     q.NextSeq(),
		Kind:    kind,
		Target:  target,
		Payload: payload,
	}
	q.items = append(q.items, e)
	return e
}

// Take removes and returns the first event satisfying pred, or nil.
func (q *Queue) Take(pred func(*Event) bool) *Event {
	for i, e := range q.items {
		if pred(e) {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return e
		}
	}
	return nil
}

// Peek returns the head of the queue without removing it, or nil when the
// queue is empty.
func (q *Queue) Peek() *Event {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// Len returns the number of unresolved events.
func (q *Queue) Len() int {
	return len(q.items)
}

// Snapshot returns the unresolved events in order. The slice is a copy;
// the events are not.
func (q *Queue) Snapshot() []*Event {
	out := make([]*Event, len(q.items))
	copy(out, q.items)
	return out
}
