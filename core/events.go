package core

// AlarmEvent is posted by the alarm interrupt when dispatch is deferred.
type AlarmEvent struct {
	Epoch uint32 // counter value when the interrupt was taken
}

// EventQueueSize is the capacity of the deferred alarm event ring.
const EventQueueSize = 8

// EventQueue is a fixed ring filled from interrupt context and drained by
// the foreground loop.
type EventQueue struct {
	buf     [EventQueueSize]AlarmEvent
	head    uint8 // next slot to read
	count   uint8
	dropped uint32
}

// Post appends an event. When the ring is full the event is dropped and
// counted; Post returns false.
func (q *EventQueue) Post(evt AlarmEvent) bool {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if q.count == EventQueueSize {
		q.dropped++
		return false
	}
	q.buf[(q.head+q.count)%EventQueueSize] = evt
	q.count++
	return true
}

// pop removes the oldest event.
func (q *EventQueue) pop() (AlarmEvent, bool) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if q.count == 0 {
		return AlarmEvent{}, false
	}
	evt := q.buf[q.head]
	q.head = (q.head + 1) % EventQueueSize
	q.count--
	return evt, true
}

// Drain hands every queued event to fn in posting order and returns how many
// were processed. Interrupts are unmasked while fn runs, so fn may re-arm the
// alarm and new events may arrive during the drain.
func (q *EventQueue) Drain(fn func(AlarmEvent)) int {
	n := 0
	for {
		evt, ok := q.pop()
		if !ok {
			return n
		}
		fn(evt)
		n++
	}
}

// Len returns the number of queued events.
func (q *EventQueue) Len() int {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return int(q.count)
}

// Dropped returns how many events were lost to a full ring.
func (q *EventQueue) Dropped() uint32 {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return q.dropped
}
