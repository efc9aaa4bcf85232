package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TraceEvent captures an RTC event for post-mortem analysis
type TraceEvent struct {
	Kind   uint8  // Event type code
	Millis uint32 // Time base at event
	Value  uint32 // Context-dependent value
}

// Event type codes
const (
	EvtBegin         = 1  // Begin completed, value = init action
	EvtConfigEnter   = 2  // Configuration mode entered
	EvtConfigExit    = 3  // Configuration mode left
	EvtConfigTimeout = 4  // Bounded wait expired, value = waited ms
	EvtEpochSet      = 5  // Counter written, value = epoch
	EvtAlarmArmed    = 6  // Alarm written, value = epoch
	EvtAlarmDisabled = 7  // Alarm disabled
	EvtAlarmFired    = 8  // Alarm interrupt, value = counter
	EvtAlarmDropped  = 9  // Deferred event queue full
	EvtDomainReset   = 10 // Backup domain reset
	EvtPrescalerSet  = 11 // Prescaler written, value = reload
)

const (
	TraceRingSize = 32 // Keep last 32 events for post-mortem
)

// Trace is a ring of recent events plus the platform debug output.
// Recording is always on and never blocks; printing only happens when a
// writer is set.
type Trace struct {
	ring   [TraceRingSize]TraceEvent
	head   uint8
	writer DebugWriter
	time   TimeSource
}

func newTrace(ts TimeSource, w DebugWriter) *Trace {
	return &Trace{time: ts, writer: w}
}

// SetWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func (t *Trace) SetWriter(w DebugWriter) {
	t.writer = w
}

// Println writes a debug message if a writer is set.
func (t *Trace) Println(msg string) {
	if t.writer != nil {
		t.writer(msg)
	}
}

// Record captures an event in the ring. It is safe to call from the alarm
// interrupt.
func (t *Trace) Record(kind uint8, value uint32) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	var now uint32
	if t.time != nil {
		now = t.time.Millis()
	}
	t.ring[t.head] = TraceEvent{Kind: kind, Millis: now, Value: value}
	t.head = (t.head + 1) % TraceRingSize
}

// Events returns the recorded events, oldest first.
func (t *Trace) Events() []TraceEvent {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	var out []TraceEvent
	for i := uint8(0); i < TraceRingSize; i++ {
		evt := t.ring[(t.head+i)%TraceRingSize]
		if evt.Kind == 0 {
			continue // Empty slot
		}
		out = append(out, evt)
	}
	return out
}

// Last returns the most recent event of the given kind.
func (t *Trace) Last(kind uint8) (TraceEvent, bool) {
	events := t.Events()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Kind == kind {
			return events[i], true
		}
	}
	return TraceEvent{}, false
}

// Dump outputs the ring through the debug writer (call on error)
func (t *Trace) Dump() {
	if t.writer == nil {
		return
	}
	t.writer("[RTC] === Trace Dump ===")
	for _, evt := range t.Events() {
		t.writer("[RTC] " + EventName(evt.Kind) +
			" t=" + utoa(evt.Millis) +
			" v=" + utoa(evt.Value))
	}
	t.writer("[RTC] === End Dump ===")
}

// Clear empties the ring
func (t *Trace) Clear() {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	t.ring = [TraceRingSize]TraceEvent{}
	t.head = 0
}

// EventName returns the short name of an event type code.
func EventName(kind uint8) string {
	switch kind {
	case EvtBegin:
		return "BEGIN"
	case EvtConfigEnter:
		return "CNF_ENTER"
	case EvtConfigExit:
		return "CNF_EXIT"
	case EvtConfigTimeout:
		return "TIMEOUT!"
	case EvtEpochSet:
		return "EPOCH_SET"
	case EvtAlarmArmed:
		return "ALARM_ARM"
	case EvtAlarmDisabled:
		return "ALARM_OFF"
	case EvtAlarmFired:
		return "ALARM_FIRE"
	case EvtAlarmDropped:
		return "ALARM_DROP!"
	case EvtDomainReset:
		return "BKP_RESET"
	case EvtPrescalerSet:
		return "PRESCALER"
	}
	return "UNKNOWN"
}
