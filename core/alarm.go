package core

// AlarmState is the state of the single hardware alarm.
type AlarmState uint8

const (
	AlarmDisabled AlarmState = iota
	AlarmArmed
)

// DispatchMode selects where the alarm callback runs.
type DispatchMode uint8

const (
	// DispatchDeferred queues an AlarmEvent from the interrupt and runs the
	// callback from ProcessEvents in the foreground loop.
	DispatchDeferred DispatchMode = iota

	// DispatchInterrupt runs the callback inside the alarm interrupt. A
	// callback that re-arms the alarm enters configuration mode from the
	// interrupt and busy-waits there for up to the gate timeout, so it must
	// only be used when nothing else touches the RTC from the foreground.
	DispatchInterrupt
)

// AlarmCallback is invoked when the alarm fires. ctx is the value given to
// Attach.
type AlarmCallback func(ctx interface{})

// AlarmScheduler arms the alarm register pair and dispatches the alarm
// interrupt.
type AlarmScheduler struct {
	regs   RegisterDriver
	gate   *ConfigGate
	backup *BackupStore
	irq    InterruptController
	line   InterruptLine
	now    func() uint32
	trace  *Trace

	mode     DispatchMode
	events   EventQueue
	callback AlarmCallback
	ctx      interface{}

	target uint32
	state  AlarmState
}

// NewAlarmScheduler creates a scheduler. now returns the current counter
// value and is used to reject alarms that are not in the future.
func NewAlarmScheduler(regs RegisterDriver, gate *ConfigGate, backup *BackupStore,
	irq InterruptController, line InterruptLine, now func() uint32, mode DispatchMode) *AlarmScheduler {
	return &AlarmScheduler{
		regs:   regs,
		gate:   gate,
		backup: backup,
		irq:    irq,
		line:   line,
		now:    now,
		mode:   mode,
	}
}

// State returns Armed while an alarm is pending.
func (s *AlarmScheduler) State() AlarmState {
	return s.state
}

// Target returns the epoch of the last armed alarm.
func (s *AlarmScheduler) Target() uint32 {
	return s.target
}

// Mode returns the dispatch mode.
func (s *AlarmScheduler) Mode() DispatchMode {
	return s.mode
}

// SetEpoch arms the alarm for target, replacing any pending alarm. target
// must be strictly after the current counter value.
//
// The whole sequence runs with interrupts masked so the alarm interrupt
// never observes half of the new value.
func (s *AlarmScheduler) SetEpoch(target uint32) error {
	if target <= s.now() {
		return ErrInvalidParameter
	}

	state := disableInterrupts()
	defer restoreInterrupts(state)

	wasEnabled := s.regs.ReadControl()&CtlAlarmIntEnable != 0
	s.regs.ClearControl(CtlAlarmIntEnable)

	written := false
	err := s.gate.Do(func(regs RegisterDriver) {
		regs.WriteAlarmHigh(uint16(target >> 16))
		regs.WriteAlarmLow(uint16(target))
		written = true
	})
	if err != nil {
		if !written {
			// The previous alarm still stands.
			if wasEnabled {
				s.regs.SetControl(CtlAlarmIntEnable)
			}
			return err
		}
		// The alarm registers may hold either value now.
		s.state = AlarmDisabled
		s.backup.SetFlag(FlagAlarmSet, false)
		return err
	}

	s.regs.ClearControl(CtlAlarmFlag)
	s.regs.SetControl(CtlAlarmIntEnable)
	if s.irq != nil {
		s.irq.Enable(s.line)
	}

	s.target = target
	s.state = AlarmArmed
	s.backup.SetFlag(FlagAlarmSet, true)
	if s.trace != nil {
		s.trace.Record(EvtAlarmArmed, target)
	}
	return nil
}

// SetDateTime arms the alarm at the epoch of dt. 12-hour input is
// normalized first.
func (s *AlarmScheduler) SetDateTime(dt *DateTime) error {
	return s.SetEpoch(ToEpoch(dt))
}

// Disable disarms the alarm. It is idempotent.
func (s *AlarmScheduler) Disable() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	s.regs.ClearControl(CtlAlarmIntEnable | CtlAlarmFlag)
	s.backup.SetFlag(FlagAlarmSet, false)
	if s.state == AlarmArmed && s.trace != nil {
		s.trace.Record(EvtAlarmDisabled, s.target)
	}
	s.state = AlarmDisabled
}

// Restore adopts an alarm that survived a reset of the main domain, as
// recorded by the ALARM_SET flag and the interrupt enable bit.
func (s *AlarmScheduler) Restore() {
	if !s.backup.Has(FlagAlarmSet) || s.regs.ReadControl()&CtlAlarmIntEnable == 0 {
		return
	}
	s.target = s.regs.ReadAlarm()
	s.state = AlarmArmed
	if s.irq != nil {
		s.irq.Enable(s.line)
	}
}

// forget drops the armed state after the backup domain was reset or the
// RTC was stopped.
func (s *AlarmScheduler) forget() {
	s.state = AlarmDisabled
	s.target = 0
}

// Attach registers fn as the alarm callback, replacing any previous one.
func (s *AlarmScheduler) Attach(fn AlarmCallback, ctx interface{}) {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	s.callback = fn
	s.ctx = ctx
}

// Detach removes the alarm callback.
func (s *AlarmScheduler) Detach() {
	s.Attach(nil, nil)
}

// HandleInterrupt services the alarm interrupt. Targets call it from the
// RTC alarm vector after acknowledging the external interrupt line.
func (s *AlarmScheduler) HandleInterrupt() {
	if s.regs.ReadControl()&CtlAlarmFlag == 0 {
		return // spurious
	}
	s.regs.ClearControl(CtlAlarmFlag)

	// The alarm is one-shot: the counter has passed the target.
	s.state = AlarmDisabled
	s.backup.SetFlag(FlagAlarmSet, false)

	epoch := s.now()
	if s.trace != nil {
		s.trace.Record(EvtAlarmFired, epoch)
	}

	if s.mode == DispatchInterrupt {
		if s.callback != nil {
			s.callback(s.ctx)
		}
		return
	}
	if !s.events.Post(AlarmEvent{Epoch: epoch}) && s.trace != nil {
		s.trace.Record(EvtAlarmDropped, s.events.Dropped())
	}
}

// ProcessEvents runs the callback once for every queued alarm event. Call it
// from the foreground loop. It returns the number of events handled.
func (s *AlarmScheduler) ProcessEvents() int {
	return s.events.Drain(func(AlarmEvent) {
		state := disableInterrupts()
		fn, ctx := s.callback, s.ctx
		restoreInterrupts(state)
		if fn != nil {
			fn(ctx)
		}
	})
}

// Events exposes the deferred event ring.
func (s *AlarmScheduler) Events() *EventQueue {
	return &s.events
}
