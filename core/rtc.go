package core

import "time"

// InitAction selects what Begin resets.
type InitAction uint8

const (
	InitNone        InitAction = iota // keep time, alarm and backup data
	InitResetTime                     // zero the counter and alarm
	InitResetAlarm                    // disarm the alarm
	InitResetDomain                   // reset the whole backup domain
)

// Prescaler reload values for a 1 Hz counter tick.
const (
	PrescalerLSE = 32768 - 1       // 32.768 kHz crystal
	PrescalerLSI = 40000 - 1       // ~40 kHz RC
	PrescalerHSE = 8000000/128 - 1 // 8 MHz crystal / 128

	prescalerMax = 1<<20 - 1
)

// epochReadRetries bounds the high/low/high retry loop of Epoch.
const epochReadRetries = 3

// ReferenceClock is an external time source used to seed an RTC whose time
// has not been set.
type ReferenceClock interface {
	ReadTime() (time.Time, error)
}

// Config holds the collaborators and options of an RTC. Zero values select
// defaults.
type Config struct {
	Registers  RegisterDriver      // required
	Clock      ClockDriver         // nil skips clock source selection
	Interrupts InterruptController // nil leaves the alarm line to the target
	Time       TimeSource          // defaults to NewSystemTime()
	Layout     Layout              // defaults to MediumDensity
	Source     ClockSourceID       // defaults to LSEClock
	Prescaler  uint32              // defaults to the reload value of Source
	Timeout    uint32              // milliseconds, defaults to DefaultConfigTimeout
	Dispatch   DispatchMode        // defaults to DispatchDeferred
	Debug      DebugWriter
	Reference  ReferenceClock
}

func (c *Config) applyDefaults() {
	if c.Time == nil {
		c.Time = NewSystemTime()
	}
	if c.Layout.BackupWords == 0 {
		c.Layout.BackupWords = MediumDensity.BackupWords
	}
	if c.Layout.AlarmLine == 0 {
		c.Layout.AlarmLine = AlarmLine
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultConfigTimeout
	}
	if c.Prescaler == 0 {
		c.Prescaler = DefaultPrescaler(c.Source)
	}
}

// DefaultPrescaler returns the reload value giving a 1 Hz tick from source.
func DefaultPrescaler(source ClockSourceID) uint32 {
	switch source {
	case LSIClock:
		return PrescalerLSI
	case HSEClock:
		return PrescalerHSE
	}
	return PrescalerLSE
}

// RTC is a battery-backed real-time clock. Create one with New and call
// Begin before anything else.
type RTC struct {
	cfg    Config
	regs   RegisterDriver
	gate   *ConfigGate
	backup *BackupStore
	alarm  *AlarmScheduler
	trace  *Trace
}

// New creates an RTC over the given collaborators. It does not touch the
// hardware.
func New(cfg Config) *RTC {
	cfg.applyDefaults()

	r := &RTC{
		cfg:   cfg,
		regs:  cfg.Registers,
		trace: newTrace(cfg.Time, cfg.Debug),
	}
	r.gate = NewConfigGate(cfg.Registers, cfg.Time, cfg.Timeout)
	r.gate.trace = r.trace
	r.backup = NewBackupStore(cfg.Registers, cfg.Layout.BackupWords)
	r.backup.trace = r.trace
	r.alarm = NewAlarmScheduler(cfg.Registers, r.gate, r.backup,
		cfg.Interrupts, cfg.Layout.AlarmLine, r.Epoch, cfg.Dispatch)
	r.alarm.trace = r.trace
	return r
}

// Begin initializes the RTC domain, optionally resetting parts of it, and
// marks the RTC configured.
func (r *RTC) Begin(action InitAction) error {
	r.regs.EnableBackupDomainAccess()
	wasConfigured := r.backup.Load()&FlagConfigured != 0

	switch action {
	case InitResetTime:
		r.regs.ClearControl(CtlAlarmIntEnable | CtlSecondIntEnable)
		err := r.gate.Do(func(regs RegisterDriver) {
			regs.WriteCounterHigh(0)
			regs.WriteCounterLow(0)
			regs.WriteAlarmHigh(0)
			regs.WriteAlarmLow(0)
		})
		if err != nil {
			return err
		}
		r.backup.SetFlag(FlagTimeSet|FlagAlarmSet, false)
		r.alarm.Disable()
	case InitResetAlarm:
		r.alarm.Disable()
	case InitResetDomain:
		r.backup.Clear()
		r.alarm.forget()
		wasConfigured = false
	}

	if r.cfg.Clock != nil {
		if err := r.cfg.Clock.SelectClock(r.cfg.Source); err != nil {
			r.trace.Println("[RTC] clock select failed: " + err.Error())
			return err
		}
	}
	if err := r.gate.WaitSynchronized(); err != nil {
		return err
	}
	if !wasConfigured {
		err := r.gate.Do(func(regs RegisterDriver) {
			regs.WritePrescaler(r.cfg.Prescaler)
		})
		if err != nil {
			return err
		}
		r.trace.Record(EvtPrescalerSet, r.cfg.Prescaler)
	}

	r.backup.SetFlag(FlagConfigured, true)
	r.alarm.Restore()
	r.trace.Record(EvtBegin, uint32(action))

	if r.cfg.Reference != nil && !r.IsTimeSet() {
		if err := r.SyncFromReference(); err != nil {
			r.trace.Println("[RTC] reference clock: " + err.Error())
		}
	}
	return nil
}

// End stops the RTC interrupts and clears the status flags. The counter
// keeps running.
func (r *RTC) End() {
	if !r.IsConfigured() {
		return
	}
	state := disableInterrupts()
	r.regs.ClearControl(CtlSecondIntEnable | CtlAlarmIntEnable | CtlOverflowIntEnable |
		CtlSecondFlag | CtlAlarmFlag | CtlOverflowFlag)
	if r.cfg.Interrupts != nil {
		r.cfg.Interrupts.Disable(r.cfg.Layout.AlarmLine)
	}
	r.alarm.forget()
	restoreInterrupts(state)

	r.backup.SetFlag(FlagConfigured|FlagTimeSet|FlagAlarmSet, false)
}

// Epoch returns the counter value. The two halves are read high, low, high
// and reread if the counter carried between them.
func (r *RTC) Epoch() uint32 {
	for i := 0; i < epochReadRetries; i++ {
		hi := r.regs.ReadCounterHigh()
		lo := r.regs.ReadCounterLow()
		if r.regs.ReadCounterHigh() == hi {
			return uint32(hi)<<16 | uint32(lo)
		}
	}
	// The counter ticks once a second, so a fresh pair read right after a
	// carry is consistent.
	lo := r.regs.ReadCounterLow()
	return uint32(r.regs.ReadCounterHigh())<<16 | uint32(lo)
}

// SetEpoch writes the counter and marks the time as set.
func (r *RTC) SetEpoch(epoch uint32) error {
	if !r.IsConfigured() {
		return ErrNotConfigured
	}
	return r.writeEpoch(epoch)
}

func (r *RTC) writeEpoch(epoch uint32) error {
	state := disableInterrupts()
	err := r.gate.Do(func(regs RegisterDriver) {
		regs.WriteCounterHigh(uint16(epoch >> 16))
		regs.WriteCounterLow(uint16(epoch))
	})
	restoreInterrupts(state)
	if err != nil {
		return err
	}

	r.backup.SetFlag(FlagTimeSet, true)
	r.trace.Record(EvtEpochSet, epoch)
	return nil
}

// DateTime returns the current time in the requested hour format.
func (r *RTC) DateTime(format HourFormat) DateTime {
	dt := ToDateTime(r.Epoch())
	if format == Hour12 {
		To12Hour(&dt)
	}
	return dt
}

// SetDateTime sets the counter from dt and stores the resulting epoch in
// dt.Epoch.
func (r *RTC) SetDateTime(dt *DateTime) error {
	if !r.IsConfigured() {
		return ErrNotConfigured
	}
	return r.writeEpoch(ToEpoch(dt))
}

// SetAlarm arms the alarm at dt. It returns ErrInvalidParameter unless dt
// is in the future.
func (r *RTC) SetAlarm(dt *DateTime) error {
	if !r.IsConfigured() {
		return ErrNotConfigured
	}
	return r.alarm.SetDateTime(dt)
}

// SetAlarmEpoch arms the alarm at epoch.
func (r *RTC) SetAlarmEpoch(epoch uint32) error {
	if !r.IsConfigured() {
		return ErrNotConfigured
	}
	return r.alarm.SetEpoch(epoch)
}

// DisableAlarm disarms the alarm. It does nothing before Begin.
func (r *RTC) DisableAlarm() {
	if !r.IsConfigured() {
		return
	}
	r.alarm.Disable()
}

// AttachAlarmCallback sets the function run when the alarm fires.
func (r *RTC) AttachAlarmCallback(fn AlarmCallback, ctx interface{}) {
	r.alarm.Attach(fn, ctx)
}

// DetachAlarmCallback removes the alarm callback.
func (r *RTC) DetachAlarmCallback() {
	r.alarm.Detach()
}

// HandleAlarmInterrupt must be called from the RTC alarm interrupt.
func (r *RTC) HandleAlarmInterrupt() {
	r.alarm.HandleInterrupt()
}

// ProcessEvents runs deferred alarm callbacks. Call it from the main loop.
func (r *RTC) ProcessEvents() int {
	return r.alarm.ProcessEvents()
}

// AlarmEpoch returns the epoch of the last armed alarm.
func (r *RTC) AlarmEpoch() uint32 {
	return r.alarm.Target()
}

// ReadBackup returns up to count user words from index start.
func (r *RTC) ReadBackup(start, count int) []uint16 {
	return r.backup.Read(start, count)
}

// WriteBackup stores up to count user words at index start and returns how
// many were stored.
func (r *RTC) WriteBackup(values []uint16, start, count int) int {
	return r.backup.Write(values, start, count)
}

// ClearBackup resets the backup domain. Time, alarm and configuration are
// lost as well; Begin must be called again.
func (r *RTC) ClearBackup() {
	state := disableInterrupts()
	r.alarm.forget()
	restoreInterrupts(state)
	r.backup.Clear()
}

// BackupCapacity returns the number of user backup words.
func (r *RTC) BackupCapacity() int {
	return r.backup.Capacity()
}

// IsConfigured reports whether Begin has completed since the last domain reset.
func (r *RTC) IsConfigured() bool {
	return r.backup.Has(FlagConfigured)
}

// IsTimeSet reports whether the counter has been written since configuration.
func (r *RTC) IsTimeSet() bool {
	return r.backup.Has(FlagTimeSet)
}

// IsAlarmEnabled reports whether an alarm is armed.
func (r *RTC) IsAlarmEnabled() bool {
	return r.backup.Has(FlagAlarmSet)
}

// AlarmPending reports whether the counter has matched the alarm register
// since the flag was last cleared. It is meant for polling without the
// interrupt; HandleAlarmInterrupt and DisableAlarm clear the flag.
func (r *RTC) AlarmPending() bool {
	return r.regs.ReadControl()&CtlAlarmFlag != 0
}

// ClearAlarmPending acknowledges a polled alarm match.
func (r *RTC) ClearAlarmPending() {
	r.regs.ClearControl(CtlAlarmFlag)
}

// Flags returns the persisted status flags.
func (r *RTC) Flags() StatusFlags {
	return r.backup.Flags()
}

// SetPrescaler writes the 20-bit prescaler reload value. The counter ticks
// at clock/(reload+1).
func (r *RTC) SetPrescaler(reload uint32) error {
	if reload > prescalerMax {
		return ErrInvalidParameter
	}
	if !r.IsConfigured() {
		return ErrNotConfigured
	}
	err := r.gate.Do(func(regs RegisterDriver) {
		regs.WritePrescaler(reload)
	})
	if err != nil {
		return err
	}
	r.cfg.Prescaler = reload
	r.trace.Record(EvtPrescalerSet, reload)
	return nil
}

// Prescaler returns the prescaler reload value.
func (r *RTC) Prescaler() uint32 {
	return r.regs.ReadPrescaler()
}

// ClockSource returns the oscillator selected at Begin.
func (r *RTC) ClockSource() ClockSourceID {
	return r.cfg.Source
}

// Layout returns the chip layout.
func (r *RTC) Layout() Layout {
	return r.cfg.Layout
}

// SyncFromReference sets the counter from the reference clock.
func (r *RTC) SyncFromReference() error {
	if r.cfg.Reference == nil {
		return ErrInvalidParameter
	}
	if !r.IsConfigured() {
		return ErrNotConfigured
	}
	t, err := r.cfg.Reference.ReadTime()
	if err != nil {
		return err
	}
	secs := t.Unix()
	if secs < 0 || secs > int64(MaxEpoch) {
		return ErrInvalidParameter
	}
	return r.writeEpoch(uint32(secs))
}

// Trace returns the event trace.
func (r *RTC) Trace() *Trace {
	return r.trace
}

// Gate returns the configuration gate.
func (r *RTC) Gate() *ConfigGate {
	return r.gate
}

// Alarm returns the alarm scheduler.
func (r *RTC) Alarm() *AlarmScheduler {
	return r.alarm
}
