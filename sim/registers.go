// Package sim models the STM32F1 RTC and backup register block in software.
// It implements core.RegisterDriver and enforces the configuration mode
// write protocol, so code under test that skips the protocol loses its
// writes exactly as it would on silicon.
package sim

import (
	"sync"

	"vbatrtc/core"
)

// PrescalerReset is the reload value after a backup domain reset.
const PrescalerReset = 0x8000

// Registers is a simulated RTC register block.
type Registers struct {
	mu sync.Mutex

	counter   uint32
	alarm     uint32
	prescaler uint32
	control   core.ControlBits
	backup    []uint16

	// staged configuration writes, committed when CNF is cleared
	stagedCounter   uint32
	stagedAlarm     uint32
	stagedPrescaler uint32
	dirty           uint8

	access     bool
	violations int

	// StallWrite keeps RTOFF clear, as if a write never terminated.
	StallWrite bool
	// StallSync keeps RSF clear, as if the APB interface never resynchronized.
	StallSync bool

	// OnCounterRead runs before every counter half read, with high set for
	// the high half. Tests use it to move the counter between reads.
	OnCounterRead func(high bool)

	// AlarmHandler is called, outside the lock, when the counter reaches the
	// alarm value while the alarm interrupt is enabled.
	AlarmHandler func()

	// BackupWrites records the index of every backup word write.
	BackupWrites []int
}

const (
	dirtyCounter = 1 << iota
	dirtyAlarm
	dirtyPrescaler
)

// NewRegisters creates a register block with words backup data registers in
// its reset state.
func NewRegisters(words int) *Registers {
	r := &Registers{backup: make([]uint16, words)}
	r.reset()
	return r
}

func (r *Registers) reset() {
	r.counter = 0
	r.alarm = 0xFFFFFFFF
	r.prescaler = PrescalerReset
	r.control = core.CtlLastWriteDone
	r.dirty = 0
	for i := range r.backup {
		r.backup[i] = 0
	}
}

func (r *Registers) configuring() bool {
	return r.control&core.CtlConfigMode != 0
}

func (r *Registers) ReadCounterHigh() uint16 {
	if hook := r.OnCounterRead; hook != nil {
		hook(true)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return uint16(r.counter >> 16)
}

func (r *Registers) ReadCounterLow() uint16 {
	if hook := r.OnCounterRead; hook != nil {
		hook(false)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return uint16(r.counter)
}

func (r *Registers) WriteCounterHigh(v uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.configuring() {
		r.violations++
		return
	}
	r.stagedCounter = r.stagedCounter&0xFFFF | uint32(v)<<16
	r.dirty |= dirtyCounter
}

func (r *Registers) WriteCounterLow(v uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.configuring() {
		r.violations++
		return
	}
	r.stagedCounter = r.stagedCounter&0xFFFF0000 | uint32(v)
	r.dirty |= dirtyCounter
}

func (r *Registers) ReadAlarm() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.alarm
}

func (r *Registers) WriteAlarmHigh(v uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.configuring() {
		r.violations++
		return
	}
	r.stagedAlarm = r.stagedAlarm&0xFFFF | uint32(v)<<16
	r.dirty |= dirtyAlarm
}

func (r *Registers) WriteAlarmLow(v uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.configuring() {
		r.violations++
		return
	}
	r.stagedAlarm = r.stagedAlarm&0xFFFF0000 | uint32(v)
	r.dirty |= dirtyAlarm
}

func (r *Registers) ReadPrescaler() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prescaler
}

func (r *Registers) WritePrescaler(v uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.configuring() {
		r.violations++
		return
	}
	r.stagedPrescaler = v & 0xFFFFF
	r.dirty |= dirtyPrescaler
}

func (r *Registers) ReadControl() core.ControlBits {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.control
	if r.StallWrite {
		c &^= core.CtlLastWriteDone
	}
	if r.StallSync {
		c &^= core.CtlSynchronized
	}
	return c
}

func (r *Registers) SetControl(bits core.ControlBits) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if bits&core.CtlConfigMode != 0 && !r.configuring() {
		r.stagedCounter = r.counter
		r.stagedAlarm = r.alarm
		r.stagedPrescaler = r.prescaler
		r.dirty = 0
	}
	r.control |= bits
}

func (r *Registers) ClearControl(bits core.ControlBits) {
	r.mu.Lock()
	defer r.mu.Unlock()
	leaving := bits&core.CtlConfigMode != 0 && r.configuring()
	r.control &^= bits
	if leaving {
		r.commit()
	}
	if !r.configuring() {
		// The APB interface resynchronizes on the next RTC clock edge.
		r.control |= core.CtlSynchronized
	}
}

func (r *Registers) commit() {
	if r.dirty&dirtyCounter != 0 {
		r.counter = r.stagedCounter
	}
	if r.dirty&dirtyAlarm != 0 {
		r.alarm = r.stagedAlarm
	}
	if r.dirty&dirtyPrescaler != 0 {
		r.prescaler = r.stagedPrescaler
	}
	r.dirty = 0
}

func (r *Registers) ReadBackupWord(i int) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i < 0 || i >= len(r.backup) {
		return 0
	}
	return r.backup[i]
}

func (r *Registers) WriteBackupWord(i int, v uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.access || i < 0 || i >= len(r.backup) {
		r.violations++
		return
	}
	r.backup[i] = v
	r.BackupWrites = append(r.BackupWrites, i)
}

// ResetBackupDomain resets the counter, alarm, prescaler, control bits and
// backup words. Write access stays enabled since it lives in the power
// controller.
func (r *Registers) ResetBackupDomain() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset()
}

func (r *Registers) EnableBackupDomainAccess() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.access = true
}

// Tick advances the counter by n seconds, raising the alarm and overflow
// flags as the hardware would.
func (r *Registers) Tick(n int) {
	for i := 0; i < n; i++ {
		if r.tick() {
			if h := r.AlarmHandler; h != nil {
				h()
			}
		}
	}
}

func (r *Registers) tick() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counter++
	if r.counter == 0 {
		r.control |= core.CtlOverflowFlag
	}
	r.control |= core.CtlSecondFlag
	if r.counter != r.alarm {
		return false
	}
	r.control |= core.CtlAlarmFlag
	return r.control&core.CtlAlarmIntEnable != 0
}

// SetCounter forces the counter, bypassing configuration mode.
func (r *Registers) SetCounter(v uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counter = v
}

// Counter returns the committed counter value.
func (r *Registers) Counter() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counter
}

// Backup returns a copy of all backup words, including the status word.
func (r *Registers) Backup() []uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint16(nil), r.backup...)
}

// Violations counts writes the hardware would have ignored.
func (r *Registers) Violations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.violations
}

var _ core.RegisterDriver = (*Registers)(nil)
