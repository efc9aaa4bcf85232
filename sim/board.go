package sim

import "vbatrtc/core"

// Board wires a simulated register block, clock and interrupt controller
// together the way the alarm is routed on the chip.
type Board struct {
	Layout core.Layout
	Regs   *Registers
	Clock  *Clock
	IRQ    *Interrupts
}

// NewBoard creates a board with the given layout.
func NewBoard(layout core.Layout) *Board {
	b := &Board{
		Layout: layout,
		Regs:   NewRegisters(layout.BackupWords),
		Clock:  &Clock{},
		IRQ:    NewInterrupts(),
	}
	b.Regs.AlarmHandler = func() {
		b.IRQ.SetPending(layout.AlarmLine)
	}
	return b
}

// Config returns an RTC configuration using the board's peripherals.
func (b *Board) Config() core.Config {
	return core.Config{
		Registers:  b.Regs,
		Clock:      b.Clock,
		Interrupts: b.IRQ,
		Layout:     b.Layout,
	}
}

// Connect routes the alarm line to rtc.
func (b *Board) Connect(rtc *core.RTC) {
	b.IRQ.Handle(b.Layout.AlarmLine, rtc.HandleAlarmInterrupt)
}
