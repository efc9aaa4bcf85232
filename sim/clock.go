package sim

import (
	"sync"

	"vbatrtc/core"
)

// Clock is a simulated clock subsystem.
type Clock struct {
	Source core.ClockSourceID
	// Fail makes SelectClock time out, as when no crystal is fitted.
	Fail bool
	// Selections counts SelectClock calls.
	Selections int

	stable bool
}

func (c *Clock) SelectClock(source core.ClockSourceID) error {
	c.Selections++
	if c.Fail {
		c.stable = false
		return &core.TimeoutError{Op: "clock", Waited: core.DefaultConfigTimeout}
	}
	c.Source = source
	c.stable = true
	return nil
}

func (c *Clock) IsStable() bool {
	return c.stable
}

// Interrupts is a simulated external interrupt controller. SetPending on an
// enabled line runs its handler.
type Interrupts struct {
	mu       sync.Mutex
	enabled  map[core.InterruptLine]bool
	handlers map[core.InterruptLine]func()
}

func NewInterrupts() *Interrupts {
	return &Interrupts{
		enabled:  make(map[core.InterruptLine]bool),
		handlers: make(map[core.InterruptLine]func()),
	}
}

// Handle sets the handler of line.
func (ic *Interrupts) Handle(line core.InterruptLine, fn func()) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	ic.handlers[line] = fn
}

func (ic *Interrupts) Enable(line core.InterruptLine) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	ic.enabled[line] = true
}

func (ic *Interrupts) Disable(line core.InterruptLine) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	ic.enabled[line] = false
}

// Enabled reports whether line is unmasked.
func (ic *Interrupts) Enabled(line core.InterruptLine) bool {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return ic.enabled[line]
}

func (ic *Interrupts) SetPending(line core.InterruptLine) {
	ic.mu.Lock()
	fn := ic.handlers[line]
	on := ic.enabled[line]
	ic.mu.Unlock()
	if on && fn != nil {
		fn()
	}
}

// FakeTime is a deterministic millisecond time base that advances by Step
// on every read.
type FakeTime struct {
	Now  uint32
	Step uint32
}

func (t *FakeTime) Millis() uint32 {
	now := t.Now
	t.Now += t.Step
	return now
}

var (
	_ core.ClockDriver         = (*Clock)(nil)
	_ core.InterruptController = (*Interrupts)(nil)
	_ core.TimeSource          = (*FakeTime)(nil)
)
