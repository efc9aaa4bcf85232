package core

// GateState is the configuration state of the RTC register block.
type GateState uint8

const (
	GateIdle GateState = iota
	GateConfiguring
)

// ConfigGate serializes writes to the counter, alarm and prescaler registers.
// The hardware only latches those writes while CNF is set, and only accepts a
// new CNF cycle once the previous write has terminated (RTOFF).
type ConfigGate struct {
	regs    RegisterDriver
	time    TimeSource
	timeout uint32
	trace   *Trace
	state   GateState
}

// NewConfigGate creates a gate over regs. A zero timeout selects
// DefaultConfigTimeout.
func NewConfigGate(regs RegisterDriver, ts TimeSource, timeout uint32) *ConfigGate {
	if timeout == 0 {
		timeout = DefaultConfigTimeout
	}
	return &ConfigGate{
		regs:    regs,
		time:    ts,
		timeout: timeout,
	}
}

// State returns the current gate state.
func (g *ConfigGate) State() GateState {
	return g.state
}

// Timeout returns the bound applied to every status wait, in milliseconds.
func (g *ConfigGate) Timeout() uint32 {
	return g.timeout
}

// Enter waits for the last write to terminate, then enters configuration
// mode. On timeout the state is unchanged.
func (g *ConfigGate) Enter() error {
	if g.state == GateConfiguring {
		return ErrNestedConfig
	}

	waited, ok := waitFor(g.time, g.timeout, g.writeDone)
	if !ok {
		return g.timedOut("enter", waited)
	}

	g.regs.SetControl(CtlConfigMode)
	g.regs.ClearControl(CtlSynchronized)
	g.state = GateConfiguring
	g.record(EvtConfigEnter, 0)
	return nil
}

// Exit leaves configuration mode and waits until the hardware has committed
// the writes and resynchronized. CNF is cleared either way, so the gate is
// Idle afterwards even on timeout; whether the writes landed is unknown.
func (g *ConfigGate) Exit() error {
	g.regs.ClearControl(CtlConfigMode)
	g.state = GateIdle

	waited, ok := waitFor(g.time, g.timeout, g.committed)
	if !ok {
		return g.timedOut("exit", waited)
	}

	g.record(EvtConfigExit, 0)
	return nil
}

// Do runs fn between Enter and Exit.
func (g *ConfigGate) Do(fn func(regs RegisterDriver)) error {
	if err := g.Enter(); err != nil {
		return err
	}
	fn(g.regs)
	return g.Exit()
}

// WaitSynchronized waits until the shadow registers match the RTC domain.
// Required after reset and after the clock source changes.
func (g *ConfigGate) WaitSynchronized() error {
	g.regs.ClearControl(CtlSynchronized)
	waited, ok := waitFor(g.time, g.timeout, g.committed)
	if !ok {
		return g.timedOut("sync", waited)
	}
	return nil
}

func (g *ConfigGate) writeDone() bool {
	return g.regs.ReadControl()&CtlLastWriteDone != 0
}

func (g *ConfigGate) committed() bool {
	const want = CtlLastWriteDone | CtlSynchronized
	return g.regs.ReadControl()&want == want
}

func (g *ConfigGate) timedOut(op string, waited uint32) error {
	g.record(EvtConfigTimeout, waited)
	return &TimeoutError{Op: op, Waited: waited}
}

func (g *ConfigGate) record(kind uint8, value uint32) {
	if g.trace != nil {
		g.trace.Record(kind, value)
	}
}
