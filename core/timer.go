package core

import "time"

// DefaultConfigTimeout bounds every wait on an RTC status bit, in milliseconds.
const DefaultConfigTimeout = 2000

// TimeSource supplies the millisecond time base used for hardware timeouts.
// It must keep running while interrupts are masked.
type TimeSource interface {
	Millis() uint32
}

// SystemTime measures milliseconds since it was created using the runtime
// monotonic clock (SysTick under TinyGo).
type SystemTime struct {
	boot time.Time
}

// NewSystemTime starts a millisecond time base at zero.
func NewSystemTime() *SystemTime {
	return &SystemTime{boot: time.Now()}
}

// Millis returns elapsed milliseconds; it wraps after ~49 days, which
// waitFor tolerates by using unsigned differences.
func (s *SystemTime) Millis() uint32 {
	return uint32(time.Since(s.boot) / time.Millisecond)
}

// waitFor polls cond until it returns true or timeout milliseconds have
// elapsed on ts. It returns the elapsed time and whether cond was met.
func waitFor(ts TimeSource, timeout uint32, cond func() bool) (uint32, bool) {
	start := ts.Millis()
	for {
		if cond() {
			return 0, true
		}
		if elapsed := ts.Millis() - start; elapsed >= timeout {
			return elapsed, false
		}
	}
}
