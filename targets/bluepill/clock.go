//go:build stm32f103

package main

import (
	"machine"

	"vbatrtc/core"
)

// Cortex-M3 data watchpoint and trace unit.
var (
	demCR     = reg32(0xE000EDFC)
	dwtCTRL   = reg32(0xE0001000)
	dwtCYCCNT = reg32(0xE0001004)
)

const (
	demCRTRCENA  = 1 << 24
	dwtCYCCNTENA = 1 << 0
)

// cycleTime is a millisecond time base on the DWT cycle counter. Unlike
// SysTick it keeps counting while interrupts are masked, which the RTC
// configuration waits rely on. Millis must be called at least once per
// counter wrap (about a minute at 72 MHz) to stay monotonic.
type cycleTime struct {
	perMilli uint32
	last     uint32
	rest     uint32
	millis   uint32
}

func newCycleTime() *cycleTime {
	demCR.SetBits(demCRTRCENA)
	dwtCYCCNT.Set(0)
	dwtCTRL.SetBits(dwtCYCCNTENA)
	return &cycleTime{perMilli: machine.CPUFrequency() / 1000}
}

func (t *cycleTime) Millis() uint32 {
	now := dwtCYCCNT.Get()
	t.rest += now - t.last
	t.last = now
	t.millis += t.rest / t.perMilli
	t.rest %= t.perMilli
	return t.millis
}

// rtcSel values of RCC_BDCR.
var rtcSel = [...]uint32{
	core.LSEClock: 1 << 8,
	core.LSIClock: 2 << 8,
	core.HSEClock: 3 << 8,
}

// clockDriver selects the RTC oscillator in RCC_BDCR.
type clockDriver struct {
	time    core.TimeSource
	timeout uint32
	source  core.ClockSourceID
}

func (c *clockDriver) ready() bool {
	switch c.source {
	case core.LSEClock:
		return rccBDCR.HasBits(bdcrLSERDY)
	case core.LSIClock:
		return rccCSR.HasBits(csrLSIRDY)
	}
	return true
}

// SelectClock starts source and routes it to the RTC. RTCSEL can only be
// written once per backup domain reset, so a different source already in
// place is an error.
func (c *clockDriver) SelectClock(source core.ClockSourceID) error {
	if int(source) >= len(rtcSel) {
		return core.ErrInvalidParameter
	}
	c.source = source

	switch source {
	case core.LSEClock:
		rccBDCR.SetBits(bdcrLSEON)
	case core.LSIClock:
		rccCSR.SetBits(csrLSION)
	}

	start := c.time.Millis()
	for !c.ready() {
		if waited := c.time.Millis() - start; waited >= c.timeout {
			return &core.TimeoutError{Op: "clock", Waited: waited}
		}
	}

	sel := rccBDCR.Get() & bdcrRTCSEL
	switch sel {
	case 0:
		rccBDCR.SetBits(rtcSel[source])
	case rtcSel[source]:
	default:
		return core.ErrInvalidParameter
	}
	rccBDCR.SetBits(bdcrRTCEN)
	return nil
}

func (c *clockDriver) IsStable() bool {
	return c.ready() && rccBDCR.HasBits(bdcrRTCEN)
}

var (
	_ core.ClockDriver = (*clockDriver)(nil)
	_ core.TimeSource  = (*cycleTime)(nil)
)
