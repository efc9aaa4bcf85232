//go:build stm32f103

package main

import (
	"device/stm32"
	"runtime/interrupt"

	"vbatrtc/core"
)

var (
	extiIMR   = reg32(0x40010400)
	extiRTSR  = reg32(0x40010408)
	extiSWIER = reg32(0x40010410)
	extiPR    = reg32(0x40010414)
)

// alarmIRQ is the NVIC vector of EXTI line 17.
var alarmIRQ = interrupt.New(stm32.IRQ_RTCAlarm, handleAlarm)

// handleAlarm acknowledges EXTI17 and hands the alarm to the RTC.
func handleAlarm(interrupt.Interrupt) {
	extiPR.Set(1 << core.AlarmLine)
	if rtc != nil {
		rtc.HandleAlarmInterrupt()
	}
}

// exti routes RTC alarm events through the external interrupt controller.
type exti struct{}

func (exti) Enable(line core.InterruptLine) {
	extiRTSR.SetBits(1 << line)
	extiIMR.SetBits(1 << line)
	if line == core.AlarmLine {
		alarmIRQ.Enable()
	}
}

func (exti) Disable(line core.InterruptLine) {
	extiIMR.ClearBits(1 << line)
}

func (exti) SetPending(line core.InterruptLine) {
	extiSWIER.SetBits(1 << line)
}

var _ core.InterruptController = exti{}
