//go:build stm32f103

// Firmware for an STM32F103 "Blue Pill" exposing its battery-backed RTC over
// USART1. A DS3231 on I2C1, when fitted, seeds the counter after the backup
// domain lost power.
package main

import (
	"machine"
	"time"

	"vbatrtc/core"
	"vbatrtc/protocol"
	"vbatrtc/refclock"
)

var (
	rtc       *core.RTC
	commands  *core.Commands
	transport *protocol.Transport

	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput

	msgerrors uint32
)

func main() {
	initDebugUART()

	serial := machine.UART1
	serial.Configure(machine.UARTConfig{BaudRate: 115200})

	cfg := core.Config{
		Registers:  newRegisters(core.MediumDensity),
		Interrupts: exti{},
		Time:       newCycleTime(),
		Layout:     core.MediumDensity,
		Source:     core.LSEClock,
		Debug:      debugPrintln,
	}
	cfg.Clock = &clockDriver{time: cfg.Time, timeout: core.DefaultConfigTimeout}

	i2c := machine.I2C0
	if err := i2c.Configure(machine.I2CConfig{Frequency: 100 * machine.KHz}); err == nil {
		cfg.Reference = refclock.NewDS3231(i2c)
	}

	rtc = core.New(cfg)
	if err := rtc.Begin(core.InitNone); err != nil {
		// Stay up so the host can still read status and retry.
		debugPrintln("rtc begin: " + err.Error())
	}

	inputBuffer = protocol.NewFifoBuffer(256)
	outputBuffer = protocol.NewScratchOutput()

	commands = core.NewCommands(rtc, nil)
	commands.Dictionary().AddString("MCU", "stm32f103")
	transport = protocol.NewTransport(outputBuffer, commands.Handle)
	transport.SetResetCallback(func() {
		inputBuffer.Reset()
		outputBuffer.Reset()
	})
	transport.SetFlushCallback(func() {
		writeSerial(serial)
	})
	commands.SetResponder(transport)
	commands.ForwardAlarms()

	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					inputBuffer.Reset()
					outputBuffer.Reset()
				}
			}()

			for serial.Buffered() > 0 {
				b, err := serial.ReadByte()
				if err != nil {
					break
				}
				if inputBuffer.Write([]byte{b}) == 0 {
					inputBuffer.Reset()
				}
			}
			if inputBuffer.Available() > 0 {
				transport.Receive(inputBuffer)
			}

			rtc.ProcessEvents()
			writeSerial(serial)
		}()

		time.Sleep(100 * time.Microsecond)
	}
}

func writeSerial(serial *machine.UART) {
	data := outputBuffer.Result()
	if len(data) == 0 {
		return
	}
	if _, err := serial.Write(data); err != nil {
		msgerrors++
	}
	outputBuffer.Reset()
}
