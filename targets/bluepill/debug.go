//go:build stm32f103

package main

import "machine"

var debugUART *machine.UART

// initDebugUART brings up USART2 on PA2 (TX) and PA3 (RX) at 115200 baud for
// RTC trace output.
func initDebugUART() {
	uart := machine.UART2
	err := uart.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.PA2,
		RX:       machine.PA3,
	})
	if err != nil {
		return
	}
	debugUART = uart
	debugPrintln("=== bluepill rtc debug ===")
}

// debugPrintln is a core.DebugWriter.
func debugPrintln(s string) {
	if debugUART == nil {
		return
	}
	debugUART.Write([]byte(s))
	debugUART.Write([]byte("\r\n"))
}
