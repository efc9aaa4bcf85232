//go:build stm32f103

package main

import (
	"runtime/volatile"
	"unsafe"

	"vbatrtc/core"
)

// STM32F103 RTC, BKP, PWR and RCC memory map (RM0008).
const (
	rtcBase = 0x40002800
	bkpBase = 0x40006C00
	pwrBase = 0x40007000
	rccBase = 0x40021000
)

func reg32(addr uintptr) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(addr))
}

var (
	rtcCRH  = reg32(rtcBase + 0x00)
	rtcCRL  = reg32(rtcBase + 0x04)
	rtcPRLH = reg32(rtcBase + 0x08) // write-only
	rtcPRLL = reg32(rtcBase + 0x0C) // write-only
	rtcCNTH = reg32(rtcBase + 0x18)
	rtcCNTL = reg32(rtcBase + 0x1C)
	rtcALRH = reg32(rtcBase + 0x20) // write-only
	rtcALRL = reg32(rtcBase + 0x24) // write-only

	pwrCR = reg32(pwrBase + 0x00)

	rccAPB1ENR = reg32(rccBase + 0x1C)
	rccBDCR    = reg32(rccBase + 0x20)
	rccCSR     = reg32(rccBase + 0x24)
)

// RTC_CRH
const (
	crhSECIE = 1 << 0
	crhALRIE = 1 << 1
	crhOWIE  = 1 << 2
)

// RTC_CRL. SECF, ALRF, OWF and RSF are cleared by writing 0; RTOFF is
// read-only.
const (
	crlSECF  = 1 << 0
	crlALRF  = 1 << 1
	crlOWF   = 1 << 2
	crlRSF   = 1 << 3
	crlCNF   = 1 << 4
	crlRTOFF = 1 << 5

	crlClearable = crlSECF | crlALRF | crlOWF | crlRSF
)

const (
	pwrDBP = 1 << 8

	apb1BKPEN = 1 << 27
	apb1PWREN = 1 << 28

	bdcrLSEON  = 1 << 0
	bdcrLSERDY = 1 << 1
	bdcrRTCSEL = 3 << 8
	bdcrRTCEN  = 1 << 15
	bdcrBDRST  = 1 << 16

	csrLSION  = 1 << 0
	csrLSIRDY = 1 << 1
)

// Backup data register offsets: DR1-DR10 start at 0x04, DR11-DR42 at 0x40.
func bkpDR(i int) *volatile.Register32 {
	if i < 10 {
		return reg32(bkpBase + 0x04 + uintptr(i)*4)
	}
	return reg32(bkpBase + 0x40 + uintptr(i-10)*4)
}

// registers implements core.RegisterDriver on the RTC and BKP peripherals.
type registers struct {
	words int

	// Shadows of the write-only alarm and prescaler registers. They are
	// lost on reset.
	alarm     uint32
	prescaler uint32
}

func newRegisters(layout core.Layout) *registers {
	return &registers{words: layout.BackupWords, prescaler: core.PrescalerLSE}
}

func (r *registers) ReadCounterHigh() uint16 { return uint16(rtcCNTH.Get()) }
func (r *registers) ReadCounterLow() uint16 { return uint16(rtcCNTL.Get()) }
func (r *registers) WriteCounterHigh(v uint16) { rtcCNTH.Set(uint32(v)) }
func (r *registers) WriteCounterLow(v uint16) { rtcCNTL.Set(uint32(v)) }

func (r *registers) ReadAlarm() uint32 {
	return r.alarm
}

func (r *registers) WriteAlarmHigh(v uint16) {
	rtcALRH.Set(uint32(v))
	r.alarm = uint32(v)<<16 | r.alarm&0xFFFF
}

func (r *registers) WriteAlarmLow(v uint16) {
	rtcALRL.Set(uint32(v))
	r.alarm = r.alarm&0xFFFF0000 | uint32(v)
}

func (r *registers) ReadPrescaler() uint32 {
	return r.prescaler
}

func (r *registers) WritePrescaler(v uint32) {
	rtcPRLH.Set((v >> 16) & 0xF)
	rtcPRLL.Set(v & 0xFFFF)
	r.prescaler = v & 0xFFFFF
}

func (r *registers) ReadControl() core.ControlBits {
	crh := rtcCRH.Get()
	crl := rtcCRL.Get()

	var bits core.ControlBits
	set := func(on bool, b core.ControlBits) {
		if on {
			bits |= b
		}
	}
	set(crh&crhSECIE != 0, core.CtlSecondIntEnable)
	set(crh&crhALRIE != 0, core.CtlAlarmIntEnable)
	set(crh&crhOWIE != 0, core.CtlOverflowIntEnable)
	set(crl&crlSECF != 0, core.CtlSecondFlag)
	set(crl&crlALRF != 0, core.CtlAlarmFlag)
	set(crl&crlOWF != 0, core.CtlOverflowFlag)
	set(crl&crlRSF != 0, core.CtlSynchronized)
	set(crl&crlCNF != 0, core.CtlConfigMode)
	set(crl&crlRTOFF != 0, core.CtlLastWriteDone)
	return bits
}

func crhBits(bits core.ControlBits) uint32 {
	var v uint32
	if bits&core.CtlSecondIntEnable != 0 {
		v |= crhSECIE
	}
	if bits&core.CtlAlarmIntEnable != 0 {
		v |= crhALRIE
	}
	if bits&core.CtlOverflowIntEnable != 0 {
		v |= crhOWIE
	}
	return v
}

func crlBits(bits core.ControlBits) uint32 {
	var v uint32
	if bits&core.CtlSecondFlag != 0 {
		v |= crlSECF
	}
	if bits&core.CtlAlarmFlag != 0 {
		v |= crlALRF
	}
	if bits&core.CtlOverflowFlag != 0 {
		v |= crlOWF
	}
	if bits&core.CtlSynchronized != 0 {
		v |= crlRSF
	}
	if bits&core.CtlConfigMode != 0 {
		v |= crlCNF
	}
	return v
}

// SetControl sets interrupt enables and CNF. Status flags are only ever
// set by hardware.
func (r *registers) SetControl(bits core.ControlBits) {
	if v := crhBits(bits); v != 0 {
		rtcCRH.SetBits(v)
	}
	if bits&core.CtlConfigMode != 0 {
		// Writing 1 to the rc_w0 flags leaves them alone.
		rtcCRL.Set(rtcCRL.Get() | crlClearable | crlCNF)
	}
}

func (r *registers) ClearControl(bits core.ControlBits) {
	if v := crhBits(bits); v != 0 {
		rtcCRH.ClearBits(v)
	}
	if v := crlBits(bits); v != 0 {
		rtcCRL.Set((rtcCRL.Get() | crlClearable) &^ v)
	}
}

func (r *registers) ReadBackupWord(i int) uint16 {
	if i < 0 || i >= r.words {
		return 0
	}
	return uint16(bkpDR(i).Get())
}

func (r *registers) WriteBackupWord(i int, v uint16) {
	if i < 0 || i >= r.words {
		return
	}
	bkpDR(i).Set(uint32(v))
}

func (r *registers) ResetBackupDomain() {
	rccBDCR.SetBits(bdcrBDRST)
	rccBDCR.ClearBits(bdcrBDRST)
	r.alarm = 0
	r.prescaler = 0x8000
}

func (r *registers) EnableBackupDomainAccess() {
	rccAPB1ENR.SetBits(apb1PWREN | apb1BKPEN)
	pwrCR.SetBits(pwrDBP)
}

var _ core.RegisterDriver = (*registers)(nil)
