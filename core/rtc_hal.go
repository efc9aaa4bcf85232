package core

// ControlBits is the portable view of the RTC control/status registers.
// Targets map these onto their silicon layout (RTC_CRL/RTC_CRH on STM32F1).
type ControlBits uint16

const (
	CtlSecondIntEnable ControlBits = 1 << iota // SECIE
	CtlAlarmIntEnable                          // ALRIE
	CtlOverflowIntEnable                       // OWIE
	CtlSecondFlag                              // SECF
	CtlAlarmFlag                               // ALRF, set on alarm match
	CtlOverflowFlag                            // OWF
	CtlSynchronized                            // RSF, registers synchronized
	CtlConfigMode                              // CNF, enter configuration mode
	CtlLastWriteDone                           // RTOFF, last write terminated
)

// RegisterDriver is the abstract register interface that core code uses.
// Platform-specific implementations handle the actual memory-mapped access.
// Every method must be a single atomic access of the named field.
type RegisterDriver interface {
	// Counter register pair (CNTH/CNTL). Writes only take effect in
	// configuration mode.
	ReadCounterHigh() uint16
	ReadCounterLow() uint16
	WriteCounterHigh(v uint16)
	WriteCounterLow(v uint16)

	// Alarm register pair (ALRH/ALRL). The hardware registers are write-only
	// on some parts; ReadAlarm may return a shadow of the last written value.
	ReadAlarm() uint32
	WriteAlarmHigh(v uint16)
	WriteAlarmLow(v uint16)

	// Prescaler reload value (PRLH/PRLL, 20 bits).
	ReadPrescaler() uint32
	WritePrescaler(v uint32)

	// Control/status bits. SetControl and ClearControl are read-modify-write
	// operations on the underlying register(s).
	ReadControl() ControlBits
	SetControl(bits ControlBits)
	ClearControl(bits ControlBits)

	// Backup data registers. Index 0 is the first data register.
	ReadBackupWord(i int) uint16
	WriteBackupWord(i int, v uint16)

	// ResetBackupDomain asserts then deasserts the backup domain reset.
	ResetBackupDomain()

	// EnableBackupDomainAccess disables backup domain write protection.
	EnableBackupDomainAccess()
}

// ClockSourceID selects the oscillator feeding the RTC.
type ClockSourceID uint8

const (
	LSEClock ClockSourceID = iota // external 32.768 kHz crystal, runs from Vbat
	LSIClock                      // internal ~40 kHz RC
	HSEClock                      // HSE / 128
)

// ClockDriver is the hardware clock subsystem. It owns oscillator selection
// and stabilization sequencing.
type ClockDriver interface {
	// SelectClock routes the given oscillator to the RTC and waits for it to
	// become stable. Returns an error (wrapping ErrTimedOut) on timeout.
	SelectClock(source ClockSourceID) error

	// IsStable reports whether the selected oscillator is running.
	IsStable() bool
}

// InterruptLine identifies an external interrupt line.
type InterruptLine uint8

// AlarmLine is the EXTI line the RTC alarm is routed to on STM32F1.
const AlarmLine InterruptLine = 17

// InterruptController exposes the interrupt controller lines the RTC uses.
type InterruptController interface {
	// Enable unmasks the line and selects rising edge triggering.
	Enable(line InterruptLine)
	Disable(line InterruptLine)
	SetPending(line InterruptLine)
}

// Layout describes the chip variant.
type Layout struct {
	// BackupWords is the total number of 16-bit backup data registers,
	// including the status word.
	BackupWords int

	// AlarmLine is the external interrupt line of the alarm.
	AlarmLine InterruptLine
}

// Common chip layouts.
var (
	// MediumDensity is STM32F103x8/xB: 10 backup data registers.
	MediumDensity = Layout{BackupWords: 10, AlarmLine: AlarmLine}

	// HighDensity is STM32F103xC/xD/xE: 42 backup data registers.
	HighDensity = Layout{BackupWords: 42, AlarmLine: AlarmLine}
)
