package core

import (
	"vbatrtc/protocol"
)

// Responder sends one response message. *protocol.Transport implements it.
type Responder interface {
	SendCommand(cmdID uint16, args func(output protocol.OutputBuffer)) error
}

// Commands exposes an RTC over the protocol message table.
type Commands struct {
	rtc        *RTC
	registry   *CommandRegistry
	dictionary *Dictionary
	out        Responder
}

// NewCommands binds the RTC command handlers. Responses go to out.
func NewCommands(rtc *RTC, out Responder) *Commands {
	c := &Commands{
		rtc:      rtc,
		registry: NewCommandRegistry(),
		out:      out,
	}

	handlers := []struct {
		name string
		fn   CommandHandler
	}{
		{"rtc_get_epoch", c.handleGetEpoch},
		{"rtc_set_epoch", c.handleSetEpoch},
		{"rtc_get_datetime", c.handleGetDateTime},
		{"rtc_set_datetime", c.handleSetDateTime},
		{"rtc_set_alarm", c.handleSetAlarm},
		{"rtc_disable_alarm", c.handleDisableAlarm},
		{"rtc_read_backup", c.handleReadBackup},
		{"rtc_write_backup", c.handleWriteBackup},
		{"rtc_clear_backup", c.handleClearBackup},
		{"rtc_get_status", c.handleGetStatus},
		{"rtc_identify", c.handleIdentify},
	}
	for _, h := range handlers {
		if _, err := c.registry.Register(h.name, h.fn); err != nil {
			// The table and this list ship together.
			panic(err)
		}
	}

	layout := rtc.Layout()
	c.dictionary = NewDictionary(c.registry)
	c.dictionary.AddConstant("BACKUP_WORDS", uint32(layout.BackupWords))
	c.dictionary.AddConstant("ALARM_LINE", uint32(layout.AlarmLine))
	c.dictionary.AddConstant("CLOCK_SOURCE", uint32(rtc.ClockSource()))
	c.dictionary.AddConstant("MAX_BACKUP_WORDS", protocol.MaxBackupWords)
	return c
}

// Dictionary returns the identify dictionary. Targets add their own
// constants (MCU name, build) before the host connects.
func (c *Commands) Dictionary() *Dictionary {
	return c.dictionary
}

// Registry returns the bound command table.
func (c *Commands) Registry() *CommandRegistry {
	return c.registry
}

// SetResponder replaces the response sink.
func (c *Commands) SetResponder(out Responder) {
	c.out = out
}

// Handle dispatches one command. It has the signature of
// protocol.CommandHandler.
func (c *Commands) Handle(cmdID uint16, data *[]byte) error {
	return c.registry.Dispatch(cmdID, data)
}

// ForwardAlarms attaches an alarm callback that reports every firing as
// rtc_alarm_fired. With deferred dispatch the message is sent from
// ProcessEvents.
func (c *Commands) ForwardAlarms() {
	c.rtc.AttachAlarmCallback(func(interface{}) {
		c.NotifyAlarm(c.rtc.AlarmEpoch())
	}, nil)
}

// NotifyAlarm sends rtc_alarm_fired.
func (c *Commands) NotifyAlarm(epoch uint32) error {
	return c.send(protocol.MsgAlarmFired, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, epoch)
	})
}

func (c *Commands) send(id protocol.MessageID, args func(protocol.OutputBuffer)) error {
	if c.out == nil {
		return nil
	}
	return c.out.SendCommand(uint16(id), args)
}

func (c *Commands) result(cmd protocol.MessageID, err error) error {
	return c.send(protocol.MsgResult, protocol.Result{
		Cmd:    cmd,
		Status: uint8(StatusOf(err)),
	}.Encode)
}

func (c *Commands) handleGetEpoch(data *[]byte) error {
	epoch := c.rtc.Epoch()
	return c.send(protocol.MsgEpoch, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, epoch)
	})
}

func (c *Commands) handleSetEpoch(data *[]byte) error {
	epoch, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	return c.result(protocol.MsgSetEpoch, c.rtc.SetEpoch(epoch))
}

func (c *Commands) handleGetDateTime(data *[]byte) error {
	format, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	f := Hour24
	if format != 0 {
		f = Hour12
	}
	dt := c.rtc.DateTime(f)
	return c.send(protocol.MsgDateTime, wireDateTime(dt).Encode)
}

func (c *Commands) handleSetDateTime(data *[]byte) error {
	var w protocol.DateTime
	if err := w.DecodeSet(data); err != nil {
		return err
	}
	dt, ok := fromWire(w)
	if !ok {
		return c.result(protocol.MsgSetDateTime, ErrInvalidParameter)
	}
	return c.result(protocol.MsgSetDateTime, c.rtc.SetDateTime(&dt))
}

func (c *Commands) handleSetAlarm(data *[]byte) error {
	epoch, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	return c.result(protocol.MsgSetAlarm, c.rtc.SetAlarmEpoch(epoch))
}

func (c *Commands) handleDisableAlarm(data *[]byte) error {
	c.rtc.DisableAlarm()
	return c.result(protocol.MsgDisableAlarm, nil)
}

func (c *Commands) handleReadBackup(data *[]byte) error {
	index, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	count, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	if count > protocol.MaxBackupWords {
		count = protocol.MaxBackupWords
	}
	words := c.rtc.ReadBackup(int(index), int(count))
	return c.send(protocol.MsgBackup, protocol.Backup{
		Index: uint8(index),
		Words: words,
	}.Encode)
}

func (c *Commands) handleWriteBackup(data *[]byte) error {
	var b protocol.Backup
	if err := b.Decode(data); err != nil {
		return err
	}
	n := c.rtc.WriteBackup(b.Words, int(b.Index), len(b.Words))
	var err error
	if n < len(b.Words) {
		// The words that fit are kept.
		err = ErrInvalidParameter
	}
	return c.result(protocol.MsgWriteBackup, err)
}

func (c *Commands) handleClearBackup(data *[]byte) error {
	c.rtc.ClearBackup()
	return c.result(protocol.MsgClearBackup, nil)
}

func (c *Commands) handleGetStatus(data *[]byte) error {
	var alarm uint32
	if c.rtc.IsAlarmEnabled() {
		alarm = c.rtc.AlarmEpoch()
	}
	return c.send(protocol.MsgStatus, protocol.Status{
		Flags: uint8(c.rtc.Flags()),
		Alarm: alarm,
		Epoch: c.rtc.Epoch(),
	}.Encode)
}

func (c *Commands) handleIdentify(data *[]byte) error {
	offset, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	count, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	if count > protocol.MaxIdentifyChunk {
		count = protocol.MaxIdentifyChunk
	}
	chunk := c.dictionary.Chunk(offset, uint8(count))
	return c.send(protocol.MsgIdentifyResponse, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, offset)
		protocol.EncodeVLQBytes(out, chunk)
	})
}

func wireDateTime(dt DateTime) protocol.DateTime {
	return protocol.DateTime{
		Epoch:   dt.Epoch,
		Year:    dt.Year,
		Month:   dt.Month,
		Day:     dt.Day,
		Weekday: dt.Weekday,
		Hours:   dt.Hours,
		Minutes: dt.Minutes,
		Seconds: dt.Seconds,
		PM:      dt.PM,
		Format:  uint8(dt.HourFormat),
	}
}

// fromWire converts a host date. Fields out of range are rejected here
// since ToEpoch clamps rather than fails. 2106 is refused as a whole; the
// counter wraps early in February of that year.
func fromWire(w protocol.DateTime) (DateTime, bool) {
	dt := DateTime{
		Year:    w.Year,
		Month:   w.Month,
		Day:     w.Day,
		Hours:   w.Hours,
		Minutes: w.Minutes,
		Seconds: w.Seconds,
		PM:      w.PM,
	}
	switch w.Format {
	case 0:
		dt.HourFormat = Hour24
		if dt.Hours > 23 {
			return dt, false
		}
	case 1:
		dt.HourFormat = Hour12
		if dt.Hours < 1 || dt.Hours > 12 {
			return dt, false
		}
	default:
		return dt, false
	}
	if dt.Year < EpochYear || dt.Year > 2105 || dt.Month < 1 || dt.Month > 12 || dt.Minutes > 59 || dt.Seconds > 59 {
		return dt, false
	}
	if dt.Day < 1 || int(dt.Day) > DaysInMonth(int(dt.Year), int(dt.Month)) {
		return dt, false
	}
	return dt, true
}
