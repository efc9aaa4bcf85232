package protocol

// MessageID is a command or response identifier. IDs are assigned by
// position in the message table and are fixed by the protocol.
type MessageID uint16

const (
	MsgResult MessageID = iota
	MsgGetEpoch
	MsgEpoch
	MsgSetEpoch
	MsgGetDateTime
	MsgDateTime
	MsgSetDateTime
	MsgSetAlarm
	MsgDisableAlarm
	MsgReadBackup
	MsgBackup
	MsgWriteBackup
	MsgClearBackup
	MsgGetStatus
	MsgStatus
	MsgAlarmFired
	MsgIdentify
	MsgIdentifyResponse

	messageCount
)

// MessageFormat describes one entry of the message table.
type MessageFormat struct {
	Name     string
	Format   string
	Response bool // sent by the firmware
}

var messages = [messageCount]MessageFormat{
	MsgResult:       {"rtc_result", "cmd=%c status=%c", true},
	MsgGetEpoch:     {"rtc_get_epoch", "", false},
	MsgEpoch:        {"rtc_epoch", "epoch=%u", true},
	MsgSetEpoch:     {"rtc_set_epoch", "epoch=%u", false},
	MsgGetDateTime:  {"rtc_get_datetime", "format=%c", false},
	MsgDateTime:     {"rtc_datetime", "epoch=%u year=%hu month=%c day=%c weekday=%c hours=%c minutes=%c seconds=%c pm=%c format=%c", true},
	MsgSetDateTime:  {"rtc_set_datetime", "year=%hu month=%c day=%c hours=%c minutes=%c seconds=%c pm=%c format=%c", false},
	MsgSetAlarm:     {"rtc_set_alarm", "epoch=%u", false},
	MsgDisableAlarm: {"rtc_disable_alarm", "", false},
	MsgReadBackup:   {"rtc_read_backup", "index=%c count=%c", false},
	MsgBackup:       {"rtc_backup", "index=%c data=%*s", true},
	MsgWriteBackup:  {"rtc_write_backup", "index=%c data=%*s", false},
	MsgClearBackup:  {"rtc_clear_backup", "", false},
	MsgGetStatus:    {"rtc_get_status", "", false},
	MsgStatus:       {"rtc_status", "flags=%c alarm=%u epoch=%u", true},
	MsgAlarmFired:   {"rtc_alarm_fired", "epoch=%u", true},

	MsgIdentify:         {"rtc_identify", "offset=%u count=%c", false},
	MsgIdentifyResponse: {"rtc_identify_response", "offset=%u data=%*s", true},
}

// MaxBackupWords is the most backup words carried by one rtc_backup or
// rtc_write_backup message.
const MaxBackupWords = 16

// MaxIdentifyChunk is the most dictionary bytes in one
// rtc_identify_response.
const MaxIdentifyChunk = 40

// Messages returns the message table in ID order.
func Messages() []MessageFormat {
	return messages[:]
}

// Lookup returns the format of id.
func Lookup(id MessageID) (MessageFormat, bool) {
	if id >= messageCount {
		return MessageFormat{}, false
	}
	return messages[id], true
}

// LookupName returns the ID of the message called name.
func LookupName(name string) (MessageID, bool) {
	for i := range messages {
		if messages[i].Name == name {
			return MessageID(i), true
		}
	}
	return 0, false
}

func (id MessageID) String() string {
	if f, ok := Lookup(id); ok {
		return f.Name
	}
	return "unknown"
}

// Dictionary renders the message table, one "name format" line per ID.
func Dictionary() string {
	dict := ""
	for _, m := range messages {
		if m.Format != "" {
			dict += m.Name + " " + m.Format + "\n"
		} else {
			dict += m.Name + "\n"
		}
	}
	return dict
}

// Result is the payload of rtc_result.
type Result struct {
	Cmd    MessageID
	Status uint8
}

func (r Result) Encode(out OutputBuffer) {
	EncodeVLQUint(out, uint32(r.Cmd))
	EncodeVLQUint(out, uint32(r.Status))
}

func (r *Result) Decode(data *[]byte) error {
	return decodeFields(data, func(i int, v uint32) {
		switch i {
		case 0:
			r.Cmd = MessageID(v)
		case 1:
			r.Status = uint8(v)
		}
	}, 2)
}

// DateTime is the payload of rtc_datetime and, without Epoch and Weekday,
// of rtc_set_datetime.
type DateTime struct {
	Epoch   uint32
	Year    uint16
	Month   uint8
	Day     uint8
	Weekday uint8
	Hours   uint8
	Minutes uint8
	Seconds uint8
	PM      bool
	Format  uint8 // 0 = 24-hour, 1 = 12-hour
}

func (d DateTime) fields(full bool) []uint32 {
	f := make([]uint32, 0, 10)
	if full {
		f = append(f, d.Epoch)
	}
	f = append(f, uint32(d.Year), uint32(d.Month), uint32(d.Day))
	if full {
		f = append(f, uint32(d.Weekday))
	}
	pm := uint32(0)
	if d.PM {
		pm = 1
	}
	return append(f, uint32(d.Hours), uint32(d.Minutes), uint32(d.Seconds), pm, uint32(d.Format))
}

func (d *DateTime) set(full bool, v []uint32) {
	if full {
		d.Epoch, v = v[0], v[1:]
	}
	d.Year, d.Month, d.Day, v = uint16(v[0]), uint8(v[1]), uint8(v[2]), v[3:]
	if full {
		d.Weekday, v = uint8(v[0]), v[1:]
	}
	d.Hours, d.Minutes, d.Seconds = uint8(v[0]), uint8(v[1]), uint8(v[2])
	d.PM = v[3] != 0
	d.Format = uint8(v[4])
}

// Encode writes the rtc_datetime arguments.
func (d DateTime) Encode(out OutputBuffer) {
	for _, v := range d.fields(true) {
		EncodeVLQUint(out, v)
	}
}

// Decode reads the rtc_datetime arguments.
func (d *DateTime) Decode(data *[]byte) error {
	v, err := decodeUints(data, 10)
	if err != nil {
		return err
	}
	d.set(true, v)
	return nil
}

// EncodeSet writes the rtc_set_datetime arguments.
func (d DateTime) EncodeSet(out OutputBuffer) {
	for _, v := range d.fields(false) {
		EncodeVLQUint(out, v)
	}
}

// DecodeSet reads the rtc_set_datetime arguments.
func (d *DateTime) DecodeSet(data *[]byte) error {
	v, err := decodeUints(data, 8)
	if err != nil {
		return err
	}
	d.set(false, v)
	return nil
}

// Status is the payload of rtc_status.
type Status struct {
	Flags uint8
	Alarm uint32
	Epoch uint32
}

func (s Status) Encode(out OutputBuffer) {
	EncodeVLQUint(out, uint32(s.Flags))
	EncodeVLQUint(out, s.Alarm)
	EncodeVLQUint(out, s.Epoch)
}

func (s *Status) Decode(data *[]byte) error {
	v, err := decodeUints(data, 3)
	if err != nil {
		return err
	}
	s.Flags, s.Alarm, s.Epoch = uint8(v[0]), v[1], v[2]
	return nil
}

// Backup is the payload of rtc_backup and rtc_write_backup.
type Backup struct {
	Index uint8
	Words []uint16
}

func (b Backup) Encode(out OutputBuffer) {
	EncodeVLQUint(out, uint32(b.Index))
	EncodeVLQWords(out, b.Words)
}

func (b *Backup) Decode(data *[]byte) error {
	index, err := DecodeVLQUint(data)
	if err != nil {
		return err
	}
	words, err := DecodeVLQWords(data)
	if err != nil {
		return err
	}
	b.Index, b.Words = uint8(index), words
	return nil
}

func decodeUints(data *[]byte, n int) ([]uint32, error) {
	v := make([]uint32, n)
	err := decodeFields(data, func(i int, x uint32) { v[i] = x }, n)
	return v, err
}

func decodeFields(data *[]byte, set func(i int, v uint32), n int) error {
	for i := 0; i < n; i++ {
		v, err := DecodeVLQUint(data)
		if err != nil {
			return err
		}
		set(i, v)
	}
	return nil
}
