package core_test

import (
	"encoding/json"
	"testing"

	qt "github.com/frankban/quicktest"

	"vbatrtc/core"
	"vbatrtc/protocol"
	"vbatrtc/sim"
	"vbatrtc/tinycompress"
)

// loopback drives a firmware Transport the way the host would.
type loopback struct {
	c    *qt.C
	tr   *protocol.Transport
	out  *protocol.ScratchOutput
	cmds *core.Commands
	seq  uint8
}

func newLoopback(c *qt.C, r *core.RTC) *loopback {
	l := &loopback{c: c, out: protocol.NewScratchOutput(), seq: protocol.MessageDest}
	l.cmds = core.NewCommands(r, nil)
	l.tr = protocol.NewTransport(l.out, l.cmds.Handle)
	l.cmds.SetResponder(l.tr)
	return l
}

type reply struct {
	id   protocol.MessageID
	args []byte
}

// call sends one command and returns every non-ACK frame produced.
func (l *loopback) call(id protocol.MessageID, args func(protocol.OutputBuffer)) []reply {
	in := protocol.NewScratchOutput()
	err := protocol.EncodeFrame(in, l.seq, func(o protocol.OutputBuffer) {
		protocol.EncodeVLQUint(o, uint32(id))
		if args != nil {
			args(o)
		}
	})
	l.c.Assert(err, qt.IsNil)
	l.seq = (l.seq+1)&protocol.MessageSeqMask | protocol.MessageDest

	l.tr.Receive(protocol.NewSliceInputBuffer(in.Result()))
	return l.drain()
}

func (l *loopback) drain() []reply {
	var s protocol.FrameScanner
	data := l.out.Result()
	var replies []reply
	for {
		frame, n, ok := s.Next(data)
		data = data[n:]
		if !ok {
			break
		}
		if frame.IsAck() {
			continue
		}
		payload := frame.Payload
		id, err := protocol.DecodeVLQUint(&payload)
		l.c.Assert(err, qt.IsNil)
		replies = append(replies, reply{protocol.MessageID(id), append([]byte(nil), payload...)})
	}
	l.out.Reset()
	return replies
}

func (l *loopback) result(id protocol.MessageID, args func(protocol.OutputBuffer)) core.Status {
	replies := l.call(id, args)
	l.c.Assert(replies, qt.HasLen, 1)
	l.c.Assert(replies[0].id, qt.Equals, protocol.MsgResult)
	var res protocol.Result
	l.c.Assert(res.Decode(&replies[0].args), qt.IsNil)
	l.c.Assert(res.Cmd, qt.Equals, id)
	return core.Status(res.Status)
}

func (l *loopback) status() protocol.Status {
	replies := l.call(protocol.MsgGetStatus, nil)
	l.c.Assert(replies, qt.HasLen, 1)
	l.c.Assert(replies[0].id, qt.Equals, protocol.MsgStatus)
	var st protocol.Status
	l.c.Assert(st.Decode(&replies[0].args), qt.IsNil)
	return st
}

func epochArg(epoch uint32) func(protocol.OutputBuffer) {
	return func(o protocol.OutputBuffer) {
		protocol.EncodeVLQUint(o, epoch)
	}
}

func TestCommandEpoch(t *testing.T) {
	c := qt.New(t)
	_, r := newRTC(c, core.DispatchDeferred)
	l := newLoopback(c, r)

	replies := l.call(protocol.MsgGetEpoch, nil)
	c.Assert(replies, qt.HasLen, 1)
	c.Assert(replies[0].id, qt.Equals, protocol.MsgEpoch)
	epoch, err := protocol.DecodeVLQUint(&replies[0].args)
	c.Assert(err, qt.IsNil)
	c.Assert(epoch, qt.Equals, uint32(1000))

	c.Assert(l.result(protocol.MsgSetEpoch, epochArg(1592858340)), qt.Equals, core.StatusOK)
	c.Assert(r.Epoch(), qt.Equals, uint32(1592858340))
}

func TestCommandDateTime(t *testing.T) {
	c := qt.New(t)
	_, r := newRTC(c, core.DispatchDeferred)
	c.Assert(r.SetEpoch(1592858340), qt.IsNil)
	l := newLoopback(c, r)

	replies := l.call(protocol.MsgGetDateTime, func(o protocol.OutputBuffer) {
		protocol.EncodeVLQUint(o, 1)
	})
	c.Assert(replies, qt.HasLen, 1)
	var dt protocol.DateTime
	c.Assert(dt.Decode(&replies[0].args), qt.IsNil)
	c.Assert(dt, qt.Equals, protocol.DateTime{
		Epoch: 1592858340, Year: 2020, Month: 6, Day: 22, Weekday: 1,
		Hours: 8, Minutes: 39, Seconds: 0, PM: true, Format: 1,
	})

	set := protocol.DateTime{Year: 2024, Month: 2, Day: 29, Hours: 11, Minutes: 30, PM: true, Format: 1}
	c.Assert(l.result(protocol.MsgSetDateTime, set.EncodeSet), qt.Equals, core.StatusOK)
	got := r.DateTime(core.Hour24)
	c.Assert(got.Year, qt.Equals, uint16(2024))
	c.Assert(got.Day, qt.Equals, uint8(29))
	c.Assert(got.Hours, qt.Equals, uint8(23))
	c.Assert(got.Minutes, qt.Equals, uint8(30))
}

func TestCommandDateTimeRejected(t *testing.T) {
	c := qt.New(t)
	_, r := newRTC(c, core.DispatchDeferred)
	l := newLoopback(c, r)

	bad := []protocol.DateTime{
		{Year: 2023, Month: 2, Day: 29},
		{Year: 2020, Month: 13, Day: 1},
		{Year: 1969, Month: 12, Day: 31},
		{Year: 2020, Month: 1, Day: 1, Hours: 24},
		{Year: 2020, Month: 1, Day: 1, Hours: 0, Format: 1},
		{Year: 2020, Month: 1, Day: 1, Minutes: 60},
		{Year: 2020, Month: 1, Day: 1, Format: 2},
	}
	for _, dt := range bad {
		c.Check(l.result(protocol.MsgSetDateTime, dt.EncodeSet), qt.Equals, core.StatusInvalidParameter, qt.Commentf("%+v", dt))
	}
	c.Assert(r.Epoch(), qt.Equals, uint32(1000))
}

func TestCommandAlarm(t *testing.T) {
	c := qt.New(t)
	b, r := newRTC(c, core.DispatchDeferred)
	l := newLoopback(c, r)
	l.cmds.ForwardAlarms()

	c.Assert(l.result(protocol.MsgSetAlarm, epochArg(1000)), qt.Equals, core.StatusInvalidParameter)
	c.Assert(l.result(protocol.MsgSetAlarm, epochArg(1005)), qt.Equals, core.StatusOK)

	st := l.status()
	c.Assert(st.Flags, qt.Equals, uint8(core.FlagTimeSet|core.FlagAlarmSet|core.FlagConfigured))
	c.Assert(st.Alarm, qt.Equals, uint32(1005))
	c.Assert(st.Epoch, qt.Equals, uint32(1000))

	b.Regs.Tick(5)
	// Deferred: nothing is sent until the main loop runs.
	c.Assert(l.drain(), qt.HasLen, 0)
	c.Assert(r.ProcessEvents(), qt.Equals, 1)

	replies := l.drain()
	c.Assert(replies, qt.HasLen, 1)
	c.Assert(replies[0].id, qt.Equals, protocol.MsgAlarmFired)
	epoch, err := protocol.DecodeVLQUint(&replies[0].args)
	c.Assert(err, qt.IsNil)
	c.Assert(epoch, qt.Equals, uint32(1005))

	st = l.status()
	c.Assert(st.Flags&uint8(core.FlagAlarmSet), qt.Equals, uint8(0))
	c.Assert(st.Alarm, qt.Equals, uint32(0))
}

func TestCommandDisableAlarm(t *testing.T) {
	c := qt.New(t)
	_, r := newRTC(c, core.DispatchDeferred)
	l := newLoopback(c, r)

	c.Assert(l.result(protocol.MsgSetAlarm, epochArg(2000)), qt.Equals, core.StatusOK)
	c.Assert(l.result(protocol.MsgDisableAlarm, nil), qt.Equals, core.StatusOK)
	c.Assert(r.IsAlarmEnabled(), qt.Equals, false)
	c.Assert(l.result(protocol.MsgDisableAlarm, nil), qt.Equals, core.StatusOK)
}

func TestCommandBackup(t *testing.T) {
	c := qt.New(t)
	b, r := newRTC(c, core.DispatchDeferred)
	l := newLoopback(c, r)

	write := protocol.Backup{Index: 2, Words: []uint16{0x1111, 0x2222, 0x3333}}
	c.Assert(l.result(protocol.MsgWriteBackup, write.Encode), qt.Equals, core.StatusOK)
	c.Assert(b.Regs.Backup()[3:6], qt.DeepEquals, []uint16{0x1111, 0x2222, 0x3333})

	replies := l.call(protocol.MsgReadBackup, func(o protocol.OutputBuffer) {
		protocol.EncodeVLQUint(o, 2)
		protocol.EncodeVLQUint(o, 3)
	})
	c.Assert(replies, qt.HasLen, 1)
	c.Assert(replies[0].id, qt.Equals, protocol.MsgBackup)
	var got protocol.Backup
	c.Assert(got.Decode(&replies[0].args), qt.IsNil)
	c.Assert(got, qt.DeepEquals, write)

	// Capacity 9: only the first word fits.
	over := protocol.Backup{Index: 8, Words: []uint16{0xAAAA, 0xBBBB, 0xCCCC}}
	c.Assert(l.result(protocol.MsgWriteBackup, over.Encode), qt.Equals, core.StatusInvalidParameter)
	c.Assert(r.ReadBackup(8, 1), qt.DeepEquals, []uint16{0xAAAA})

	c.Assert(l.result(protocol.MsgClearBackup, nil), qt.Equals, core.StatusOK)
	c.Assert(r.ReadBackup(0, 9), qt.DeepEquals, make([]uint16, 9))
}

func TestCommandReadBackupClamped(t *testing.T) {
	c := qt.New(t)
	b := sim.NewBoard(core.HighDensity)
	cfg := b.Config()
	cfg.Time = &sim.FakeTime{Step: 1}
	r := core.New(cfg)
	c.Assert(r.Begin(core.InitNone), qt.IsNil)
	l := newLoopback(c, r)

	replies := l.call(protocol.MsgReadBackup, func(o protocol.OutputBuffer) {
		protocol.EncodeVLQUint(o, 0)
		protocol.EncodeVLQUint(o, 41)
	})
	c.Assert(replies, qt.HasLen, 1)
	var got protocol.Backup
	c.Assert(got.Decode(&replies[0].args), qt.IsNil)
	c.Assert(got.Words, qt.HasLen, protocol.MaxBackupWords)

	replies = l.call(protocol.MsgReadBackup, func(o protocol.OutputBuffer) {
		protocol.EncodeVLQUint(o, 50)
		protocol.EncodeVLQUint(o, 1)
	})
	c.Assert(got.Decode(&replies[0].args), qt.IsNil)
	c.Assert(got.Words, qt.HasLen, 0)
}

func TestCommandNotConfigured(t *testing.T) {
	c := qt.New(t)
	b := sim.NewBoard(core.MediumDensity)
	r := core.New(b.Config())
	l := newLoopback(c, r)

	c.Assert(l.result(protocol.MsgSetEpoch, epochArg(5)), qt.Equals, core.StatusNotConfigured)
	c.Assert(l.result(protocol.MsgSetAlarm, epochArg(5)), qt.Equals, core.StatusNotConfigured)
	c.Assert(l.status().Flags, qt.Equals, uint8(0))
}

func TestCommandTimeout(t *testing.T) {
	c := qt.New(t)
	b, r := newRTC(c, core.DispatchDeferred)
	l := newLoopback(c, r)

	b.Regs.StallWrite = true
	c.Assert(l.result(protocol.MsgSetEpoch, epochArg(5000)), qt.Equals, core.StatusTimedOut)
	c.Assert(r.Epoch(), qt.Equals, uint32(1000))
}

func TestCommandUnknown(t *testing.T) {
	c := qt.New(t)
	_, r := newRTC(c, core.DispatchDeferred)
	l := newLoopback(c, r)

	c.Assert(l.call(protocol.MsgEpoch, epochArg(1)), qt.HasLen, 0)
	c.Assert(l.call(protocol.MessageID(99), nil), qt.HasLen, 0)
	c.Assert(l.tr.Errors(), qt.Equals, uint32(2))
	c.Assert(l.cmds.Registry().Count(), qt.Equals, 11)
}

func TestCommandIdentify(t *testing.T) {
	c := qt.New(t)
	_, r := newRTC(c, core.DispatchDeferred)
	l := newLoopback(c, r)
	l.cmds.Dictionary().AddString("MCU", "stm32f103")

	var stream []byte
	for {
		offset := uint32(len(stream))
		replies := l.call(protocol.MsgIdentify, func(o protocol.OutputBuffer) {
			protocol.EncodeVLQUint(o, offset)
			protocol.EncodeVLQUint(o, 255)
		})
		c.Assert(replies, qt.HasLen, 1)
		c.Assert(replies[0].id, qt.Equals, protocol.MsgIdentifyResponse)
		got, err := protocol.DecodeVLQUint(&replies[0].args)
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.Equals, offset)
		chunk, err := protocol.DecodeVLQBytes(&replies[0].args)
		c.Assert(err, qt.IsNil)
		c.Assert(len(chunk) <= protocol.MaxIdentifyChunk, qt.Equals, true)
		if len(chunk) == 0 {
			break
		}
		stream = append(stream, chunk...)
	}

	raw, err := tinycompress.Decompress(stream)
	c.Assert(err, qt.IsNil)
	c.Assert(string(raw), qt.Equals, string(l.cmds.Dictionary().JSON()))

	var dict struct {
		Version   string            `json:"version"`
		Config    map[string]string `json:"config"`
		Commands  map[string]int    `json:"commands"`
		Responses map[string]int    `json:"responses"`
	}
	c.Assert(json.Unmarshal(raw, &dict), qt.IsNil)
	c.Assert(dict.Version, qt.Equals, protocol.Version)
	c.Assert(dict.Config["BACKUP_WORDS"], qt.Equals, "10")
	c.Assert(dict.Config["MCU"], qt.Equals, "stm32f103")
	c.Assert(dict.Commands["rtc_set_alarm epoch=%u"], qt.Equals, int(protocol.MsgSetAlarm))
	c.Assert(dict.Commands, qt.HasLen, 11)
	c.Assert(dict.Responses["rtc_alarm_fired epoch=%u"], qt.Equals, int(protocol.MsgAlarmFired))
}
