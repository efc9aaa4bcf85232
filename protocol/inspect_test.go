package protocol

import (
	"errors"
	"testing"
)

func TestInspect(t *testing.T) {
	var stream []byte
	stream = append(stream, 0x00, 0x42, MessageValueSync) // line noise
	stream = append(stream, hostFrame(t, 0x11, MsgStatus, 3, 0, 1000)...)
	stream = append(stream, AckFrame(0x12)...)

	out := NewScratchOutput()
	err := EncodeFrame(out, 0x12, func(o OutputBuffer) {
		EncodeVLQUint(o, uint32(MsgBackup))
		EncodeVLQUint(o, 2)
		EncodeVLQWords(o, []uint16{0x1234, 7})
		EncodeVLQUint(o, uint32(MsgEpoch))
		EncodeVLQUint(o, 1592858340)
	})
	if err != nil {
		t.Fatal(err)
	}
	stream = append(stream, out.Result()...)

	frames, err := Inspect(stream)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}

	if got := frames[0].Messages[0].String(); got != "rtc_status flags=3 alarm=0 epoch=1000" {
		t.Errorf("frame 0 = %q", got)
	}
	if !frames[1].IsAck() || frames[1].Sequence != 0x12 {
		t.Errorf("frame 1 = %+v, want ACK 0x12", frames[1])
	}

	msgs := frames[2].Messages
	if len(msgs) != 2 {
		t.Fatalf("frame 2 has %d messages, want 2", len(msgs))
	}
	if got := msgs[0].String(); got != "rtc_backup index=2 data=34120700" {
		t.Errorf("backup = %q", got)
	}
	if got := msgs[1].String(); got != "rtc_epoch epoch=1592858340" {
		t.Errorf("epoch = %q", got)
	}
}

func TestInspectUnknownMessage(t *testing.T) {
	frames, err := Inspect(hostFrame(t, 0x10, 99, 1))
	if !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("err = %v, want ErrUnknownMessage", err)
	}
	if len(frames) != 0 {
		t.Errorf("got %d frames, want none", len(frames))
	}
}

func TestDecodeArgsTruncated(t *testing.T) {
	data := []byte{0x05}
	d, err := DecodeArgs(MsgStatus, &data)
	if err != ErrBufferTooSmall {
		t.Fatalf("err = %v, want ErrBufferTooSmall", err)
	}
	if len(d.Params) != 1 || d.Params[0].Value != 5 {
		t.Errorf("partial decode = %+v", d)
	}
}
