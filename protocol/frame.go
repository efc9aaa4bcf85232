package protocol

import "errors"

var ErrFrameTooLong = errors.New("frame payload too long")

// Frame is a validated message block.
type Frame struct {
	Sequence uint8
	Payload  []byte // aliases the scanned data
}

// IsAck reports whether the frame is an ACK/NAK (no payload).
func (f Frame) IsAck() bool {
	return len(f.Payload) == 0
}

// FrameScanner splits a byte stream into frames. After any framing error
// it discards input up to the next sync byte.
type FrameScanner struct {
	desynced bool

	// CheckDest rejects frames whose sequence byte lacks MessageDest.
	CheckDest bool

	// OnResync is called when the scanner regains sync after an error.
	OnResync func()
}

// Next returns the first complete frame in data and the number of bytes
// consumed. ok is false when data holds no complete frame; consumed then
// counts garbage that can be dropped.
func (s *FrameScanner) Next(data []byte) (frame Frame, consumed int, ok bool) {
	start := len(data)
	for len(data) > 0 {
		if s.desynced {
			i := 0
			for i < len(data) && data[i] != MessageValueSync {
				i++
			}
			if i == len(data) {
				return Frame{}, start, false
			}
			data = data[i+1:]
			s.desynced = false
			if s.OnResync != nil {
				s.OnResync()
			}
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}
		if len(data) < MessageLengthMin {
			break
		}

		n := int(data[MessagePositionLen])
		if n < MessageLengthMin || n > MessageLengthMax {
			s.desynced = true
			continue
		}
		seq := data[MessagePositionSeq]
		if s.CheckDest && seq&^MessageSeqMask != MessageDest {
			s.desynced = true
			continue
		}
		if len(data) < n {
			break
		}
		if data[n-MessageTrailerSync] != MessageValueSync {
			s.desynced = true
			continue
		}
		crc := uint16(data[n-MessageTrailerCRC])<<8 | uint16(data[n-MessageTrailerCRC+1])
		if crc != CRC16(data[:n-MessageTrailerSize]) {
			s.desynced = true
			continue
		}

		frame = Frame{
			Sequence: seq,
			Payload:  data[MessageHeaderSize : n-MessageTrailerSize],
		}
		return frame, start - len(data) + n, true
	}
	return Frame{}, start - len(data), false
}

// Synchronized reports whether the scanner is in sync.
func (s *FrameScanner) Synchronized() bool {
	return !s.desynced
}

// Desync forces the scanner to wait for the next sync byte.
func (s *FrameScanner) Desync() {
	s.desynced = true
}

// EncodeFrame writes a complete frame with sequence seq to out. The payload
// is produced by body. An oversized payload is left unterminated and
// ErrFrameTooLong is returned; message sizes are bounded so this only
// signals a programming error.
func EncodeFrame(out OutputBuffer, seq uint8, body func(OutputBuffer)) error {
	cursor := out.CurPosition()
	out.Output([]byte{0, seq})
	if body != nil {
		body(out)
	}

	n := len(out.DataSince(cursor)) + MessageTrailerSize
	if n > MessageLengthMax {
		return ErrFrameTooLong
	}
	out.Update(cursor+MessagePositionLen, uint8(n))

	crc := CRC16(out.DataSince(cursor))
	out.Output([]byte{uint8(crc >> 8), uint8(crc), MessageValueSync})
	return nil
}

// AckFrame returns the ACK/NAK frame announcing seq as the next expected
// sequence.
func AckFrame(seq uint8) []byte {
	crc := CRC16([]byte{MessageLengthMin, seq})
	return []byte{MessageLengthMin, seq, uint8(crc >> 8), uint8(crc), MessageValueSync}
}
