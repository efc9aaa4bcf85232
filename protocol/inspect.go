package protocol

import (
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
)

var ErrUnknownMessage = errors.New("unknown message id")

// Param is one decoded message argument.
type Param struct {
	Name  string
	Value uint32
	Data  []byte // %*s arguments only
	Bytes bool
}

// Decoded is a message decoded against the message table.
type Decoded struct {
	ID     MessageID
	Name   string
	Params []Param
}

// String renders the message the way the dictionary spells it, e.g.
// "rtc_epoch epoch=1592858340". Byte arguments are printed in hex.
func (d Decoded) String() string {
	var sb strings.Builder
	sb.WriteString(d.Name)
	for _, p := range d.Params {
		sb.WriteByte(' ')
		sb.WriteString(p.Name)
		sb.WriteByte('=')
		if p.Bytes {
			sb.WriteString(hex.EncodeToString(p.Data))
		} else {
			sb.WriteString(strconv.FormatUint(uint64(p.Value), 10))
		}
	}
	return sb.String()
}

// DecodeArgs decodes the arguments of one id message from data, advancing
// data past them.
func DecodeArgs(id MessageID, data *[]byte) (Decoded, error) {
	f, ok := Lookup(id)
	if !ok {
		return Decoded{ID: id, Name: id.String()}, ErrUnknownMessage
	}
	d := Decoded{ID: id, Name: f.Name}
	for _, field := range strings.Fields(f.Format) {
		name, verb := field, ""
		if i := strings.IndexByte(field, '='); i >= 0 {
			name, verb = field[:i], field[i+1:]
		}
		p := Param{Name: name}
		var err error
		if verb == "%*s" {
			p.Bytes = true
			p.Data, err = DecodeVLQBytes(data)
		} else {
			p.Value, err = DecodeVLQUint(data)
		}
		if err != nil {
			return d, err
		}
		d.Params = append(d.Params, p)
	}
	return d, nil
}

// InspectedFrame is one frame of a captured byte stream.
type InspectedFrame struct {
	Sequence uint8
	Messages []Decoded
}

// IsAck reports whether the frame carried no messages.
func (f InspectedFrame) IsAck() bool {
	return len(f.Messages) == 0
}

// Inspect splits a captured stream into frames and decodes their messages.
// Garbage between frames is skipped; a message that fails to decode ends
// the inspection with the frames decoded so far.
func Inspect(data []byte) ([]InspectedFrame, error) {
	var (
		scanner FrameScanner
		frames  []InspectedFrame
	)
	for len(data) > 0 {
		frame, n, ok := scanner.Next(data)
		data = data[n:]
		if !ok {
			if n == 0 {
				break
			}
			continue
		}
		f := InspectedFrame{Sequence: frame.Sequence}
		payload := frame.Payload
		for len(payload) > 0 {
			id, err := DecodeVLQUint(&payload)
			if err != nil {
				return frames, err
			}
			msg, err := DecodeArgs(MessageID(id), &payload)
			if err != nil {
				return frames, err
			}
			f.Messages = append(f.Messages, msg)
		}
		frames = append(frames, f)
	}
	return frames, nil
}
