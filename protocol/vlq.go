package protocol

import "errors"

var (
	ErrInvalidVLQ     = errors.New("invalid VLQ encoding")
	ErrBufferTooSmall = errors.New("buffer too small for VLQ")
	ErrOddWordData    = errors.New("word data has odd length")
)

// EncodeVLQInt writes v most significant group first, seven bits per byte.
// Values in [-32, 96) take one byte; every 32-bit value fits in five.
func EncodeVLQInt(output OutputBuffer, v int32) {
	var buf [5]byte
	n := 0
	if !(-(1<<26) <= v && v < (3<<26)) {
		buf[n] = byte((v>>28)&0x7F) | 0x80
		n++
	}
	if !(-(1<<19) <= v && v < (3<<19)) {
		buf[n] = byte((v>>21)&0x7F) | 0x80
		n++
	}
	if !(-(1<<12) <= v && v < (3<<12)) {
		buf[n] = byte((v>>14)&0x7F) | 0x80
		n++
	}
	if !(-(1<<5) <= v && v < (3<<5)) {
		buf[n] = byte((v>>7)&0x7F) | 0x80
		n++
	}
	buf[n] = byte(v & 0x7F)
	output.Output(buf[:n+1])
}

// EncodeVLQUint encodes v through its two's complement, so the whole
// uint32 range (epochs past 2038 included) survives a round trip.
func EncodeVLQUint(output OutputBuffer, v uint32) {
	EncodeVLQInt(output, int32(v))
}

// DecodeVLQInt decodes one integer and advances data past it.
func DecodeVLQInt(data *[]byte) (int32, error) {
	d := *data
	if len(d) == 0 {
		return 0, ErrBufferTooSmall
	}

	c := uint32(d[0])
	v := c & 0x7F
	if c&0x60 == 0x60 {
		v |= ^uint32(0x1F) // negative
	}
	i := 1
	for c&0x80 != 0 {
		if i == len(d) {
			return 0, ErrBufferTooSmall
		}
		if i == 5 {
			return 0, ErrInvalidVLQ
		}
		c = uint32(d[i])
		v = v<<7 | c&0x7F
		i++
	}

	*data = d[i:]
	return int32(v), nil
}

// DecodeVLQUint decodes one unsigned integer and advances data past it.
func DecodeVLQUint(data *[]byte) (uint32, error) {
	v, err := DecodeVLQInt(data)
	return uint32(v), err
}

// EncodeVLQBytes writes a length-prefixed byte string (%*s).
func EncodeVLQBytes(output OutputBuffer, data []byte) {
	EncodeVLQUint(output, uint32(len(data)))
	output.Output(data)
}

// DecodeVLQBytes decodes a length-prefixed byte string. The result aliases
// data.
func DecodeVLQBytes(data *[]byte) ([]byte, error) {
	d := *data
	length, err := DecodeVLQUint(&d)
	if err != nil {
		return nil, err
	}
	if uint32(len(d)) < length {
		return nil, ErrBufferTooSmall
	}
	*data = d[length:]
	return d[:length], nil
}

// EncodeVLQWords writes 16-bit words as a byte string, little endian.
func EncodeVLQWords(output OutputBuffer, words []uint16) {
	EncodeVLQUint(output, uint32(2*len(words)))
	for _, w := range words {
		output.Output([]byte{byte(w), byte(w >> 8)})
	}
}

// DecodeVLQWords decodes a byte string written by EncodeVLQWords.
func DecodeVLQWords(data *[]byte) ([]uint16, error) {
	b, err := DecodeVLQBytes(data)
	if err != nil {
		return nil, err
	}
	if len(b)%2 != 0 {
		return nil, ErrOddWordData
	}
	words := make([]uint16, len(b)/2)
	for i := range words {
		words[i] = uint16(b[2*i]) | uint16(b[2*i+1])<<8
	}
	return words, nil
}
