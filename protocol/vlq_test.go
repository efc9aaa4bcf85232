package protocol

import (
	"bytes"
	"testing"
)

func TestVLQEncodeDecodeInt(t *testing.T) {
	testCases := []int32{0, 1, -1, 95, 96, -32, -33, 127, -128, 1000, -1000, 65535, -65535, 1 << 30, -1 << 31}

	for _, expected := range testCases {
		output := NewScratchOutput()
		EncodeVLQInt(output, expected)
		encoded := output.Result()

		data := encoded
		decoded, err := DecodeVLQInt(&data)
		if err != nil {
			t.Errorf("Failed to decode VLQ for value %d: %v", expected, err)
			continue
		}
		if decoded != expected {
			t.Errorf("VLQ mismatch: expected %d, got %d (encoded as %v)", expected, decoded, encoded)
		}
		if len(data) != 0 {
			t.Errorf("VLQ decode left %d bytes for value %d", len(data), expected)
		}
	}
}

func TestVLQEncodeDecodeUint(t *testing.T) {
	testCases := []struct {
		value uint32
		size  int
	}{
		{0, 1},
		{95, 1},
		{96, 2},
		{1592858340, 5},
		{0x7FFFFFFF, 5},
		{0x80000000, 5},
		{0xFFFFFFFF, 1}, // -1
	}

	for _, tc := range testCases {
		output := NewScratchOutput()
		EncodeVLQUint(output, tc.value)
		encoded := output.Result()
		if len(encoded) != tc.size {
			t.Errorf("Value %d encoded in %d bytes, expected %d", tc.value, len(encoded), tc.size)
		}

		data := encoded
		decoded, err := DecodeVLQUint(&data)
		if err != nil {
			t.Errorf("Failed to decode VLQ for value %d: %v", tc.value, err)
			continue
		}
		if decoded != tc.value {
			t.Errorf("VLQ mismatch: expected %d, got %d (encoded as %v)", tc.value, decoded, encoded)
		}
	}
}

func TestVLQSequence(t *testing.T) {
	output := NewScratchOutput()
	for _, v := range []uint32{3, 1000, 0xDEADBEEF} {
		EncodeVLQUint(output, v)
	}
	data := output.Result()
	for _, expected := range []uint32{3, 1000, 0xDEADBEEF} {
		v, err := DecodeVLQUint(&data)
		if err != nil || v != expected {
			t.Errorf("Decoded %d (%v), expected %d", v, err, expected)
		}
	}
	if len(data) != 0 {
		t.Errorf("%d bytes left over", len(data))
	}
}

func TestVLQBytes(t *testing.T) {
	testCases := [][]byte{
		{},
		{0x01},
		{0xFF, 0xFE, 0xFD},
		make([]byte, 50),
	}

	for i, expected := range testCases {
		output := NewScratchOutput()
		EncodeVLQBytes(output, expected)

		data := output.Result()
		decoded, err := DecodeVLQBytes(&data)
		if err != nil {
			t.Errorf("Test case %d: Failed to decode bytes: %v", i, err)
			continue
		}
		if !bytes.Equal(decoded, expected) {
			t.Errorf("Test case %d: got %v, expected %v", i, decoded, expected)
		}
	}
}

func TestVLQWords(t *testing.T) {
	words := []uint16{0x0010, 0x0020, 0xBEEF}
	output := NewScratchOutput()
	EncodeVLQWords(output, words)

	if got, want := output.Result(), []byte{6, 0x10, 0, 0x20, 0, 0xEF, 0xBE}; !bytes.Equal(got, want) {
		t.Errorf("Encoded %v, expected %v", got, want)
	}

	data := output.Result()
	decoded, err := DecodeVLQWords(&data)
	if err != nil {
		t.Fatalf("DecodeVLQWords failed: %v", err)
	}
	if len(decoded) != len(words) {
		t.Fatalf("Decoded %d words, expected %d", len(decoded), len(words))
	}
	for i := range words {
		if decoded[i] != words[i] {
			t.Errorf("Word %d: got 0x%04x, expected 0x%04x", i, decoded[i], words[i])
		}
	}

	odd := []byte{3, 1, 2, 3}
	if _, err := DecodeVLQWords(&odd); err != ErrOddWordData {
		t.Errorf("Expected ErrOddWordData, got %v", err)
	}
}

func TestVLQBufferTooSmall(t *testing.T) {
	data := []byte{0x80} // continuation without a following byte
	if _, err := DecodeVLQInt(&data); err != ErrBufferTooSmall {
		t.Errorf("Expected ErrBufferTooSmall, got %v", err)
	}
	if len(data) != 1 {
		t.Errorf("Failed decode consumed input")
	}

	short := []byte{5, 1, 2}
	if _, err := DecodeVLQBytes(&short); err != ErrBufferTooSmall {
		t.Errorf("Expected ErrBufferTooSmall, got %v", err)
	}
}

func TestVLQTooLong(t *testing.T) {
	data := []byte{0x81, 0x81, 0x81, 0x81, 0x81, 0x01}
	if _, err := DecodeVLQInt(&data); err != ErrInvalidVLQ {
		t.Errorf("Expected ErrInvalidVLQ, got %v", err)
	}
}
