// Package tinycompress writes zlib streams made of stored (uncompressed)
// DEFLATE blocks. The output is readable by any zlib decoder while the
// encoder stays small enough for a microcontroller.
package tinycompress

import (
	"errors"
	"hash/adler32"
	"io"
)

const (
	headerCMF = 0x78
	headerFLG = 0x9C

	// Largest payload of one stored block.
	maxStored = 0xFFFF
)

var ErrCorrupt = errors.New("tinycompress: corrupt or unsupported stream")

// Writer buffers everything written and emits the stream on Close.
type Writer struct {
	output io.Writer
	data   []byte
	closed bool
}

// NewWriter returns a Writer producing a zlib stream on w. sizeHint
// preallocates the input buffer.
func NewWriter(w io.Writer, sizeHint int) *Writer {
	return &Writer{output: w, data: make([]byte, 0, sizeHint)}
}

func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.New("tinycompress: write after close")
	}
	w.data = append(w.data, p...)
	return len(p), nil
}

// Close writes the header, the stored blocks and the Adler-32 trailer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if _, err := w.output.Write([]byte{headerCMF, headerFLG}); err != nil {
		return err
	}

	data := w.data
	for {
		n := len(data)
		final := byte(1)
		if n > maxStored {
			n, final = maxStored, 0
		}
		hdr := []byte{final, byte(n), byte(n >> 8), ^byte(n), ^byte(n >> 8)}
		if _, err := w.output.Write(hdr); err != nil {
			return err
		}
		if _, err := w.output.Write(data[:n]); err != nil {
			return err
		}
		data = data[n:]
		if final == 1 {
			break
		}
	}

	sum := adler32.Checksum(w.data)
	_, err := w.output.Write([]byte{byte(sum >> 24), byte(sum >> 16), byte(sum >> 8), byte(sum)})
	return err
}

// Compress returns data as a zlib stream.
func Compress(data []byte) []byte {
	out := &sliceWriter{buf: make([]byte, 0, len(data)+len(data)/maxStored*5+11)}
	w := &Writer{output: out, data: data}
	w.Close()
	return out.buf
}

type sliceWriter struct {
	buf []byte
}

func (s *sliceWriter) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)
	return len(p), nil
}

// Decompress decodes a stream of stored blocks as produced by Writer.
// Compressed block types are not supported.
func Decompress(stream []byte) ([]byte, error) {
	if len(stream) < 2+5+4 || stream[0] != headerCMF || (uint16(stream[0])<<8|uint16(stream[1]))%31 != 0 {
		return nil, ErrCorrupt
	}
	pos := 2
	var out []byte
	for {
		if pos+5 > len(stream) {
			return nil, ErrCorrupt
		}
		hdr := stream[pos]
		if hdr>>1&3 != 0 {
			return nil, ErrCorrupt
		}
		n := int(stream[pos+1]) | int(stream[pos+2])<<8
		nn := int(stream[pos+3]) | int(stream[pos+4])<<8
		if n != ^nn&0xFFFF {
			return nil, ErrCorrupt
		}
		pos += 5
		if pos+n > len(stream) {
			return nil, ErrCorrupt
		}
		out = append(out, stream[pos:pos+n]...)
		pos += n
		if hdr&1 != 0 {
			break
		}
	}

	if pos+4 != len(stream) {
		return nil, ErrCorrupt
	}
	want := uint32(stream[pos])<<24 | uint32(stream[pos+1])<<16 | uint32(stream[pos+2])<<8 | uint32(stream[pos+3])
	if adler32.Checksum(out) != want {
		return nil, ErrCorrupt
	}
	return out, nil
}
