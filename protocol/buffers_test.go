package protocol

import (
	"bytes"
	"testing"
)

func TestSliceInputBuffer(t *testing.T) {
	buf := NewSliceInputBuffer([]byte{1, 2, 3, 4, 5})

	if buf.Available() != 5 {
		t.Errorf("Expected 5 bytes available, got %d", buf.Available())
	}

	buf.Pop(2)
	if got := buf.Data(); !bytes.Equal(got, []byte{3, 4, 5}) {
		t.Errorf("After popping 2, got %v", got)
	}

	buf.Pop(10)
	if buf.Available() != 0 {
		t.Errorf("Over-pop left %d bytes", buf.Available())
	}
}

func TestScratchOutput(t *testing.T) {
	scratch := NewScratchOutput()
	scratch.Output([]byte{1, 2, 3})
	scratch.Output([]byte{4, 5})

	if scratch.CurPosition() != 5 {
		t.Errorf("Expected position 5, got %d", scratch.CurPosition())
	}

	scratch.Update(0, 99)
	scratch.Update(7, 99) // past the end, ignored
	if got := scratch.Result(); !bytes.Equal(got, []byte{99, 2, 3, 4, 5}) {
		t.Errorf("Result after Update: %v", got)
	}

	if since := scratch.DataSince(2); !bytes.Equal(since, []byte{3, 4, 5}) {
		t.Errorf("DataSince(2) = %v, expected [3 4 5]", since)
	}
	if since := scratch.DataSince(6); since != nil {
		t.Errorf("DataSince past end = %v, expected nil", since)
	}

	scratch.Reset()
	if scratch.CurPosition() != 0 {
		t.Errorf("After reset, expected position 0, got %d", scratch.CurPosition())
	}
}

func TestScratchOutputOverflow(t *testing.T) {
	scratch := NewScratchOutput()
	scratch.Output(make([]byte, MessageMax-1))
	scratch.Output([]byte{1, 2, 3})
	if scratch.CurPosition() != MessageMax {
		t.Errorf("Expected position %d, got %d", MessageMax, scratch.CurPosition())
	}
}

func TestFifoBuffer(t *testing.T) {
	fifo := NewFifoBuffer(8)

	if !fifo.IsEmpty() || fifo.Free() != 8 {
		t.Fatal("New FIFO should be empty")
	}

	if n := fifo.Write([]byte{1, 2, 3, 4, 5}); n != 5 {
		t.Errorf("Expected to write 5 bytes, wrote %d", n)
	}

	readBuf := make([]byte, 3)
	if n := fifo.Read(readBuf); n != 3 || !bytes.Equal(readBuf, []byte{1, 2, 3}) {
		t.Errorf("Read %d bytes: %v", n, readBuf)
	}

	// The write needs the space freed at the front.
	if n := fifo.Write([]byte{6, 7, 8, 9, 10, 11, 12}); n != 6 {
		t.Errorf("Expected to write 6 bytes, wrote %d", n)
	}
	if got := fifo.Data(); !bytes.Equal(got, []byte{4, 5, 6, 7, 8, 9, 10, 11}) {
		t.Errorf("Data after compaction: %v", got)
	}

	fifo.Pop(8)
	if !fifo.IsEmpty() {
		t.Errorf("Expected empty FIFO, %d bytes left", fifo.Available())
	}
}
