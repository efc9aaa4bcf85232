package protocol

// InputBuffer is a window over received bytes.
type InputBuffer interface {
	// Data returns the unread bytes.
	Data() []byte

	// Available returns len(Data()).
	Available() int

	// Pop discards n bytes from the front.
	Pop(n int)
}

// OutputBuffer accumulates outgoing bytes. Frames are built in place, so
// the length byte is patched with Update once the payload is known.
type OutputBuffer interface {
	Output(data []byte)
	CurPosition() int
	Update(pos int, val byte)
	DataSince(pos int) []byte
}

// SliceInputBuffer is an InputBuffer over a fixed slice.
type SliceInputBuffer struct {
	data []byte
}

func NewSliceInputBuffer(data []byte) *SliceInputBuffer {
	return &SliceInputBuffer{data: data}
}

func (s *SliceInputBuffer) Data() []byte   { return s.data }
func (s *SliceInputBuffer) Available() int { return len(s.data) }

func (s *SliceInputBuffer) Pop(n int) {
	if n > len(s.data) {
		n = len(s.data)
	}
	s.data = s.data[n:]
}

// ScratchOutput is an OutputBuffer backed by a fixed array. Output beyond
// MessageMax is dropped.
type ScratchOutput struct {
	buf [MessageMax]byte
	pos int
}

func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{}
}

func (s *ScratchOutput) Output(data []byte) {
	s.pos += copy(s.buf[s.pos:], data)
}

func (s *ScratchOutput) CurPosition() int {
	return s.pos
}

func (s *ScratchOutput) Update(pos int, val byte) {
	if pos >= 0 && pos < s.pos {
		s.buf[pos] = val
	}
}

func (s *ScratchOutput) DataSince(pos int) []byte {
	if pos < 0 || pos > s.pos {
		return nil
	}
	return s.buf[pos:s.pos]
}

// Result returns everything written since the last Reset.
func (s *ScratchOutput) Result() []byte {
	return s.buf[:s.pos]
}

func (s *ScratchOutput) Reset() {
	s.pos = 0
}

// FifoBuffer is a byte queue for serial input. Unread bytes are kept
// contiguous so a frame can be parsed in place; space freed at the front is
// reclaimed by moving the remainder down when a write needs it.
type FifoBuffer struct {
	buf   []byte
	start int
	end   int
}

// NewFifoBuffer creates a FifoBuffer holding up to capacity bytes.
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{buf: make([]byte, capacity)}
}

// Write appends as much of data as fits and returns the count.
func (f *FifoBuffer) Write(data []byte) int {
	if f.end+len(data) > len(f.buf) && f.start > 0 {
		f.end = copy(f.buf, f.buf[f.start:f.end])
		f.start = 0
	}
	n := copy(f.buf[f.end:], data)
	f.end += n
	return n
}

// Read moves up to len(data) bytes out of the queue.
func (f *FifoBuffer) Read(data []byte) int {
	n := copy(data, f.buf[f.start:f.end])
	f.Pop(n)
	return n
}

func (f *FifoBuffer) Data() []byte {
	return f.buf[f.start:f.end]
}

func (f *FifoBuffer) Available() int {
	return f.end - f.start
}

// Free returns how many bytes Write accepts.
func (f *FifoBuffer) Free() int {
	return len(f.buf) - f.Available()
}

func (f *FifoBuffer) Pop(n int) {
	f.start += n
	if f.start >= f.end {
		f.start, f.end = 0, 0
	}
}

func (f *FifoBuffer) IsEmpty() bool {
	return f.start == f.end
}

func (f *FifoBuffer) Reset() {
	f.start, f.end = 0, 0
}
