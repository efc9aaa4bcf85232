package protocol

import "sync/atomic"

// CommandHandler handles one decoded command. The handler consumes its
// arguments from data.
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the firmware end of the link: it validates host frames,
// acknowledges them and encodes responses.
type Transport struct {
	scanner FrameScanner

	// Next sequence expected from the host; responses and ACKs carry it too.
	nextSequence uint32

	output        OutputBuffer
	handler       CommandHandler
	resetCallback func()
	flushCallback func()

	errors uint32
}

// NewTransport creates a Transport writing frames to output.
func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	t := &Transport{
		nextSequence: MessageDest,
		output:       output,
		handler:      handler,
	}
	t.scanner.CheckDest = true
	t.scanner.OnResync = t.encodeAckNak
	return t
}

// Receive processes every complete frame in input and pops what it used.
func (t *Transport) Receive(input InputBuffer) {
	data := input.Data()
	total := 0
	for {
		frame, n, ok := t.scanner.Next(data)
		data = data[n:]
		total += n
		if !ok {
			break
		}
		t.receiveFrame(frame)
	}
	input.Pop(total)
}

func (t *Transport) receiveFrame(frame Frame) {
	expected := uint8(atomic.LoadUint32(&t.nextSequence))
	if frame.Sequence == MessageDest && expected != MessageDest {
		// The host restarted its sequence.
		atomic.StoreUint32(&t.nextSequence, MessageDest)
		expected = MessageDest
		if t.resetCallback != nil {
			t.resetCallback()
		}
	}

	if frame.Sequence == expected {
		atomic.StoreUint32(&t.nextSequence, uint32(nextSeq(expected)))
		// ACK before any response the commands produce.
		t.encodeAckNak()
		t.dispatch(frame.Payload)
		return
	}
	// Out of sequence: NAK with the sequence we want.
	t.encodeAckNak()
}

// dispatch runs every command in payload.
func (t *Transport) dispatch(payload []byte) {
	defer func() {
		if recover() != nil {
			atomic.AddUint32(&t.errors, 1)
			t.scanner.Desync()
		}
	}()

	for len(payload) > 0 {
		cmdID, err := DecodeVLQUint(&payload)
		if err != nil {
			atomic.AddUint32(&t.errors, 1)
			return
		}
		if t.handler == nil {
			return
		}
		if err := t.handler(uint16(cmdID), &payload); err != nil {
			// The remaining arguments cannot be trusted.
			atomic.AddUint32(&t.errors, 1)
			return
		}
	}
}

func (t *Transport) encodeAckNak() {
	t.output.Output(AckFrame(uint8(atomic.LoadUint32(&t.nextSequence))))
	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// SendCommand encodes a response frame. All frames sent while handling one
// host frame carry the same sequence.
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) error {
	seq := uint8(atomic.LoadUint32(&t.nextSequence))
	return EncodeFrame(t.output, seq, func(out OutputBuffer) {
		EncodeVLQUint(out, uint32(cmdID))
		if args != nil {
			args(out)
		}
	})
}

// Errors returns how many frames failed to decode or dispatch.
func (t *Transport) Errors() uint32 {
	return atomic.LoadUint32(&t.errors)
}

// Reset returns to the initial sequence, as after a reconnect.
func (t *Transport) Reset() {
	atomic.StoreUint32(&t.nextSequence, MessageDest)
	t.scanner = FrameScanner{CheckDest: true, OnResync: t.encodeAckNak}
	if t.resetCallback != nil {
		t.resetCallback()
	}
}

// SetResetCallback sets the function run when the host restarts.
func (t *Transport) SetResetCallback(callback func()) {
	t.resetCallback = callback
}

// SetFlushCallback sets the function that pushes output to the wire; it is
// called after every ACK.
func (t *Transport) SetFlushCallback(callback func()) {
	t.flushCallback = callback
}
