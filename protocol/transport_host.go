package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// DefaultAckTimeout bounds the wait for the firmware's acknowledgement.
const DefaultAckTimeout = 2 * time.Second

var ErrTransportClosed = errors.New("transport closed")

// Message is a decoded frame received by the host.
type Message struct {
	Sequence uint8
	ID       MessageID
	Args     []byte // undecoded arguments
}

// EventHandler receives unsolicited messages such as rtc_alarm_fired.
type EventHandler func(msg *Message)

// HostTransport is the host end of the link. It numbers outgoing frames,
// waits for their ACK and queues the responses.
type HostTransport struct {
	port io.ReadWriteCloser

	writeMu sync.Mutex
	seq     uint8

	scanner FrameScanner
	input   *FifoBuffer

	acks      chan uint8
	responses chan *Message

	eventsMu sync.RWMutex
	events   map[MessageID]EventHandler

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewHostTransport starts reading from port.
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:      port,
		seq:       MessageDest,
		input:     NewFifoBuffer(4 * MessageLengthMax),
		acks:      make(chan uint8, 4),
		responses: make(chan *Message, 16),
		events:    make(map[MessageID]EventHandler),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// SendCommand sends one command and waits for its ACK.
func (t *HostTransport) SendCommand(id MessageID, args func(output OutputBuffer)) error {
	return t.SendCommandWithTimeout(id, args, DefaultAckTimeout)
}

// SendCommandWithTimeout is SendCommand with an explicit ACK timeout.
func (t *HostTransport) SendCommandWithTimeout(id MessageID, args func(output OutputBuffer), timeout time.Duration) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	out := NewScratchOutput()
	err := EncodeFrame(out, t.seq, func(o OutputBuffer) {
		EncodeVLQUint(o, uint32(id))
		if args != nil {
			args(o)
		}
	})
	if err != nil {
		return fmt.Errorf("encode %v: %w", id, err)
	}

	// Stale ACKs from an earlier timeout would be mistaken for ours.
	t.drainAcks()

	frame := out.Result()
	n, err := t.port.Write(frame)
	if err != nil {
		return fmt.Errorf("write %v: %w", id, err)
	}
	if n != len(frame) {
		return fmt.Errorf("write %v: short write %d/%d", id, n, len(frame))
	}

	return t.waitForAck(timeout)
}

func (t *HostTransport) drainAcks() {
	for {
		select {
		case <-t.acks:
		default:
			return
		}
	}
}

// waitForAck must be called with writeMu held.
func (t *HostTransport) waitForAck(timeout time.Duration) error {
	sent := t.seq
	want := nextSeq(sent)
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case got := <-t.acks:
		if got != want {
			// NAK: adopt the sequence the firmware expects.
			t.seq = got
			return fmt.Errorf("nak: firmware expects sequence 0x%02x, sent 0x%02x", got, sent)
		}
		t.seq = want
		return nil
	case <-timer.C:
		return fmt.Errorf("ACK timeout after %v", timeout)
	case <-t.stop:
		return ErrTransportClosed
	}
}

// ReceiveResponse returns the next queued response.
func (t *HostTransport) ReceiveResponse(timeout time.Duration) (*Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-t.responses:
		return msg, nil
	case <-timer.C:
		return nil, fmt.Errorf("response timeout after %v", timeout)
	case <-t.stop:
		return nil, ErrTransportClosed
	}
}

// HandleEvent routes messages with the given ID to fn instead of the
// response queue. fn runs on the read goroutine.
func (t *HostTransport) HandleEvent(id MessageID, fn EventHandler) {
	t.eventsMu.Lock()
	defer t.eventsMu.Unlock()
	if fn == nil {
		delete(t.events, id)
		return
	}
	t.events[id] = fn
}

func (t *HostTransport) readLoop() {
	defer close(t.done)

	buf := make([]byte, 256)
	for {
		select {
		case <-t.stop:
			return
		default:
		}

		n, err := t.port.Read(buf)
		if n > 0 {
			t.receive(buf[:n])
		}
		if err != nil {
			if err == io.EOF {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (t *HostTransport) receive(data []byte) {
	for len(data) > 0 {
		n := t.input.Write(data)
		data = data[n:]
		if n == 0 {
			// A full buffer without a frame is noise.
			t.input.Reset()
			t.scanner.Desync()
			continue
		}

		for {
			frame, used, ok := t.scanner.Next(t.input.Data())
			if ok {
				t.dispatch(frame)
			}
			t.input.Pop(used)
			if !ok {
				break
			}
		}
	}
}

func (t *HostTransport) dispatch(frame Frame) {
	if frame.IsAck() {
		select {
		case t.acks <- frame.Sequence:
		default:
		}
		return
	}

	payload := frame.Payload
	id, err := DecodeVLQUint(&payload)
	if err != nil {
		return
	}
	msg := &Message{
		Sequence: frame.Sequence,
		ID:       MessageID(id),
		Args:     append([]byte(nil), payload...),
	}

	t.eventsMu.RLock()
	fn := t.events[msg.ID]
	t.eventsMu.RUnlock()
	if fn != nil {
		fn(msg)
		return
	}

	select {
	case t.responses <- msg:
	default:
		// Queue full: drop the oldest.
		select {
		case <-t.responses:
		default:
		}
		t.responses <- msg
	}
}

// Reset drops queued messages and restarts the sequence. The firmware
// treats the restarted sequence as a reconnect.
func (t *HostTransport) Reset() {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	t.seq = MessageDest
	t.drainAcks()
	for {
		select {
		case <-t.responses:
		default:
			return
		}
	}
}

// Sequence returns the sequence of the next frame to send.
func (t *HostTransport) Sequence() uint8 {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.seq
}

// Close stops the reader and closes the port.
func (t *HostTransport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.stop)
		err = t.port.Close()
		<-t.done
	})
	return err
}
