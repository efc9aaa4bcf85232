package sim

import (
	"context"
	"io"
	"time"

	"vbatrtc/core"
	"vbatrtc/protocol"
)

// Device is a simulated board running the firmware command loop. It speaks
// the wire protocol over any byte stream, so host tools can be exercised
// without hardware.
type Device struct {
	Board    *Board
	RTC      *core.RTC
	Commands *core.Commands

	transport *protocol.Transport
	in        *protocol.FifoBuffer
	out       *protocol.ScratchOutput
}

// NewDevice creates and initializes a simulated device. A non-zero epoch
// sets the clock.
func NewDevice(layout core.Layout, epoch uint32) (*Device, error) {
	b := NewBoard(layout)
	r := core.New(b.Config())
	b.Connect(r)
	if err := r.Begin(core.InitNone); err != nil {
		return nil, err
	}
	if epoch != 0 {
		if err := r.SetEpoch(epoch); err != nil {
			return nil, err
		}
	}

	d := &Device{
		Board: b,
		RTC:   r,
		in:    protocol.NewFifoBuffer(4 * protocol.MessageLengthMax),
		out:   protocol.NewScratchOutput(),
	}
	d.Commands = core.NewCommands(r, nil)
	d.transport = protocol.NewTransport(d.out, d.Commands.Handle)
	d.Commands.SetResponder(d.transport)
	d.Commands.ForwardAlarms()
	d.Commands.Dictionary().AddString("MCU", "sim")
	return d, nil
}

// Errors returns the number of commands the transport failed to handle.
func (d *Device) Errors() uint32 {
	return d.transport.Errors()
}

// Serve runs the command loop on conn until ctx is done or conn fails.
// Every tick advances the counter by one second; a zero tick freezes it.
// A clean EOF from conn returns nil. When ctx is done, conn is closed if it
// is an io.Closer so the reader stops; otherwise the caller must close it.
func (d *Device) Serve(ctx context.Context, conn io.ReadWriter, tick time.Duration) error {
	chunks := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		buf := make([]byte, 64)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				readErr <- err
				return
			}
			select {
			case chunks <- append([]byte(nil), buf[:n]...):
			case <-ctx.Done():
				return
			}
		}
	}()

	var ticks <-chan time.Time
	if tick > 0 {
		t := time.NewTicker(tick)
		defer t.Stop()
		ticks = t.C
	}

	for {
		select {
		case <-ctx.Done():
			if cl, ok := conn.(io.Closer); ok {
				cl.Close()
			}
			return ctx.Err()
		case err := <-readErr:
			if err == io.EOF {
				return nil
			}
			return err
		case chunk := <-chunks:
			if d.in.Write(chunk) < len(chunk) {
				// Overrun; the transport resynchronizes on the next frame.
				d.in.Reset()
				d.in.Write(chunk)
			}
			d.transport.Receive(d.in)
		case <-ticks:
			d.Board.Regs.Tick(1)
		}
		d.RTC.ProcessEvents()
		if err := d.flush(conn); err != nil {
			return err
		}
	}
}

func (d *Device) flush(w io.Writer) error {
	data := d.out.Result()
	if len(data) == 0 {
		return nil
	}
	buf := append([]byte(nil), data...)
	d.out.Reset()
	_, err := w.Write(buf)
	return err
}
