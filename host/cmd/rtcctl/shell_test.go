package main

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	qt "github.com/frankban/quicktest"
	"github.com/juju/errors"

	"vbatrtc/core"
	"vbatrtc/host/mcu"
	"vbatrtc/sim"
)

func init() {
	color.NoColor = true
}

func newTestShell(c *qt.C) (*shell, *bytes.Buffer, *sim.Device) {
	dev, err := sim.NewDevice(core.MediumDensity, 1592858340)
	c.Assert(err, qt.IsNil)

	hostEnd, devEnd := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		dev.Serve(ctx, devEnd, 0)
		close(done)
	}()

	m := mcu.New(hostEnd)
	c.Cleanup(func() {
		m.Close()
		cancel()
		devEnd.Close()
		<-done
	})

	var out bytes.Buffer
	sh := newShell(m, &out)
	sh.now = func() time.Time { return time.Unix(1700000000, 0) }
	return sh, &out, dev
}

func TestShellRead(t *testing.T) {
	c := qt.New(t)
	sh, out, _ := newTestShell(c)

	c.Assert(sh.exec("epoch"), qt.IsNil)
	c.Assert(out.String(), qt.Equals, "1592858340\n")

	out.Reset()
	c.Assert(sh.exec("datetime 12"), qt.IsNil)
	c.Assert(out.String(), qt.Equals, "Monday, June 22, 2020 08:39:00 PM\n")

	out.Reset()
	c.Assert(sh.exec("time"), qt.IsNil)
	c.Assert(out.String(), qt.Equals, "2020-06-22T20:39:00Z (Monday, June 22, 2020 20:39:00)\n")

	c.Assert(sh.exec("datetime 13"), qt.ErrorMatches, `hour format "13" not valid`)
}

func TestShellSetTime(t *testing.T) {
	c := qt.New(t)
	sh, out, dev := newTestShell(c)

	c.Assert(sh.exec("set-time"), qt.IsNil)
	c.Assert(dev.Board.Regs.Counter(), qt.Equals, uint32(1700000000))
	c.Assert(out.String(), qt.Equals, "set to 2023-11-14T22:13:20Z\n")

	c.Assert(sh.exec("set-time 2021-01-01T00:00:00Z"), qt.IsNil)
	c.Assert(dev.Board.Regs.Counter(), qt.Equals, uint32(1609459200))

	c.Assert(sh.exec("set-epoch 0x10000"), qt.IsNil)
	c.Assert(dev.Board.Regs.Counter(), qt.Equals, uint32(0x10000))

	c.Assert(sh.exec("set-datetime 2024-02-29 23:30:00"), qt.IsNil)
	c.Assert(dev.Board.Regs.Counter(), qt.Equals, uint32(1709249400))

	c.Assert(sh.exec("set-datetime 2023-02-29 00:00:00"), qt.Not(qt.IsNil))
	c.Assert(sh.exec("set-epoch 4294967296"), qt.Not(qt.IsNil))
	c.Assert(dev.Board.Regs.Counter(), qt.Equals, uint32(1709249400))
}

func TestShellAlarm(t *testing.T) {
	c := qt.New(t)
	sh, out, _ := newTestShell(c)

	c.Assert(sh.exec("alarm +100"), qt.IsNil)
	c.Assert(out.String(), qt.Equals, "alarm at 1592858440 (Monday, June 22, 2020 20:40:40)\n")

	out.Reset()
	c.Assert(sh.exec("status"), qt.IsNil)
	c.Assert(out.String(), qt.Contains, "flags:   configured,time-set,alarm-set\n")
	c.Assert(out.String(), qt.Contains, "alarm:   1592858440 ")

	out.Reset()
	c.Assert(sh.exec("alarm-off"), qt.IsNil)
	c.Assert(sh.exec("status"), qt.IsNil)
	c.Assert(out.String(), qt.Contains, "flags:   configured,time-set\n")
	c.Assert(out.String(), qt.Contains, "alarm:   off\n")

	err := sh.exec("alarm 1000")
	c.Assert(errors.Cause(err), qt.Equals, core.ErrInvalidParameter)
}

func TestShellAlarmEvent(t *testing.T) {
	c := qt.New(t)
	var out bytes.Buffer
	newShell(nil, &out).alarm(1592858340)
	c.Assert(out.String(), qt.Equals, "ALARM 1592858340 (Monday, June 22, 2020 20:39:00)\n")
}

func TestShellBackup(t *testing.T) {
	c := qt.New(t)
	sh, out, _ := newTestShell(c)

	c.Assert(sh.exec("backup-write 2 0x1234 7"), qt.IsNil)
	c.Assert(sh.exec("backup-read 2 2"), qt.IsNil)
	c.Assert(out.String(), qt.Equals, "  2: 0x1234\n  3: 0x0007\n")

	c.Assert(sh.exec("backup-write 2 0x10000"), qt.ErrorMatches, `number "0x10000" not valid`)
	c.Assert(sh.exec("backup-write 2"), qt.Not(qt.IsNil))

	out.Reset()
	c.Assert(sh.exec("backup-clear"), qt.IsNil)
	c.Assert(sh.exec("backup-read 2"), qt.IsNil)
	c.Assert(out.String(), qt.Equals, "  2: 0x0000\n")
}

func TestShellErrors(t *testing.T) {
	c := qt.New(t)
	sh, _, _ := newTestShell(c)

	c.Assert(sh.exec(""), qt.IsNil)
	c.Assert(errors.IsNotFound(sh.exec("frobnicate")), qt.IsTrue)
	c.Assert(errors.IsBadRequest(sh.exec("set-epoch")), qt.IsTrue)
	c.Assert(sh.exec(`set-time "2021`), qt.ErrorMatches, "bad command line: .*")
	c.Assert(sh.exec("quit"), qt.Equals, errQuit)
}

func TestShellInteract(t *testing.T) {
	c := qt.New(t)
	sh, out, _ := newTestShell(c)

	in := strings.NewReader("epoch\nbogus\n\nquit\nepoch\n")
	c.Assert(sh.interact(in, false), qt.IsNil)
	c.Assert(strings.Count(out.String(), "1592858340\n"), qt.Equals, 1)
	c.Assert(out.String(), qt.Contains, `Error: command "bogus"`)
}

func TestShellHelpAndDict(t *testing.T) {
	c := qt.New(t)
	sh, out, _ := newTestShell(c)

	c.Assert(sh.exec("help"), qt.IsNil)
	c.Assert(out.String(), qt.Contains, "set-datetime YYYY-MM-DD HH:MM:SS")
	c.Assert(out.String(), qt.Contains, "watch")

	out.Reset()
	c.Assert(sh.exec("dict"), qt.IsNil)
	c.Assert(out.String(), qt.Contains, "MCU = sim")
	c.Assert(out.String(), qt.Contains, "rtc_write_backup index=%c data=%*s")

	out.Reset()
	c.Assert(sh.exec("dict-raw"), qt.IsNil)
	c.Assert(out.String(), qt.Contains, `"version":"vbatrtc-1"`)

	c.Assert(errors.IsNotSupported(sh.exec("watch")), qt.IsTrue)
}
