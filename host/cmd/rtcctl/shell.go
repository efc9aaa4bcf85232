package main

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/shlex"
	"github.com/juju/errors"

	"vbatrtc/core"
	"vbatrtc/host/mcu"
	"vbatrtc/protocol"
)

var errQuit = errors.New("quit")

type command struct {
	name    string
	args    string
	short   string
	handler func(sh *shell, args []string) error
}

var commands []command

func init() {
	// Assigned here because help refers back to the table.
	commands = []command{
		{"time", "", "Print the RTC time", cmdTime},
		{"epoch", "", "Print the raw counter", cmdEpoch},
		{"set-epoch", "SECONDS", "Set the counter", cmdSetEpoch},
		{"set-time", "[now|RFC3339]", "Set the clock, from the host clock by default", cmdSetTime},
		{"datetime", "[12|24]", "Print the calendar view", cmdDateTime},
		{"set-datetime", "YYYY-MM-DD HH:MM:SS", "Set the clock from calendar fields (UTC)", cmdSetDateTime},
		{"alarm", "EPOCH|+SECONDS", "Arm the alarm", cmdAlarm},
		{"alarm-off", "", "Disarm the alarm", cmdAlarmOff},
		{"status", "", "Print status flags, alarm and counter", cmdStatus},
		{"backup-read", "INDEX [COUNT]", "Read user backup words", cmdBackupRead},
		{"backup-write", "INDEX WORD...", "Write user backup words", cmdBackupWrite},
		{"backup-clear", "", "Reset the backup domain (time and alarm are lost)", cmdBackupClear},
		{"watch", "", "Print alarm events until interrupted", cmdWatch},
		{"dict", "", "Print the board dictionary", cmdDict},
		{"dict-raw", "", "Print the board dictionary JSON", cmdDictRaw},
		{"help", "", "Show this help message", cmdHelp},
		{"quit", "", "Exit the shell", func(*shell, []string) error { return errQuit }},
	}
}

// shell runs rtcctl commands against one board.
type shell struct {
	mcu *mcu.MCU
	out io.Writer
	// now is the host clock, replaceable in tests.
	now func() time.Time
	// done is closed on interrupt.
	done <-chan struct{}
}

func newShell(m *mcu.MCU, out io.Writer) *shell {
	return &shell{mcu: m, out: out, now: time.Now}
}

// exec runs one command line.
func (sh *shell) exec(line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		return errors.Annotatef(err, "bad command line")
	}
	if len(args) == 0 {
		return nil
	}
	return sh.run(args)
}

func (sh *shell) run(args []string) error {
	name := args[0]
	if name == "exit" || name == "q" {
		name = "quit"
	}
	for _, c := range commands {
		if c.name == name {
			return c.handler(sh, args[1:])
		}
	}
	return errors.NotFoundf("command %q (type 'help' for available commands)", args[0])
}

// interact reads command lines from in until EOF or quit.
func (sh *shell) interact(in io.Reader, prompt bool) error {
	scanner := bufio.NewScanner(in)
	for {
		if prompt {
			fmt.Fprint(sh.out, "> ")
		}
		if !scanner.Scan() {
			return errors.Trace(scanner.Err())
		}
		err := sh.exec(scanner.Text())
		if err == errQuit {
			return nil
		}
		if err != nil {
			color.New(color.FgRed).Fprintf(sh.out, "Error: %s\n", err)
		}
	}
}

// alarm prints an alarm event.
func (sh *shell) alarm(epoch uint32) {
	dt := core.ToDateTime(epoch)
	color.New(color.FgYellow, color.Bold).Fprintf(sh.out, "ALARM %d (%s)\n", epoch, dt)
}

func wantArgs(args []string, min, max int) error {
	if len(args) < min || len(args) > max {
		return errors.BadRequestf("expected %d to %d arguments, got %d", min, max, len(args))
	}
	return nil
}

func parseUint(s string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, errors.NotValidf("number %q", s)
	}
	return v, nil
}

func cmdTime(sh *shell, args []string) error {
	t, err := sh.mcu.Time()
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "%s (%s)\n", t.Format(time.RFC3339), core.FromTime(t))
	return nil
}

func cmdEpoch(sh *shell, args []string) error {
	epoch, err := sh.mcu.Epoch()
	if err != nil {
		return err
	}
	fmt.Fprintln(sh.out, epoch)
	return nil
}

func cmdSetEpoch(sh *shell, args []string) error {
	if err := wantArgs(args, 1, 1); err != nil {
		return err
	}
	v, err := parseUint(args[0], 32)
	if err != nil {
		return err
	}
	return sh.mcu.SetEpoch(uint32(v))
}

func cmdSetTime(sh *shell, args []string) error {
	if err := wantArgs(args, 0, 1); err != nil {
		return err
	}
	t := sh.now()
	if len(args) == 1 && args[0] != "now" {
		var err error
		if t, err = time.Parse(time.RFC3339, args[0]); err != nil {
			return errors.NotValidf("time %q", args[0])
		}
	}
	if err := sh.mcu.SetTime(t); err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "set to %s\n", t.UTC().Format(time.RFC3339))
	return nil
}

func cmdDateTime(sh *shell, args []string) error {
	if err := wantArgs(args, 0, 1); err != nil {
		return err
	}
	format := core.Hour24
	if len(args) == 1 {
		switch args[0] {
		case "12":
			format = core.Hour12
		case "24":
		default:
			return errors.NotValidf("hour format %q", args[0])
		}
	}
	dt, err := sh.mcu.DateTime(format)
	if err != nil {
		return err
	}
	fmt.Fprintln(sh.out, calendar(dt))
	return nil
}

func cmdSetDateTime(sh *shell, args []string) error {
	if err := wantArgs(args, 2, 2); err != nil {
		return err
	}
	t, err := time.Parse("2006-01-02 15:04:05", args[0]+" "+args[1])
	if err != nil {
		return errors.NotValidf("date %q", args[0]+" "+args[1])
	}
	return sh.mcu.SetDateTime(protocol.DateTime{
		Year:    uint16(t.Year()),
		Month:   uint8(t.Month()),
		Day:     uint8(t.Day()),
		Hours:   uint8(t.Hour()),
		Minutes: uint8(t.Minute()),
		Seconds: uint8(t.Second()),
		Format:  uint8(core.Hour24),
	})
}

func cmdAlarm(sh *shell, args []string) error {
	if err := wantArgs(args, 1, 1); err != nil {
		return err
	}
	var target uint32
	if strings.HasPrefix(args[0], "+") {
		delta, err := parseUint(args[0][1:], 32)
		if err != nil {
			return err
		}
		now, err := sh.mcu.Epoch()
		if err != nil {
			return err
		}
		if uint64(now)+delta > uint64(core.MaxEpoch) {
			return errors.NotValidf("alarm past the end of the counter")
		}
		target = now + uint32(delta)
	} else {
		v, err := parseUint(args[0], 32)
		if err != nil {
			return err
		}
		target = uint32(v)
	}
	if err := sh.mcu.SetAlarm(target); err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "alarm at %d (%s)\n", target, core.ToDateTime(target))
	return nil
}

func cmdAlarmOff(sh *shell, args []string) error {
	return sh.mcu.DisableAlarm()
}

func cmdStatus(sh *shell, args []string) error {
	st, err := sh.mcu.Status()
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "flags:   %s\n", flagNames(core.StatusFlags(st.Flags)))
	fmt.Fprintf(sh.out, "counter: %d (%s)\n", st.Epoch, core.ToDateTime(st.Epoch))
	if st.Alarm != 0 {
		fmt.Fprintf(sh.out, "alarm:   %d (%s)\n", st.Alarm, core.ToDateTime(st.Alarm))
	} else {
		fmt.Fprintln(sh.out, "alarm:   off")
	}
	return nil
}

func flagNames(f core.StatusFlags) string {
	var names []string
	if f&core.FlagConfigured != 0 {
		names = append(names, "configured")
	}
	if f&core.FlagTimeSet != 0 {
		names = append(names, "time-set")
	}
	if f&core.FlagAlarmSet != 0 {
		names = append(names, "alarm-set")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

func cmdBackupRead(sh *shell, args []string) error {
	if err := wantArgs(args, 1, 2); err != nil {
		return err
	}
	index, err := parseUint(args[0], 8)
	if err != nil {
		return err
	}
	count := uint64(1)
	if len(args) == 2 {
		if count, err = parseUint(args[1], 8); err != nil {
			return err
		}
	}
	words, err := sh.mcu.ReadBackup(int(index), int(count))
	if err != nil {
		return err
	}
	for i, w := range words {
		fmt.Fprintf(sh.out, "%3d: 0x%04x\n", int(index)+i, w)
	}
	return nil
}

func cmdBackupWrite(sh *shell, args []string) error {
	if len(args) < 2 {
		return errors.BadRequestf("expected an index and at least one word")
	}
	index, err := parseUint(args[0], 8)
	if err != nil {
		return err
	}
	words := make([]uint16, 0, len(args)-1)
	for _, a := range args[1:] {
		w, err := parseUint(a, 16)
		if err != nil {
			return err
		}
		words = append(words, uint16(w))
	}
	return sh.mcu.WriteBackup(int(index), words)
}

func cmdBackupClear(sh *shell, args []string) error {
	return sh.mcu.ClearBackup()
}

func cmdWatch(sh *shell, args []string) error {
	if sh.done == nil {
		return errors.NotSupportedf("watch without an interrupt handler")
	}
	fmt.Fprintln(sh.out, "waiting for alarms, ^C to stop")
	<-sh.done
	return nil
}

func cmdDict(sh *shell, args []string) error {
	if sh.mcu.Dictionary() == nil {
		if err := sh.mcu.RetrieveDictionary(); err != nil {
			return err
		}
	}
	sh.mcu.PrintDictionary(sh.out)
	return nil
}

func cmdDictRaw(sh *shell, args []string) error {
	if sh.mcu.Dictionary() == nil {
		if err := sh.mcu.RetrieveDictionary(); err != nil {
			return err
		}
	}
	raw := sh.mcu.DictionaryJSON()
	fmt.Fprintf(sh.out, "Raw dictionary data (%d bytes):\n%s\n", len(raw), raw)
	return nil
}

func cmdHelp(sh *shell, args []string) error {
	sorted := append([]command(nil), commands...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].name < sorted[j].name })
	fmt.Fprintln(sh.out, "Available commands:")
	for _, c := range sorted {
		usage := c.name
		if c.args != "" {
			usage += " " + c.args
		}
		fmt.Fprintf(sh.out, "  %-32s %s\n", usage, c.short)
	}
	return nil
}

// calendar converts a wire date to its printable form.
func calendar(d protocol.DateTime) core.DateTime {
	return core.DateTime{
		HourFormat: core.HourFormat(d.Format),
		PM:         d.PM,
		Seconds:    d.Seconds,
		Minutes:    d.Minutes,
		Hours:      d.Hours,
		Epoch:      d.Epoch,
		Day:        d.Day,
		Weekday:    d.Weekday,
		Month:      d.Month,
		Year:       d.Year,
	}
}
