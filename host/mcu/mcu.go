// Package mcu is the host side client of an RTC board.
package mcu

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"sort"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"vbatrtc/core"
	"vbatrtc/host/serial"
	"vbatrtc/protocol"
)

// DefaultTimeout bounds the wait for a response.
const DefaultTimeout = time.Second

// maxDictionaryChunks stops a runaway identify loop.
const maxDictionaryChunks = 1000

// MCU is a connection to an RTC board.
type MCU struct {
	transport *protocol.HostTransport
	timeout   time.Duration

	dictionary     *Dictionary
	dictionaryData []byte
}

// Dictionary is the parsed identify dictionary.
type Dictionary struct {
	Version   string            `json:"version"`
	Config    map[string]string `json:"config"`
	Commands  map[string]int    `json:"commands"`
	Responses map[string]int    `json:"responses"`
}

// Connect opens the serial port described by cfg.
func Connect(cfg *serial.Config) (*MCU, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return New(port), nil
}

// New talks to a board over port. The MCU owns port from now on.
func New(port io.ReadWriteCloser) *MCU {
	return &MCU{
		transport: protocol.NewHostTransport(port),
		timeout:   DefaultTimeout,
	}
}

// SetTimeout changes the response timeout.
func (m *MCU) SetTimeout(d time.Duration) {
	m.timeout = d
}

// Close closes the connection.
func (m *MCU) Close() error {
	return m.transport.Close()
}

// Transport exposes the underlying link.
func (m *MCU) Transport() *protocol.HostTransport {
	return m.transport
}

// call sends id and waits for a response of kind want. An rtc_result for
// id in its place is turned into an error.
func (m *MCU) call(id protocol.MessageID, args func(protocol.OutputBuffer), want protocol.MessageID) (*protocol.Message, error) {
	if err := m.transport.SendCommand(id, args); err != nil {
		return nil, errors.Annotatef(err, "%s", id)
	}

	deadline := time.Now().Add(m.timeout)
	for {
		left := time.Until(deadline)
		if left <= 0 {
			return nil, errors.Errorf("%s: no %s within %v", id, want, m.timeout)
		}
		msg, err := m.transport.ReceiveResponse(left)
		if err != nil {
			return nil, errors.Annotatef(err, "%s", id)
		}
		if msg.ID == want {
			return msg, nil
		}
		raw := msg.Args
		if msg.ID == protocol.MsgResult {
			var res protocol.Result
			if err := res.Decode(&msg.Args); err == nil && res.Cmd == id {
				if err := core.Status(res.Status).Err(); err != nil {
					return nil, errors.Annotatef(err, "%s", id)
				}
				return nil, errors.Errorf("%s: unexpected result without %s", id, want)
			}
		}
		if glog.V(1) {
			stale, _ := protocol.DecodeArgs(msg.ID, &raw)
			glog.Infof("dropping stale %s while waiting for %s", stale, want)
		}
	}
}

// exec sends id and checks its rtc_result.
func (m *MCU) exec(id protocol.MessageID, args func(protocol.OutputBuffer)) error {
	msg, err := m.call(id, args, protocol.MsgResult)
	if err != nil {
		return err
	}
	var res protocol.Result
	if err := res.Decode(&msg.Args); err != nil {
		return errors.Annotatef(err, "%s: bad result", id)
	}
	if res.Cmd != id {
		return errors.Errorf("%s: result for %s", id, res.Cmd)
	}
	if err := core.Status(res.Status).Err(); err != nil {
		return errors.Annotatef(err, "%s", id)
	}
	return nil
}

func epochArg(epoch uint32) func(protocol.OutputBuffer) {
	return func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, epoch)
	}
}

// Epoch reads the counter.
func (m *MCU) Epoch() (uint32, error) {
	msg, err := m.call(protocol.MsgGetEpoch, nil, protocol.MsgEpoch)
	if err != nil {
		return 0, err
	}
	epoch, err := protocol.DecodeVLQUint(&msg.Args)
	return epoch, errors.Trace(err)
}

// SetEpoch sets the counter.
func (m *MCU) SetEpoch(epoch uint32) error {
	return m.exec(protocol.MsgSetEpoch, epochArg(epoch))
}

// Time reads the counter as UTC.
func (m *MCU) Time() (time.Time, error) {
	epoch, err := m.Epoch()
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(epoch), 0).UTC(), nil
}

// SetTime sets the counter from t.
func (m *MCU) SetTime(t time.Time) error {
	sec := t.Unix()
	if sec < 0 || sec > int64(core.MaxEpoch) {
		return errors.Errorf("%v is outside the counter range", t)
	}
	return m.SetEpoch(uint32(sec))
}

// DateTime reads the calendar view, in 12-hour form if format is
// core.Hour12.
func (m *MCU) DateTime(format core.HourFormat) (protocol.DateTime, error) {
	msg, err := m.call(protocol.MsgGetDateTime, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(format))
	}, protocol.MsgDateTime)
	if err != nil {
		return protocol.DateTime{}, err
	}
	var dt protocol.DateTime
	if err := dt.Decode(&msg.Args); err != nil {
		return dt, errors.Annotatef(err, "bad rtc_datetime")
	}
	return dt, nil
}

// SetDateTime sets the clock from calendar fields. Epoch and Weekday are
// ignored.
func (m *MCU) SetDateTime(dt protocol.DateTime) error {
	return m.exec(protocol.MsgSetDateTime, dt.EncodeSet)
}

// SetAlarm arms the alarm at epoch.
func (m *MCU) SetAlarm(epoch uint32) error {
	return m.exec(protocol.MsgSetAlarm, epochArg(epoch))
}

// DisableAlarm disarms the alarm.
func (m *MCU) DisableAlarm() error {
	return m.exec(protocol.MsgDisableAlarm, nil)
}

// OnAlarm calls fn with the alarm epoch on every rtc_alarm_fired. fn runs
// on the reader goroutine. A nil fn stops delivery.
func (m *MCU) OnAlarm(fn func(epoch uint32)) {
	if fn == nil {
		m.transport.HandleEvent(protocol.MsgAlarmFired, nil)
		return
	}
	m.transport.HandleEvent(protocol.MsgAlarmFired, func(msg *protocol.Message) {
		epoch, err := protocol.DecodeVLQUint(&msg.Args)
		if err != nil {
			glog.Errorf("bad rtc_alarm_fired: %v", err)
			return
		}
		fn(epoch)
	})
}

// Status reads the status word, alarm and counter.
func (m *MCU) Status() (protocol.Status, error) {
	msg, err := m.call(protocol.MsgGetStatus, nil, protocol.MsgStatus)
	if err != nil {
		return protocol.Status{}, err
	}
	var st protocol.Status
	if err := st.Decode(&msg.Args); err != nil {
		return st, errors.Annotatef(err, "bad rtc_status")
	}
	return st, nil
}

// ReadBackup reads up to count user words from index. Fewer words come
// back when the range passes the end of the store.
func (m *MCU) ReadBackup(index, count int) ([]uint16, error) {
	if index < 0 || count < 0 || index > 0xFF {
		return nil, errors.Errorf("backup range %d+%d out of range", index, count)
	}
	var words []uint16
	for count > 0 {
		n := count
		if n > protocol.MaxBackupWords {
			n = protocol.MaxBackupWords
		}
		at := index + len(words)
		if at > 0xFF {
			break
		}
		msg, err := m.call(protocol.MsgReadBackup, func(out protocol.OutputBuffer) {
			protocol.EncodeVLQUint(out, uint32(at))
			protocol.EncodeVLQUint(out, uint32(n))
		}, protocol.MsgBackup)
		if err != nil {
			return words, err
		}
		var b protocol.Backup
		if err := b.Decode(&msg.Args); err != nil {
			return words, errors.Annotatef(err, "bad rtc_backup")
		}
		words = append(words, b.Words...)
		count -= n
		if len(b.Words) < n {
			break
		}
	}
	return words, nil
}

// WriteBackup writes words from index. A write running past the end of the
// store keeps the words that fit and reports core.ErrInvalidParameter.
func (m *MCU) WriteBackup(index int, words []uint16) error {
	if index < 0 || index > 0xFF {
		return errors.Errorf("backup index %d out of range", index)
	}
	for off := 0; off < len(words); off += protocol.MaxBackupWords {
		end := off + protocol.MaxBackupWords
		if end > len(words) {
			end = len(words)
		}
		at := index + off
		if at > 0xFF {
			return errors.Annotatef(core.ErrInvalidParameter, "backup index %d", at)
		}
		b := protocol.Backup{Index: uint8(at), Words: words[off:end]}
		if err := m.exec(protocol.MsgWriteBackup, b.Encode); err != nil {
			return err
		}
	}
	return nil
}

// ClearBackup resets the backup domain.
func (m *MCU) ClearBackup() error {
	return m.exec(protocol.MsgClearBackup, nil)
}

// RetrieveDictionary reads and parses the identify dictionary.
func (m *MCU) RetrieveDictionary() error {
	var buf bytes.Buffer
	for i := 0; ; i++ {
		if i == maxDictionaryChunks {
			return errors.Errorf("dictionary larger than %d chunks", maxDictionaryChunks)
		}
		chunk, err := m.identify(uint32(buf.Len()), protocol.MaxIdentifyChunk)
		if err != nil {
			return errors.Annotatef(err, "dictionary chunk at offset %d", buf.Len())
		}
		if len(chunk) == 0 {
			break
		}
		buf.Write(chunk)
	}
	glog.V(1).Infof("dictionary retrieved: %d bytes", buf.Len())

	zr, err := zlib.NewReader(&buf)
	if err != nil {
		return errors.Annotatef(err, "dictionary is not zlib data")
	}
	data, err := ioutil.ReadAll(zr)
	if err != nil {
		return errors.Annotatef(err, "failed to decompress dictionary")
	}

	dict := &Dictionary{}
	if err := json.Unmarshal(data, dict); err != nil {
		return errors.Annotatef(err, "failed to parse dictionary")
	}
	if dict.Version != protocol.Version {
		glog.Warningf("firmware protocol %q, host speaks %q", dict.Version, protocol.Version)
	}
	m.dictionaryData = data
	m.dictionary = dict
	return nil
}

func (m *MCU) identify(offset uint32, count uint8) ([]byte, error) {
	msg, err := m.call(protocol.MsgIdentify, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, offset)
		protocol.EncodeVLQUint(out, uint32(count))
	}, protocol.MsgIdentifyResponse)
	if err != nil {
		return nil, err
	}
	respOffset, err := protocol.DecodeVLQUint(&msg.Args)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if respOffset != offset {
		return nil, errors.Errorf("offset mismatch: expected %d, got %d", offset, respOffset)
	}
	data, err := protocol.DecodeVLQBytes(&msg.Args)
	return data, errors.Trace(err)
}

// Dictionary returns the parsed dictionary, or nil before
// RetrieveDictionary.
func (m *MCU) Dictionary() *Dictionary {
	return m.dictionary
}

// DictionaryJSON returns the uncompressed dictionary.
func (m *MCU) DictionaryJSON() []byte {
	return m.dictionaryData
}

// PrintDictionary writes a summary of the dictionary to w.
func (m *MCU) PrintDictionary(w io.Writer) {
	d := m.dictionary
	if d == nil {
		fmt.Fprintln(w, "No dictionary loaded")
		return
	}
	fmt.Fprintf(w, "Version: %s\n", d.Version)

	fmt.Fprintln(w, "Config:")
	keys := make([]string, 0, len(d.Config))
	for k := range d.Config {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s = %s\n", k, d.Config[k])
	}

	printIDs := func(title string, ids map[string]int) {
		fmt.Fprintf(w, "%s (%d):\n", title, len(ids))
		names := make([]string, 0, len(ids))
		for name := range ids {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool { return ids[names[i]] < ids[names[j]] })
		for _, name := range names {
			fmt.Fprintf(w, "  [%2d] %s\n", ids[name], name)
		}
	}
	printIDs("Commands", d.Commands)
	printIDs("Responses", d.Responses)
}

// SendCommand sends a command by name without waiting for its response.
// The name must be in the protocol table and, once a dictionary is loaded,
// bound on the board.
func (m *MCU) SendCommand(name string, args func(protocol.OutputBuffer)) error {
	id, ok := protocol.LookupName(name)
	if !ok {
		return errors.NotFoundf("command %q", name)
	}
	if m.dictionary != nil && !m.dictionary.HasCommand(id) {
		return errors.NotSupportedf("command %q on this board", name)
	}
	return errors.Trace(m.transport.SendCommand(id, args))
}

// HasCommand reports whether the board binds id.
func (d *Dictionary) HasCommand(id protocol.MessageID) bool {
	for _, v := range d.Commands {
		if v == int(id) {
			return true
		}
	}
	return false
}
