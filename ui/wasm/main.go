//go:build js && wasm

// Browser frame inspector for the RTC serial protocol. Paste a hex capture
// of the link to see its frames decoded against the message table, or
// build command frames to send from a Web Serial page.
package main

import (
	"encoding/hex"
	"strings"
	"syscall/js"

	"vbatrtc/protocol"
)

func main() {
	js.Global().Set("vbatrtcWasm", js.ValueOf(map[string]interface{}{
		"crc16":         js.FuncOf(crc16Wrapper),
		"encodeCommand": js.FuncOf(encodeCommandWrapper),
		"inspect":       js.FuncOf(inspectWrapper),
		"dictionary":    protocol.Dictionary(),
		"version":       protocol.Version,
	}))

	select {}
}

// decodeHex accepts "7e 05 10" as well as "7e0510".
func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.Join(strings.Fields(s), ""))
}

// crc16Wrapper returns the frame CRC of a hex string.
func crc16Wrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(0)
	}
	data, err := decodeHex(args[0].String())
	if err != nil {
		return js.ValueOf(0)
	}
	return js.ValueOf(int(protocol.CRC16(data)))
}

// encodeCommandWrapper builds a frame.
// Args: seq (number), name (string), values (array of numbers)
// Returns: {frame: hex string, error: string}
func encodeCommandWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return result("frame", "", "missing arguments")
	}
	seq := uint8(args[0].Int()) | protocol.MessageDest
	id, ok := protocol.LookupName(args[1].String())
	if !ok {
		return result("frame", "", "unknown command "+args[1].String())
	}
	var values []uint32
	if len(args) > 2 {
		for i := 0; i < args[2].Length(); i++ {
			values = append(values, uint32(args[2].Index(i).Int()))
		}
	}

	out := protocol.NewScratchOutput()
	err := protocol.EncodeFrame(out, seq, func(o protocol.OutputBuffer) {
		protocol.EncodeVLQUint(o, uint32(id))
		for _, v := range values {
			protocol.EncodeVLQUint(o, v)
		}
	})
	if err != nil {
		return result("frame", "", err.Error())
	}
	return result("frame", hex.EncodeToString(out.Result()), "")
}

// inspectWrapper decodes a hex capture.
// Returns: {frames: [{sequence, ack, messages: [string]}], error: string}
func inspectWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return result("frames", []interface{}{}, "missing hex string argument")
	}
	data, err := decodeHex(args[0].String())
	if err != nil {
		return result("frames", []interface{}{}, "invalid hex string: "+err.Error())
	}

	frames, err := protocol.Inspect(data)
	jsFrames := make([]interface{}, len(frames))
	for i, f := range frames {
		msgs := make([]interface{}, len(f.Messages))
		for j, m := range f.Messages {
			msgs[j] = m.String()
		}
		jsFrames[i] = map[string]interface{}{
			"sequence": int(f.Sequence),
			"ack":      f.IsAck(),
			"messages": msgs,
		}
	}
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	return result("frames", jsFrames, errMsg)
}

func result(key string, value interface{}, errMsg string) js.Value {
	r := map[string]interface{}{key: value}
	if errMsg != "" {
		r["error"] = errMsg
	}
	return js.ValueOf(r)
}
