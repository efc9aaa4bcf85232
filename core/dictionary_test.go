package core

import (
	"bytes"
	"strings"
	"testing"

	"vbatrtc/tinycompress"
)

func TestDictionaryJSON(t *testing.T) {
	reg := NewCommandRegistry()
	reg.Register("rtc_get_epoch", func(data *[]byte) error { return nil })
	reg.Register("rtc_set_epoch", func(data *[]byte) error { return nil })

	dict := NewDictionary(reg)
	dict.AddConstant("BACKUP_WORDS", 42)
	dict.AddString("MCU", `stm32"f103`)

	output := string(dict.JSON())
	t.Log("Generated dictionary:\n" + output)

	if !strings.HasPrefix(output, `{"version":"vbatrtc-1","config":{"BACKUP_WORDS":"42","MCU":"stm32\"f103"}`) {
		t.Errorf("Unexpected header: %s", output)
	}
	if !strings.Contains(output, `"commands":{"rtc_get_epoch":1,"rtc_set_epoch epoch=%u":3}`) {
		t.Error("Dictionary commands missing or out of order")
	}
	if !strings.Contains(output, `"responses":{"rtc_result cmd=%c status=%c":0,"rtc_epoch epoch=%u":2,`) {
		t.Error("Dictionary responses missing or out of order")
	}
	if !strings.HasSuffix(output, "}}") {
		t.Error("Dictionary not closed")
	}
}

func TestDictionaryChunks(t *testing.T) {
	dict := NewDictionary(NewCommandRegistry())
	dict.AddConstant("ALARM_LINE", 17)

	full := dict.Build()
	var joined []byte
	for off := uint32(0); ; off += 7 {
		chunk := dict.Chunk(off, 7)
		if len(chunk) == 0 {
			break
		}
		joined = append(joined, chunk...)
	}
	if !bytes.Equal(joined, full) {
		t.Fatalf("Chunks reassemble to %d bytes, expected %d", len(joined), len(full))
	}

	raw, err := tinycompress.Decompress(joined)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(raw, dict.JSON()) {
		t.Error("Compressed dictionary differs from JSON")
	}

	if chunk := dict.Chunk(uint32(len(full))+100, 10); len(chunk) != 0 {
		t.Errorf("Chunk past end returned %d bytes", len(chunk))
	}
}

func TestDictionaryCacheInvalidated(t *testing.T) {
	dict := NewDictionary(NewCommandRegistry())
	before := dict.Build()
	dict.AddString("BUILD", "test")
	after := dict.Build()
	if bytes.Equal(before, after) {
		t.Error("Adding a constant did not rebuild the dictionary")
	}
}
