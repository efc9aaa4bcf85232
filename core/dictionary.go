package core

import (
	"sort"
	"sync"

	"vbatrtc/protocol"
	"vbatrtc/tinycompress"
)

// Dictionary is the firmware self-description sent in response to
// rtc_identify: protocol version, message table and build constants, as
// zlib-wrapped JSON.
type Dictionary struct {
	mu        sync.Mutex
	registry  *CommandRegistry
	constants map[string]string
	cached    []byte
}

// NewDictionary describes the commands bound in registry.
func NewDictionary(registry *CommandRegistry) *Dictionary {
	return &Dictionary{
		registry:  registry,
		constants: make(map[string]string),
	}
}

// AddConstant records a numeric build constant.
func (d *Dictionary) AddConstant(name string, value uint32) {
	d.AddString(name, utoa(value))
}

// AddString records a string build constant.
func (d *Dictionary) AddString(name, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.constants[name] = value
	d.cached = nil
}

// JSON renders the uncompressed dictionary. Entries are ordered so the
// output is stable across builds.
func (d *Dictionary) JSON() []byte {
	commands, responses := d.registry.CommandsAndResponses()

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.json(commands, responses)
}

func (d *Dictionary) json(commands, responses map[string]int) []byte {
	out := make([]byte, 0, 1024)
	out = append(out, `{"version":`...)
	out = appendQuoted(out, protocol.Version)

	out = append(out, `,"config":{`...)
	names := make([]string, 0, len(d.constants))
	for name := range d.constants {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		if i > 0 {
			out = append(out, ',')
		}
		out = appendQuoted(out, name)
		out = append(out, ':')
		out = appendQuoted(out, d.constants[name])
	}

	out = append(out, `},"commands":`...)
	out = appendIDs(out, commands)
	out = append(out, `,"responses":`...)
	out = appendIDs(out, responses)
	return append(out, '}')
}

// appendIDs writes {"format":id,...} ordered by id.
func appendIDs(out []byte, m map[string]int) []byte {
	formats := make([]string, 0, len(m))
	for f := range m {
		formats = append(formats, f)
	}
	sort.Slice(formats, func(i, j int) bool { return m[formats[i]] < m[formats[j]] })

	out = append(out, '{')
	for i, f := range formats {
		if i > 0 {
			out = append(out, ',')
		}
		out = appendQuoted(out, f)
		out = append(out, ':')
		out = append(out, itoa(m[f])...)
	}
	return append(out, '}')
}

func appendQuoted(out []byte, s string) []byte {
	out = append(out, '"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return append(out, '"')
}

// Build compresses and caches the dictionary. Call it once all handlers
// are bound; Chunk builds on demand otherwise.
func (d *Dictionary) Build() []byte {
	commands, responses := d.registry.CommandsAndResponses()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cached == nil {
		d.cached = tinycompress.Compress(d.json(commands, responses))
	}
	return d.cached
}

// Chunk returns up to count bytes of the compressed dictionary from
// offset. It is empty past the end, which tells the host to stop.
func (d *Dictionary) Chunk(offset uint32, count uint8) []byte {
	data := d.Build()
	if offset >= uint32(len(data)) {
		return []byte{}
	}
	end := offset + uint32(count)
	if end > uint32(len(data)) {
		end = uint32(len(data))
	}
	chunk := make([]byte, end-offset)
	copy(chunk, data[offset:end])
	return chunk
}
