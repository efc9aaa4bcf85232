package core

// StatusFlags is the bitmask persisted in backup word 0.
type StatusFlags uint16

const (
	FlagTimeSet    StatusFlags = 1 << 0 // counter holds a valid epoch
	FlagAlarmSet   StatusFlags = 1 << 1 // alarm armed
	FlagConfigured StatusFlags = 1 << 2 // Begin completed
)

const flagMask = FlagTimeSet | FlagAlarmSet | FlagConfigured

// statusWord is the backup register reserved for StatusFlags.
const statusWord = 0

// BackupStore owns the battery-backed data registers. Word 0 holds the
// status flags; user index i maps to hardware word i+1.
type BackupStore struct {
	regs   RegisterDriver
	words  int
	mirror []uint16
	trace  *Trace
}

// NewBackupStore creates a store over words hardware registers.
func NewBackupStore(regs RegisterDriver, words int) *BackupStore {
	if words < 1 {
		words = 1
	}
	return &BackupStore{
		regs:   regs,
		words:  words,
		mirror: make([]uint16, words),
	}
}

// Capacity returns the number of user words.
func (b *BackupStore) Capacity() int {
	return b.words - 1
}

// clamp truncates a request to the user area. It never errors.
func (b *BackupStore) clamp(start, count int) int {
	capacity := b.Capacity()
	if start < 0 || count <= 0 || start >= capacity {
		return 0
	}
	if start+count > capacity {
		count = capacity - start
	}
	return count
}

// Write stores up to count values starting at user index start and returns
// how many were written. Requests beyond the capacity, or beyond
// len(values), are truncated silently.
func (b *BackupStore) Write(values []uint16, start, count int) int {
	if count > len(values) {
		count = len(values)
	}
	n := b.clamp(start, count)
	for i := 0; i < n; i++ {
		b.mirror[start+1+i] = values[i]
	}
	for i := 0; i < n; i++ {
		w := start + 1 + i
		b.regs.WriteBackupWord(w, b.mirror[w])
	}
	return n
}

// Read returns up to count words starting at user index start, refreshed
// from hardware. The result is shorter than count when truncated.
func (b *BackupStore) Read(start, count int) []uint16 {
	n := b.clamp(start, count)
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		w := start + 1 + i
		b.mirror[w] = b.regs.ReadBackupWord(w)
		out[i] = b.mirror[w]
	}
	return out
}

// Clear resets the whole backup domain. This also erases the status flags,
// the counter, the alarm and the clock source selection.
func (b *BackupStore) Clear() {
	b.regs.ResetBackupDomain()
	b.regs.EnableBackupDomainAccess()
	for i := range b.mirror {
		b.mirror[i] = 0
	}
	if b.trace != nil {
		b.trace.Record(EvtDomainReset, 0)
	}
}

// Load refreshes the status word from hardware and returns the flags.
func (b *BackupStore) Load() StatusFlags {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	b.mirror[statusWord] = b.regs.ReadBackupWord(statusWord)
	return StatusFlags(b.mirror[statusWord]) & flagMask
}

// Flags returns the cached status flags.
func (b *BackupStore) Flags() StatusFlags {
	return StatusFlags(b.mirror[statusWord]) & flagMask
}

// SetFlag sets or clears bits in the status word and flushes it.
func (b *BackupStore) SetFlag(bits StatusFlags, on bool) {
	bits &= flagMask

	state := disableInterrupts()
	defer restoreInterrupts(state)

	v := b.mirror[statusWord]
	if on {
		v |= uint16(bits)
	} else {
		v &^= uint16(bits)
	}
	b.mirror[statusWord] = v
	b.regs.WriteBackupWord(statusWord, v)
}

// Has reports whether all bits are set.
func (b *BackupStore) Has(bits StatusFlags) bool {
	return b.Flags()&bits == bits
}
