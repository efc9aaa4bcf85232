//go:build !tinygo

package core

// InterruptsMasked reports whether the caller runs inside a critical section.
var InterruptsMasked = interruptsMasked
