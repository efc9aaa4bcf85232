//go:build !tinygo

package core

import "sync/atomic"

// interruptState is a placeholder for interrupt state on regular Go
type interruptState uintptr

// maskDepth counts nested critical sections so host tests can check that
// register sequences run masked.
var maskDepth int32

// disableInterrupts only records the nesting depth on regular Go (for testing)
func disableInterrupts() interruptState {
	atomic.AddInt32(&maskDepth, 1)
	return 0
}

// restoreInterrupts only records the nesting depth on regular Go (for testing)
func restoreInterrupts(state interruptState) {
	atomic.AddInt32(&maskDepth, -1)
}

func interruptsMasked() bool {
	return atomic.LoadInt32(&maskDepth) > 0
}
