//go:build linux

package mempool

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// pinThread locks the calling goroutine to its OS thread and binds
// that thread to the given core.
func pinThread(core int) error {
	runtime.LockOSThread()
	var set unix.CPUSet
	set.Zero()
	set.Set(core % runtime.NumCPU())
	return unix.SchedSetaffinity(0, &set)
}
