//go:build !linux

package mempool

// pinThread is a no-op on platforms without sched_setaffinity.
func pinThread(core int) error {
	return nil
}
