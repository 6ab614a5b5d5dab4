//go:build linux

package app

import (
	"golang.org/x/sys/unix"
)

// pinToCore restricts the calling OS thread to a single CPU core, mirroring
// the reference implementation's per-worker core affinity. It does not lock
// the goroutine to its thread; runWorker calls runtime.LockOSThread first, so
// each shard's worker keeps a dedicated core for its hot loop.
func pinToCore(core int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(core)
	return unix.SchedSetaffinity(0, &set)
}
