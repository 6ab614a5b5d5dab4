//go:build !linux

package app

// pinToCore is a no-op outside Linux; SchedSetaffinity has no portable
// equivalent, and the worker pool runs fine without pinning, just without
// the cache-locality guarantee.
func pinToCore(core int) error {
	return nil
}
