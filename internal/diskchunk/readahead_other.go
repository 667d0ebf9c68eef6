//go:build !linux

package diskchunk

// readaheadHint is a no-op on platforms without fadvise (spec §9 design
// notes: a platform without the optimization hint simply runs cold, never
// incorrectly).
func readaheadHint(path string) {}
