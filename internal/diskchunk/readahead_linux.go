//go:build linux

package diskchunk

import (
	"os"

	"golang.org/x/sys/unix"
)

// readaheadHint advises the kernel that path will be read again soon
// (spec §4.6 step 4, "so its caches are warm"). Best-effort: a failure to
// open or advise is silently ignored since this never affects correctness,
// only how cold the first real read is.
func readaheadHint(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_WILLNEED)
}
