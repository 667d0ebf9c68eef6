// recovery.go ties the `.meta` header, the `.ram` snapshot, and
// internal/txlog together into the three-step bootstrap spec §4.10
// describes: load `.meta`, attach every listed chunk, load `.ram` (or
// start empty), then replay every transaction-log record whose TID
// exceeds the header's committed TID.
package meta

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/ignitedb/ignite/internal/segment"
	"github.com/ignitedb/ignite/pkg/errors"
	"github.com/ignitedb/ignite/pkg/filesys"
	"github.com/ignitedb/ignite/pkg/schema"
)

// Fixed file names under one index's DataDir (spec §6 "Persisted state
// layout", here one flat directory per index rather than a single base
// path P with dotted extensions — the extensions themselves are kept as
// the file names' suffixes).
const (
	metaFileName     = "index.meta"
	ramFileName      = "index.ram"
	settingsFileName = "index.settings"
	lockFileName     = "index.lock"
)

func MetaPath(dataDir string) string     { return filepath.Join(dataDir, metaFileName) }
func RAMPath(dataDir string) string      { return filepath.Join(dataDir, ramFileName) }
func SettingsPath(dataDir string) string { return filepath.Join(dataDir, settingsFileName) }
func LockPath(dataDir string) string     { return filepath.Join(dataDir, lockFileName) }

// SaveHeader durably (over)writes the `.meta` file (spec §4.10 "written
// after every committed save, update, attach, truncate, schema change").
func SaveHeader(dataDir string, h *Header) error {
	if err := filesys.CreateDir(dataDir, 0755, true); err != nil {
		return errors.ClassifyDirectoryCreationError(err, dataDir)
	}
	return filesys.WriteFileAtomic(MetaPath(dataDir), Encode(h))
}

// LoadHeader reads and decodes the `.meta` file, reporting ok=false if no
// header has ever been written (a brand-new index directory).
func LoadHeader(dataDir string) (h *Header, ok bool, err error) {
	buf, err := filesys.ReadFile(MetaPath(dataDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, errors.NewStorageError(err, errors.ErrorCodeIO, "meta: read header").WithPath(MetaPath(dataDir))
	}
	h, err = Decode(buf)
	if err != nil {
		return nil, false, err
	}
	return h, true, nil
}

// SaveRAMSnapshot writes every current RAM segment to the `.ram` file via
// atomic replace (spec §4.10 "written atomically via .ram.new + rename on
// force_flush" — filesys.WriteFileAtomic already gives us the temp-file
// + rename discipline, so there is no separate `.ram.new` name to manage).
func SaveRAMSnapshot(dataDir string, segs []*segment.RamSegment, compress bool) error {
	buf, err := EncodeRAM(segs, compress)
	if err != nil {
		return err
	}
	return filesys.WriteFileAtomic(RAMPath(dataDir), buf)
}

// LoadRAMSnapshot reads back a `.ram` file previously written by
// SaveRAMSnapshot, reporting ok=false if none exists (spec §4.10 recovery
// step 2: "If .ram exists, load it; otherwise start with an empty RAM
// layer").
func LoadRAMSnapshot(dataDir string, sch *schema.Schema) (segs []*segment.RamSegment, ok bool, err error) {
	buf, err := filesys.ReadFile(RAMPath(dataDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, errors.NewStorageError(err, errors.ErrorCodeIO, "meta: read ram snapshot").WithPath(RAMPath(dataDir))
	}
	segs, err = DecodeRAM(sch, buf)
	if err != nil {
		return nil, false, err
	}
	return segs, true, nil
}

// DeleteRAMSnapshot removes the `.ram` file, called after a chunk save has
// made it redundant (spec §4.6 step 7 "Delete the .ram file").
func DeleteRAMSnapshot(dataDir string) error {
	err := filesys.DeleteFile(RAMPath(dataDir))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// Lock is the `.lock` exclusive process lock (spec §6 "P.lock exclusive
// process lock"). It is advisory: a stale lock file from a process that
// crashed without releasing it carries a random token an operator can
// compare against a running process, rather than a true OS-level flock,
// since the core's explicit non-goal list excludes CLI/process-management
// surfaces that would make an flock meaningful across the module boundary.
type Lock struct {
	path  string
	token string
}

// AcquireLock creates dataDir's lock file, failing if one already exists
// (spec §6 "P.lock exclusive process lock"). The file's contents are a
// fresh uuid, letting an operator tell two crashed-and-restarted
// processes' lock attempts apart in a post-mortem.
func AcquireLock(dataDir string) (*Lock, error) {
	if err := filesys.CreateDir(dataDir, 0755, true); err != nil {
		return nil, errors.ClassifyDirectoryCreationError(err, dataDir)
	}
	path := LockPath(dataDir)
	if exists, _ := filesys.Exists(path); exists {
		return nil, errors.NewIndexError(nil, errors.ErrorCodeIndexAnotherTxn, "index directory already locked").
			WithOperation("open").WithDetail("path", path)
	}
	token := uuid.NewString()
	if err := filesys.WriteFile(path, 0644, []byte(token)); err != nil {
		return nil, fmt.Errorf("meta: write lock file: %w", err)
	}
	return &Lock{path: path, token: token}, nil
}

// Release removes the lock file.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	return filesys.DeleteFile(l.path)
}
