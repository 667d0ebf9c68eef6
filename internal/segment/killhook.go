package segment

import "github.com/ignitedb/ignite/pkg/bitmap"

// KillHook is the back-pointer a merge or chunk-save operation installs on
// a RAM segment it has reserved. While installed, kills issued against the
// segment are also recorded into the hook's side buffer so the operation
// can replay them onto its output once it finishes building it
// (spec §4.2 "if a kill-hook is installed, notifies the hook", GLOSSARY
// "Kill-hook").
//
// The open question in spec §9 about late kills landing between
// attribute-merge and publication is resolved here by widening the hook's
// window: it stays installed until the operation has finished publishing,
// not merely until its output segment is built. See DESIGN.md "Open
// Question decisions".
type KillHook struct {
	batch *bitmap.KillBatch
}

// NewKillHook returns an installed-but-empty hook.
func NewKillHook() *KillHook {
	return &KillHook{batch: bitmap.NewKillBatch()}
}

// Record appends a doc id observed as killed while this hook is installed.
func (h *KillHook) Record(docID uint64) {
	h.batch.Add(docID)
}

// Drain returns and clears every doc id recorded so far. Operations call
// this in their publish step (and may call it earlier as well) to apply
// the kills their output missed.
func (h *KillHook) Drain() []uint64 {
	return h.batch.Drain()
}
