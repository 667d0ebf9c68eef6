package errors

// MergeError reports failures from the segment merger, chunk saver, and
// optimizer — the three operations that reserve segments or chunks with an
// op ticket and run on the merge scheduler.
type MergeError struct {
	*baseError
	ticket   uint64 // Op ticket under which the merge/save/optimize was running.
	sourceID string // Human-readable identifier of the source segment(s)/chunk(s).
	stage    string // Which stage failed: "wordlist_merge", "row_copy", "publish", ...
}

// NewMergeError creates a new merge-pipeline error.
func NewMergeError(err error, code ErrorCode, msg string) *MergeError {
	return &MergeError{baseError: NewBaseError(err, code, msg)}
}

func (me *MergeError) WithTicket(ticket uint64) *MergeError {
	me.ticket = ticket
	return me
}

func (me *MergeError) WithSourceID(id string) *MergeError {
	me.sourceID = id
	return me
}

func (me *MergeError) WithStage(stage string) *MergeError {
	me.stage = stage
	return me
}

func (me *MergeError) Ticket() uint64    { return me.ticket }
func (me *MergeError) SourceID() string  { return me.sourceID }
func (me *MergeError) Stage() string     { return me.stage }
