package errors

// IndexError represents whole-index failures raised above the
// segment/chunk layer: a writer handle bound to the wrong index, a forced
// save attempted while saving is disabled, a critical-IO failure that
// leaves the index requiring recovery, or a self-check routine finding
// corruption (spec §7 "Concurrent-state", "Critical IO", "Corruption").
//
// Unlike MergeError (one op ticket's reservation failures) or QueryError
// (one query's execution failures), IndexError carries identifiers that
// make sense at the whole-index granularity: the document id involved (if
// any), the committed transaction id at the time of failure, the op
// ticket of any in-flight merge/save that was affected, and whether the
// index must now be treated as inconsistent pending recovery.
type IndexError struct {
	*baseError

	docID        uint64
	ticket       uint64
	tid          uint64
	operation    string
	inconsistent bool
}

// NewIndexError constructs an IndexError wrapping cause, tagged with code
// and a human-readable message.
func NewIndexError(cause error, code ErrorCode, message string) *IndexError {
	return &IndexError{baseError: NewBaseError(cause, code, message)}
}

// Override base error methods to return *IndexError instead of *baseError.

// WithMessage overrides the error message, returning the same *IndexError
// for chaining.
func (ie *IndexError) WithMessage(message string) *IndexError {
	ie.baseError.WithMessage(message)
	return ie
}

// WithCode overrides the error code, returning the same *IndexError.
func (ie *IndexError) WithCode(code ErrorCode) *IndexError {
	ie.baseError.WithCode(code)
	return ie
}

// WithDetail attaches an arbitrary key/value detail, returning the same
// *IndexError.
func (ie *IndexError) WithDetail(key string, value any) *IndexError {
	ie.baseError.WithDetail(key, value)
	return ie
}

// WithDocID records the document id involved in the failure, if any.
func (ie *IndexError) WithDocID(docID uint64) *IndexError {
	ie.docID = docID
	return ie
}

// WithTicket records the op ticket of any in-flight merge/save affected by
// this failure.
func (ie *IndexError) WithTicket(ticket uint64) *IndexError {
	ie.ticket = ticket
	return ie
}

// WithTID records the committed transaction id at the time of failure.
func (ie *IndexError) WithTID(tid uint64) *IndexError {
	ie.tid = tid
	return ie
}

// WithOperation names the high-level operation that failed (e.g.
// "update_attributes", "force_disk_chunk", "recover").
func (ie *IndexError) WithOperation(operation string) *IndexError {
	ie.operation = operation
	return ie
}

// WithInconsistent flags whether this failure leaves the index requiring
// recovery before further updates are accepted (spec §4.8 "Failure
// semantics": "a critical failure ... propagates an index is now
// inconsistent flag").
func (ie *IndexError) WithInconsistent(inconsistent bool) *IndexError {
	ie.inconsistent = inconsistent
	return ie
}

// DocID returns the document id associated with this error, or 0.
func (ie *IndexError) DocID() uint64 { return ie.docID }

// Ticket returns the op ticket associated with this error, or 0.
func (ie *IndexError) Ticket() uint64 { return ie.ticket }

// TID returns the committed transaction id at the time of failure.
func (ie *IndexError) TID() uint64 { return ie.tid }

// Operation returns the high-level operation name that failed.
func (ie *IndexError) Operation() string { return ie.operation }

// Inconsistent reports whether this failure leaves the index requiring
// recovery.
func (ie *IndexError) Inconsistent() bool { return ie.inconsistent }

// NewAnotherTxnError reports that a writer handle already has an open
// transaction bound to a different index (spec §4.3, §7 item 5).
func NewAnotherTxnError(boundTo, requested string) *IndexError {
	return NewIndexError(nil, ErrorCodeIndexAnotherTxn, "current txn is working with another index").
		WithOperation("commit").
		WithDetail("boundIndex", boundTo).
		WithDetail("requestedIndex", requested)
}

// NewSaveDisabledError reports that a forced flush/chunk-save was
// requested while saving is disabled (spec §7 item 5).
func NewSaveDisabledError(reason string) *IndexError {
	return NewIndexError(nil, ErrorCodeIndexSaveDisabled, "save currently disabled").
		WithOperation("force_disk_chunk").
		WithDetail("reason", reason)
}

// NewInconsistentError reports a critical IO failure that leaves the
// index requiring recovery (spec §4.8 "Failure semantics", §7 item 3).
func NewInconsistentError(cause error, operation string, tid uint64) *IndexError {
	return NewIndexError(cause, ErrorCodeIndexInconsistent, "index is now inconsistent; recovery required").
		WithOperation(operation).
		WithTID(tid).
		WithInconsistent(true)
}

// NewCorruptionError reports a self-check failure (spec §7 item 7).
func NewCorruptionError(operation string, failures []string) *IndexError {
	return NewIndexError(nil, ErrorCodeIndexCorrupted, "self-check detected corruption").
		WithOperation(operation).
		WithDetail("failures", failures)
}
