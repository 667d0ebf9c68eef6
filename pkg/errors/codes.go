package errors

// ErrorCode represents a standardized way to categorize different types of errors.
type ErrorCode string

// Base error codes represent the fundamental categories of failures that can
// occur across any software system. These codes provide the foundation layer
// of error classification.
const (
	// ErrorCodeIO represents failures in input/output operations across any
	// system boundary. This includes file system operations like reading or
	// writing segment files, network operations when communicating with remote
	// systems, and device I/O when accessing storage hardware.
	ErrorCodeIO ErrorCode = "IO_ERROR"

	// ErrorCodeInvalidInput represents client-side errors where the provided
	// data doesn't meet the system's requirements or constraints. This maps
	// to HTTP 400-series errors and indicates problems with the request itself
	// rather than system failures.
	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrorCodeInternal represents unexpected system failures that don't fit
	// into other categories. These are the equivalent of HTTP 500 errors and
	// indicate bugs, assertion failures, or other programming errors that
	// shouldn't occur during normal operation.
	ErrorCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Storage-specific error codes extend the base error taxonomy to handle the
// unique failure modes that occur in persistent storage systems. These codes
// represent problems that are specific to the storage layer of the search
// index, particularly focusing on segment file management and data persistence.
const (
	// ErrorCodeSegmentCorrupted indicates that a segment file's data has been
	// damaged or is in an inconsistent state.
	ErrorCodeSegmentCorrupted ErrorCode = "SEGMENT_CORRUPTED"

	// ErrorCodeHeaderReadFailure occurs when the system cannot read the header
	// portion of a segment file. Headers contain critical metadata about the
	// segment's structure, so header read failures prevent access to the
	// entire segment and all data it contains.
	ErrorCodeHeaderReadFailure ErrorCode = "HEADER_READ_FAILURE"

	// ErrorCodePayloadReadFailure indicates problems reading the actual data
	// content from segment files after successfully reading the header. This
	// represents a more localized failure compared to header problems, as the
	// segment structure is intact but specific data regions are inaccessible.
	ErrorCodePayloadReadFailure ErrorCode = "PAYLOAD_READ_FAILURE"

	// ErrorCodeRecoveryFailed indicates that the storage system's attempt to
	// recover from a previous failure was unsuccessful. This represents a
	// compound failure where both the original problem and the recovery
	// mechanism have failed, creating a more serious operational situation.
	ErrorCodeRecoveryFailed ErrorCode = "STORAGE_RECOVERY_FAILED"

	// ErrorCodePermissionDenied indicates insufficient permissions to access a resource.
	// This is distinct from generic IO errors because it has a specific resolution path:
	// the user needs to adjust file/directory permissions or run with elevated privileges.
	ErrorCodePermissionDenied ErrorCode = "PERMISSION_DENIED"

	// ErrorCodeDiskFull indicates that the storage device has run out of space.
	// This requires specific handling like cleanup operations or alerting administrators.
	ErrorCodeDiskFull ErrorCode = "DISK_FULL"

	// ErrorCodeFilesystemReadonly indicates that the filesystem is mounted read-only.
	// This requires administrative intervention to remount the filesystem with write permissions.
	ErrorCodeFilesystemReadonly ErrorCode = "FILESYSTEM_READONLY"
)

// Query-specific error codes cover the query executor's ranker construction,
// keyword lookup, and cooperative-cancellation failure modes.
const (
	// ErrorCodeQueryKeywordNotFound indicates a term in the query tree had no
	// matching wordlist entry in a segment or chunk. Not necessarily fatal —
	// callers typically want MATCH_ALL/AND semantics to continue regardless.
	ErrorCodeQueryKeywordNotFound ErrorCode = "QUERY_KEYWORD_NOT_FOUND"

	// ErrorCodeQueryBadExpression indicates the expression ranker's formula
	// failed to parse or referenced an unknown factor identifier.
	ErrorCodeQueryBadExpression ErrorCode = "QUERY_BAD_EXPRESSION"

	// ErrorCodeQueryInterrupted indicates a max_query_time_ms cutoff or an
	// operator-issued interrupt was observed by a chunk worker.
	ErrorCodeQueryInterrupted ErrorCode = "QUERY_INTERRUPTED"

	// ErrorCodeQueryTooManyExpansions indicates a prefix/infix term expanded
	// past its per-segment or global frequency cap.
	ErrorCodeQueryTooManyExpansions ErrorCode = "QUERY_TOO_MANY_EXPANSIONS"
)

// Index-level error codes cover whole-index concurrent-state and
// consistency failures raised above the segment/chunk layer: the update
// engine, the meta/recovery glue, and the top-level engine coordinator
// (spec §7 "Concurrent-state", "Critical IO", "Corruption").
const (
	// ErrorCodeIndexAnotherTxn indicates a writer handle already has an
	// open transaction bound to a different index (spec §4.3, §7 item 5
	// "another txn bound to different index").
	ErrorCodeIndexAnotherTxn ErrorCode = "INDEX_ANOTHER_TXN"

	// ErrorCodeIndexSaveDisabled indicates a forced flush/chunk-save was
	// requested while saving is already disabled, e.g. during recovery
	// replay (spec §7 item 5 "save currently disabled").
	ErrorCodeIndexSaveDisabled ErrorCode = "INDEX_SAVE_DISABLED"

	// ErrorCodeIndexInconsistent indicates a critical IO failure left the
	// index in a state that requires recovery before further updates are
	// accepted (spec §4.8 "Failure semantics", §7 item 3 "Critical IO").
	ErrorCodeIndexInconsistent ErrorCode = "INDEX_INCONSISTENT"

	// ErrorCodeIndexCorrupted indicates the self-check routine found a
	// structural inconsistency (checkpoint decreasing, rowid out of range,
	// hitlist overrun) in a segment or chunk (spec §7 item 7 "Corruption").
	ErrorCodeIndexCorrupted ErrorCode = "INDEX_CORRUPTED"

	// ErrorCodeIndexSchemaMismatch indicates a reconfigure or attach
	// attempted against an incompatible schema/settings fingerprint.
	ErrorCodeIndexSchemaMismatch ErrorCode = "INDEX_SCHEMA_MISMATCH"

	// ErrorCodeIndexRecoveryFailed indicates `.meta`/`.ram`/transaction-log
	// replay could not reconstruct a consistent dataset at open time.
	ErrorCodeIndexRecoveryFailed ErrorCode = "INDEX_RECOVERY_FAILED"
)

// Merge-pipeline error codes cover the segment merger, chunk saver, and
// optimizer — anything that runs under an op ticket on the merge scheduler.
const (
	// ErrorCodeMergeSourceBusy indicates a segment or chunk was already
	// reserved by another op ticket when a second merge tried to claim it.
	ErrorCodeMergeSourceBusy ErrorCode = "MERGE_SOURCE_BUSY"

	// ErrorCodeMergeAborted indicates a cooperative stop flag was observed
	// mid-merge/save/optimize.
	ErrorCodeMergeAborted ErrorCode = "MERGE_ABORTED"

	// ErrorCodeMergePublishFailed indicates the post-merge publish step
	// (applying postponed kills/updates and swapping the dataset) failed.
	ErrorCodeMergePublishFailed ErrorCode = "MERGE_PUBLISH_FAILED"

	// ErrorCodeChunkWriteFailed indicates the chunk saver failed to write one
	// of the on-disk chunk's files. The RAM layer is preserved; the save is
	// abandoned.
	ErrorCodeChunkWriteFailed ErrorCode = "CHUNK_WRITE_FAILED"
)
