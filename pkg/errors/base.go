package errors

// baseError is the common shape every typed error in this package embeds:
// a wrapped cause, a message, a categorizing ErrorCode, and a lazily
// allocated detail bag for structured context (op tickets, chunk ids, row
// ids, and the like). See index.go, merge.go, query.go, storage.go, and
// validation.go for the typed wrappers that layer domain-specific fields
// on top of this.
type baseError struct {
	cause   error
	message string
	code    ErrorCode
	details map[string]any
}

// NewBaseError constructs a baseError wrapping cause, tagged with code and
// a human-readable message.
func NewBaseError(err error, code ErrorCode, msg string) *baseError {
	return &baseError{cause: err, code: code, message: msg}
}

// WithMessage overrides the error message, returning the same *baseError
// for chaining.
func (be *baseError) WithMessage(msg string) *baseError {
	be.message = msg
	return be
}

// WithCode overrides the error code, returning the same *baseError.
func (be *baseError) WithCode(code ErrorCode) *baseError {
	be.code = code
	return be
}

// WithDetail attaches an arbitrary key/value detail — a chunk id, an op
// ticket, a row id — lazily allocating the detail map on first use.
func (be *baseError) WithDetail(key string, value any) *baseError {
	if be.details == nil {
		be.details = make(map[string]any)
	}
	be.details[key] = value
	return be
}

// Error implements the error interface.
func (b *baseError) Error() string {
	return b.message
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (b *baseError) Unwrap() error {
	return b.cause
}

// Code returns the ErrorCode for programmatic dispatch, e.g. deciding
// whether a caller should retry or whether an index failure must trip
// recovery.
func (b *baseError) Code() ErrorCode {
	return b.code
}

// Details returns the attached detail map. The caller must not mutate it;
// it is shared with the error's own storage.
func (b *baseError) Details() map[string]any {
	return b.details
}
