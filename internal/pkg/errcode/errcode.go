package errcode

const (
	ErrUnknown = 10000000 + iota
	ErrUnauthorized
	ErrForbidden
	ErrNotFound
	ErrInvalid
	ErrConflict
	ErrInvalidState
	ErrTooMany
	ErrInternal
	ErrQuotaExceeded
	ErrUnsupportedFileType
	ErrFileTooLarge
	ErrProcessingFailed
	ErrTimeout
	ErrUploadFailed
	ErrAIUnavailable
)
