package photo

import (
	"errors"
	"fmt"
)

var (
	ErrPhotoNotFound   = errors.New("photo not found")
	ErrReportNotFound  = errors.New("report not found")
	ErrNotOwner        = errors.New("you do not own this report")
	ErrNoFiles         = errors.New("no files provided")
	ErrEmptyFile       = errors.New("file is empty")
	ErrFileTooLarge    = errors.New("file exceeds maximum allowed size")
	ErrInvalidMimeType = errors.New("file type is not allowed")
	ErrSessionNotFound = errors.New("upload session not found")
	ErrSessionExpired  = errors.New("upload session expired")
	ErrChunkInvalid    = errors.New("invalid chunk")
	// ErrDuplicateClientID rejects a client id already used within the report;
	// reconciliation depends on them staying unique.
	ErrDuplicateClientID = errors.New("client id already used in this report")
)

// IncompleteSessionError rejects a complete call while chunk indexes are still
// outstanding; the handler surfaces the missing indexes so clients can re-send
// exactly those.
type IncompleteSessionError struct {
	Missing []int
}

func (e *IncompleteSessionError) Error() string {
	return fmt.Sprintf("upload session incomplete: %d chunks missing", len(e.Missing))
}
