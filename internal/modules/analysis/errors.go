package analysis

import "errors"

var (
	ErrReportNotFound = errors.New("report not found")
	ErrNotOwner       = errors.New("you do not own this report")
	ErrNoPhotos       = errors.New("no analyzable photos")
)
