package client

import (
	"fmt"

	"siteproof/internal/domain"
)

// Status is the client-side photo lifecycle. pending and uploading exist only
// here; the server first sees a photo once it is uploaded.
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusUploaded  Status = "uploaded"
	StatusAnalyzing Status = "analyzing"
	StatusAnalyzed  Status = "analyzed"
	StatusError     Status = "error"
)

// transitions is the full state machine. There is no terminal state: analyzed
// photos can still fail a re-analysis, and error resets to pending on retry.
var transitions = map[Status][]Status{
	StatusPending:   {StatusUploading, StatusError},
	StatusUploading: {StatusUploaded, StatusError},
	StatusUploaded:  {StatusAnalyzing, StatusError},
	StatusAnalyzing: {StatusAnalyzed, StatusError},
	StatusAnalyzed:  {StatusError},
	StatusError:     {StatusPending},
}

// CanTransition reports whether the state machine allows from → to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// RemoteRefs are the server-side locators set once a photo is persisted.
type RemoteRefs struct {
	URL          string `json:"url,omitempty"`
	OptimizedURL string `json:"optimized_url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// Photo is the client-side photo object the coordinators operate on.
// Coordinators receive copies and return updated copies; committing them back
// into shared state is the caller's job, and merging happens by id, never by
// slice index.
type Photo struct {
	ID           PhotoID
	TempID       string // retained for reconciliation after the server id supersedes it
	OriginalName string
	ContentType  string
	Size         int64
	Status       Status
	Local        *LocalData
	Remote       *RemoteRefs
	Analysis     *domain.Analysis
	Progress     int // 0–100, meaningful only while uploading
	Err          string
}

// NewPhoto registers a freshly selected file: temporary id, pending status.
func NewPhoto(originalName, contentType string, size int64) Photo {
	id := TemporaryID()
	return Photo{
		ID:           id,
		TempID:       id.Value(),
		OriginalName: originalName,
		ContentType:  contentType,
		Size:         size,
		Status:       StatusPending,
	}
}

// Apply moves the photo to next if the state machine allows it.
func (p *Photo) Apply(next Status) error {
	if !CanTransition(p.Status, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, next)
	}
	p.Status = next
	if next != StatusError {
		p.Err = ""
	}
	if next == StatusPending {
		p.Progress = 0
	}
	return nil
}

// Fail marks the photo failed with a message. Error is reachable from every
// state, so this never rejects.
func (p *Photo) Fail(msg string) {
	p.Status = StatusError
	p.Err = msg
}

// Retry resets a failed photo to pending so it can be uploaded again.
func (p *Photo) Retry() error {
	return p.Apply(StatusPending)
}

// CanUpload guards the upload call: only a pending photo with local data may
// hit the network. Rejecting here is what prevents duplicate uploads.
func CanUpload(p *Photo) bool {
	return p.Status == StatusPending && p.Local.HasData()
}

// CanAnalyze guards the analysis call: only an uploaded photo with a
// persisted server id may be submitted.
func CanAnalyze(p *Photo) bool {
	return p.Status == StatusUploaded && p.ID.Persisted()
}
