package client

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"siteproof/internal/domain"
)

// Snapshot is the JSON backup of a session: report fields plus sanitized
// photo metadata. Buffers and data URLs never serialize; only things that
// survive a process restart do. Paths are kept; they are re-readable.
type Snapshot struct {
	SavedAt time.Time       `json:"saved_at"`
	Report  ReportSnapshot  `json:"report"`
	Photos  []PhotoSnapshot `json:"photos"`
}

type ReportSnapshot struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	SiteAddress string `json:"site_address,omitempty"`
}

type PhotoSnapshot struct {
	ID           PhotoID          `json:"id"`
	TempID       string           `json:"temp_id,omitempty"`
	OriginalName string           `json:"original_name"`
	ContentType  string           `json:"content_type,omitempty"`
	Size         int64            `json:"size,omitempty"`
	Status       Status           `json:"status"`
	Path         string           `json:"path,omitempty"`
	Remote       *RemoteRefs      `json:"remote,omitempty"`
	Analysis     *domain.Analysis `json:"analysis,omitempty"`
	Error        string           `json:"error,omitempty"`
}

// NewSnapshot captures the current pipeline state.
func NewSnapshot(report ReportSnapshot, photos []Photo) *Snapshot {
	s := &Snapshot{
		SavedAt: time.Now(),
		Report:  report,
		Photos:  make([]PhotoSnapshot, 0, len(photos)),
	}
	for _, p := range photos {
		ps := PhotoSnapshot{
			ID:           p.ID,
			TempID:       p.TempID,
			OriginalName: p.OriginalName,
			ContentType:  p.ContentType,
			Size:         p.Size,
			Status:       p.Status,
			Remote:       p.Remote,
			Analysis:     p.Analysis,
			Error:        p.Err,
		}
		if p.Local != nil {
			ps.Path = p.Local.Path
		}
		s.Photos = append(s.Photos, ps)
	}
	return s
}

// Write saves the snapshot, replacing any previous one atomically.
func (s *Snapshot) Write(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalize snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads a snapshot written by Write.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}

// RestorePhotos rebuilds photo objects from the snapshot. Local data is
// restored as path-only; bytes and data URLs are rebuilt by the preserver on
// demand.
func (s *Snapshot) RestorePhotos() []Photo {
	photos := make([]Photo, 0, len(s.Photos))
	for _, ps := range s.Photos {
		p := Photo{
			ID:           ps.ID,
			TempID:       ps.TempID,
			OriginalName: ps.OriginalName,
			ContentType:  ps.ContentType,
			Size:         ps.Size,
			Status:       ps.Status,
			Remote:       ps.Remote,
			Analysis:     ps.Analysis,
			Err:          ps.Error,
		}
		if ps.Path != "" {
			p.Local = &LocalData{Path: ps.Path}
		}
		photos = append(photos, p)
	}
	return photos
}
