package domain

import "time"

// ChunkSession tracks one chunked upload in progress. Chunk payloads are
// staged on local disk under the session id; Received holds the indexes seen
// so far as a JSON array so re-sent chunks stay idempotent.
type ChunkSession struct {
	ID           string    `gorm:"column:id;primaryKey" json:"id"`
	ContractorID int64     `gorm:"column:contractor_id;index" json:"contractor_id"`
	ReportID     string    `gorm:"column:report_id;index" json:"report_id"`
	ClientID     string    `gorm:"column:client_id" json:"client_id,omitempty"`
	OriginalName string    `gorm:"column:original_name" json:"original_name"`
	ContentType  string    `gorm:"column:content_type" json:"content_type"`
	TotalChunks  int       `gorm:"column:total_chunks" json:"total_chunks"`
	Received     []int     `gorm:"column:received;serializer:json" json:"received"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
	ExpiresAt    time.Time `gorm:"column:expires_at" json:"expires_at"`
}

func (ChunkSession) TableName() string { return "chunk_sessions" }

// HasChunk reports whether the given chunk index has already been received.
func (s *ChunkSession) HasChunk(index int) bool {
	for _, i := range s.Received {
		if i == index {
			return true
		}
	}
	return false
}

// MissingChunks lists the indexes still outstanding, in order.
func (s *ChunkSession) MissingChunks() []int {
	seen := make(map[int]bool, len(s.Received))
	for _, i := range s.Received {
		seen[i] = true
	}
	var missing []int
	for i := 0; i < s.TotalChunks; i++ {
		if !seen[i] {
			missing = append(missing, i)
		}
	}
	return missing
}

// Expired reports whether the session has passed its deadline.
func (s *ChunkSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
