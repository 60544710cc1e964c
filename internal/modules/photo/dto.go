package photo

// Descriptor is one element of an upload response. ClientID always echoes the
// caller's id (or a server-generated one when the caller sent none) so the
// response array is reconcilable file by file. A failed file carries Error and
// no server id.
type Descriptor struct {
	ID           string `json:"id,omitempty"`
	ClientID     string `json:"client_id"`
	OriginalName string `json:"original_name"`
	ContentType  string `json:"content_type,omitempty"`
	Size         int64  `json:"size,omitempty"`
	Status       string `json:"status,omitempty"`
	URL          string `json:"url,omitempty"`
	OptimizedURL string `json:"optimized_url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Error        string `json:"error,omitempty"`
}

type InitChunkedRequest struct {
	ReportID     string `json:"report_id" binding:"required"`
	OriginalName string `json:"original_name" binding:"required,max=255"`
	ContentType  string `json:"content_type" binding:"omitempty,max=100"`
	ClientID     string `json:"client_id" binding:"omitempty,max=100"`
}

type InitChunkedResponse struct {
	SessionID string `json:"session_id"`
	ChunkSize int64  `json:"chunk_size"`
	ExpiresAt string `json:"expires_at"`
}

type PutChunkResponse struct {
	Received int `json:"received"`
	Total    int `json:"total"`
}
