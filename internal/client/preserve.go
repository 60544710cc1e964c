package client

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// LocalData is a photo's locally-renderable representation: a path on disk,
// an in-memory buffer, or a base64 data URL. It never travels to the server
// except as upload payload bytes.
type LocalData struct {
	Path    string
	Bytes   []byte
	DataURL string
}

// HasData reports whether at least one representation is present.
func (d *LocalData) HasData() bool {
	return d != nil && (d.Path != "" || len(d.Bytes) > 0 || d.DataURL != "")
}

// DefaultInlineLimit bounds eager inlining: files at or under this size get
// their bytes and a data URL materialized up front; larger files keep only
// the path until a representation is explicitly requested.
const DefaultInlineLimit = 2 << 20

// Preserver fills in derivable local representations so a photo stays
// renderable no matter how many times the struct is copied around. Explicit
// config, no ambient state.
type Preserver struct {
	InlineLimit int64
	log         *slog.Logger
}

func NewPreserver(inlineLimit int64, log *slog.Logger) *Preserver {
	if inlineLimit <= 0 {
		inlineLimit = DefaultInlineLimit
	}
	return &Preserver{InlineLimit: inlineLimit, log: log}
}

// Preserve returns a copy of the photo with every derivable representation
// attached. Idempotent: representations already present are kept as-is, so
// preserving twice allocates nothing new. Conversion failures are logged and
// swallowed; the photo keeps whatever it had and is never lost.
func (pr *Preserver) Preserve(p Photo) Photo {
	if p.Local == nil {
		return p
	}
	local := *p.Local
	p.Local = &local

	if local.Path != "" && len(local.Bytes) == 0 {
		info, err := os.Stat(local.Path)
		switch {
		case err != nil:
			pr.log.Warn("local file unavailable", "path", local.Path, "error", err)
		case info.Size() <= pr.InlineLimit:
			data, err := os.ReadFile(local.Path)
			if err != nil {
				pr.log.Warn("local file read failed", "path", local.Path, "error", err)
				break
			}
			p.Local.Bytes = data
		default:
			// Over the limit: keep the path only, a buffer would be
			// materialized on demand via InlineDataURL.
		}
	}

	if len(p.Local.Bytes) == 0 && p.Local.DataURL != "" {
		if data, _, err := decodeDataURL(p.Local.DataURL); err == nil {
			p.Local.Bytes = data
		} else {
			pr.log.Warn("data url decode failed", "error", err)
		}
	}

	if p.Local.DataURL == "" && len(p.Local.Bytes) > 0 && int64(len(p.Local.Bytes)) <= pr.InlineLimit {
		p.Local.DataURL = encodeDataURL(p.ContentType, p.Local.Bytes)
	}

	return p
}

// InlineDataURL materializes (and caches) a data URL regardless of size, for
// callers that explicitly need one for a large file.
func (pr *Preserver) InlineDataURL(p *Photo) (string, error) {
	if p.Local == nil {
		return "", ErrNoLocalData
	}
	if p.Local.DataURL != "" {
		return p.Local.DataURL, nil
	}
	data := p.Local.Bytes
	if len(data) == 0 {
		if p.Local.Path == "" {
			return "", ErrNoLocalData
		}
		var err error
		data, err = os.ReadFile(p.Local.Path)
		if err != nil {
			return "", fmt.Errorf("read local file: %w", err)
		}
	}
	p.Local.DataURL = encodeDataURL(p.ContentType, data)
	return p.Local.DataURL, nil
}

// Release drops in-memory representations once they are no longer needed,
// keeping only the path. The caller owns this lifetime: dropping buffers for
// a photo that still needs them re-reads from disk at the next Preserve.
func Release(p *Photo) {
	if p.Local == nil {
		return
	}
	p.Local.Bytes = nil
	p.Local.DataURL = ""
}

func encodeDataURL(contentType string, data []byte) string {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func decodeDataURL(s string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, "", fmt.Errorf("not a data url")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("malformed data url")
	}
	contentType, _ := strings.CutSuffix(meta, ";base64")
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode data url payload: %w", err)
	}
	return data, contentType, nil
}
