package client

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"
)

// IDKind distinguishes a client-generated temporary id from a server-assigned
// document id. Carrying the kind in the type removes prefix sniffing from
// every call site.
type IDKind int

const (
	IDTemporary IDKind = iota
	IDPersisted
)

// PhotoID is the canonical identifier of a photo at one point in its
// lifecycle. Before upload only a temporary id exists; after reconciliation
// the persisted server id supersedes it.
type PhotoID struct {
	kind  IDKind
	value string
}

// TemporaryID mints a fresh client id. The wire format stays
// temp_<unixnano>_<rand> so servers that echo client ids round-trip it
// unchanged.
func TemporaryID() PhotoID {
	return PhotoID{
		kind:  IDTemporary,
		value: fmt.Sprintf("temp_%d_%06x", time.Now().UnixNano(), rand.Intn(1<<24)),
	}
}

// PersistedID wraps a server-assigned document id.
func PersistedID(value string) PhotoID {
	return PhotoID{kind: IDPersisted, value: value}
}

// FromWire re-tags a bare string id by shape: document-id-shaped values are
// persisted, everything else is temporary. Used when loading snapshots.
func FromWire(value string) PhotoID {
	if IsDocumentID(value) {
		return PersistedID(value)
	}
	return PhotoID{kind: IDTemporary, value: value}
}

func (id PhotoID) Kind() IDKind    { return id.kind }
func (id PhotoID) Persisted() bool { return id.kind == IDPersisted && id.value != "" }
func (id PhotoID) IsZero() bool    { return id.value == "" }
func (id PhotoID) Value() string   { return id.value }
func (id PhotoID) String() string  { return id.value }

func (id PhotoID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.value)
}

func (id *PhotoID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*id = FromWire(s)
	return nil
}

var (
	hex24Pattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)
	hex32Pattern = regexp.MustCompile(`^[0-9a-fA-F]{32}$`)
	uuidPattern  = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
)

// IsDocumentID reports whether s is shaped like a server document id:
// 24-char hex (Mongo-style object id), 32-char hex, or a UUID with dashes.
// Temporary ids never match; their prefix is not hex.
func IsDocumentID(s string) bool {
	return hex24Pattern.MatchString(s) || hex32Pattern.MatchString(s) || uuidPattern.MatchString(s)
}

// Field probe order for ResolveServerID. Direct id fields win over anything
// embedded in a path, which wins over a shape match on arbitrary values.
var (
	directIDFields = []string{"_id", "id", "fileId", "file_id", "serverId", "server_id", "photoId", "photo_id"}
	pathishFields  = []string{"path", "url", "filename", "storage_key", "storageKey"}
)

// ResolveServerID extracts the server document id from a descriptor with
// inconsistent field names. Pure; returns ("", false) when nothing id-shaped
// is found, so callers treat the photo as not yet persisted. Temp-shaped
// values are never returned.
func ResolveServerID(fields map[string]any) (string, bool) {
	if len(fields) == 0 {
		return "", false
	}

	for _, key := range directIDFields {
		if v, ok := stringField(fields, key); ok && IsDocumentID(v) {
			return v, true
		}
	}

	for _, key := range pathishFields {
		if v, ok := stringField(fields, key); ok {
			if id, ok := idFromPath(v); ok {
				return id, true
			}
		}
	}

	// Last resort: any value shaped like a document id, probed in sorted key
	// order so resolution stays deterministic.
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v, ok := stringField(fields, k); ok && IsDocumentID(v) {
			return v, true
		}
	}

	return "", false
}

func stringField(fields map[string]any, key string) (string, bool) {
	v, ok := fields[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// idFromPath scans a storage path or URL for an id-shaped segment, testing
// each segment with and without its file extension.
func idFromPath(p string) (string, bool) {
	for _, seg := range strings.Split(p, "/") {
		if i := strings.IndexAny(seg, "?#"); i >= 0 {
			seg = seg[:i]
		}
		if seg == "" {
			continue
		}
		if IsDocumentID(seg) {
			return seg, true
		}
		if trimmed := strings.TrimSuffix(seg, path.Ext(seg)); trimmed != seg && IsDocumentID(trimmed) {
			return trimmed, true
		}
	}
	return "", false
}
