package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"
)

// APIConfig configures the REST client. Everything is explicit; the pipeline
// never reaches for ambient globals.
type APIConfig struct {
	BaseURL string // e.g. http://localhost:8080/api/v1
	Token   string // bearer token, minted externally
	Timeout time.Duration
}

// API talks to the inspection backend. Responses that carry per-item arrays
// are returned as decoded JSON (any) so the coordinators can probe envelope
// shapes themselves.
type API struct {
	cfg  APIConfig
	http *http.Client
	log  *slog.Logger
}

func NewAPI(cfg APIConfig, log *slog.Logger) *API {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &API{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d", e.Status)
}

// UploadFile is one file's payload for a direct multipart upload.
type UploadFile struct {
	ClientID    string
	Name        string
	ContentType string
	Data        []byte
}

// ChunkSession is the server's answer to a chunked-upload init.
type ChunkSession struct {
	ID        string
	ChunkSize int64
}

// CreateReport opens a new report and returns its id.
func (a *API) CreateReport(ctx context.Context, title, siteAddress string) (string, error) {
	body, err := a.doJSON(ctx, http.MethodPost, "/reports", map[string]any{
		"title":        title,
		"site_address": siteAddress,
	})
	if err != nil {
		return "", err
	}
	if obj, ok := body.(map[string]any); ok {
		if data, ok := obj["data"].(map[string]any); ok {
			if rep, ok := data["report"].(map[string]any); ok {
				data = rep
			}
			if id, ok := ResolveServerID(data); ok {
				return id, nil
			}
		}
	}
	return "", fmt.Errorf("create report: response carries no id")
}

// GetReport fetches a report; used to verify a reused report id.
func (a *API) GetReport(ctx context.Context, reportID string) (map[string]any, error) {
	body, err := a.doJSON(ctx, http.MethodGet, "/reports/"+reportID, nil)
	if err != nil {
		return nil, err
	}
	if obj, ok := body.(map[string]any); ok {
		if data, ok := obj["data"].(map[string]any); ok {
			return data, nil
		}
		return obj, nil
	}
	return nil, fmt.Errorf("get report: unexpected response shape")
}

// UploadPhoto sends one file as multipart form data. onProgress, when set,
// receives the cumulative request-body bytes handed to the transport; the
// caller scales that into user-facing progress.
func (a *API) UploadPhoto(ctx context.Context, reportID string, file UploadFile, onProgress func(sentBytes int64)) (any, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("report_id", reportID); err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}
	if err := w.WriteField("client_ids", file.ClientID); err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}
	part, err := w.CreatePart(fileHeader("photos", file.Name, file.ContentType))
	if err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}

	var body io.Reader = &buf
	if onProgress != nil {
		body = &progressReader{r: &buf, report: onProgress}
	}

	return a.do(ctx, http.MethodPost, "/photos", w.FormDataContentType(), body, nil)
}

// InitChunked opens a chunked upload session for one large file.
func (a *API) InitChunked(ctx context.Context, reportID, name, contentType, clientID string) (ChunkSession, error) {
	body, err := a.doJSON(ctx, http.MethodPost, "/photos/chunked", map[string]any{
		"report_id":     reportID,
		"original_name": name,
		"content_type":  contentType,
		"client_id":     clientID,
	})
	if err != nil {
		return ChunkSession{}, err
	}

	obj, _ := body.(map[string]any)
	data, _ := obj["data"].(map[string]any)
	if data == nil {
		data = obj
	}
	sess := ChunkSession{ID: entryString(data, "session_id", "sessionId")}
	if size, ok := data["chunk_size"].(float64); ok {
		sess.ChunkSize = int64(size)
	}
	if sess.ID == "" || sess.ChunkSize <= 0 {
		return ChunkSession{}, fmt.Errorf("chunked init: response carries no session")
	}
	return sess, nil
}

// PutChunk uploads one chunk of an open session.
func (a *API) PutChunk(ctx context.Context, sessionID string, index, total int, data []byte) error {
	path := fmt.Sprintf("/photos/chunked/%s/%d", sessionID, index)
	_, err := a.do(ctx, http.MethodPut, path, "application/octet-stream", bytes.NewReader(data), map[string]string{
		"X-Chunk-Total": strconv.Itoa(total),
	})
	return err
}

// CompleteChunked finalizes a session and returns the decoded response for
// descriptor probing.
func (a *API) CompleteChunked(ctx context.Context, sessionID string) (any, error) {
	return a.do(ctx, http.MethodPost, "/photos/chunked/"+sessionID+"/complete", "", nil, nil)
}

// Analyze submits photo ids for vision analysis and returns the decoded
// response; the analyzer probes the envelope itself.
func (a *API) Analyze(ctx context.Context, reportID string, photoIDs []string) (any, error) {
	return a.doJSON(ctx, http.MethodPost, "/reports/"+reportID+"/analyze", map[string]any{
		"photo_ids": photoIDs,
	})
}

func (a *API) doJSON(ctx context.Context, method, path string, payload any) (any, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	return a.do(ctx, method, path, "application/json", body, nil)
}

func (a *API) do(ctx context.Context, method, path, contentType string, body io.Reader, headers map[string]string) (any, error) {
	req, err := http.NewRequestWithContext(ctx, method, a.cfg.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if a.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+a.cfg.Token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read response: %w", method, path, err)
	}
	a.log.Debug("api call", "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeAPIError(resp.StatusCode, raw)
	}

	if len(raw) == 0 {
		return nil, nil
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return decoded, nil
}

func decodeAPIError(status int, raw []byte) error {
	apiErr := &APIError{Status: status}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	}
	return apiErr
}

func fileHeader(field, filename, contentType string) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	return h
}

// progressReader reports cumulative bytes as the transport drains the request
// body.
type progressReader struct {
	r      io.Reader
	sent   int64
	report func(int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		p.report(p.sent)
	}
	return n, err
}
