package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// UploadAPI is the slice of the REST client the upload coordinator needs.
type UploadAPI interface {
	UploadPhoto(ctx context.Context, reportID string, file UploadFile, onProgress func(sentBytes int64)) (any, error)
	InitChunked(ctx context.Context, reportID, name, contentType, clientID string) (ChunkSession, error)
	PutChunk(ctx context.Context, sessionID string, index, total int, data []byte) error
	CompleteChunked(ctx context.Context, sessionID string) (any, error)
}

// UploaderConfig carries every knob explicitly.
type UploaderConfig struct {
	// MaxConcurrent bounds simultaneous file uploads; overflow waits in a
	// FIFO queue.
	MaxConcurrent int
	// ChunkThreshold decides the path: direct multipart below, chunked
	// session at or above.
	ChunkThreshold int64
	// ChunkConcurrency bounds simultaneous chunk puts within one file.
	ChunkConcurrency int
	// ChunkRetries is the total tries per chunk; RetryDelay grows linearly
	// with the attempt number.
	ChunkRetries int
	RetryDelay   time.Duration
}

const (
	DefaultMaxConcurrent    = 3
	DefaultChunkThreshold   = 8 << 20
	DefaultChunkConcurrency = 2
	DefaultChunkRetries     = 3
	DefaultRetryDelay       = 500 * time.Millisecond
)

func (c UploaderConfig) withDefaults() UploaderConfig {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.ChunkThreshold <= 0 {
		c.ChunkThreshold = DefaultChunkThreshold
	}
	if c.ChunkConcurrency <= 0 {
		c.ChunkConcurrency = DefaultChunkConcurrency
	}
	if c.ChunkRetries <= 0 {
		c.ChunkRetries = DefaultChunkRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	return c
}

// ProgressFunc receives the aggregate batch progress in percent.
type ProgressFunc func(percent int)

// UploadOutcome is one batch run. Photos are updated copies in input order;
// committing them back into shared state is the caller's job.
type UploadOutcome struct {
	Photos   []Photo
	Uploaded int
	Failed   int
	// Skipped counts photos rejected by the upload guard before any network
	// call (wrong status or no local data).
	Skipped int
	// FormatDefects counts server response entries that carried no
	// recognizable client id. They are logged, never silently dropped.
	FormatDefects int
}

// Uploader pushes batches of pending photos to the server: a bounded pool
// over a FIFO queue, direct multipart for small files and chunked sessions
// for large ones, and reconciliation strictly by client id.
type Uploader struct {
	api UploadAPI
	cfg UploaderConfig
	log *slog.Logger
}

func NewUploader(api UploadAPI, cfg UploaderConfig, log *slog.Logger) *Uploader {
	return &Uploader{api: api, cfg: cfg.withDefaults(), log: log}
}

const cancelledMessage = "upload batch cancelled"

// UploadBatch uploads every eligible photo of the batch. Per-file failures
// never abort the batch. Cancelling ctx fails the still-queued items with a
// shared message; transfers already in flight are not aborted mid-way. They
// run to completion on a detached context and their results are still
// reconciled, since the server persisted the bytes either way.
func (u *Uploader) UploadBatch(ctx context.Context, reportID string, photos []Photo, onProgress ProgressFunc) (*UploadOutcome, error) {
	if reportID == "" {
		return nil, ErrMissingReport
	}

	out := &UploadOutcome{Photos: append([]Photo(nil), photos...)}
	if len(out.Photos) == 0 {
		return out, nil
	}

	var queue []int
	weights := make(map[int]int64)
	for i := range out.Photos {
		p := &out.Photos[i]
		if !CanUpload(p) {
			u.log.Debug("photo not eligible for upload",
				"client_id", p.ID.Value(),
				"status", p.Status,
			)
			out.Skipped++
			continue
		}
		queue = append(queue, i)
		weights[i] = uploadWeight(p)
	}
	if len(queue) == 0 {
		return out, nil
	}

	tracker := newProgressTracker(weights, onProgress)

	jobs := make(chan int, len(queue))
	for _, i := range queue {
		jobs <- i
	}
	close(jobs)

	workers := u.cfg.MaxConcurrent
	if workers > len(queue) {
		workers = len(queue)
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				p := &out.Photos[i]
				if ctx.Err() != nil {
					p.Fail(cancelledMessage)
					mu.Lock()
					out.Failed++
					mu.Unlock()
					tracker.complete(i)
					continue
				}
				u.uploadOne(ctx, reportID, i, p, tracker, &mu, out)
			}
		}()
	}
	wg.Wait()

	tracker.finish()
	return out, nil
}

func (u *Uploader) uploadOne(ctx context.Context, reportID string, idx int, p *Photo, tracker *progressTracker, mu *sync.Mutex, out *UploadOutcome) {
	fail := func(msg string) {
		p.Fail(msg)
		mu.Lock()
		out.Failed++
		mu.Unlock()
		tracker.complete(idx)
		u.log.Warn("photo upload failed", "client_id", p.TempID, "name", p.OriginalName, "error", msg)
	}

	if err := p.Apply(StatusUploading); err != nil {
		fail(err.Error())
		return
	}

	// Started transfers are never aborted mid-way (see UploadBatch doc).
	callCtx := context.WithoutCancel(ctx)

	var resp any
	var err error
	if uploadWeight(p) >= u.cfg.ChunkThreshold {
		resp, err = u.uploadChunked(callCtx, reportID, idx, p, tracker)
	} else {
		resp, err = u.uploadDirect(callCtx, reportID, idx, p, tracker)
	}
	if err != nil {
		fail(err.Error())
		return
	}

	desc, defects, ok := matchDescriptor(resp, p.ID.Value())
	if defects > 0 {
		u.log.Warn("upload response entries with no recognizable client id",
			"count", defects,
			"client_id", p.ID.Value(),
		)
		mu.Lock()
		out.FormatDefects += defects
		mu.Unlock()
	}
	if !ok {
		fail("no upload descriptor matched this photo's client id")
		return
	}
	if msg := entryString(desc, "error"); msg != "" {
		fail(msg)
		return
	}

	serverID, ok := ResolveServerID(desc)
	if !ok {
		mu.Lock()
		out.FormatDefects++
		mu.Unlock()
		fail("upload descriptor carries no server id")
		return
	}

	p.ID = PersistedID(serverID)
	p.Remote = &RemoteRefs{
		URL:          entryString(desc, "url", "path"),
		OptimizedURL: entryString(desc, "optimized_url", "optimizedUrl"),
		ThumbnailURL: entryString(desc, "thumbnail_url", "thumbnailUrl"),
	}
	if err := p.Apply(StatusUploaded); err != nil {
		fail(err.Error())
		return
	}
	p.Progress = 100

	mu.Lock()
	out.Uploaded++
	mu.Unlock()
	tracker.complete(idx)
}

func (u *Uploader) uploadDirect(ctx context.Context, reportID string, idx int, p *Photo, tracker *progressTracker) (any, error) {
	data, err := localPayload(p)
	if err != nil {
		return nil, err
	}

	return u.api.UploadPhoto(ctx, reportID, UploadFile{
		ClientID:    p.ID.Value(),
		Name:        p.OriginalName,
		ContentType: p.ContentType,
		Data:        data,
	}, func(sent int64) {
		tracker.set(idx, sent)
	})
}

func (u *Uploader) uploadChunked(ctx context.Context, reportID string, idx int, p *Photo, tracker *progressTracker) (any, error) {
	sess, err := u.api.InitChunked(ctx, reportID, p.OriginalName, p.ContentType, p.ID.Value())
	if err != nil {
		return nil, fmt.Errorf("init chunked session: %w", err)
	}

	src, size, closeSrc, err := chunkSource(p)
	if err != nil {
		return nil, err
	}
	defer closeSrc()

	total := int((size + sess.ChunkSize - 1) / sess.ChunkSize)
	if total <= 0 {
		return nil, fmt.Errorf("nothing to upload")
	}

	// One failed chunk fails the file; its siblings are cut short via
	// chunkCtx rather than left running.
	chunkCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, u.cfg.ChunkConcurrency)
	var wg sync.WaitGroup
	var once sync.Once
	var chunkErr error
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			if chunkCtx.Err() != nil {
				return
			}

			offset := int64(i) * sess.ChunkSize
			length := sess.ChunkSize
			if offset+length > size {
				length = size - offset
			}
			buf := make([]byte, length)
			if _, err := src.ReadAt(buf, offset); err != nil && !errors.Is(err, io.EOF) {
				once.Do(func() {
					chunkErr = fmt.Errorf("read chunk %d: %w", i, err)
					cancel()
				})
				return
			}

			if err := u.putChunkWithRetry(chunkCtx, sess.ID, i, total, buf); err != nil {
				once.Do(func() {
					chunkErr = fmt.Errorf("chunk %d: %w", i, err)
					cancel()
				})
				return
			}
			tracker.add(idx, length)
		}(i)
	}
	wg.Wait()
	if chunkErr != nil {
		return nil, chunkErr
	}

	return u.api.CompleteChunked(ctx, sess.ID)
}

func (u *Uploader) putChunkWithRetry(ctx context.Context, sessionID string, index, total int, data []byte) error {
	var lastErr error
	for attempt := 1; attempt <= u.cfg.ChunkRetries; attempt++ {
		lastErr = u.api.PutChunk(ctx, sessionID, index, total, data)
		if lastErr == nil {
			return nil
		}
		var apiErr *APIError
		if errors.As(lastErr, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			// Validation rejections don't heal on retry.
			return lastErr
		}
		if attempt < u.cfg.ChunkRetries {
			select {
			case <-ctx.Done():
				return lastErr
			case <-time.After(u.cfg.RetryDelay * time.Duration(attempt)):
			}
		}
	}
	return lastErr
}

// matchDescriptor finds the response entry whose echoed client id equals
// clientID. Entries with no recognizable client id are counted as defects.
func matchDescriptor(resp any, clientID string) (map[string]any, int, bool) {
	items, ok := ExtractDescriptors(resp)
	if !ok {
		return nil, 0, false
	}
	defects := 0
	var match map[string]any
	for _, item := range items {
		id := entryClientID(item)
		if id == "" {
			defects++
			continue
		}
		if id == clientID {
			match = item
		}
	}
	return match, defects, match != nil
}

func uploadWeight(p *Photo) int64 {
	if p.Size > 0 {
		return p.Size
	}
	if p.Local != nil && len(p.Local.Bytes) > 0 {
		return int64(len(p.Local.Bytes))
	}
	return 1
}

// localPayload materializes the upload bytes from whichever local
// representation the photo carries, in the same order CanUpload accepts them.
func localPayload(p *Photo) ([]byte, error) {
	if p.Local == nil {
		return nil, ErrNoLocalData
	}
	switch {
	case len(p.Local.Bytes) > 0:
		return p.Local.Bytes, nil
	case p.Local.Path != "":
		data, err := os.ReadFile(p.Local.Path)
		if err != nil {
			return nil, fmt.Errorf("read local file: %w", err)
		}
		return data, nil
	case p.Local.DataURL != "":
		data, _, err := decodeDataURL(p.Local.DataURL)
		if err != nil {
			return nil, fmt.Errorf("decode data url: %w", err)
		}
		return data, nil
	default:
		return nil, ErrNoLocalData
	}
}

func chunkSource(p *Photo) (io.ReaderAt, int64, func(), error) {
	// Path-backed files stream straight from disk; everything else is already
	// in memory.
	if p.Local != nil && len(p.Local.Bytes) == 0 && p.Local.Path != "" {
		f, err := os.Open(p.Local.Path)
		if err != nil {
			return nil, 0, nil, fmt.Errorf("open local file: %w", err)
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, 0, nil, fmt.Errorf("stat local file: %w", err)
		}
		return f, info.Size(), func() { f.Close() }, nil
	}

	data, err := localPayload(p)
	if err != nil {
		return nil, 0, nil, err
	}
	return bytes.NewReader(data), int64(len(data)), func() {}, nil
}

// progressTracker aggregates size-weighted progress across the batch. The
// reported percentage never reaches 100 until finish(): completion must mean
// the server confirmed, not that the last byte left the client.
type progressTracker struct {
	mu     sync.Mutex
	weight map[int]int64
	sent   map[int]int64
	total  int64
	cb     ProgressFunc
	last   int
}

func newProgressTracker(weights map[int]int64, cb ProgressFunc) *progressTracker {
	t := &progressTracker{
		weight: weights,
		sent:   make(map[int]int64, len(weights)),
		cb:     cb,
		last:   -1,
	}
	for _, w := range weights {
		t.total += w
	}
	return t
}

func (t *progressTracker) set(idx int, sent int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if max := t.weight[idx]; sent > max {
		sent = max
	}
	t.sent[idx] = sent
	t.report()
}

func (t *progressTracker) add(idx int, delta int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sent := t.sent[idx] + delta
	if max := t.weight[idx]; sent > max {
		sent = max
	}
	t.sent[idx] = sent
	t.report()
}

func (t *progressTracker) complete(idx int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent[idx] = t.weight[idx]
	t.report()
}

func (t *progressTracker) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cb != nil && t.last != 100 {
		t.last = 100
		t.cb(100)
	}
}

// report assumes the lock is held.
func (t *progressTracker) report() {
	if t.cb == nil || t.total == 0 {
		return
	}
	var done int64
	for _, s := range t.sent {
		done += s
	}
	percent := int(done * 100 / t.total)
	if percent > 99 {
		percent = 99
	}
	if percent != t.last {
		t.last = percent
		t.cb(percent)
	}
}
