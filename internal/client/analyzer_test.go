package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnalysisAPI struct {
	mu       sync.Mutex
	calls    [][]string
	inFlight int32
	maxSeen  int32
	delay    time.Duration
	respond  func(photoIDs []string) (any, error)
}

func (f *fakeAnalysisAPI) Analyze(_ context.Context, _ string, photoIDs []string) (any, error) {
	cur := atomic.AddInt32(&f.inFlight, 1)
	for {
		max := atomic.LoadInt32(&f.maxSeen)
		if cur <= max || atomic.CompareAndSwapInt32(&f.maxSeen, max, cur) {
			break
		}
	}
	defer atomic.AddInt32(&f.inFlight, -1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), photoIDs...))
	f.mu.Unlock()

	if f.respond != nil {
		return f.respond(photoIDs)
	}
	return analysisEnvelope(photoIDs), nil
}

func analysisResult(id string) map[string]any {
	return map[string]any{
		"photo_id": id,
		"status":   "analyzed",
		"analysis": map[string]any{
			"description":     "hairline crack along the east wall",
			"tags":            []any{"crack", "wall"},
			"damage_detected": true,
			"severity":        "minor",
			"confidence":      0.9,
		},
	}
}

func analysisEnvelope(ids []string) map[string]any {
	arr := make([]any, 0, len(ids))
	for _, id := range ids {
		arr = append(arr, analysisResult(id))
	}
	return map[string]any{"success": true, "data": map[string]any{"results": arr}}
}

func newTestAnalyzer(api AnalysisAPI, cfg AnalyzerConfig) *Analyzer {
	return NewAnalyzer(api, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func uploadedClientPhoto(name string) Photo {
	p := NewPhoto(name, "image/jpeg", 100)
	p.ID = PersistedID(uuid.NewString())
	p.Status = StatusUploaded
	return p
}

func TestAnalyzerRun_BatchesSequentiallyWithDelay(t *testing.T) {
	api := &fakeAnalysisAPI{delay: 10 * time.Millisecond}
	a := newTestAnalyzer(api, AnalyzerConfig{BatchSize: 10, BatchDelay: 30 * time.Millisecond})

	photos := make([]Photo, 25)
	wantFirst := make([]string, 0, 10)
	for i := range photos {
		photos[i] = uploadedClientPhoto(fmt.Sprintf("img-%02d.jpg", i))
		if i < 10 {
			wantFirst = append(wantFirst, photos[i].ID.Value())
		}
	}

	start := time.Now()
	out, err := a.Run(context.Background(), "rep-1", photos)
	require.NoError(t, err)
	elapsed := time.Since(start)

	assert.Equal(t, 3, out.Batches)
	assert.Equal(t, 25, out.Analyzed)
	assert.Equal(t, 0, out.Failed)

	require.Len(t, api.calls, 3)
	assert.Len(t, api.calls[0], 10)
	assert.Len(t, api.calls[1], 10)
	assert.Len(t, api.calls[2], 5)
	assert.Equal(t, wantFirst, api.calls[0], "batches keep input order")

	assert.EqualValues(t, 1, atomic.LoadInt32(&api.maxSeen), "batches never overlap")
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond, "two inter-batch delays")

	for _, p := range out.Photos {
		assert.Equal(t, StatusAnalyzed, p.Status)
		require.NotNil(t, p.Analysis)
		assert.True(t, p.Analysis.DamageDetected)
	}
}

func TestAnalyzerRun_MatchesByEchoedIDNotPosition(t *testing.T) {
	photos := []Photo{uploadedClientPhoto("a.jpg"), uploadedClientPhoto("b.jpg")}

	api := &fakeAnalysisAPI{}
	api.respond = func(ids []string) (any, error) {
		// Reversed order: positional attachment would swap the results.
		return map[string]any{"results": []any{
			map[string]any{"photo_id": ids[1], "analysis": map[string]any{"description": "for-" + ids[1]}},
			map[string]any{"photo_id": ids[0], "analysis": map[string]any{"description": "for-" + ids[0]}},
		}}, nil
	}
	a := newTestAnalyzer(api, AnalyzerConfig{})

	out, err := a.Run(context.Background(), "rep-1", photos)
	require.NoError(t, err)

	require.Equal(t, 2, out.Analyzed)
	for _, p := range out.Photos {
		require.NotNil(t, p.Analysis)
		assert.Equal(t, "for-"+p.ID.Value(), p.Analysis.Description)
	}
}

func TestAnalyzerRun_PositionalFallbackWhenNoEntryCarriesID(t *testing.T) {
	photos := []Photo{uploadedClientPhoto("a.jpg"), uploadedClientPhoto("b.jpg"), uploadedClientPhoto("c.jpg")}

	api := &fakeAnalysisAPI{}
	api.respond = func(ids []string) (any, error) {
		return []any{
			map[string]any{"description": "first"},
			map[string]any{"description": "second"},
			map[string]any{"description": "third"},
		}, nil
	}
	a := newTestAnalyzer(api, AnalyzerConfig{})

	out, err := a.Run(context.Background(), "rep-1", photos)
	require.NoError(t, err)

	require.Equal(t, 3, out.Analyzed)
	assert.Equal(t, "first", out.Photos[0].Analysis.Description)
	assert.Equal(t, "second", out.Photos[1].Analysis.Description)
	assert.Equal(t, "third", out.Photos[2].Analysis.Description)
}

func TestAnalyzerRun_PositionalFallbackRequiresLengthMatch(t *testing.T) {
	photos := []Photo{uploadedClientPhoto("a.jpg"), uploadedClientPhoto("b.jpg"), uploadedClientPhoto("c.jpg")}

	api := &fakeAnalysisAPI{}
	api.respond = func(ids []string) (any, error) {
		return []any{
			map[string]any{"description": "first"},
			map[string]any{"description": "second"},
		}, nil
	}
	a := newTestAnalyzer(api, AnalyzerConfig{})

	out, err := a.Run(context.Background(), "rep-1", photos)
	require.NoError(t, err)

	assert.Equal(t, 0, out.Analyzed)
	assert.Equal(t, 3, out.Failed)
	for _, p := range out.Photos {
		assert.Equal(t, StatusError, p.Status)
		assert.Contains(t, p.Err, "could not be matched")
		assert.Nil(t, p.Analysis, "never attach a guessed result")
	}
}

func TestAnalyzerRun_EmptyResultsFailBatch(t *testing.T) {
	photos := []Photo{uploadedClientPhoto("a.jpg")}

	api := &fakeAnalysisAPI{}
	api.respond = func(ids []string) (any, error) {
		return map[string]any{"success": true, "data": map[string]any{"results": []any{}}}, nil
	}
	a := newTestAnalyzer(api, AnalyzerConfig{})

	out, err := a.Run(context.Background(), "rep-1", photos)
	require.NoError(t, err)

	assert.Equal(t, 1, out.Failed)
	assert.Contains(t, out.Photos[0].Err, "carried no results")
}

func TestAnalyzerRun_UnrecognizedShapeFailsBatch(t *testing.T) {
	photos := []Photo{uploadedClientPhoto("a.jpg")}

	api := &fakeAnalysisAPI{}
	api.respond = func(ids []string) (any, error) {
		return map[string]any{"weird": true}, nil
	}
	a := newTestAnalyzer(api, AnalyzerConfig{})

	out, err := a.Run(context.Background(), "rep-1", photos)
	require.NoError(t, err)

	assert.Equal(t, 1, out.Failed)
	assert.Contains(t, out.Photos[0].Err, "unrecognized shape")
}

func TestAnalyzerRun_FailedBatchDoesNotBlockNext(t *testing.T) {
	photos := make([]Photo, 4)
	for i := range photos {
		photos[i] = uploadedClientPhoto(fmt.Sprintf("img-%d.jpg", i))
	}

	var call int32
	api := &fakeAnalysisAPI{}
	api.respond = func(ids []string) (any, error) {
		if atomic.AddInt32(&call, 1) == 1 {
			return nil, errors.New("rate limited")
		}
		return analysisEnvelope(ids), nil
	}
	a := newTestAnalyzer(api, AnalyzerConfig{BatchSize: 2, BatchDelay: time.Millisecond})

	out, err := a.Run(context.Background(), "rep-1", photos)
	require.NoError(t, err)

	assert.Equal(t, 2, out.Analyzed)
	assert.Equal(t, 2, out.Failed)
	assert.Contains(t, out.Photos[0].Err, "rate limited")
	assert.Contains(t, out.Photos[1].Err, "rate limited")
	assert.Equal(t, StatusAnalyzed, out.Photos[2].Status)
	assert.Equal(t, StatusAnalyzed, out.Photos[3].Status)
	assert.Len(t, api.calls, 2)
}

func TestAnalyzerRun_PerPhotoErrorEntry(t *testing.T) {
	photos := []Photo{uploadedClientPhoto("a.jpg"), uploadedClientPhoto("b.jpg")}

	api := &fakeAnalysisAPI{}
	api.respond = func(ids []string) (any, error) {
		return map[string]any{"results": []any{
			analysisResult(ids[0]),
			map[string]any{"photo_id": ids[1], "status": "failed", "error": "vision: empty assessment"},
		}}, nil
	}
	a := newTestAnalyzer(api, AnalyzerConfig{})

	out, err := a.Run(context.Background(), "rep-1", photos)
	require.NoError(t, err)

	assert.Equal(t, 1, out.Analyzed)
	assert.Equal(t, 1, out.Failed)
	assert.Equal(t, StatusAnalyzed, out.Photos[0].Status)
	assert.Equal(t, StatusError, out.Photos[1].Status)
	assert.Contains(t, out.Photos[1].Err, "empty assessment")
	assert.Equal(t, "1 of 2 analyzed", out.Aggregate())
}

func TestAnalyzerRun_MissingEntryFailsOnlyThatPhoto(t *testing.T) {
	photos := []Photo{uploadedClientPhoto("a.jpg"), uploadedClientPhoto("b.jpg")}

	api := &fakeAnalysisAPI{}
	api.respond = func(ids []string) (any, error) {
		return map[string]any{"results": []any{analysisResult(ids[0])}}, nil
	}
	a := newTestAnalyzer(api, AnalyzerConfig{})

	out, err := a.Run(context.Background(), "rep-1", photos)
	require.NoError(t, err)

	assert.Equal(t, 1, out.Analyzed)
	assert.Equal(t, 1, out.Failed)
	assert.Contains(t, out.Photos[1].Err, "no analysis result for this photo")
}

func TestAnalyzerRun_EmptyPayloadOnSuccessFails(t *testing.T) {
	photos := []Photo{uploadedClientPhoto("a.jpg")}

	api := &fakeAnalysisAPI{}
	api.respond = func(ids []string) (any, error) {
		return map[string]any{"results": []any{
			map[string]any{"photo_id": ids[0], "status": "analyzed", "analysis": map[string]any{}},
		}}, nil
	}
	a := newTestAnalyzer(api, AnalyzerConfig{})

	out, err := a.Run(context.Background(), "rep-1", photos)
	require.NoError(t, err)

	assert.Equal(t, 0, out.Analyzed)
	assert.Equal(t, 1, out.Failed)
	assert.Contains(t, out.Photos[0].Err, "no usable content")
	assert.Nil(t, out.Photos[0].Analysis)
}

func TestAnalyzerRun_SkipsIneligiblePhotos(t *testing.T) {
	eligible := uploadedClientPhoto("ok.jpg")

	pending := NewPhoto("pending.jpg", "image/jpeg", 10)

	analyzed := uploadedClientPhoto("done.jpg")
	analyzed.Status = StatusAnalyzed

	tempUploaded := NewPhoto("temp.jpg", "image/jpeg", 10)
	tempUploaded.Status = StatusUploaded // uploaded but no persisted id

	api := &fakeAnalysisAPI{}
	a := newTestAnalyzer(api, AnalyzerConfig{})

	out, err := a.Run(context.Background(), "rep-1", []Photo{eligible, pending, analyzed, tempUploaded})
	require.NoError(t, err)

	assert.Equal(t, 1, out.Analyzed)
	assert.Equal(t, 3, out.Skipped)
	require.Len(t, api.calls, 1)
	assert.Equal(t, []string{eligible.ID.Value()}, api.calls[0])
}

func TestAnalyzerRun_CancelFailsRemainingBatches(t *testing.T) {
	photos := make([]Photo, 4)
	for i := range photos {
		photos[i] = uploadedClientPhoto(fmt.Sprintf("img-%d.jpg", i))
	}

	ctx, cancel := context.WithCancel(context.Background())
	api := &fakeAnalysisAPI{}
	api.respond = func(ids []string) (any, error) {
		cancel()
		return analysisEnvelope(ids), nil
	}
	a := newTestAnalyzer(api, AnalyzerConfig{BatchSize: 2})

	out, err := a.Run(ctx, "rep-1", photos)
	require.NoError(t, err)

	assert.Equal(t, 2, out.Analyzed, "results of the finished batch are kept")
	assert.Equal(t, 2, out.Failed)
	assert.Equal(t, "analysis cancelled", out.Photos[2].Err)
	assert.Equal(t, "analysis cancelled", out.Photos[3].Err)
	assert.Len(t, api.calls, 1, "no further submissions after cancel")
}

func TestAnalyzerRun_RequiresReportID(t *testing.T) {
	a := newTestAnalyzer(&fakeAnalysisAPI{}, AnalyzerConfig{})

	_, err := a.Run(context.Background(), "", []Photo{uploadedClientPhoto("a.jpg")})
	assert.ErrorIs(t, err, ErrMissingReport)
}
