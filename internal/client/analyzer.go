package client

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// AnalysisAPI is the slice of the REST client the analysis coordinator needs.
type AnalysisAPI interface {
	Analyze(ctx context.Context, reportID string, photoIDs []string) (any, error)
}

// AnalyzerConfig carries the batching knobs explicitly.
type AnalyzerConfig struct {
	// BatchSize caps photos per analysis request.
	BatchSize int
	// BatchDelay is the pause between consecutive batches, a deliberate
	// throttle for the provider's rate limits.
	BatchDelay time.Duration
}

const (
	DefaultBatchSize  = 10
	DefaultBatchDelay = time.Second
)

func (c AnalyzerConfig) withDefaults() AnalyzerConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BatchDelay <= 0 {
		c.BatchDelay = DefaultBatchDelay
	}
	return c
}

// AnalysisOutcome is one run over a photo set. Photos are updated copies in
// input order; the caller commits them.
type AnalysisOutcome struct {
	Photos   []Photo
	Analyzed int
	Failed   int
	// Skipped counts photos rejected by the analysis guard (not uploaded, or
	// no persisted id).
	Skipped int
	Batches int
}

// Analyzer submits uploaded photos for vision analysis in fixed-size batches,
// strictly one batch at a time. A failed batch marks only its own photos and
// never blocks the batches after it.
type Analyzer struct {
	api AnalysisAPI
	cfg AnalyzerConfig
	log *slog.Logger
}

func NewAnalyzer(api AnalysisAPI, cfg AnalyzerConfig, log *slog.Logger) *Analyzer {
	return &Analyzer{api: api, cfg: cfg.withDefaults(), log: log}
}

// Run analyzes every eligible photo. Batches run sequentially with
// cfg.BatchDelay between them; cancelling ctx fails all not-yet-submitted
// batches with a shared message.
func (a *Analyzer) Run(ctx context.Context, reportID string, photos []Photo) (*AnalysisOutcome, error) {
	if reportID == "" {
		return nil, ErrMissingReport
	}

	out := &AnalysisOutcome{Photos: append([]Photo(nil), photos...)}

	var queue []int
	for i := range out.Photos {
		p := &out.Photos[i]
		if !CanAnalyze(p) {
			a.log.Debug("photo not eligible for analysis",
				"id", p.ID.Value(),
				"status", p.Status,
			)
			out.Skipped++
			continue
		}
		queue = append(queue, i)
	}
	if len(queue) == 0 {
		return out, nil
	}

	batches := splitBatches(queue, a.cfg.BatchSize)
	out.Batches = len(batches)

	for n, batch := range batches {
		if n > 0 && a.cfg.BatchDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(a.cfg.BatchDelay):
			}
		}
		if ctx.Err() != nil {
			for _, i := range batch {
				out.Photos[i].Fail("analysis cancelled")
				out.Failed++
			}
			continue
		}
		a.runBatch(ctx, reportID, batch, out)
	}

	a.log.Info("analysis run finished",
		"report_id", reportID,
		"batches", out.Batches,
		"analyzed", out.Analyzed,
		"failed", out.Failed,
	)
	return out, nil
}

func (a *Analyzer) runBatch(ctx context.Context, reportID string, batch []int, out *AnalysisOutcome) {
	ids := make([]string, len(batch))
	for j, i := range batch {
		ids[j] = out.Photos[i].ID.Value()
		_ = out.Photos[i].Apply(StatusAnalyzing)
	}

	failBatch := func(msg string) {
		for _, i := range batch {
			out.Photos[i].Fail(msg)
			out.Failed++
		}
		a.log.Warn("analysis batch failed", "report_id", reportID, "photos", len(batch), "error", msg)
	}

	resp, err := a.api.Analyze(ctx, reportID, ids)
	if err != nil {
		failBatch(err.Error())
		return
	}

	results, ok := ExtractResults(resp)
	if !ok {
		failBatch("analysis response in unrecognized shape")
		return
	}
	if len(results) == 0 {
		failBatch("analysis response carried no results")
		return
	}

	matched := matchResults(results, batch, func(i int) string { return out.Photos[i].ID.Value() })
	if matched == nil {
		failBatch("analysis results could not be matched to submitted photos")
		return
	}

	for _, i := range batch {
		p := &out.Photos[i]
		entry, ok := matched[i]
		if !ok {
			p.Fail("no analysis result for this photo")
			out.Failed++
			continue
		}

		if msg := entryString(entry, "error"); msg != "" {
			p.Fail(msg)
			out.Failed++
			continue
		}

		analysis := DecodeAnalysis(entry)
		if analysis == nil {
			// An HTTP success with nothing in it is still a failure here.
			p.Fail("analysis response carried no usable content")
			out.Failed++
			continue
		}

		p.Analysis = analysis
		if err := p.Apply(StatusAnalyzed); err != nil {
			p.Fail(err.Error())
			out.Failed++
			continue
		}
		out.Analyzed++
	}
}

// matchResults pairs result entries with batch members: by echoed photo id
// when any entry carries one, positionally only when no entry does and the
// lengths line up. Returns nil when neither strategy applies; the caller
// surfaces that instead of guessing.
func matchResults(results []map[string]any, batch []int, idOf func(int) string) map[int]map[string]any {
	anyID := false
	for _, r := range results {
		if entryPhotoID(r) != "" {
			anyID = true
			break
		}
	}

	matched := make(map[int]map[string]any, len(batch))
	if anyID {
		byID := make(map[string]map[string]any, len(results))
		for _, r := range results {
			if id := entryPhotoID(r); id != "" {
				byID[id] = r
			}
		}
		for _, i := range batch {
			if r, ok := byID[idOf(i)]; ok {
				matched[i] = r
			}
		}
		return matched
	}

	if len(results) != len(batch) {
		return nil
	}
	for j, i := range batch {
		matched[i] = results[j]
	}
	return matched
}

func splitBatches(queue []int, size int) [][]int {
	var batches [][]int
	for len(queue) > 0 {
		n := size
		if n > len(queue) {
			n = len(queue)
		}
		batches = append(batches, queue[:n])
		queue = queue[n:]
	}
	return batches
}

// Aggregate is the user-facing "N of M analyzed" line.
func (o *AnalysisOutcome) Aggregate() string {
	return fmt.Sprintf("%d of %d analyzed", o.Analyzed, o.Analyzed+o.Failed)
}
