package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"siteproof/internal/client"
)

// inspectctl drives the upload pipeline from a terminal: walk a photo
// directory, create or reuse a report, upload with live progress, optionally
// run analysis, and leave a JSON snapshot that a later run resumes from.

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

func main() {
	_ = godotenv.Load()

	var (
		server      = flag.String("server", envOr("SITEPROOF_SERVER", "http://localhost:8080/api/v1"), "API base URL")
		token       = flag.String("token", os.Getenv("SITEPROOF_TOKEN"), "bearer token (env SITEPROOF_TOKEN)")
		dir         = flag.String("dir", "", "directory of photos to upload")
		reportID    = flag.String("report", "", "existing report id; empty creates a new report")
		title       = flag.String("title", "", "title for a new report")
		site        = flag.String("site", "", "site address for a new report")
		snapshot    = flag.String("snapshot", "inspection.json", "snapshot file to write and resume from")
		analyze     = flag.Bool("analyze", false, "run vision analysis after upload")
		concurrency = flag.Int("concurrency", client.DefaultMaxConcurrent, "parallel uploads")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *token == "" {
		log.Fatal("a bearer token is required (-token or SITEPROOF_TOKEN)")
	}

	// Ctrl-C cancels: queued work stops, transfers in flight still finish and
	// land in the snapshot.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report := client.ReportSnapshot{ID: *reportID, Title: *title, SiteAddress: *site}
	var photos []client.Photo

	if loaded, err := client.LoadSnapshot(*snapshot); err == nil {
		photos = loaded.RestorePhotos()
		if report.ID == "" {
			report.ID = loaded.Report.ID
		}
		if report.Title == "" {
			report.Title = loaded.Report.Title
		}
		if report.SiteAddress == "" {
			report.SiteAddress = loaded.Report.SiteAddress
		}
		retried := 0
		for i := range photos {
			if photos[i].Status == client.StatusError {
				if err := photos[i].Retry(); err == nil {
					retried++
				}
			}
		}
		fmt.Printf("Resuming from %s: %d photos (%d retried)\n", *snapshot, len(photos), retried)
	}

	if *dir != "" {
		added, err := collectPhotos(*dir, photos)
		if err != nil {
			log.Fatalf("scan %s: %v", *dir, err)
		}
		photos = append(photos, added...)
		if len(added) > 0 {
			fmt.Printf("Found %d new photos in %s\n", len(added), *dir)
		}
	}
	if len(photos) == 0 {
		log.Fatal("nothing to do: no snapshot photos and no -dir")
	}

	preserver := client.NewPreserver(client.DefaultInlineLimit, logger)
	for i := range photos {
		photos[i] = preserver.Preserve(photos[i])
	}

	api := client.NewAPI(client.APIConfig{BaseURL: *server, Token: *token}, logger)

	if report.ID == "" {
		if report.Title == "" {
			report.Title = "Site inspection " + time.Now().Format("2006-01-02")
		}
		id, err := api.CreateReport(ctx, report.Title, report.SiteAddress)
		if err != nil {
			log.Fatalf("create report: %v", err)
		}
		report.ID = id
		fmt.Printf("Created report %s (%s)\n", id, report.Title)
	} else if _, err := api.GetReport(ctx, report.ID); err != nil {
		log.Fatalf("report %s: %v", report.ID, err)
	}

	uploader := client.NewUploader(api, client.UploaderConfig{MaxConcurrent: *concurrency}, logger)
	outcome, err := uploader.UploadBatch(ctx, report.ID, photos, func(percent int) {
		fmt.Printf("\rUploading %3d%%", percent)
	})
	if err != nil {
		log.Fatalf("upload: %v", err)
	}
	photos = outcome.Photos
	fmt.Printf("\rUploaded %d, failed %d, skipped %d\n", outcome.Uploaded, outcome.Failed, outcome.Skipped)

	// The server holds the bytes now. Buffers would only sit in memory through
	// the analyze step; paths remain for a later resume.
	for i := range photos {
		if photos[i].Status == client.StatusUploaded {
			client.Release(&photos[i])
		}
	}

	if *analyze && ctx.Err() == nil {
		fmt.Println("Analyzing...")
		analyzer := client.NewAnalyzer(api, client.AnalyzerConfig{}, logger)
		result, err := analyzer.Run(ctx, report.ID, photos)
		if err != nil {
			log.Fatalf("analyze: %v", err)
		}
		photos = result.Photos
		fmt.Println(result.Aggregate())
	}

	printSummary(photos)

	if err := client.NewSnapshot(report, photos).Write(*snapshot); err != nil {
		log.Fatalf("write snapshot: %v", err)
	}
	fmt.Printf("Snapshot written to %s\n", *snapshot)

	for _, p := range photos {
		if p.Status == client.StatusError {
			os.Exit(1)
		}
	}
}

// collectPhotos walks dir for image files not already tracked by a previous
// snapshot (matched on local path).
func collectPhotos(dir string, existing []client.Photo) ([]client.Photo, error) {
	known := make(map[string]bool, len(existing))
	for _, p := range existing {
		if p.Local != nil && p.Local.Path != "" {
			known[p.Local.Path] = true
		}
	}

	var added []client.Photo
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !imageExtensions[ext] {
			return nil
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if known[abs] {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		contentType := mime.TypeByExtension(ext)
		if i := strings.IndexByte(contentType, ';'); i >= 0 {
			contentType = contentType[:i]
		}
		p := client.NewPhoto(d.Name(), contentType, info.Size())
		p.Local = &client.LocalData{Path: abs}
		added = append(added, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(added, func(i, j int) bool { return added[i].OriginalName < added[j].OriginalName })
	return added, nil
}

func printSummary(photos []client.Photo) {
	counts := map[client.Status]int{}
	for _, p := range photos {
		counts[p.Status]++
	}
	fmt.Printf("Photos: %d total", len(photos))
	for _, s := range []client.Status{client.StatusAnalyzed, client.StatusUploaded, client.StatusPending, client.StatusError} {
		if counts[s] > 0 {
			fmt.Printf(", %d %s", counts[s], s)
		}
	}
	fmt.Println()

	for _, p := range photos {
		if p.Status == client.StatusError {
			fmt.Printf("  %s: %s\n", p.OriginalName, p.Err)
		}
	}
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
