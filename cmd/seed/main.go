package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"log"
	"log/slog"
	"mime/multipart"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"siteproof/internal/config"
	"siteproof/internal/database"
	"siteproof/internal/domain"
	"siteproof/internal/modules/events"
	"siteproof/internal/modules/photo"
	"siteproof/internal/repository"
	"siteproof/internal/storage"
)

// Seeds demo reports and photos for local frontend development. Contractor
// identities come from the auth gateway, so contractor ids 1 and 2 are used
// as-is; mint matching JWTs to browse the data.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config: ", err)
	}

	db, err := database.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal("DB connection failed: ", err)
	}

	log.Println("Running AutoMigrate...")
	if err := database.Migrate(db); err != nil {
		log.Fatal("AutoMigrate failed: ", err)
	}

	log.Println("Cleaning old data...")
	db.Exec("DELETE FROM photos")
	db.Exec("DELETE FROM chunk_sessions")
	db.Exec("DELETE FROM reports")

	log.Println("Creating reports...")
	now := time.Now()
	reports := []domain.Report{
		{
			ID:            uuid.New().String(),
			ContractorID:  1,
			Title:         "Foundation inspection",
			SiteAddress:   "12 Quay St",
			InspectorName: "J. Alvarez",
			Notes:         "Follow-up on the March settlement complaint",
			Status:        domain.ReportInProgress,
			CreatedAt:     now.AddDate(0, 0, -7),
			UpdatedAt:     now.AddDate(0, 0, -1),
		},
		{
			ID:           uuid.New().String(),
			ContractorID: 1,
			Title:        "Roof survey after hail",
			SiteAddress:  "88 Harbour Rd",
			Status:       domain.ReportDraft,
			CreatedAt:    now.AddDate(0, 0, -2),
			UpdatedAt:    now.AddDate(0, 0, -2),
		},
		{
			ID:            uuid.New().String(),
			ContractorID:  2,
			Title:         "Pre-handover walkthrough",
			SiteAddress:   "4 Mill Lane, Unit 2",
			InspectorName: "R. Okafor",
			Status:        domain.ReportCompleted,
			CreatedAt:     now.AddDate(0, -1, 0),
			UpdatedAt:     now.AddDate(0, 0, -14),
		},
	}
	for i := range reports {
		if err := db.Create(&reports[i]).Error; err != nil {
			log.Fatal("create report failed: ", err)
		}
	}

	// Photos go through the real upload path so stored objects, variants and
	// records stay consistent with what the API produces.
	store, err := storage.NewLocal(cfg.StorageDir)
	if err != nil {
		log.Fatal("storage init failed: ", err)
	}

	photoRepo := repository.NewPhotoRepository(db)
	reportRepo := repository.NewReportRepository(db)
	sessionRepo := repository.NewChunkSessionRepository(db)

	photoService := photo.NewService(photoRepo, reportRepo, sessionRepo, store, events.NewHub(), photo.Config{
		MaxUploadBytes: cfg.MaxUploadBytes,
		ChunkSize:      cfg.ChunkSizeBytes,
		SessionTTL:     cfg.ChunkSessionTTL,
		StagingDir:     cfg.StagingDir,
	}, slog.Default())

	log.Println("Uploading demo photos...")
	files, err := demoFiles("east-wall.png", "north-wall.png", "slab-detail.png")
	if err != nil {
		log.Fatal("build demo files failed: ", err)
	}

	ctx := context.Background()
	descriptors, err := photoService.UploadBatch(ctx, 1, reports[0].ID, files, nil)
	if err != nil {
		log.Fatal("demo upload failed: ", err)
	}

	uploaded := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		if d.Error != "" {
			log.Printf("demo photo %s failed: %s", d.OriginalName, d.Error)
			continue
		}
		uploaded = append(uploaded, d.ID)
	}

	// One photo gets a canned assessment so rollups and detail views have
	// something to show before a real analysis run.
	if len(uploaded) > 0 {
		if err := photoRepo.SetAnalysis(ctx, uploaded[0], &domain.Analysis{
			Description:       "Hairline crack running diagonally from the window corner",
			Tags:              []string{"crack", "wall", "window"},
			DamageDetected:    true,
			Severity:          domain.SeverityMinor,
			Confidence:        0.87,
			RecommendedAction: "Monitor over the next quarter; seal if it widens",
		}); err != nil {
			log.Fatal("seed analysis failed: ", err)
		}
	}

	log.Println("Seed completed!")
	log.Printf("Reports: %d (contractor 1: %q, %q; contractor 2: %q)",
		len(reports), reports[0].Title, reports[1].Title, reports[2].Title)
	log.Printf("Photos: %d uploaded to %q, 1 pre-analyzed", len(uploaded), reports[0].Title)
}

// demoFiles renders gradient PNGs and wraps them as multipart file headers,
// the same shape the upload endpoint receives.
func demoFiles(names ...string) ([]*multipart.FileHeader, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for i, name := range names {
		part, err := w.CreateFormFile("photos", name)
		if err != nil {
			return nil, err
		}
		if err := png.Encode(part, demoImage(i)); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(64 << 20)
	if err != nil {
		return nil, err
	}
	return form.File["photos"], nil
}

func demoImage(seed int) image.Image {
	const width, height = 2048, 1536
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x + seed*40) % 256),
				G: uint8((y + seed*80) % 256),
				B: uint8((x + y) % 256),
				A: 255,
			})
		}
	}
	return img
}
