package photo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"siteproof/internal/domain"
	"siteproof/internal/imaging"
	"siteproof/internal/repository"
	"siteproof/internal/storage"
)

// AllowedMimeTypes defines which sniffed content types are accepted.
var AllowedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Config carries the service knobs; main fills it from the app config.
type Config struct {
	MaxUploadBytes int64
	ChunkSize      int64
	SessionTTL     time.Duration
	StagingDir     string
}

// Service owns photo bytes and metadata: multipart batch uploads, chunked
// upload sessions, variant retrieval, and deletion. Stored objects live behind
// the ObjectStore; metadata in the photo repository.
type Service struct {
	photos   PhotoRepository
	reports  ReportRepository
	sessions ChunkSessionRepository
	store    storage.ObjectStore
	notifier StatusNotifier
	cfg      Config
	log      *slog.Logger
}

func NewService(
	photos PhotoRepository,
	reports ReportRepository,
	sessions ChunkSessionRepository,
	store storage.ObjectStore,
	notifier StatusNotifier,
	cfg Config,
	log *slog.Logger,
) *Service {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 4 << 20
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	return &Service{
		photos:   photos,
		reports:  reports,
		sessions: sessions,
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
	}
}

// UploadBatch stores every file of a multipart request. Per-file failures do
// not abort the batch; each failed file yields a descriptor carrying its error
// so the client can reconcile by client id either way.
func (s *Service) UploadBatch(ctx context.Context, contractorID int64, reportID string, files []*multipart.FileHeader, clientIDs []string) ([]Descriptor, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	report, err := s.ownedReport(ctx, contractorID, reportID)
	if err != nil {
		return nil, err
	}

	descriptors := make([]Descriptor, 0, len(files))
	for i, fh := range files {
		clientID := ""
		if i < len(clientIDs) {
			clientID = strings.TrimSpace(clientIDs[i])
		}
		if clientID == "" {
			clientID = generateClientID()
		}

		desc, err := s.storeFile(ctx, contractorID, report, fh, clientID)
		if err != nil {
			s.log.Warn("photo upload failed",
				"report_id", report.ID,
				"client_id", clientID,
				"file", fh.Filename,
				"error", err,
			)
			descriptors = append(descriptors, Descriptor{
				ClientID:     clientID,
				OriginalName: fh.Filename,
				Error:        err.Error(),
			})
			continue
		}
		descriptors = append(descriptors, *desc)
	}

	return descriptors, nil
}

func (s *Service) storeFile(ctx context.Context, contractorID int64, report *domain.Report, fh *multipart.FileHeader, clientID string) (*Descriptor, error) {
	if fh.Size == 0 {
		return nil, ErrEmptyFile
	}
	if fh.Size > s.cfg.MaxUploadBytes {
		return nil, ErrFileTooLarge
	}

	file, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, ErrFileTooLarge
	}

	return s.storeBytes(ctx, contractorID, report, fh.Filename, clientID, data)
}

// storeBytes is the shared tail of both upload paths: sniff the MIME type,
// write original plus variants to the object store, create the record.
func (s *Service) storeBytes(ctx context.Context, contractorID int64, report *domain.Report, originalName, clientID string, data []byte) (*Descriptor, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	mimeType := sniffMime(data)
	if !AllowedMimeTypes[mimeType] {
		return nil, ErrInvalidMimeType
	}

	photoID := uuid.New().String()
	keyBase := fmt.Sprintf("reports/%s/%s", report.ID, photoID)
	origKey := keyBase + "/original" + extensionFor(originalName, mimeType)

	if err := s.store.Put(ctx, origKey, data, mimeType); err != nil {
		return nil, fmt.Errorf("store original: %w", err)
	}

	// Variants are best-effort: a valid image we cannot decode (e.g. webp)
	// simply serves the original for every size.
	optimizedKey := s.storeVariant(ctx, keyBase+"/optimized.jpg", data, imaging.MediumMaxEdge)
	thumbKey := s.storeVariant(ctx, keyBase+"/thumb.jpg", data, imaging.ThumbnailMaxEdge)

	now := time.Now()
	p := &domain.Photo{
		ID:           photoID,
		ReportID:     report.ID,
		ClientID:     clientID,
		ContractorID: contractorID,
		OriginalName: originalName,
		ContentType:  mimeType,
		Size:         int64(len(data)),
		StorageKey:   origKey,
		OptimizedKey: optimizedKey,
		ThumbKey:     thumbKey,
		Status:       domain.PhotoUploaded,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.photos.Create(ctx, p); err != nil {
		// Roll back stored objects on DB error.
		s.removeObjects(ctx, p)
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateClientID
		}
		return nil, fmt.Errorf("save photo record: %w", err)
	}

	s.notifier.PhotoStatus(report.ID, photoID, string(domain.PhotoUploaded), "")

	return s.describe(p), nil
}

func (s *Service) storeVariant(ctx context.Context, key string, data []byte, maxEdge int) string {
	variant, resized, err := imaging.Fit(data, maxEdge)
	if err != nil {
		s.log.Debug("variant skipped", "key", key, "error", err)
		return ""
	}
	if !resized {
		return ""
	}
	if err := s.store.Put(ctx, key, variant, "image/jpeg"); err != nil {
		s.log.Warn("variant store failed", "key", key, "error", err)
		return ""
	}
	return key
}

// Get returns the stored bytes for a photo in the requested size. Missing
// variants fall back to the original.
func (s *Service) Get(ctx context.Context, id, size string) ([]byte, string, error) {
	p, err := s.photos.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", ErrPhotoNotFound
		}
		return nil, "", err
	}

	key := p.StorageKey
	contentType := p.ContentType
	switch size {
	case "thumbnail":
		if p.ThumbKey != "" {
			key = p.ThumbKey
			contentType = "image/jpeg"
		}
	case "medium", "optimized":
		if p.OptimizedKey != "" {
			key = p.OptimizedKey
			contentType = "image/jpeg"
		}
	case "", "original":
	default:
		// Unknown size values serve the original rather than erroring.
	}

	data, err := s.store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) && key != p.StorageKey {
		// Variant object lost; fall back to the original.
		data, err = s.store.Get(ctx, p.StorageKey)
		contentType = p.ContentType
	}
	if errors.Is(err, storage.ErrNotFound) {
		return nil, "", ErrPhotoNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("read photo object: %w", err)
	}
	return data, contentType, nil
}

// OptimizedBytes returns the smallest stored representation suitable for
// vision analysis, preferring the optimized variant.
func (s *Service) OptimizedBytes(ctx context.Context, p *domain.Photo) ([]byte, string, error) {
	if p.OptimizedKey != "" {
		data, err := s.store.Get(ctx, p.OptimizedKey)
		if err == nil {
			return data, "image/jpeg", nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, "", err
		}
	}
	data, err := s.store.Get(ctx, p.StorageKey)
	if err != nil {
		return nil, "", err
	}
	return data, p.ContentType, nil
}

// Delete removes the record and every stored variant.
func (s *Service) Delete(ctx context.Context, id string) error {
	p, err := s.photos.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPhotoNotFound
		}
		return err
	}

	s.removeObjects(ctx, p)

	if err := s.photos.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete photo record: %w", err)
	}
	return nil
}

// PurgeReport removes all photos of a report, objects first, then records.
// Called by the report service when a report is deleted.
func (s *Service) PurgeReport(ctx context.Context, reportID string) error {
	photos, err := s.photos.ListByReport(ctx, reportID)
	if err != nil {
		return fmt.Errorf("list report photos: %w", err)
	}
	for i := range photos {
		s.removeObjects(ctx, &photos[i])
	}
	if err := s.photos.DeleteByReport(ctx, reportID); err != nil {
		return fmt.Errorf("delete photo records: %w", err)
	}
	return nil
}

func (s *Service) removeObjects(ctx context.Context, p *domain.Photo) {
	for _, key := range []string{p.StorageKey, p.OptimizedKey, p.ThumbKey} {
		if key == "" {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			s.log.Warn("object delete failed", "key", key, "error", err)
		}
	}
}

func (s *Service) ownedReport(ctx context.Context, contractorID int64, reportID string) (*domain.Report, error) {
	if reportID == "" {
		return nil, ErrReportNotFound
	}
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	if report.ContractorID != contractorID {
		return nil, ErrNotOwner
	}
	return report, nil
}

func (s *Service) describe(p *domain.Photo) *Descriptor {
	base := "/api/v1/photos/" + p.ID
	d := &Descriptor{
		ID:           p.ID,
		ClientID:     p.ClientID,
		OriginalName: p.OriginalName,
		ContentType:  p.ContentType,
		Size:         p.Size,
		Status:       string(p.Status),
		URL:          base,
	}
	if p.OptimizedKey != "" {
		d.OptimizedURL = base + "?size=medium"
	}
	if p.ThumbKey != "" {
		d.ThumbnailURL = base + "?size=thumbnail"
	}
	return d
}

// sniffMime detects the content type from the first 512 bytes, ignoring any
// client-declared type.
func sniffMime(data []byte) string {
	limit := len(data)
	if limit > 512 {
		limit = 512
	}
	mimeType := http.DetectContentType(data[:limit])
	return strings.Split(mimeType, ";")[0]
}

func extensionFor(name, mimeType string) string {
	if ext := strings.ToLower(filepath.Ext(name)); ext != "" && len(ext) <= 5 {
		return ext
	}
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}

func generateClientID() string {
	return fmt.Sprintf("client_%d_%s", time.Now().UnixNano(), uuid.New().String()[:8])
}
