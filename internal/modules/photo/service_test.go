package photo

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"io/fs"
	"log/slog"
	"mime/multipart"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siteproof/internal/domain"
	"siteproof/internal/repository"
	"siteproof/internal/storage"
)

// In-memory fakes. The upload paths read, mutate and re-save state across
// calls, which map-backed fakes express more naturally than call mocks.

type fakePhotoRepo struct {
	mu        sync.Mutex
	photos    map[string]domain.Photo
	createErr error
}

func newFakePhotoRepo() *fakePhotoRepo {
	return &fakePhotoRepo{photos: make(map[string]domain.Photo)}
}

func (f *fakePhotoRepo) Create(ctx context.Context, p *domain.Photo) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos[p.ID] = *p
	return nil
}

func (f *fakePhotoRepo) GetByID(ctx context.Context, id string) (*domain.Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.photos[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := p
	return &cp, nil
}

func (f *fakePhotoRepo) ListByReport(ctx context.Context, reportID string) ([]domain.Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Photo
	for _, p := range f.photos {
		if p.ReportID == reportID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePhotoRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.photos, id)
	return nil
}

func (f *fakePhotoRepo) DeleteByReport(ctx context.Context, reportID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, p := range f.photos {
		if p.ReportID == reportID {
			delete(f.photos, id)
		}
	}
	return nil
}

type fakeReportRepo struct {
	reports map[string]domain.Report
}

func (f *fakeReportRepo) GetByID(ctx context.Context, id string) (*domain.Report, error) {
	r, ok := f.reports[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := r
	return &cp, nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]domain.ChunkSession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]domain.ChunkSession)}
}

func (f *fakeSessionRepo) Create(ctx context.Context, s *domain.ChunkSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = *s
	return nil
}

func (f *fakeSessionRepo) GetByID(ctx context.Context, id string) (*domain.ChunkSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := s
	cp.Received = append([]int(nil), s.Received...)
	return &cp, nil
}

func (f *fakeSessionRepo) Update(ctx context.Context, s *domain.ChunkSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[s.ID]; !ok {
		return repository.ErrNotFound
	}
	f.sessions[s.ID] = *s
	return nil
}

func (f *fakeSessionRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	return nil
}

type recordedEvent struct {
	ReportID string
	PhotoID  string
	Status   string
	Error    string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *recordingNotifier) PhotoStatus(reportID, photoID, status, errMsg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{reportID, photoID, status, errMsg})
}

func (n *recordingNotifier) statuses() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	for i, e := range n.events {
		out[i] = e.Status
	}
	return out
}

type testEnv struct {
	photos   *fakePhotoRepo
	reports  *fakeReportRepo
	sessions *fakeSessionRepo
	store    storage.ObjectStore
	notifier *recordingNotifier
	objects  string
	staging  string
	svc      *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	objects := t.TempDir()
	store, err := storage.NewLocal(objects)
	require.NoError(t, err)

	env := &testEnv{
		photos:   newFakePhotoRepo(),
		reports:  &fakeReportRepo{reports: map[string]domain.Report{"rep-1": {ID: "rep-1", ContractorID: 1}}},
		sessions: newFakeSessionRepo(),
		store:    store,
		notifier: &recordingNotifier{},
		objects:  objects,
		staging:  t.TempDir(),
	}

	env.svc = NewService(env.photos, env.reports, env.sessions, store, env.notifier, Config{
		MaxUploadBytes: 8 << 20,
		ChunkSize:      1 << 10,
		SessionTTL:     time.Hour,
		StagingDir:     env.staging,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	return env
}

// pngBytes renders a noisy RGBA image so the encoded size stays comfortably
// above the test chunk size.
func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8((x*7 + y*13) % 256), G: uint8((x * y) % 256), B: uint8((x ^ y) % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type uploadFile struct {
	name string
	data []byte
}

func multipartFiles(t *testing.T, files []uploadFile) []*multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := w.CreateFormFile("photos", f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["photos"]
}

func countStoredObjects(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			n++
		}
		return nil
	})
	require.NoError(t, err)
	return n
}

func TestUploadBatch_StoresAndEchoesClientID(t *testing.T) {
	env := newTestEnv(t)
	files := multipartFiles(t, []uploadFile{{name: "wall.png", data: pngBytes(t, 64, 64)}})

	descs, err := env.svc.UploadBatch(context.Background(), 1, "rep-1", files, []string{"temp_123_abc"})
	require.NoError(t, err)
	require.Len(t, descs, 1)

	d := descs[0]
	assert.NotEmpty(t, d.ID)
	assert.Equal(t, "temp_123_abc", d.ClientID)
	assert.Equal(t, "wall.png", d.OriginalName)
	assert.Equal(t, "image/png", d.ContentType)
	assert.Equal(t, string(domain.PhotoUploaded), d.Status)
	assert.Empty(t, d.Error)
	assert.Equal(t, "/api/v1/photos/"+d.ID, d.URL)

	stored, err := env.photos.GetByID(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, "rep-1", stored.ReportID)
	assert.Equal(t, int64(1), stored.ContractorID)

	require.Len(t, env.notifier.events, 1)
	assert.Equal(t, string(domain.PhotoUploaded), env.notifier.events[0].Status)
	assert.Equal(t, d.ID, env.notifier.events[0].PhotoID)
}

func TestUploadBatch_PerFileFailureDoesNotAbortBatch(t *testing.T) {
	env := newTestEnv(t)
	files := multipartFiles(t, []uploadFile{
		{name: "notes.txt", data: []byte("just some text, not an image")},
		{name: "crack.png", data: pngBytes(t, 64, 64)},
	})

	descs, err := env.svc.UploadBatch(context.Background(), 1, "rep-1", files, []string{"cid-bad", "cid-good"})
	require.NoError(t, err)
	require.Len(t, descs, 2)

	assert.Equal(t, "cid-bad", descs[0].ClientID)
	assert.Empty(t, descs[0].ID)
	assert.Contains(t, descs[0].Error, "not allowed")

	assert.Equal(t, "cid-good", descs[1].ClientID)
	assert.NotEmpty(t, descs[1].ID)
	assert.Empty(t, descs[1].Error)
}

func TestUploadBatch_GeneratesClientIDWhenMissing(t *testing.T) {
	env := newTestEnv(t)
	files := multipartFiles(t, []uploadFile{{name: "roof.png", data: pngBytes(t, 64, 64)}})

	descs, err := env.svc.UploadBatch(context.Background(), 1, "rep-1", files, nil)
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.True(t, strings.HasPrefix(descs[0].ClientID, "client_"), "got %q", descs[0].ClientID)
}

func TestUploadBatch_OwnershipAndMissingReport(t *testing.T) {
	env := newTestEnv(t)
	files := multipartFiles(t, []uploadFile{{name: "a.png", data: pngBytes(t, 32, 32)}})

	_, err := env.svc.UploadBatch(context.Background(), 2, "rep-1", files, nil)
	assert.ErrorIs(t, err, ErrNotOwner)

	_, err = env.svc.UploadBatch(context.Background(), 1, "rep-missing", files, nil)
	assert.ErrorIs(t, err, ErrReportNotFound)

	_, err = env.svc.UploadBatch(context.Background(), 1, "rep-1", nil, nil)
	assert.ErrorIs(t, err, ErrNoFiles)
}

func TestUploadBatch_RollsBackObjectsOnRecordError(t *testing.T) {
	env := newTestEnv(t)
	env.photos.createErr = errors.New("db down")
	files := multipartFiles(t, []uploadFile{{name: "a.png", data: pngBytes(t, 64, 64)}})

	descs, err := env.svc.UploadBatch(context.Background(), 1, "rep-1", files, []string{"cid-1"})
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.NotEmpty(t, descs[0].Error)
	assert.Equal(t, "cid-1", descs[0].ClientID)

	assert.Equal(t, 0, countStoredObjects(t, env.objects))
}

func TestUploadBatch_DuplicateClientIDSurfacesAsSuch(t *testing.T) {
	env := newTestEnv(t)
	env.photos.createErr = repository.ErrDuplicate
	files := multipartFiles(t, []uploadFile{{name: "a.png", data: pngBytes(t, 64, 64)}})

	descs, err := env.svc.UploadBatch(context.Background(), 1, "rep-1", files, []string{"cid-dup"})
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, ErrDuplicateClientID.Error(), descs[0].Error)
	assert.Empty(t, descs[0].ID)
	assert.Equal(t, 0, countStoredObjects(t, env.objects), "rolled back stored objects")
}

func TestGet_MissingVariantFallsBackToOriginal(t *testing.T) {
	env := newTestEnv(t)
	data := pngBytes(t, 32, 32)
	require.NoError(t, env.store.Put(context.Background(), "reports/rep-1/p1/original.png", data, "image/png"))
	env.photos.photos["p1"] = domain.Photo{
		ID:          "p1",
		ReportID:    "rep-1",
		ContentType: "image/png",
		StorageKey:  "reports/rep-1/p1/original.png",
		ThumbKey:    "reports/rep-1/p1/thumb.jpg",
	}

	got, contentType, err := env.svc.Get(context.Background(), "p1", "thumbnail")
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, "image/png", contentType)
}

func TestGet_UnknownPhoto(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.svc.Get(context.Background(), "nope", "")
	assert.ErrorIs(t, err, ErrPhotoNotFound)
}

func TestDelete_RemovesObjectsAndRecord(t *testing.T) {
	env := newTestEnv(t)
	files := multipartFiles(t, []uploadFile{{name: "a.png", data: pngBytes(t, 64, 64)}})
	descs, err := env.svc.UploadBatch(context.Background(), 1, "rep-1", files, nil)
	require.NoError(t, err)
	require.NotEmpty(t, descs[0].ID)

	require.NoError(t, env.svc.Delete(context.Background(), descs[0].ID))

	assert.Equal(t, 0, countStoredObjects(t, env.objects))
	_, _, err = env.svc.Get(context.Background(), descs[0].ID, "")
	assert.ErrorIs(t, err, ErrPhotoNotFound)
}

func TestPurgeReport_RemovesEverything(t *testing.T) {
	env := newTestEnv(t)
	files := multipartFiles(t, []uploadFile{
		{name: "a.png", data: pngBytes(t, 64, 64)},
		{name: "b.png", data: pngBytes(t, 48, 48)},
	})
	_, err := env.svc.UploadBatch(context.Background(), 1, "rep-1", files, nil)
	require.NoError(t, err)

	require.NoError(t, env.svc.PurgeReport(context.Background(), "rep-1"))

	assert.Equal(t, 0, countStoredObjects(t, env.objects))
	left, err := env.photos.ListByReport(context.Background(), "rep-1")
	require.NoError(t, err)
	assert.Empty(t, left)
}
