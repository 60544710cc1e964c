package photo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"siteproof/internal/domain"
	"siteproof/internal/repository"
)

// InitChunked opens a chunked upload session for one large file. The chunk
// size returned is advisory; chunks up to that size are accepted.
func (s *Service) InitChunked(ctx context.Context, contractorID int64, req InitChunkedRequest) (*InitChunkedResponse, error) {
	if _, err := s.ownedReport(ctx, contractorID, req.ReportID); err != nil {
		return nil, err
	}

	clientID := req.ClientID
	if clientID == "" {
		clientID = generateClientID()
	}

	session := &domain.ChunkSession{
		ID:           uuid.New().String(),
		ContractorID: contractorID,
		ReportID:     req.ReportID,
		ClientID:     clientID,
		OriginalName: req.OriginalName,
		ContentType:  req.ContentType,
		CreatedAt:    time.Now(),
		ExpiresAt:    time.Now().Add(s.cfg.SessionTTL),
	}

	if err := os.MkdirAll(s.sessionDir(session.ID), 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.log.Info("chunked upload session opened",
		"session_id", session.ID,
		"report_id", req.ReportID,
		"file", req.OriginalName,
	)

	return &InitChunkedResponse{
		SessionID: session.ID,
		ChunkSize: s.cfg.ChunkSize,
		ExpiresAt: session.ExpiresAt.Format(time.RFC3339),
	}, nil
}

// PutChunk stages one chunk on disk. Re-sending an index overwrites the staged
// part, so retries are idempotent.
func (s *Service) PutChunk(ctx context.Context, contractorID int64, sessionID string, index, total int, data []byte) (*PutChunkResponse, error) {
	session, err := s.ownedSession(ctx, contractorID, sessionID)
	if err != nil {
		return nil, err
	}

	if total <= 0 || index < 0 || index >= total {
		return nil, fmt.Errorf("%w: index %d of %d", ErrChunkInvalid, index, total)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrChunkInvalid)
	}
	if int64(len(data)) > s.cfg.ChunkSize {
		return nil, fmt.Errorf("%w: payload exceeds chunk size", ErrChunkInvalid)
	}
	if session.TotalChunks != 0 && session.TotalChunks != total {
		return nil, fmt.Errorf("%w: total changed from %d to %d", ErrChunkInvalid, session.TotalChunks, total)
	}
	if int64(total)*s.cfg.ChunkSize > s.cfg.MaxUploadBytes+s.cfg.ChunkSize {
		return nil, ErrFileTooLarge
	}

	if err := os.WriteFile(s.partPath(sessionID, index), data, 0o600); err != nil {
		return nil, fmt.Errorf("stage chunk: %w", err)
	}

	session.TotalChunks = total
	if !session.HasChunk(index) {
		session.Received = append(session.Received, index)
	}
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}

	return &PutChunkResponse{Received: len(session.Received), Total: total}, nil
}

// CompleteChunked assembles the staged chunks in index order and runs the
// result through the same storage path as a direct upload. The session and its
// staging directory are removed on success.
func (s *Service) CompleteChunked(ctx context.Context, contractorID int64, sessionID string) (*Descriptor, error) {
	session, err := s.ownedSession(ctx, contractorID, sessionID)
	if err != nil {
		return nil, err
	}

	if session.TotalChunks == 0 {
		return nil, &IncompleteSessionError{Missing: []int{0}}
	}
	if missing := session.MissingChunks(); len(missing) > 0 {
		return nil, &IncompleteSessionError{Missing: missing}
	}

	report, err := s.ownedReport(ctx, contractorID, session.ReportID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	for i := 0; i < session.TotalChunks; i++ {
		part, err := os.ReadFile(s.partPath(sessionID, i))
		if err != nil {
			return nil, fmt.Errorf("read staged chunk %d: %w", i, err)
		}
		buf.Write(part)
		if int64(buf.Len()) > s.cfg.MaxUploadBytes {
			s.discardSession(ctx, session)
			return nil, ErrFileTooLarge
		}
	}

	desc, err := s.storeBytes(ctx, contractorID, report, session.OriginalName, session.ClientID, buf.Bytes())
	if err != nil {
		return nil, err
	}

	s.discardSession(ctx, session)
	return desc, nil
}

func (s *Service) ownedSession(ctx context.Context, contractorID int64, sessionID string) (*domain.ChunkSession, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if session.ContractorID != contractorID {
		return nil, ErrNotOwner
	}
	if session.Expired(time.Now()) {
		return nil, ErrSessionExpired
	}
	return session, nil
}

func (s *Service) discardSession(ctx context.Context, session *domain.ChunkSession) {
	if err := os.RemoveAll(s.sessionDir(session.ID)); err != nil {
		s.log.Warn("staging cleanup failed", "session_id", session.ID, "error", err)
	}
	if err := s.sessions.Delete(ctx, session.ID); err != nil {
		s.log.Warn("session delete failed", "session_id", session.ID, "error", err)
	}
}

func (s *Service) sessionDir(sessionID string) string {
	return filepath.Join(s.cfg.StagingDir, sessionID)
}

func (s *Service) partPath(sessionID string, index int) string {
	return filepath.Join(s.sessionDir(sessionID), strconv.Itoa(index)+".part")
}
