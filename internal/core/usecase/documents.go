package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
	"github.com/kirillkom/compliance-auditor/internal/core/ports"
	"github.com/kirillkom/compliance-auditor/internal/core/tracking"
)

type DocumentUseCase struct {
	access     projectAccess
	documents  ports.DocumentRepository
	storage    ports.ObjectStorage
	aggregator *ContentAggregator
	committer  ports.ChangeCommitter
	recorder   ports.LifecycleRecorder
}

func NewDocumentUseCase(
	projects ports.ProjectRepository,
	documents ports.DocumentRepository,
	storage ports.ObjectStorage,
	aggregator *ContentAggregator,
	committer ports.ChangeCommitter,
	recorder ports.LifecycleRecorder,
) *DocumentUseCase {
	return &DocumentUseCase{
		access:     projectAccess{projects: projects},
		documents:  documents,
		storage:    storage,
		aggregator: aggregator,
		committer:  committer,
		recorder:   recorder,
	}
}

func (uc *DocumentUseCase) Upload(
	ctx context.Context,
	scope domain.Scope,
	projectID, filename, contentType string,
	body io.Reader,
) (*domain.Document, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("file name is required"))
	}
	if _, err := uc.access.requireWrite(ctx, scope, projectID); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	counter := &countingReader{r: body}
	if err := uc.storage.Save(ctx, storageKey, counter); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.Document{
		ID:          id,
		TenantID:    scope.TenantID,
		ProjectID:   projectID,
		FileName:    filepath.Base(filename),
		StoragePath: storageKey,
		ContentType: resolveContentType(filename, contentType),
		SizeBytes:   counter.n,
		UploadedBy:  scope.ActorID,
	}

	session := tracking.NewSession(scope, uc.committer, uc.recorder)
	session.Add(doc)
	if err := session.Commit(ctx); err != nil {
		if cleanupErr := uc.storage.Delete(context.WithoutCancel(ctx), storageKey); cleanupErr != nil {
			slog.Warn("storage_cleanup_failed", "storage_key", storageKey, "error", cleanupErr)
		}
		return nil, fmt.Errorf("create document metadata: %w", err)
	}
	return doc, nil
}

// Delete soft-deletes the document. The stored file is kept so the document
// can be restored.
func (uc *DocumentUseCase) Delete(ctx context.Context, scope domain.Scope, documentID string) error {
	doc, err := uc.loadForWrite(ctx, scope, uc.documents, documentID)
	if err != nil {
		return err
	}
	session := tracking.NewSession(scope, uc.committer, uc.recorder)
	session.Track(doc)
	session.Remove(doc)
	if err := session.Commit(ctx); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (uc *DocumentUseCase) Restore(ctx context.Context, scope domain.Scope, documentID string) (*domain.Document, error) {
	doc, err := uc.loadForWrite(ctx, scope, uc.documents.Unscoped(), documentID)
	if err != nil {
		return nil, err
	}
	if !doc.IsDeleted {
		return doc, nil
	}
	session := tracking.NewSession(scope, uc.committer, uc.recorder)
	session.Track(doc)
	doc.Restore()
	if err := session.Modify(doc); err != nil {
		return nil, err
	}
	if err := session.Commit(ctx); err != nil {
		return nil, fmt.Errorf("restore document: %w", err)
	}
	return doc, nil
}

// WarmExtraction parses a stored document ahead of time and caches its text so
// audit checks rarely parse on demand.
func (uc *DocumentUseCase) WarmExtraction(ctx context.Context, scope domain.Scope, documentID string) error {
	doc, err := uc.documents.GetByID(ctx, scope.TenantID, documentID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}
	if doc.HasCachedText() {
		return nil
	}

	result, err := uc.aggregator.Extract(ctx, doc)
	if err != nil {
		if errors.Is(err, errUnsupportedContentType) {
			slog.Info("document_extraction_unsupported", "document_id", doc.ID, "content_type", doc.ContentType)
			return nil
		}
		return fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(result.Text) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("empty extracted text"))
	}

	session := tracking.NewSession(scope, uc.committer, uc.recorder)
	session.Track(doc)
	doc.ExtractedText = result.Text
	if result.PageCount > 0 {
		doc.PageCount = result.PageCount
	}
	if err := session.Modify(doc); err != nil {
		return err
	}
	if err := session.Commit(ctx); err != nil {
		return fmt.Errorf("cache extracted text: %w", err)
	}
	return nil
}

func (uc *DocumentUseCase) loadForWrite(
	ctx context.Context,
	scope domain.Scope,
	repo ports.DocumentRepository,
	documentID string,
) (*domain.Document, error) {
	if !scope.HasTenant() {
		return nil, domain.WrapError(domain.ErrUnauthorized, "load document", errors.New("tenant is required"))
	}
	doc, err := repo.GetByID(ctx, scope.TenantID, documentID)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if _, err := uc.access.requireWrite(ctx, scope, doc.ProjectID); err != nil {
		return nil, err
	}
	return doc, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func resolveContentType(filename, declared string) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		if mediaType, _, err := mime.ParseMediaType(declared); err == nil {
			return mediaType
		}
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
		if mediaType, _, err := mime.ParseMediaType(byExt); err == nil {
			return mediaType
		}
	}
	if declared == "" {
		return "application/octet-stream"
	}
	return declared
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
