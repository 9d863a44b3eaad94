package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
	"github.com/kirillkom/compliance-auditor/internal/core/ports"
)

const documentColumns = `id, tenant_id, project_id, file_name, storage_path, content_type, size_bytes, extracted_text,
	page_count, uploaded_by, created_at, updated_at, is_deleted, deleted_at, deleted_by`

type DocumentRepository struct {
	db       *sql.DB
	unscoped bool
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Unscoped returns a view that also reads soft-deleted documents.
func (r *DocumentRepository) Unscoped() ports.DocumentRepository {
	return &DocumentRepository{db: r.db, unscoped: true}
}

func (r *DocumentRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE tenant_id = $1 AND id = $2`+visibilityClause("", r.unscoped), tenantID, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get document", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) ListByProject(ctx context.Context, tenantID, projectID string) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE tenant_id = $1 AND project_id = $2`+visibilityClause("", r.unscoped)+`
ORDER BY created_at ASC, id ASC`, tenantID, projectID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func (r *DocumentRepository) CountByProject(ctx context.Context, tenantID, projectID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM documents
WHERE tenant_id = $1 AND project_id = $2`+visibilityClause("", r.unscoped), tenantID, projectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

func scanDocument(row rowScanner) (domain.Document, error) {
	var doc domain.Document
	var extracted, uploadedBy sql.NullString
	err := row.Scan(
		&doc.ID, &doc.TenantID, &doc.ProjectID, &doc.FileName, &doc.StoragePath, &doc.ContentType, &doc.SizeBytes,
		&extracted, &doc.PageCount, &uploadedBy, &doc.CreatedAt, &doc.UpdatedAt,
		&doc.IsDeleted, &doc.DeletedAt, &doc.DeletedBy,
	)
	if err != nil {
		return domain.Document{}, err
	}
	doc.ExtractedText = extracted.String
	doc.UploadedBy = uploadedBy.String
	return doc, nil
}
