package domain

import "time"

type Document struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id"`
	ProjectID     string    `json:"project_id"`
	FileName      string    `json:"file_name"`
	StoragePath   string    `json:"storage_path"`
	ContentType   string    `json:"content_type"`
	SizeBytes     int64     `json:"size_bytes"`
	ExtractedText string    `json:"-"`
	PageCount     int       `json:"page_count"`
	UploadedBy    string    `json:"uploaded_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	SoftDelete
}

func (d *Document) EntityType() string  { return EntityTypeDocument }
func (d *Document) EntityID() string    { return d.ID }
func (d *Document) DisplayName() string { return d.FileName }
func (d *Document) ProjectRef() string  { return d.ProjectID }

func (d *Document) Touch(now time.Time, created bool) {
	if created && d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
}

func (d *Document) HasCachedText() bool {
	return d.ExtractedText != ""
}

// DocumentContent is the analyzable text resolved for one document.
type DocumentContent struct {
	DocumentID  string `json:"document_id"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Text        string `json:"text"`
	PageCount   int    `json:"page_count"`
}

type ParseResult struct {
	Success   bool
	Text      string
	PageCount int
}
