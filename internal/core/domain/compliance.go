package domain

import (
	"encoding/json"
	"strings"
	"time"
)

type ComplianceStatus string

const (
	StatusCompliant          ComplianceStatus = "Compliant"
	StatusPartiallyCompliant ComplianceStatus = "PartiallyCompliant"
	StatusNonCompliant       ComplianceStatus = "NonCompliant"
	StatusNotAssessed        ComplianceStatus = "NotAssessed"
	StatusNotApplicable      ComplianceStatus = "NotApplicable"
)

// ParseComplianceStatus accepts the spellings analysis backends tend to emit
// ("non_compliant", "Non-Compliant", "partial").
func ParseComplianceStatus(raw string) (ComplianceStatus, bool) {
	switch normalizeEnum(raw) {
	case "compliant":
		return StatusCompliant, true
	case "partiallycompliant", "partial":
		return StatusPartiallyCompliant, true
	case "noncompliant":
		return StatusNonCompliant, true
	case "notassessed", "unknown":
		return StatusNotAssessed, true
	case "notapplicable", "na":
		return StatusNotApplicable, true
	default:
		return "", false
	}
}

// ProducesFinding reports whether a control result with this status is a gap.
func (s ComplianceStatus) ProducesFinding() bool {
	return s != StatusCompliant && s != StatusNotApplicable
}

type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskMedium   RiskLevel = "Medium"
	RiskHigh     RiskLevel = "High"
	RiskCritical RiskLevel = "Critical"
)

func ParseRiskLevel(raw string) (RiskLevel, bool) {
	switch normalizeEnum(raw) {
	case "low":
		return RiskLow, true
	case "medium", "moderate":
		return RiskMedium, true
	case "high":
		return RiskHigh, true
	case "critical":
		return RiskCritical, true
	default:
		return "", false
	}
}

func (r RiskLevel) Rank() int {
	switch r {
	case RiskCritical:
		return 4
	case RiskHigh:
		return 3
	case RiskMedium:
		return 2
	case RiskLow:
		return 1
	default:
		return 0
	}
}

type WorkflowStatus string

const (
	WorkflowOpen          WorkflowStatus = "Open"
	WorkflowInProgress    WorkflowStatus = "InProgress"
	WorkflowResolved      WorkflowStatus = "Resolved"
	WorkflowAccepted      WorkflowStatus = "Accepted"
	WorkflowFalsePositive WorkflowStatus = "FalsePositive"
)

func ParseWorkflowStatus(raw string) (WorkflowStatus, bool) {
	switch normalizeEnum(raw) {
	case "open":
		return WorkflowOpen, true
	case "inprogress":
		return WorkflowInProgress, true
	case "resolved":
		return WorkflowResolved, true
	case "accepted":
		return WorkflowAccepted, true
	case "falsepositive":
		return WorkflowFalsePositive, true
	default:
		return "", false
	}
}

// IsClosed reports whether a finding in this state no longer needs attention.
func (w WorkflowStatus) IsClosed() bool {
	return w == WorkflowResolved || w == WorkflowFalsePositive
}

type EvidenceType string

const (
	EvidenceSupporting    EvidenceType = "Supporting"
	EvidenceContradicting EvidenceType = "Contradicting"
	EvidenceContextual    EvidenceType = "Contextual"
)

func ParseEvidenceType(raw string) EvidenceType {
	switch normalizeEnum(raw) {
	case "supporting":
		return EvidenceSupporting
	case "contradicting":
		return EvidenceContradicting
	default:
		return EvidenceContextual
	}
}

func normalizeEnum(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(raw)) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Framework is immutable reference data.
type Framework struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"is_active"`
}

// Control is a single requirement within a Framework. Immutable reference data.
type Control struct {
	ID               string    `json:"id"`
	FrameworkID      string    `json:"framework_id"`
	Code             string    `json:"code"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	Guidance         string    `json:"guidance,omitempty"`
	IsMandatory      bool      `json:"is_mandatory"`
	DefaultRiskLevel RiskLevel `json:"default_risk_level"`
}

// ControlCounts is the population the weighted score is computed over.
type ControlCounts struct {
	Compliant    int `json:"compliant"`
	Partial      int `json:"partially_compliant"`
	NonCompliant int `json:"non_compliant"`
	NotAssessed  int `json:"not_assessed"`
}

func (c ControlCounts) Total() int {
	return c.Compliant + c.Partial + c.NonCompliant + c.NotAssessed
}

func (c ControlCounts) Add(other ControlCounts) ControlCounts {
	return ControlCounts{
		Compliant:    c.Compliant + other.Compliant,
		Partial:      c.Partial + other.Partial,
		NonCompliant: c.NonCompliant + other.NonCompliant,
		NotAssessed:  c.NotAssessed + other.NotAssessed,
	}
}

// ProjectFramework caches the statistics of the last audit check. Version is the
// optimistic concurrency token checked on every update.
type ProjectFramework struct {
	ID                   string     `json:"id"`
	TenantID             string     `json:"tenant_id"`
	ProjectID            string     `json:"project_id"`
	FrameworkID          string     `json:"framework_id"`
	IsActive             bool       `json:"is_active"`
	CompliantCount       int        `json:"compliant_count"`
	PartialCount         int        `json:"partially_compliant_count"`
	NonCompliantCount    int        `json:"non_compliant_count"`
	NotAssessedCount     int        `json:"not_assessed_count"`
	CompliancePercentage float64    `json:"compliance_percentage"`
	LastAnalyzedBy       *string    `json:"last_analyzed_by,omitempty"`
	LastAnalyzedAt       *time.Time `json:"last_analyzed_at,omitempty"`
	Version              int64      `json:"version"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	SoftDelete
}

func (p *ProjectFramework) EntityType() string  { return EntityTypeProjectFramework }
func (p *ProjectFramework) EntityID() string    { return p.ID }
func (p *ProjectFramework) DisplayName() string { return p.FrameworkID }
func (p *ProjectFramework) ProjectRef() string  { return p.ProjectID }

func (p *ProjectFramework) Touch(now time.Time, created bool) {
	if created && p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
}

func (p *ProjectFramework) Counts() ControlCounts {
	return ControlCounts{
		Compliant:    p.CompliantCount,
		Partial:      p.PartialCount,
		NonCompliant: p.NonCompliantCount,
		NotAssessed:  p.NotAssessedCount,
	}
}

func (p *ProjectFramework) ApplyCounts(counts ControlCounts, percentage float64, actorID *string, at time.Time) {
	p.CompliantCount = counts.Compliant
	p.PartialCount = counts.Partial
	p.NonCompliantCount = counts.NonCompliant
	p.NotAssessedCount = counts.NotAssessed
	p.CompliancePercentage = percentage
	p.LastAnalyzedBy = actorID
	analyzedAt := at.UTC()
	p.LastAnalyzedAt = &analyzedAt
}

type Finding struct {
	ID                   string           `json:"id"`
	TenantID             string           `json:"tenant_id"`
	ProjectID            string           `json:"project_id"`
	FrameworkID          string           `json:"framework_id"`
	ControlID            string           `json:"control_id"`
	Code                 string           `json:"code"`
	Title                string           `json:"title"`
	Description          string           `json:"description,omitempty"`
	Status               ComplianceStatus `json:"status"`
	RiskLevel            RiskLevel        `json:"risk_level"`
	WorkflowStatus       WorkflowStatus   `json:"workflow_status"`
	ConfidenceScore      float64          `json:"confidence_score"`
	RemediationGuidance  string           `json:"remediation_guidance,omitempty"`
	EstimatedEffortHours float64          `json:"estimated_effort_hours,omitempty"`
	AnalysisVersion      string           `json:"analysis_version,omitempty"`
	AnalysisModel        string           `json:"analysis_model,omitempty"`
	LastAnalyzedAt       *time.Time       `json:"last_analyzed_at,omitempty"`
	RawResult            json.RawMessage  `json:"raw_result,omitempty"`
	AssignedTo           *string          `json:"assigned_to,omitempty"`
	DueDate              *time.Time       `json:"due_date,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
	SoftDelete
}

func (f *Finding) EntityType() string  { return EntityTypeFinding }
func (f *Finding) EntityID() string    { return f.ID }
func (f *Finding) DisplayName() string { return f.Title }
func (f *Finding) ProjectRef() string  { return f.ProjectID }

func (f *Finding) Touch(now time.Time, created bool) {
	if created && f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	f.UpdatedAt = now
}

type Evidence struct {
	ID               string       `json:"id"`
	TenantID         string       `json:"tenant_id"`
	FindingID        string       `json:"finding_id"`
	DocumentID       string       `json:"document_id"`
	ProjectID        string       `json:"project_id"`
	Excerpt          string       `json:"excerpt"`
	PageReference    string       `json:"page_reference,omitempty"`
	SectionReference string       `json:"section_reference,omitempty"`
	RelevanceScore   float64      `json:"relevance_score"`
	EvidenceType     EvidenceType `json:"evidence_type"`
	IsManual         bool         `json:"is_manual"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
	SoftDelete
}

func (e *Evidence) EntityType() string { return EntityTypeEvidence }
func (e *Evidence) EntityID() string   { return e.ID }
func (e *Evidence) ProjectRef() string { return e.ProjectID }

func (e *Evidence) DisplayName() string {
	const maxName = 60
	excerpt := []rune(strings.TrimSpace(e.Excerpt))
	if len(excerpt) > maxName {
		return string(excerpt[:maxName]) + "..."
	}
	return string(excerpt)
}

func (e *Evidence) Touch(now time.Time, created bool) {
	if created && e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
}

type FindingFilter struct {
	FrameworkID    string
	WorkflowStatus WorkflowStatus
	RiskLevel      RiskLevel
}

// FrameworkCatalog is one framework with its controls as imported from a catalog file.
type FrameworkCatalog struct {
	Framework Framework
	Controls  []Control
}

// FindingsReport is the export model for a project's findings.
type FindingsReport struct {
	ProjectID   string
	ProjectName string
	GeneratedAt time.Time
	Frameworks  []FrameworkScore
	Findings    []Finding
}

// WorkflowUpdate carries the optional fields of a finding workflow change.
type WorkflowUpdate struct {
	WorkflowStatus *WorkflowStatus
	AssignedTo     *string
	ClearAssignee  bool
	DueDate        *time.Time
	ClearDueDate   bool
}
