package domain

import (
	"encoding/json"
	"time"
)

type AnalysisOptions struct {
	Model           string `json:"model,omitempty"`
	Language        string `json:"language,omitempty"`
	IncludeEvidence bool   `json:"include_evidence"`
}

type AnalysisControl struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Guidance    string    `json:"guidance,omitempty"`
	IsMandatory bool      `json:"is_mandatory"`
	RiskLevel   RiskLevel `json:"default_risk_level"`
}

// AnalysisRequest is the single payload sent to the analysis capability per run.
type AnalysisRequest struct {
	ProjectID     string            `json:"project_id"`
	FrameworkID   string            `json:"framework_id"`
	FrameworkCode string            `json:"framework_code"`
	FrameworkName string            `json:"framework_name"`
	Controls      []AnalysisControl `json:"controls"`
	Documents     []DocumentContent `json:"documents"`
	Options       AnalysisOptions   `json:"options"`
}

type EvidenceReference struct {
	DocumentID       string  `json:"document_id"`
	Excerpt          string  `json:"excerpt"`
	PageReference    string  `json:"page_reference,omitempty"`
	SectionReference string  `json:"section_reference,omitempty"`
	RelevanceScore   float64 `json:"relevance_score"`
	EvidenceType     string  `json:"evidence_type,omitempty"`
}

// ControlResult is the verdict for one control. Raw keeps the payload exactly
// as the capability returned it.
type ControlResult struct {
	ControlID            string              `json:"control_id"`
	Status               ComplianceStatus    `json:"status"`
	RiskLevel            RiskLevel           `json:"risk_level"`
	Title                string              `json:"title,omitempty"`
	Description          string              `json:"description,omitempty"`
	ConfidenceScore      float64             `json:"confidence_score"`
	RemediationGuidance  string              `json:"remediation_guidance,omitempty"`
	EstimatedEffortHours float64             `json:"estimated_effort_hours,omitempty"`
	Evidence             []EvidenceReference `json:"evidence,omitempty"`
	Raw                  json.RawMessage     `json:"-"`
}

type AnalysisSummary struct {
	ComplianceScore float64 `json:"compliance_score"`
	Compliant       int     `json:"compliant"`
	Partial         int     `json:"partially_compliant"`
	NonCompliant    int     `json:"non_compliant"`
	NotAssessed     int     `json:"not_assessed"`
	NotApplicable   int     `json:"not_applicable"`
	Narrative       string  `json:"narrative,omitempty"`
}

type AnalysisResponse struct {
	Results             []ControlResult `json:"results"`
	Summary             AnalysisSummary `json:"summary"`
	Model               string          `json:"model,omitempty"`
	AnalysisVersion     string          `json:"analysis_version,omitempty"`
	AnalysisCompletedAt time.Time       `json:"analysis_completed_at"`
	Duration            time.Duration   `json:"-"`
}
