package domain

import "time"

type FrameworkScore struct {
	FrameworkID    string           `json:"framework_id"`
	FrameworkCode  string           `json:"framework_code"`
	FrameworkName  string           `json:"framework_name"`
	Counts         ControlCounts    `json:"counts"`
	Score          float64          `json:"score"`
	Status         ComplianceStatus `json:"status"`
	LastAnalyzedAt *time.Time       `json:"last_analyzed_at,omitempty"`
}

type TrendPoint struct {
	CompletedAt time.Time `json:"completed_at"`
	Score       float64   `json:"score"`
}

type Dashboard struct {
	ProjectID     string           `json:"project_id"`
	OverallScore  float64          `json:"overall_score"`
	OverallStatus ComplianceStatus `json:"overall_status"`
	Counts        ControlCounts    `json:"counts"`
	Frameworks    []FrameworkScore `json:"frameworks"`
	Trend         []TrendPoint     `json:"trend"`
	TopFindings   []Finding        `json:"top_findings"`
	DocumentCount int              `json:"document_count"`
	FindingCount  int              `json:"finding_count"`
}
