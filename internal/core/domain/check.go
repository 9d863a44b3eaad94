package domain

import (
	"fmt"
	"time"
)

type CheckState string

const (
	CheckNotStarted CheckState = "NotStarted"
	CheckRunning    CheckState = "Running"
	CheckCompleted  CheckState = "Completed"
	CheckFailed     CheckState = "Failed"
)

// CheckRun records one audit-check execution. Completed runs feed the score trend.
type CheckRun struct {
	ID              string     `json:"id"`
	TenantID        string     `json:"tenant_id"`
	ProjectID       string     `json:"project_id"`
	FrameworkID     string     `json:"framework_id"`
	State           CheckState `json:"state"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	DurationMs      int64      `json:"duration_ms"`
	CompliantCount  int        `json:"compliant_count"`
	PartialCount    int        `json:"partially_compliant_count"`
	NonCompliant    int        `json:"non_compliant_count"`
	NotAssessed     int        `json:"not_assessed_count"`
	Score           float64    `json:"score"`
	FindingsCreated int        `json:"findings_created"`
	AnalysisModel   string     `json:"analysis_model,omitempty"`
	Error           string     `json:"error,omitempty"`
	TriggeredBy     *string    `json:"triggered_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	SoftDelete
}

func (c *CheckRun) EntityType() string  { return EntityTypeCheckRun }
func (c *CheckRun) EntityID() string    { return c.ID }
func (c *CheckRun) DisplayName() string { return c.FrameworkID }
func (c *CheckRun) ProjectRef() string  { return c.ProjectID }

func (c *CheckRun) Touch(now time.Time, created bool) {
	if created && c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
}

func (c *CheckRun) Counts() ControlCounts {
	return ControlCounts{
		Compliant:    c.CompliantCount,
		Partial:      c.PartialCount,
		NonCompliant: c.NonCompliant,
		NotAssessed:  c.NotAssessed,
	}
}

func (c *CheckRun) Start(at time.Time) error {
	if c.State != "" && c.State != CheckNotStarted {
		return fmt.Errorf("check run %s: cannot start from state %s", c.ID, c.State)
	}
	startedAt := at.UTC()
	c.State = CheckRunning
	c.StartedAt = &startedAt
	return nil
}

func (c *CheckRun) Complete(at time.Time, counts ControlCounts, score float64, findingsCreated int) error {
	if c.State != CheckRunning {
		return fmt.Errorf("check run %s: cannot complete from state %s", c.ID, c.State)
	}
	c.finish(at)
	c.State = CheckCompleted
	c.CompliantCount = counts.Compliant
	c.PartialCount = counts.Partial
	c.NonCompliant = counts.NonCompliant
	c.NotAssessed = counts.NotAssessed
	c.Score = score
	c.FindingsCreated = findingsCreated
	return nil
}

func (c *CheckRun) Fail(at time.Time, reason string) error {
	if c.State != CheckRunning {
		return fmt.Errorf("check run %s: cannot fail from state %s", c.ID, c.State)
	}
	c.finish(at)
	c.State = CheckFailed
	c.Error = reason
	return nil
}

func (c *CheckRun) finish(at time.Time) {
	completedAt := at.UTC()
	c.CompletedAt = &completedAt
	if c.StartedAt != nil {
		c.DurationMs = completedAt.Sub(*c.StartedAt).Milliseconds()
	}
}

// CheckResult is returned to the caller of a completed audit check.
type CheckResult struct {
	RunID           string           `json:"run_id"`
	ProjectID       string           `json:"project_id"`
	FrameworkID     string           `json:"framework_id"`
	State           CheckState       `json:"state"`
	Counts          ControlCounts    `json:"counts"`
	Score           float64          `json:"score"`
	Status          ComplianceStatus `json:"status"`
	FindingsCreated int              `json:"findings_created"`
	EvidenceCreated int              `json:"evidence_created"`
	DurationMs      int64            `json:"duration_ms"`
	Summary         AnalysisSummary  `json:"summary"`
}
