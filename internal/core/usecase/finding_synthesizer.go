package usecase

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
)

const (
	findingCodeMaxLength = 32
	findingCodeHexDigits = 8
)

// SynthesisInput is everything needed to turn one analysis response into
// findings for a project.
type SynthesisInput struct {
	TenantID        string
	ProjectID       string
	Framework       domain.Framework
	Controls        map[string]domain.Control
	Results         []domain.ControlResult
	ProjectDocs     map[string]struct{}
	AnalysisModel   string
	AnalysisVersion string
	AnalyzedAt      time.Time
}

type SynthesisOutput struct {
	Findings        []*domain.Finding
	Evidence        []*domain.Evidence
	SkippedEvidence int
}

// FindingSynthesizer converts control results into findings and evidence.
// Existing findings are left untouched; nothing is ever retired here.
type FindingSynthesizer struct{}

func NewFindingSynthesizer() *FindingSynthesizer {
	return &FindingSynthesizer{}
}

func (s *FindingSynthesizer) Synthesize(input SynthesisInput) SynthesisOutput {
	var out SynthesisOutput
	analyzedAt := input.AnalyzedAt.UTC()

	for _, result := range input.Results {
		if !result.Status.ProducesFinding() {
			continue
		}
		control, ok := input.Controls[result.ControlID]
		if !ok {
			continue
		}

		finding := s.newFinding(input, control, result, analyzedAt)
		out.Findings = append(out.Findings, finding)

		for _, ref := range result.Evidence {
			if _, inProject := input.ProjectDocs[ref.DocumentID]; !inProject {
				slog.Warn("evidence_document_outside_project",
					"project_id", input.ProjectID,
					"control_id", result.ControlID,
					"document_id", ref.DocumentID,
				)
				out.SkippedEvidence++
				continue
			}
			out.Evidence = append(out.Evidence, newEvidence(input, finding, ref))
		}
	}
	return out
}

func (s *FindingSynthesizer) newFinding(
	input SynthesisInput,
	control domain.Control,
	result domain.ControlResult,
	analyzedAt time.Time,
) *domain.Finding {
	title := strings.TrimSpace(result.Title)
	if title == "" {
		title = control.Title
	}
	description := strings.TrimSpace(result.Description)
	if description == "" {
		description = control.Description
	}
	risk := result.RiskLevel
	if risk.Rank() == 0 {
		risk = control.DefaultRiskLevel
	}
	if risk.Rank() == 0 {
		risk = domain.RiskMedium
	}

	raw := result.Raw
	if len(raw) == 0 {
		if encoded, err := json.Marshal(result); err == nil {
			raw = encoded
		}
	}

	return &domain.Finding{
		ID:                   uuid.NewString(),
		TenantID:             input.TenantID,
		ProjectID:            input.ProjectID,
		FrameworkID:          input.Framework.ID,
		ControlID:            control.ID,
		Code:                 FindingCode(input.Framework.Code, control.ID),
		Title:                title,
		Description:          description,
		Status:               result.Status,
		RiskLevel:            risk,
		WorkflowStatus:       domain.WorkflowOpen,
		ConfidenceScore:      clampUnit(result.ConfidenceScore),
		RemediationGuidance:  result.RemediationGuidance,
		EstimatedEffortHours: result.EstimatedEffortHours,
		AnalysisVersion:      input.AnalysisVersion,
		AnalysisModel:        input.AnalysisModel,
		LastAnalyzedAt:       &analyzedAt,
		RawResult:            append(json.RawMessage(nil), raw...),
	}
}

func newEvidence(input SynthesisInput, finding *domain.Finding, ref domain.EvidenceReference) *domain.Evidence {
	return &domain.Evidence{
		ID:               uuid.NewString(),
		TenantID:         input.TenantID,
		FindingID:        finding.ID,
		DocumentID:       ref.DocumentID,
		ProjectID:        input.ProjectID,
		Excerpt:          strings.TrimSpace(ref.Excerpt),
		PageReference:    ref.PageReference,
		SectionReference: ref.SectionReference,
		RelevanceScore:   clampUnit(ref.RelevanceScore),
		EvidenceType:     domain.ParseEvidenceType(ref.EvidenceType),
	}
}

// FindingCode derives a deterministic, bounded code from the framework code and
// the leading hex digits of the control id.
func FindingCode(frameworkCode, controlID string) string {
	var hex strings.Builder
	for _, r := range strings.ToLower(controlID) {
		if hex.Len() == findingCodeHexDigits {
			break
		}
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') {
			hex.WriteRune(r)
		}
	}
	prefix := strings.ToUpper(strings.Join(strings.Fields(frameworkCode), ""))
	code := prefix + "-" + strings.ToUpper(hex.String())
	if len(code) > findingCodeMaxLength {
		code = code[:findingCodeMaxLength]
	}
	return code
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
