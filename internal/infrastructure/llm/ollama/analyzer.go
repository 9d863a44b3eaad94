package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
	"github.com/kirillkom/compliance-auditor/internal/core/scoring"
)

// Analyzer implements the compliance analysis capability on top of a local model.
type Analyzer struct {
	client      *Client
	maxDocChars int
	now         func() time.Time
}

func NewAnalyzer(client *Client, maxDocChars int) *Analyzer {
	return &Analyzer{
		client:      client,
		maxDocChars: maxDocChars,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (a *Analyzer) Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResponse, error) {
	started := a.now()
	model := strings.TrimSpace(req.Options.Model)
	if model == "" {
		model = a.client.Model()
	}

	raw, err := a.client.generateJSON(ctx, model, buildAnalysisPrompt(req, a.maxDocChars))
	if err != nil {
		return nil, err
	}

	response, err := parseAnalysis(raw, req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrAnalysisFailed, "parse analysis", err)
	}
	response.Model = model
	response.AnalysisCompletedAt = a.now()
	response.Duration = response.AnalysisCompletedAt.Sub(started)
	return response, nil
}

type wireAnalysis struct {
	Summary string            `json:"summary"`
	Results []json.RawMessage `json:"results"`
}

type wireResult struct {
	ControlID   string         `json:"control_id"`
	Status      string         `json:"status"`
	RiskLevel   string         `json:"risk_level"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Confidence  flexibleNumber `json:"confidence"`
	Remediation string         `json:"remediation"`
	EffortHours flexibleNumber `json:"estimated_effort_hours"`
	Evidence    []wireEvidence `json:"evidence"`
}

type wireEvidence struct {
	DocumentID string         `json:"document_id"`
	Excerpt    string         `json:"excerpt"`
	Page       flexibleString `json:"page"`
	Section    string         `json:"section"`
	Relevance  flexibleNumber `json:"relevance"`
	Type       string         `json:"type"`
}

// flexibleNumber accepts 0.8, "0.8" and null.
type flexibleNumber float64

func (n *flexibleNumber) UnmarshalJSON(data []byte) error {
	text := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if text == "" || text == "null" {
		*n = 0
		return nil
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return fmt.Errorf("parse number %q: %w", text, err)
	}
	*n = flexibleNumber(value)
	return nil
}

// flexibleString accepts "4" and 4.
type flexibleString string

func (s *flexibleString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*s = flexibleString(text)
		return nil
	}
	*s = flexibleString(data)
	return nil
}

func parseAnalysis(raw string, req domain.AnalysisRequest) (*domain.AnalysisResponse, error) {
	var wire wireAnalysis
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &wire); err != nil {
		return nil, fmt.Errorf("decode analysis json: %w", err)
	}

	controlIDs := make(map[string]string, len(req.Controls)*2)
	for _, control := range req.Controls {
		controlIDs[strings.ToLower(control.ID)] = control.ID
		controlIDs[strings.ToLower(control.Code)] = control.ID
	}
	documentIDs := make(map[string]string, len(req.Documents)*2)
	for _, doc := range req.Documents {
		documentIDs[strings.ToLower(doc.DocumentID)] = doc.DocumentID
		documentIDs[strings.ToLower(doc.FileName)] = doc.DocumentID
	}

	response := &domain.AnalysisResponse{Results: make([]domain.ControlResult, 0, len(wire.Results))}
	for i, item := range wire.Results {
		var result wireResult
		if err := json.Unmarshal(item, &result); err != nil {
			return nil, fmt.Errorf("decode result %d: %w", i, err)
		}
		controlID, ok := controlIDs[strings.ToLower(strings.TrimSpace(result.ControlID))]
		if !ok {
			controlID = strings.TrimSpace(result.ControlID)
		}
		status := domain.StatusNotAssessed
		if strings.TrimSpace(result.Status) != "" {
			parsed, ok := domain.ParseComplianceStatus(result.Status)
			if !ok {
				return nil, fmt.Errorf("result %d for control %q: unknown status %q", i, result.ControlID, result.Status)
			}
			status = parsed
		}
		risk, _ := domain.ParseRiskLevel(result.RiskLevel)

		converted := domain.ControlResult{
			ControlID:            controlID,
			Status:               status,
			RiskLevel:            risk,
			Title:                strings.TrimSpace(result.Title),
			Description:          strings.TrimSpace(result.Description),
			ConfidenceScore:      float64(result.Confidence),
			RemediationGuidance:  strings.TrimSpace(result.Remediation),
			EstimatedEffortHours: float64(result.EffortHours),
			Raw:                  append(json.RawMessage(nil), item...),
		}
		for _, ev := range result.Evidence {
			docID, ok := documentIDs[strings.ToLower(strings.TrimSpace(ev.DocumentID))]
			if !ok {
				docID = strings.TrimSpace(ev.DocumentID)
			}
			converted.Evidence = append(converted.Evidence, domain.EvidenceReference{
				DocumentID:       docID,
				Excerpt:          strings.TrimSpace(ev.Excerpt),
				PageReference:    strings.TrimSpace(string(ev.Page)),
				SectionReference: strings.TrimSpace(ev.Section),
				RelevanceScore:   float64(ev.Relevance),
				EvidenceType:     ev.Type,
			})
		}
		response.Results = append(response.Results, converted)
	}

	response.Summary = summarize(response.Results)
	response.Summary.Narrative = strings.TrimSpace(wire.Summary)
	return response, nil
}

func summarize(results []domain.ControlResult) domain.AnalysisSummary {
	var summary domain.AnalysisSummary
	var counts domain.ControlCounts
	for _, result := range results {
		switch result.Status {
		case domain.StatusCompliant:
			counts.Compliant++
		case domain.StatusPartiallyCompliant:
			counts.Partial++
		case domain.StatusNonCompliant:
			counts.NonCompliant++
		case domain.StatusNotApplicable:
			summary.NotApplicable++
		default:
			counts.NotAssessed++
		}
	}
	summary.Compliant = counts.Compliant
	summary.Partial = counts.Partial
	summary.NonCompliant = counts.NonCompliant
	summary.NotAssessed = counts.NotAssessed
	summary.ComplianceScore = scoring.Score(counts)
	return summary
}
