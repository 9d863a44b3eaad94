package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
	"github.com/kirillkom/compliance-auditor/internal/infrastructure/resilience"
)

func analysisRequest() domain.AnalysisRequest {
	return domain.AnalysisRequest{
		ProjectID:     "p-1",
		FrameworkID:   "fw-1",
		FrameworkCode: "ISO27001",
		FrameworkName: "ISO/IEC 27001",
		Controls: []domain.AnalysisControl{
			{ID: "c-1", Code: "A.5.1", Title: "Information security policies", IsMandatory: true, RiskLevel: domain.RiskMedium},
			{ID: "c-2", Code: "A.8.2", Title: "Privileged access rights", IsMandatory: true, RiskLevel: domain.RiskHigh},
		},
		Documents: []domain.DocumentContent{
			{DocumentID: "d-1", FileName: "policy.pdf", Text: "The security policy is reviewed yearly.", PageCount: 2},
		},
		Options: domain.AnalysisOptions{Language: "en", IncludeEvidence: true},
	}
}

func generateServer(t *testing.T, capture *map[string]any, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if capture != nil {
			if err := json.NewDecoder(r.Body).Decode(capture); err != nil {
				t.Fatalf("decode request: %v", err)
			}
		}
		body, _ := json.Marshal(map[string]string{"response": reply})
		_, _ = w.Write(body)
	}))
}

func TestAnalyzeParsesResultsTolerantly(t *testing.T) {
	var payload map[string]any
	reply := "Here you go:\n" + `{
  "summary": "Policies exist, access reviews missing.",
  "results": [
    {"control_id": "c-1", "status": "compliant", "confidence": "0.9"},
    {"control_id": "A.8.2", "status": "Non-Compliant", "risk_level": "HIGH", "title": "No access review",
     "confidence": 0.7, "remediation": "Run quarterly reviews", "estimated_effort_hours": 16,
     "evidence": [{"document_id": "policy.pdf", "excerpt": "reviewed yearly", "page": 2, "relevance": 0.6, "type": "contradicting"}]},
    {"control_id": "c-9"}
  ]
}`
	server := generateServer(t, &payload, reply)
	defer server.Close()

	analyzer := NewAnalyzer(New(server.URL, "llama3.1:8b", time.Second), 2000)
	response, err := analyzer.Analyze(context.Background(), analysisRequest())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if payload["model"] != "llama3.1:8b" || payload["format"] != "json" {
		t.Fatalf("unexpected request payload %+v", payload)
	}
	prompt, _ := payload["prompt"].(string)
	if !strings.Contains(prompt, "id=c-2 code=A.8.2") || !strings.Contains(prompt, "reviewed yearly") {
		t.Fatalf("prompt is missing controls or documents: %s", prompt)
	}

	if len(response.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(response.Results))
	}
	gap := response.Results[1]
	if gap.ControlID != "c-2" || gap.Status != domain.StatusNonCompliant || gap.RiskLevel != domain.RiskHigh {
		t.Fatalf("unexpected gap result %+v", gap)
	}
	if len(gap.Evidence) != 1 || gap.Evidence[0].DocumentID != "d-1" || gap.Evidence[0].PageReference != "2" {
		t.Fatalf("unexpected evidence %+v", gap.Evidence)
	}
	if !strings.Contains(string(gap.Raw), "quarterly") {
		t.Fatalf("expected raw payload to be kept, got %s", gap.Raw)
	}
	if response.Results[2].Status != domain.StatusNotAssessed {
		t.Fatalf("missing status must map to NotAssessed, got %s", response.Results[2].Status)
	}
	if response.Results[0].ConfidenceScore != 0.9 {
		t.Fatalf("expected string confidence to parse, got %v", response.Results[0].ConfidenceScore)
	}
	if response.Summary.Compliant != 1 || response.Summary.NonCompliant != 1 || response.Summary.NotAssessed != 1 {
		t.Fatalf("unexpected summary %+v", response.Summary)
	}
	if response.Model != "llama3.1:8b" || response.Summary.Narrative == "" {
		t.Fatalf("expected model and narrative, got %+v", response)
	}
}

func TestAnalyzeUsesRequestedModel(t *testing.T) {
	var payload map[string]any
	server := generateServer(t, &payload, `{"results":[]}`)
	defer server.Close()

	req := analysisRequest()
	req.Options.Model = "qwen2.5:14b"
	response, err := NewAnalyzer(New(server.URL, "llama3.1:8b", time.Second), 0).Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if payload["model"] != "qwen2.5:14b" || response.Model != "qwen2.5:14b" {
		t.Fatalf("expected requested model, got %v / %s", payload["model"], response.Model)
	}
}

func TestAnalyzeRejectsMalformedOutput(t *testing.T) {
	server := generateServer(t, nil, "I cannot help with that")
	defer server.Close()

	_, err := NewAnalyzer(New(server.URL, "m", time.Second), 0).Analyze(context.Background(), analysisRequest())
	if !domain.IsKind(err, domain.ErrAnalysisFailed) {
		t.Fatalf("expected analysis failure, got %v", err)
	}
}

func TestAnalyzeFailsWholeResponseOnBadResult(t *testing.T) {
	cases := map[string]string{
		"undecodable result": `{"results":[{"control_id":"c-1","status":"NonCompliant"},{"control_id":"c-2","status":"NonCompliant","confidence":"high"}]}`,
		"unknown status":     `{"results":[{"control_id":"c-1","status":"NonCompliant"},{"control_id":"c-2","status":"mostly fine"}]}`,
		"non-object result":  `{"results":[{"control_id":"c-1","status":"Compliant"},42]}`,
	}
	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			server := generateServer(t, nil, reply)
			defer server.Close()

			response, err := NewAnalyzer(New(server.URL, "m", time.Second), 0).Analyze(context.Background(), analysisRequest())
			if !domain.IsKind(err, domain.ErrAnalysisFailed) {
				t.Fatalf("expected analysis failure, got %v", err)
			}
			if response != nil {
				t.Fatalf("expected no partial response, got %+v", response)
			}
		})
	}
}

func TestAnalyzeRetriesUnavailableModel(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "model loading", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"response":"{\"results\":[{\"control_id\":\"c-1\",\"status\":\"Compliant\"}]}"}`))
	}))
	defer server.Close()

	client := New(server.URL, "m", time.Second).WithResilience(resilience.NewExecutor(resilience.Config{
		Retry: resilience.RetryPolicy{
			MaxAttempts:    2,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     time.Millisecond,
			Multiplier:     1,
		},
	}))
	response, err := NewAnalyzer(client, 0).Analyze(context.Background(), analysisRequest())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if calls != 2 || len(response.Results) != 1 {
		t.Fatalf("expected one retry, got %d calls and %d results", calls, len(response.Results))
	}
}

func TestAnalyzeSurfacesHTTPBodyAsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewAnalyzer(New(server.URL, "m", time.Second), 0).Analyze(context.Background(), analysisRequest())
	if err == nil || !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error kind, got %v", err)
	}
}

func TestAnalyzeUnknownModelIsInvalidInput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'gpt-x' not found"}`))
	}))
	defer server.Close()

	_, err := NewAnalyzer(New(server.URL, "m", time.Second), 0).Analyze(context.Background(), analysisRequest())
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input kind, got %v", err)
	}
	if !strings.Contains(err.Error(), "model 'gpt-x' not found") {
		t.Fatalf("expected ollama error message, got %v", err)
	}
}

func TestPromptMarksTruncatedDocuments(t *testing.T) {
	req := analysisRequest()
	req.Documents[0].Text = strings.Repeat("policy text ", 500)
	prompt := buildAnalysisPrompt(req, 200)
	if !strings.Contains(prompt, "(truncated)") {
		t.Fatalf("expected truncation marker")
	}
	req.Options.IncludeEvidence = false
	if strings.Contains(buildAnalysisPrompt(req, 0), `"evidence"`) {
		t.Fatalf("evidence schema must be omitted when evidence is not requested")
	}
}
