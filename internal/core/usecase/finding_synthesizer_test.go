package usecase

import (
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
)

func TestFindingCode(t *testing.T) {
	cases := []struct {
		framework string
		control   string
		want      string
	}{
		{framework: "iso27001", control: "a1b2c3d4-0000-4000-8000-000000000001", want: "ISO27001-A1B2C3D4"},
		{framework: "SOC 2", control: "00ff-11ee-22dd", want: "SOC2-00FF11EE"},
		{framework: "nist", control: "zz-9", want: "NIST-9"},
	}
	for _, tc := range cases {
		if got := FindingCode(tc.framework, tc.control); got != tc.want {
			t.Fatalf("FindingCode(%q, %q) = %q, want %q", tc.framework, tc.control, got, tc.want)
		}
	}

	long := FindingCode(strings.Repeat("X", 40), "a1b2c3d4")
	if len(long) != findingCodeMaxLength {
		t.Fatalf("expected code capped at %d chars, got %d", findingCodeMaxLength, len(long))
	}
}

func TestSynthesizeFallsBackToControlDefaults(t *testing.T) {
	control := domain.Control{ID: "c-1", Title: "Backups", Description: "Backups are tested", DefaultRiskLevel: domain.RiskCritical}
	out := NewFindingSynthesizer().Synthesize(SynthesisInput{
		TenantID:   testTenant,
		ProjectID:  testProject,
		Framework:  domain.Framework{ID: testFramework, Code: "iso"},
		Controls:   map[string]domain.Control{"c-1": control},
		Results:    []domain.ControlResult{{ControlID: "c-1", Status: domain.StatusNotAssessed, ConfidenceScore: 1.7}},
		AnalyzedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	if len(out.Findings) != 1 {
		t.Fatalf("expected a finding for a not-assessed control, got %d", len(out.Findings))
	}
	finding := out.Findings[0]
	if finding.Title != "Backups" || finding.Description != "Backups are tested" || finding.RiskLevel != domain.RiskCritical {
		t.Fatalf("expected control defaults, got %+v", finding)
	}
	if finding.ConfidenceScore != 1 {
		t.Fatalf("expected confidence clamped to 1, got %v", finding.ConfidenceScore)
	}
	if finding.LastAnalyzedAt == nil {
		t.Fatalf("expected last analyzed timestamp")
	}
}
