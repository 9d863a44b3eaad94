package ollama

import (
	"fmt"
	"strings"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
	"github.com/kirillkom/compliance-auditor/internal/infrastructure/chunking"
)

func buildAnalysisPrompt(req domain.AnalysisRequest, maxDocChars int) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are a compliance auditor assessing documents against %s (%s).
For every control listed below decide one status: Compliant, PartiallyCompliant, NonCompliant, NotAssessed or NotApplicable.
Return a strict JSON object:
{"summary": string, "results": [{"control_id": string, "status": string, "risk_level": "Low|Medium|High|Critical",
"title": string, "description": string, "confidence": number 0..1, "remediation": string,
"estimated_effort_hours": number`, req.FrameworkName, req.FrameworkCode)
	if req.Options.IncludeEvidence {
		b.WriteString(`, "evidence": [{"document_id": string, "excerpt": string, "page": string, "section": string,
"relevance": number 0..1, "type": "Supporting|Contradicting|Contextual"}]`)
	}
	b.WriteString("}]}\nUse the control ids exactly as given. No markdown, no extra keys.\n")
	if lang := strings.TrimSpace(req.Options.Language); lang != "" {
		fmt.Fprintf(&b, "Write titles, descriptions and remediation in language %q.\n", lang)
	}

	b.WriteString("\nControls:\n")
	for _, control := range req.Controls {
		fmt.Fprintf(&b, "- id=%s code=%s mandatory=%t default_risk=%s\n  %s", control.ID, control.Code,
			control.IsMandatory, control.RiskLevel, control.Title)
		if control.Description != "" {
			b.WriteString(": " + control.Description)
		}
		b.WriteString("\n")
		if control.Guidance != "" {
			b.WriteString("  guidance: " + control.Guidance + "\n")
		}
	}

	b.WriteString("\nDocuments:\n")
	for _, doc := range req.Documents {
		text, cut := chunking.Bound(doc.Text, maxDocChars)
		fmt.Fprintf(&b, "=== document_id=%s file=%s pages=%d", doc.DocumentID, doc.FileName, doc.PageCount)
		if cut {
			b.WriteString(" (truncated)")
		}
		b.WriteString(" ===\n" + text + "\n\n")
	}
	return b.String()
}
