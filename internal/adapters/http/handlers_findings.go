package httpadapter

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
)

func (rt *Router) listFindings(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	query := r.URL.Query()
	filter := domain.FindingFilter{
		FrameworkID: strings.TrimSpace(query.Get("framework_id")),
	}
	if raw := strings.TrimSpace(query.Get("workflow_status")); raw != "" {
		status, ok := domain.ParseWorkflowStatus(raw)
		if !ok {
			writeErrorMessages(w, http.StatusBadRequest, "unknown workflow_status "+strconv.Quote(raw))
			return
		}
		filter.WorkflowStatus = status
	}
	if raw := strings.TrimSpace(query.Get("risk_level")); raw != "" {
		risk, ok := domain.ParseRiskLevel(raw)
		if !ok {
			writeErrorMessages(w, http.StatusBadRequest, "unknown risk_level "+strconv.Quote(raw))
			return
		}
		filter.RiskLevel = risk
	}
	includeDeleted, _ := strconv.ParseBool(query.Get("include_deleted"))

	findings, err := rt.services.Findings.List(r.Context(), scope, r.PathValue("projectID"), filter, includeDeleted)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if findings == nil {
		findings = []domain.Finding{}
	}
	writeData(w, http.StatusOK, findings)
}

func (rt *Router) updateFindingWorkflow(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req workflowRequest
	if messages := decodeAndValidate(r, &req); len(messages) > 0 {
		writeErrorMessages(w, http.StatusBadRequest, messages...)
		return
	}
	update, err := req.update()
	if err != nil {
		writeErrorMessages(w, http.StatusBadRequest, err.Error())
		return
	}

	finding, err := rt.services.Findings.UpdateWorkflow(r.Context(), scope, r.PathValue("findingID"), update)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, finding)
}

func (rt *Router) deleteFinding(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := rt.services.Findings.Delete(r.Context(), scope, r.PathValue("findingID")); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nil)
}

func (rt *Router) restoreFinding(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	finding, err := rt.services.Findings.Restore(r.Context(), scope, r.PathValue("findingID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, finding)
}
