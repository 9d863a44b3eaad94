package httpadapter

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

func (rt *Router) runCheck(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req runCheckRequest
	if messages := decodeAndValidate(r, &req); len(messages) > 0 {
		writeErrorMessages(w, http.StatusBadRequest, messages...)
		return
	}

	result, err := rt.services.Checks.RunCheck(r.Context(), scope, r.PathValue("projectID"), req.FrameworkID, req.options())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (rt *Router) getDashboard(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	dashboard, err := rt.services.Dashboard.GetDashboard(r.Context(), scope, r.PathValue("projectID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, dashboard)
}

// exportFindings renders into memory first so a failure can still answer JSON.
func (rt *Router) exportFindings(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	projectID := r.PathValue("projectID")
	var buf bytes.Buffer
	if err := rt.services.Reports.ExportFindings(r.Context(), scope, projectID, &buf); err != nil {
		writeError(w, r, err)
		return
	}

	filename := fmt.Sprintf("findings_%s_%s.xlsx", projectID, time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", rt.services.Reports.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
