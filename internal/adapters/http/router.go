package httpadapter

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kirillkom/compliance-auditor/internal/config"
	"github.com/kirillkom/compliance-auditor/internal/core/ports"
	"github.com/kirillkom/compliance-auditor/internal/observability/metrics"
)

// Services groups the inbound use cases served over HTTP.
type Services struct {
	Documents ports.DocumentService
	Checks    ports.AuditCheckRunner
	Dashboard ports.DashboardReader
	Findings  ports.FindingService
	Activity  ports.ActivityReader
	Catalog   ports.CatalogImporter
	Reports   ports.ReportExporter
}

type Router struct {
	cfg      config.Config
	services Services
	metrics  *metrics.HTTPServerMetrics
	apiDoc   []byte
}

func NewRouter(cfg config.Config, services Services, httpMetrics *metrics.HTTPServerMetrics) (*Router, error) {
	apiDoc, err := loadOpenAPIDocument()
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	return &Router{
		cfg:      cfg,
		services: services,
		metrics:  httpMetrics,
		apiDoc:   apiDoc,
	}, nil
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.json", rt.openAPI)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	rt.handle(mux, "POST /v1/projects/{projectID}/documents", rt.uploadDocument)
	rt.handle(mux, "DELETE /v1/documents/{documentID}", rt.deleteDocument)
	rt.handle(mux, "POST /v1/documents/{documentID}/restore", rt.restoreDocument)

	rt.handle(mux, "POST /v1/projects/{projectID}/checks", rt.runCheck)
	rt.handle(mux, "GET /v1/projects/{projectID}/dashboard", rt.getDashboard)
	rt.handle(mux, "GET /v1/projects/{projectID}/findings", rt.listFindings)
	rt.handle(mux, "GET /v1/projects/{projectID}/reports/findings.xlsx", rt.exportFindings)

	rt.handle(mux, "PATCH /v1/findings/{findingID}/workflow", rt.updateFindingWorkflow)
	rt.handle(mux, "DELETE /v1/findings/{findingID}", rt.deleteFinding)
	rt.handle(mux, "POST /v1/findings/{findingID}/restore", rt.restoreFinding)

	rt.handle(mux, "GET /v1/activity", rt.queryActivity)
	rt.handle(mux, "POST /v1/frameworks/import", rt.importFrameworks)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.BackpressureWait())
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) handle(mux *http.ServeMux, pattern string, fn http.HandlerFunc) {
	mux.Handle(pattern, apiKeyMiddleware(fn, rt.cfg.APIKey))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rt.apiDoc)
}

type successResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, successResponse{Success: true, Data: data})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
