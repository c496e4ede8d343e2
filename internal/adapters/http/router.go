package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/config"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/ports"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/infrastructure/export"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/observability/metrics"
)

const serviceName = "api"

// Services are the inbound ports served by the router. Nil services answer 503.
type Services struct {
	NFe       ports.NFeService
	NFSe      ports.NFSeService
	Batch     ports.BatchService
	Submitter ports.JobSubmitter
	Jobs      ports.JobReader
	Rules     ports.RuleAdmin
}

type Router struct {
	cfg      config.Config
	services Services
	metrics  *metrics.HTTPServerMetrics
	writers  map[string]ports.TableWriter
	logger   *slog.Logger
}

func NewRouter(cfg config.Config, services Services, httpMetrics *metrics.HTTPServerMetrics) *Router {
	return &Router{
		cfg:      cfg,
		services: services,
		metrics:  httpMetrics,
		writers: map[string]ports.TableWriter{
			"csv":  export.CSVWriter{},
			"xlsx": export.XLSXWriter{},
		},
		logger: slog.Default(),
	}
}

type route struct {
	method  string
	path    string
	handler http.HandlerFunc
}

// routes is the single route table; the OpenAPI document must list every entry.
func (rt *Router) routes() []route {
	return []route{
		{http.MethodGet, "/healthz", rt.healthz},
		{http.MethodGet, "/openapi.yaml", rt.openapi},

		{http.MethodPost, "/v1/nfe-xml-extract", rt.nfeExtract},
		{http.MethodPost, "/v1/nfe-xml-extract/summary", rt.nfeSummary},
		{http.MethodPost, "/v1/nfe-xml-extract/export-csv", rt.nfeExport},
		{http.MethodPost, "/v1/nfe-xml-batch/summary", rt.nfeBatchSummary},
		{http.MethodPost, "/v1/nfe-xml-batch/export-csv", rt.nfeBatchExport},

		{http.MethodPost, "/v1/nfse-xml-extract", rt.nfseExtract},
		{http.MethodPost, "/v1/nfse-xml-extract/export-csv", rt.nfseExport},
		{http.MethodPost, "/v1/nfse-xml-batch/summary", rt.nfseBatchSummary},
		{http.MethodPost, "/v1/nfse-service-extract-raw", rt.nfsePDFExtract},

		{http.MethodPost, "/v1/batch-jobs", rt.submitBatchJob},
		{http.MethodGet, "/v1/batch-jobs/{id}", rt.getBatchJob},
		{http.MethodGet, "/v1/batch-jobs/{id}/result", rt.getBatchJobResult},

		{http.MethodGet, "/v1/admin/cnae-rules", rt.listCNAERules},
		{http.MethodPost, "/v1/admin/cnae-rules/reload", rt.reloadCNAERules},
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	for _, r := range rt.routes() {
		mux.HandleFunc(r.method+" "+r.path, r.handler)
	}
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = apiKeyMiddleware(handler, rt.cfg.APIKey)
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait, rt.reject)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.reject)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) reject(reason string) {
	if rt.metrics != nil {
		rt.metrics.RecordRejected(serviceName, reason)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func unavailable(w http.ResponseWriter) {
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "service not configured"})
}
