package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/config"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/ports"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/observability/metrics"
)

type nfeServiceFake struct {
	gotFilename string
	gotPage     int
	gotPageSize int
}

func (f *nfeServiceFake) Extract(_ context.Context, raw []byte, filename string, page, pageSize int) domain.NFeDocumentResult {
	f.gotFilename, f.gotPage, f.gotPageSize = filename, page, pageSize
	return domain.NFeDocumentResult{Received: len(raw) > 0, Filename: filename}
}

func (f *nfeServiceFake) Summarize(_ context.Context, raw []byte, filename string) domain.NFeDocumentResult {
	f.gotFilename = filename
	return domain.NFeDocumentResult{Received: len(raw) > 0, Filename: filename}
}

func (f *nfeServiceFake) Export(_ context.Context, raw []byte, filename string, w ports.TableWriter, out io.Writer) (domain.NFeDocumentResult, error) {
	if len(raw) == 0 {
		return domain.NFeDocumentResult{Filename: filename, Err: domain.NewInputError(domain.CodeEmptyBody, "")}, nil
	}
	if err := w.Write(out, []string{"nItem"}, [][]string{{"1"}}); err != nil {
		return domain.NFeDocumentResult{}, err
	}
	return domain.NFeDocumentResult{Received: true, Filename: filename}, nil
}

type submitterFake struct {
	err  error
	body []byte
}

func (f *submitterFake) Submit(_ context.Context, kind domain.BatchKind, filename string, body io.Reader) (*domain.BatchJob, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.body = raw
	if f.err != nil {
		return nil, f.err
	}
	return &domain.BatchJob{ID: "job-1", Kind: kind, Filename: filename, Status: domain.StatusUploaded}, nil
}

type jobReaderFake struct {
	job    *domain.BatchJob
	result string
	err    error
}

func (f jobReaderFake) GetByID(context.Context, string) (*domain.BatchJob, error) {
	return f.job, f.err
}

func (f jobReaderFake) OpenResult(context.Context, string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.result)), nil
}

type rulesFake struct {
	rules []domain.CNAERule
	err   error
}

func (f rulesFake) Rules() []domain.CNAERule { return f.rules }

func (f rulesFake) Reload(context.Context) (int, error) { return len(f.rules), f.err }

func newTestHandler(cfg config.Config, services Services) http.Handler {
	return NewRouter(cfg, services, nil).Handler()
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newTestHandler(config.Config{}, Services{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestRequestIDPropagation(t *testing.T) {
	handler := newTestHandler(config.Config{}, Services{})
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "caller token", incoming: "req-42", keep: true},
		{name: "whitespace inside", incoming: "req 42", keep: false},
		{name: "too long", incoming: strings.Repeat("a", maxRequestIDLen+1), keep: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			req.Header.Set(requestIDHeader, tc.incoming)
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)

			got := res.Header().Get(requestIDHeader)
			if got == "" {
				t.Fatalf("expected request id header")
			}
			if (got == tc.incoming) != tc.keep {
				t.Fatalf("expected keep=%v for %q, got %q", tc.keep, tc.incoming, got)
			}
		})
	}
}

func TestNFeExtractPassesPagingAndFilename(t *testing.T) {
	nfe := &nfeServiceFake{}
	handler := newTestHandler(config.Config{}, Services{NFe: nfe})

	req := httptest.NewRequest(http.MethodPost, "/v1/nfe-xml-extract?page=2&page_size=10", strings.NewReader("<NFe/>"))
	req.Header.Set(filenameHeader, "nota.xml")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if nfe.gotFilename != "nota.xml" || nfe.gotPage != 2 || nfe.gotPageSize != 10 {
		t.Fatalf("unexpected call: %+v", nfe)
	}
}

func TestNFeExtractDefaults(t *testing.T) {
	nfe := &nfeServiceFake{}
	handler := newTestHandler(config.Config{}, Services{NFe: nfe})

	req := httptest.NewRequest(http.MethodPost, "/v1/nfe-xml-extract", strings.NewReader("<NFe/>"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if nfe.gotFilename != defaultXMLName || nfe.gotPage != 1 || nfe.gotPageSize != 50 {
		t.Fatalf("unexpected defaults: %+v", nfe)
	}
}

func TestNFeExtractRejectsBadPaging(t *testing.T) {
	handler := newTestHandler(config.Config{}, Services{NFe: &nfeServiceFake{}})
	for _, query := range []string{"page=abc", "page=0", "page_size=501"} {
		req := httptest.NewRequest(http.MethodPost, "/v1/nfe-xml-extract?"+query, strings.NewReader("<NFe/>"))
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", query, res.Code)
		}
	}
}

func TestNFeExportWritesAttachment(t *testing.T) {
	handler := newTestHandler(config.Config{}, Services{NFe: &nfeServiceFake{}})

	req := httptest.NewRequest(http.MethodPost, "/v1/nfe-xml-extract/export-csv", strings.NewReader("<NFe/>"))
	req.Header.Set(filenameHeader, "dir/nota.xml")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if got := res.Header().Get("Content-Disposition"); got != `attachment; filename="nota.csv"` {
		t.Fatalf("unexpected disposition: %q", got)
	}
	if res.Body.String() != "nItem\n1\n" {
		t.Fatalf("unexpected body: %q", res.Body.String())
	}
}

func TestNFeExportXLSXFormat(t *testing.T) {
	handler := newTestHandler(config.Config{}, Services{NFe: &nfeServiceFake{}})

	req := httptest.NewRequest(http.MethodPost, "/v1/nfe-xml-extract/export-csv?format=xlsx", strings.NewReader("<NFe/>"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if !strings.Contains(res.Header().Get("Content-Type"), "spreadsheetml") {
		t.Fatalf("unexpected content type: %q", res.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(res.Body.Bytes(), []byte("PK")) {
		t.Fatalf("expected zip container body")
	}
}

func TestNFeExportNotReceivedAnswersJSON(t *testing.T) {
	handler := newTestHandler(config.Config{}, Services{NFe: &nfeServiceFake{}})

	req := httptest.NewRequest(http.MethodPost, "/v1/nfe-xml-extract/export-csv", http.NoBody)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK || !strings.HasPrefix(res.Header().Get("Content-Type"), "application/json") {
		t.Fatalf("expected JSON 200, got %d %q", res.Code, res.Header().Get("Content-Type"))
	}
	var body map[string]any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["received"] != false {
		t.Fatalf("expected received=false, got %v", body)
	}
}

func TestUnknownExportFormatIs400(t *testing.T) {
	handler := newTestHandler(config.Config{}, Services{NFe: &nfeServiceFake{}})
	req := httptest.NewRequest(http.MethodPost, "/v1/nfe-xml-extract/export-csv?format=ods", strings.NewReader("<NFe/>"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestBodyLimitReturns413(t *testing.T) {
	handler := newTestHandler(config.Config{APIMaxBodyBytes: 4}, Services{NFe: &nfeServiceFake{}})
	req := httptest.NewRequest(http.MethodPost, "/v1/nfe-xml-extract/summary", strings.NewReader("<NFe></NFe>"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", res.Code)
	}
}

func TestMissingServiceIs503(t *testing.T) {
	handler := newTestHandler(config.Config{}, Services{})
	req := httptest.NewRequest(http.MethodPost, "/v1/nfse-xml-batch/summary", strings.NewReader("zip"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestSubmitBatchJob(t *testing.T) {
	submitter := &submitterFake{}
	handler := newTestHandler(config.Config{}, Services{Submitter: submitter})

	req := httptest.NewRequest(http.MethodPost, "/v1/batch-jobs?kind=NFSe", strings.NewReader("zip-bytes"))
	req.Header.Set(filenameHeader, "lote.zip")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}
	var job domain.BatchJob
	if err := json.NewDecoder(res.Body).Decode(&job); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if job.Kind != domain.BatchKindNFSe || job.Filename != "lote.zip" || string(submitter.body) != "zip-bytes" {
		t.Fatalf("unexpected job %+v", job)
	}
}

func TestSubmitBatchJobRejectsUnknownKind(t *testing.T) {
	handler := newTestHandler(config.Config{}, Services{Submitter: &submitterFake{}})
	req := httptest.NewRequest(http.MethodPost, "/v1/batch-jobs?kind=cte", strings.NewReader("zip"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestSubmitBatchJobBodyLimit(t *testing.T) {
	handler := newTestHandler(config.Config{APIMaxBodyBytes: 2}, Services{Submitter: &submitterFake{}})
	req := httptest.NewRequest(http.MethodPost, "/v1/batch-jobs?kind=nfe", strings.NewReader("zip-bytes"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", res.Code)
	}
}

func TestGetBatchJobMapsNotFound(t *testing.T) {
	jobs := jobReaderFake{err: domain.WrapError(domain.ErrJobNotFound, "get job", errors.New("id=missing"))}
	handler := newTestHandler(config.Config{}, Services{Jobs: jobs})

	for _, path := range []string{"/v1/batch-jobs/missing", "/v1/batch-jobs/missing/result"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, res.Code)
		}
	}
}

func TestGetBatchJobResultStreams(t *testing.T) {
	jobs := jobReaderFake{job: &domain.BatchJob{ID: "job-1"}, result: `{"received":true}`}
	handler := newTestHandler(config.Config{}, Services{Jobs: jobs})

	req := httptest.NewRequest(http.MethodGet, "/v1/batch-jobs/job-1/result", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK || res.Body.String() != `{"received":true}` {
		t.Fatalf("unexpected response: %d %q", res.Code, res.Body.String())
	}
}

func TestCNAERuleAdmin(t *testing.T) {
	rules := rulesFake{rules: []domain.CNAERule{{CNAE: "*", Pattern: "CONSULTA"}}}
	handler := newTestHandler(config.Config{}, Services{Rules: rules})

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/cnae-rules/reload", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), `"loaded":1`) {
		t.Fatalf("unexpected reload response: %d %q", res.Code, res.Body.String())
	}

	failing := newTestHandler(config.Config{}, Services{Rules: rulesFake{err: errors.New("read cnae rules: boom")}})
	res = httptest.NewRecorder()
	failing.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/admin/cnae-rules/reload", nil))
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
}

func TestAPIKeyGuardsV1Routes(t *testing.T) {
	handler := newTestHandler(config.Config{APIKey: "secret"}, Services{Rules: rulesFake{}})

	tests := []struct {
		name   string
		path   string
		header string
		value  string
		want   int
	}{
		{name: "no key", path: "/v1/admin/cnae-rules", want: http.StatusUnauthorized},
		{name: "wrong key", path: "/v1/admin/cnae-rules", header: "X-API-Key", value: "nope", want: http.StatusUnauthorized},
		{name: "header key", path: "/v1/admin/cnae-rules", header: "X-API-Key", value: "secret", want: http.StatusOK},
		{name: "bearer", path: "/v1/admin/cnae-rules", header: "Authorization", value: "Bearer secret", want: http.StatusOK},
		{name: "healthz open", path: "/healthz", want: http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set(tc.header, tc.value)
			}
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)
			if res.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, res.Code)
			}
		})
	}
}

func TestMetricsEndpointCountsRequests(t *testing.T) {
	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	handler := NewRouter(config.Config{}, Services{}, httpMetrics).Handler()

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(res.Body.String(), `fda_http_requests_total{method="GET",path="/healthz",service="api",status="200"} 1`) {
		t.Fatalf("expected healthz counter in metrics output")
	}
}

func TestAttachmentName(t *testing.T) {
	tests := map[string]string{
		"nota.xml":           "nota.csv",
		`C:\lotes\lote.zip`:  "lote.csv",
		"":                   "export.csv",
		`a"b.xml`:            "a_b.csv",
		"sem-extensao":       "sem-extensao.csv",
	}
	for in, want := range tests {
		if got := attachmentName(in, "csv"); got != want {
			t.Fatalf("attachmentName(%q) = %q, expected %q", in, got, want)
		}
	}
}

func TestBackpressureWaitsForSlot(t *testing.T) {
	release := make(chan struct{})
	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow" {
			<-release
		}
		w.WriteHeader(http.StatusNoContent)
	})
	handler := backpressureMiddleware(base, 1, 500*time.Millisecond, nil)

	done := make(chan int, 1)
	go func() {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/slow", nil))
		done <- res.Code
	}()
	time.Sleep(20 * time.Millisecond)
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/fast", nil))
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected waiting request to pass, got %d", res.Code)
	}
	if code := <-done; code != http.StatusNoContent {
		t.Fatalf("expected first request 204, got %d", code)
	}
}
