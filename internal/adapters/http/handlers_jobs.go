package httpadapter

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
)

func (rt *Router) submitBatchJob(w http.ResponseWriter, r *http.Request) {
	if rt.services.Submitter == nil {
		unavailable(w)
		return
	}
	kind := domain.BatchKind(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("kind"))))
	if !kind.Valid() {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "submit batch", errors.New("kind must be nfe or nfse")))
		return
	}

	job, err := rt.services.Submitter.Submit(r.Context(), kind, filenameFrom(r, defaultZipName), rt.limitedBody(w, r))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			err = bodyError(maxErr)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (rt *Router) getBatchJob(w http.ResponseWriter, r *http.Request) {
	if rt.services.Jobs == nil {
		unavailable(w)
		return
	}
	job, err := rt.services.Jobs.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (rt *Router) getBatchJobResult(w http.ResponseWriter, r *http.Request) {
	if rt.services.Jobs == nil {
		unavailable(w)
		return
	}
	rc, err := rt.services.Jobs.OpenResult(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}

func (rt *Router) listCNAERules(w http.ResponseWriter, _ *http.Request) {
	if rt.services.Rules == nil {
		unavailable(w)
		return
	}
	rules := rt.services.Rules.Rules()
	if rules == nil {
		rules = []domain.CNAERule{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(rules), "rules": rules})
}

func (rt *Router) reloadCNAERules(w http.ResponseWriter, r *http.Request) {
	if rt.services.Rules == nil {
		unavailable(w)
		return
	}
	n, err := rt.services.Rules.Reload(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"loaded": n})
}
