package httpadapter

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/parser"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/ports"
)

const filenameHeader = "X-Filename"

func filenameFrom(r *http.Request, fallback string) string {
	name := strings.TrimSpace(r.Header.Get(filenameHeader))
	if name == "" {
		return fallback
	}
	return name
}

// limitedBody caps the request body at the configured ceiling.
func (rt *Router) limitedBody(w http.ResponseWriter, r *http.Request) io.Reader {
	if rt.cfg.APIMaxBodyBytes <= 0 {
		return r.Body
	}
	return http.MaxBytesReader(w, r.Body, rt.cfg.APIMaxBodyBytes)
}

func (rt *Router) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	raw, err := io.ReadAll(rt.limitedBody(w, r))
	if err != nil {
		return nil, bodyError(err)
	}
	return raw, nil
}

func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return domain.WrapError(domain.ErrLimitExceeded, "read body", fmt.Errorf("body exceeds %d bytes", maxErr.Limit))
	}
	return domain.WrapError(domain.ErrInvalidInput, "read body", err)
}

func pagingFrom(r *http.Request) (int, int, error) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	pageSize, err := queryInt(r, "page_size", parser.DefaultPageSize)
	if err != nil {
		return 0, 0, err
	}
	if page < 1 {
		return 0, 0, domain.WrapError(domain.ErrInvalidInput, "parse paging", errors.New("page must be >= 1"))
	}
	if pageSize < 1 || pageSize > parser.MaxPageSize {
		return 0, 0, domain.WrapError(domain.ErrInvalidInput, "parse paging",
			fmt.Errorf("page_size must be between 1 and %d", parser.MaxPageSize))
	}
	return page, pageSize, nil
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, domain.WrapError(domain.ErrInvalidInput, "parse "+key, err)
	}
	return n, nil
}

func (rt *Router) writerFor(r *http.Request) (ports.TableWriter, error) {
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = "csv"
	}
	w, ok := rt.writers[format]
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "select format", fmt.Errorf("unsupported format %q", format))
	}
	return w, nil
}

// attachmentName replaces the upload extension with the export one.
func attachmentName(filename, ext string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	base = strings.Map(func(r rune) rune {
		if r == '"' || r < 0x20 {
			return '_'
		}
		return r
	}, base)
	if base == "" || base == "." || base == "/" {
		base = "export"
	}
	return base + "." + ext
}
