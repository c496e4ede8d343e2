package batch

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/convert"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
)

// walkResult is the archive-level outcome shared by both document kinds.
type walkResult struct {
	received   bool
	sha256     string
	archiveErr string
	errors     []domain.BatchError
}

// handleFunc processes one XML member. A non-nil error record marks the file as failed.
type handleFunc func(name string, data []byte) *domain.BatchError

// nameFunc maps a member path to the name reported in results and error records.
// Nil keeps the path unchanged.
type nameFunc func(member string) string

// walk feeds the XML members of raw to handle, in archive order, within the limits.
// Decompressed bytes are counted as they are read; the member that crosses the ceiling is
// recorded and ends the walk. Every per-member record uses the name given by display.
func walk(ctx context.Context, raw []byte, limits domain.BatchLimits, display nameFunc, handle handleFunc) walkResult {
	res := walkResult{sha256: convert.SHA256Hex(raw), errors: []domain.BatchError{}}
	if len(raw) == 0 {
		return res.fail(domain.BatchError{Error: domain.CodeEmptyBody})
	}
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return res.fail(domain.BatchError{Error: domain.CodeInvalidZip, Exception: err.Error()})
	}
	entries := xmlEntries(zr)
	if len(entries) == 0 {
		return res.fail(domain.BatchError{Error: domain.CodeNoXMLInZip})
	}
	if limits.MaxFiles > 0 && len(entries) > limits.MaxFiles {
		entries = entries[:limits.MaxFiles]
	}

	res.received = true
	var total int64
	for _, f := range entries {
		name := f.Name
		if display != nil {
			name = display(f.Name)
		}
		if err := ctx.Err(); err != nil {
			res.errors = append(res.errors, domain.BatchError{File: name, Error: domain.CodeException, Exception: err.Error()})
			break
		}
		data, err := readEntry(f, limits.MaxTotalBytes-total)
		total += int64(len(data))
		if err != nil {
			res.errors = append(res.errors, domain.BatchError{File: name, Error: domain.CodeException, Exception: err.Error()})
			continue
		}
		if total > limits.MaxTotalBytes {
			res.errors = append(res.errors, domain.BatchError{
				File:       name,
				Error:      domain.CodeBatchSizeExceeded,
				LimitBytes: limits.MaxTotalBytes,
			})
			break
		}
		if be := safeHandle(name, data, handle); be != nil {
			res.errors = append(res.errors, *be)
		}
	}
	return res
}

func (r walkResult) fail(be domain.BatchError) walkResult {
	r.archiveErr = be.Error
	r.errors = append(r.errors, be)
	return r
}

// readEntry reads at most remaining+1 bytes so an oversized member is detected without
// inflating it completely.
func readEntry(f *zip.File, remaining int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	if remaining < 0 {
		remaining = 0
	}
	return io.ReadAll(io.LimitReader(rc, remaining+1))
}

func safeHandle(name string, data []byte, handle handleFunc) (be *domain.BatchError) {
	defer func() {
		if r := recover(); r != nil {
			be = &domain.BatchError{File: name, Error: domain.CodeException, Exception: fmt.Sprint(r)}
		}
	}()
	return handle(name, data)
}

func xmlEntries(zr *zip.Reader) []*zip.File {
	out := make([]*zip.File, 0, len(zr.File))
	for _, f := range zr.File {
		if isXMLName(f.Name) {
			out = append(out, f)
		}
	}
	return out
}

func isXMLName(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	return strings.HasSuffix(n, ".xml") && !strings.HasSuffix(n, "/") && !strings.Contains(name, "__MACOSX")
}
