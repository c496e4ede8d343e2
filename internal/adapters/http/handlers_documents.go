package httpadapter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/ports"
)

const (
	defaultXMLName = "upload.xml"
	defaultZipName = "upload.zip"
	defaultPDFName = "upload.pdf"
)

func (rt *Router) nfeExtract(w http.ResponseWriter, r *http.Request) {
	if rt.services.NFe == nil {
		unavailable(w)
		return
	}
	page, pageSize, err := pagingFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	raw, err := rt.readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rt.services.NFe.Extract(r.Context(), raw, filenameFrom(r, defaultXMLName), page, pageSize))
}

func (rt *Router) nfeSummary(w http.ResponseWriter, r *http.Request) {
	if rt.services.NFe == nil {
		unavailable(w)
		return
	}
	raw, err := rt.readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rt.services.NFe.Summarize(r.Context(), raw, filenameFrom(r, defaultXMLName)))
}

func (rt *Router) nfeExport(w http.ResponseWriter, r *http.Request) {
	if rt.services.NFe == nil {
		unavailable(w)
		return
	}
	filename := filenameFrom(r, defaultXMLName)
	rt.export(w, r, filename, func(ctx context.Context, raw []byte, tw ports.TableWriter, out io.Writer) (any, bool, error) {
		res, err := rt.services.NFe.Export(ctx, raw, filename, tw, out)
		return res, res.Received, err
	})
}

func (rt *Router) nfeBatchSummary(w http.ResponseWriter, r *http.Request) {
	if rt.services.Batch == nil {
		unavailable(w)
		return
	}
	raw, err := rt.readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rt.services.Batch.SummarizeNFe(r.Context(), raw, filenameFrom(r, defaultZipName)))
}

func (rt *Router) nfeBatchExport(w http.ResponseWriter, r *http.Request) {
	if rt.services.Batch == nil {
		unavailable(w)
		return
	}
	filename := filenameFrom(r, defaultZipName)
	rt.export(w, r, filename, func(ctx context.Context, raw []byte, tw ports.TableWriter, out io.Writer) (any, bool, error) {
		res, err := rt.services.Batch.ExportNFe(ctx, raw, filename, tw, out)
		return res, res.Received, err
	})
}

func (rt *Router) nfseExtract(w http.ResponseWriter, r *http.Request) {
	if rt.services.NFSe == nil {
		unavailable(w)
		return
	}
	page, pageSize, err := pagingFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	raw, err := rt.readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rt.services.NFSe.Extract(r.Context(), raw, filenameFrom(r, defaultXMLName), page, pageSize))
}

func (rt *Router) nfseExport(w http.ResponseWriter, r *http.Request) {
	if rt.services.NFSe == nil {
		unavailable(w)
		return
	}
	filename := filenameFrom(r, defaultXMLName)
	rt.export(w, r, filename, func(ctx context.Context, raw []byte, tw ports.TableWriter, out io.Writer) (any, bool, error) {
		res, err := rt.services.NFSe.Export(ctx, raw, filename, tw, out)
		return res, res.Received, err
	})
}

func (rt *Router) nfseBatchSummary(w http.ResponseWriter, r *http.Request) {
	if rt.services.Batch == nil {
		unavailable(w)
		return
	}
	raw, err := rt.readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rt.services.Batch.SummarizeNFSe(r.Context(), raw, filenameFrom(r, defaultZipName)))
}

func (rt *Router) nfsePDFExtract(w http.ResponseWriter, r *http.Request) {
	if rt.services.NFSe == nil {
		unavailable(w)
		return
	}
	raw, err := rt.readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rt.services.NFSe.ExtractPDF(r.Context(), raw, filenameFrom(r, defaultPDFName)))
}

type exportFunc func(ctx context.Context, raw []byte, tw ports.TableWriter, out io.Writer) (result any, received bool, err error)

// export renders into a buffer so a document that was not received still answers with JSON.
func (rt *Router) export(w http.ResponseWriter, r *http.Request, filename string, run exportFunc) {
	tw, err := rt.writerFor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	raw, err := rt.readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	res, received, err := run(r.Context(), raw, tw, &buf)
	if err != nil {
		writeError(w, err)
		return
	}
	if !received {
		writeJSON(w, http.StatusOK, res)
		return
	}

	w.Header().Set("Content-Type", tw.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachmentName(filename, tw.Extension())))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
