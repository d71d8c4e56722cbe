package http

import (
	"errors"
	"net/http"
	"time"

	"shiire/internal/log"
	"shiire/internal/services"
)

const exportNotice = "Document export is not available yet."

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rng, err := ParseDateRange(r.URL.Query(), time.Now())
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	ctx, cancel := readContext(r)
	defer cancel()
	rep, err := s.deps.Reports.Report(ctx, rng.From, rng.To)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Data(rep).Write(w)
}

// handleExport accepts pdf and excel and answers 501 after the exporter's
// delay.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	err := s.deps.Exporter.Export(r.Context(), format)
	if errors.Is(err, services.ErrExportNotImplemented) {
		log.FromContext(r.Context()).InfoContext(r.Context(), "Export requested but not implemented",
			log.FieldFormat, format)
		NewJSONResponse().
			Status(http.StatusNotImplemented).
			Data(APIError{Error: err.Error(), Notice: exportNotice}).
			Write(w)
		return
	}
	if err != nil {
		writeError(w, r, log.OpExport, err)
		return
	}
	NewJSONResponse().Status(http.StatusAccepted).Write(w)
}
