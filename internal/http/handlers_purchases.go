package http

import (
	"net/http"
	"sync/atomic"

	"shiire/internal/importer"
	"shiire/internal/log"
)

func (s *Server) handleListPurchases(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := readContext(r)
	defer cancel()
	purchases, err := s.deps.Sessions.ListPurchases(ctx, r.PathValue("id"))
	if err != nil && StatusFor(err) == http.StatusNotFound {
		writeError(w, r, log.OpList, err)
		return
	}
	writeList(w, r, log.OpList, purchases, err)
}

func (s *Server) handleAddPurchase(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	sessionID := r.PathValue("id")
	purchase, err := s.deps.Sessions.AddPurchase(r.Context(), sessionID, purchaseForm(p))
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	atomic.AddInt64(&s.metrics.purchasesAdded, 1)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Store purchase added",
		log.FieldSessionID, sessionID,
		log.FieldStoreID, purchase.StoreID,
		log.FieldPurchaseID, purchase.ID)
	NewJSONResponse().Status(http.StatusCreated).Data(purchase).Write(w)
}

func (s *Server) handleUpdatePurchase(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	purchase, err := s.deps.Sessions.UpdatePurchase(r.Context(), r.PathValue("id"), purchaseForm(p))
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Data(purchase).Write(w)
}

func (s *Server) handleDeletePurchase(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Sessions.DeletePurchase(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleImportPurchases reads the "file" part of a multipart upload. Row
// errors are part of a 200 response; an unreadable workbook is a 422.
func (s *Server) handleImportPurchases(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if _, err := s.deps.Sessions.GetSession(r.Context(), sessionID); err != nil {
		writeError(w, r, log.OpImport, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		BadRequestError("invalid multipart upload: " + err.Error()).Write(w)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		BadRequestError("missing file field").Write(w)
		return
	}
	defer file.Close()

	res, err := importer.Import(r.Context(), s.deps.Sessions, sessionID, file, header.Filename)
	if err != nil {
		if StatusFor(err) == http.StatusNotFound {
			writeError(w, r, log.OpImport, err)
			return
		}
		log.FromContext(r.Context()).WarnContext(r.Context(), "Workbook rejected",
			log.FieldSessionID, sessionID,
			"filename", header.Filename,
			log.FieldError, err)
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	atomic.AddInt64(&s.metrics.rowsImported, int64(res.Imported))
	log.FromContext(r.Context()).InfoContext(r.Context(), "Workbook imported",
		log.FieldSessionID, sessionID,
		log.FieldCount, res.Imported,
		"row_errors", len(res.Errors))
	NewJSONResponse().Data(res).Write(w)
}
