package http

import (
	"net/http"
	"strings"
	"sync/atomic"

	"shiire/internal/core"
	"shiire/internal/log"
)

func (s *Server) handleListStores(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := readContext(r)
	defer cancel()
	stores, err := s.deps.Sessions.ListStores(ctx)
	writeList(w, r, log.OpList, stores, err)
}

// handleCreateStore returns the existing store when the name is taken.
func (s *Server) handleCreateStore(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	st, err := s.deps.Sessions.EnsureStore(r.Context(), p.Get("name"))
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(st).Write(w)
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	var status core.ProductStatus
	if v := strings.TrimSpace(r.URL.Query().Get("status")); v != "" && v != "all" {
		var err error
		if status, err = core.ParseProductStatus(v); err != nil {
			writeError(w, r, log.OpList, err)
			return
		}
	}
	ctx, cancel := readContext(r)
	defer cancel()
	products, err := s.deps.Products.ListProducts(ctx, status)
	writeList(w, r, log.OpList, products, err)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	product, err := s.deps.Products.CreateProduct(r.Context(), productForm(p))
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	atomic.AddInt64(&s.metrics.productsCreated, 1)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Product registered",
		log.FieldProductID, product.ID,
		log.FieldStatus, string(product.Status))
	NewJSONResponse().Status(http.StatusCreated).Data(product).Write(w)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := readContext(r)
	defer cancel()
	product, err := s.deps.Products.GetProduct(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Data(product).Write(w)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	product, err := s.deps.Products.UpdateProduct(r.Context(), r.PathValue("id"), productForm(p))
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Data(product).Write(w)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Products.DeleteProduct(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
