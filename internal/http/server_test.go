package http

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"shiire/internal/cache"
	"shiire/internal/core"
	"shiire/internal/importer"
	"shiire/internal/log"
	"shiire/internal/middleware/ratelimit"
	"shiire/internal/services"
	"shiire/internal/storage/memory"
	"shiire/internal/view"
)

type harness struct {
	t   *testing.T
	srv *Server
}

func newHarness(t *testing.T, rpm int) *harness {
	t.Helper()
	repo := memory.New()
	fee := decimal.RequireFromString("0.10")
	notifier := services.NewNotifier(nil)
	views := view.NewRegistry(16, time.Minute)
	reports := services.NewReportService(repo, cache.NewLRUCache[core.Report](8, time.Minute), fee, 60)
	notifier.OnChange(views.Invalidate)
	notifier.OnChange(reports.Invalidate)

	srv := NewServer(":0", Deps{
		Sessions: services.NewSessionService(repo, notifier),
		Products: services.NewProductService(repo, notifier),
		Analysis: services.NewAnalysisService(repo, fee),
		Reports:  reports,
		Exporter: services.NewExporter(0),
		Views:    views,
		Store:    repo,
	}, Options{
		Logger:    log.New(log.Config{Output: io.Discard}),
		RateLimit: ratelimit.Config{RequestsPerMinute: rpm},
	})
	t.Cleanup(srv.limiter.Stop)
	return &harness{t: t, srv: srv}
}

func (h *harness) do(method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	h.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func (h *harness) createSession(title string) core.PurchaseSession {
	h.t.Helper()
	rr := h.do(http.MethodPost, "/api/sessions",
		`{"title":"`+title+`","session_date":"2026-03-01","transportation_cost":"1000"}`, nil)
	if rr.Code != http.StatusCreated {
		h.t.Fatalf("create session status=%d body=%s", rr.Code, rr.Body)
	}
	return decode[core.PurchaseSession](h.t, rr)
}

func (h *harness) addPurchase(sessionID, store, count, amount string) core.StorePurchase {
	h.t.Helper()
	rr := h.do(http.MethodPost, "/api/sessions/"+sessionID+"/purchases",
		`{"store_name":"`+store+`","item_count":`+count+`,"product_amount":"`+amount+`"}`, nil)
	if rr.Code != http.StatusCreated {
		h.t.Fatalf("add purchase status=%d body=%s", rr.Code, rr.Body)
	}
	return decode[core.StorePurchase](h.t, rr)
}

func TestHealthAndReady(t *testing.T) {
	h := newHarness(t, 100)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := h.do(http.MethodGet, path, "", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		body := decode[map[string]any](t, rr)
		if body["status"] == nil {
			t.Errorf("%s missing status: %v", path, body)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, 100)
	h.createSession("Osaka run")
	rr := h.do(http.MethodGet, "/metrics", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	for _, want := range []string{"sessions_created_total 1", "http_requests_total", "view_states"} {
		if !strings.Contains(rr.Body.String(), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestSecurityAndRequestHeaders(t *testing.T) {
	h := newHarness(t, 100)
	rr := h.do(http.MethodGet, "/healthz", "", map[string]string{"X-Request-ID": "abc-123"})
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options=%q", got)
	}
	if got := rr.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options=%q", got)
	}
	if got := rr.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID=%q", got)
	}

	rr = h.do(http.MethodGet, "/.env", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("probe status=%d, want 404", rr.Code)
	}
}

func TestSessionCRUD(t *testing.T) {
	h := newHarness(t, 100)

	rr := h.do(http.MethodPost, "/api/sessions", `{"title":"","session_date":"2026-03-01"}`, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty title status=%d", rr.Code)
	}
	rr = h.do(http.MethodPost, "/api/sessions", `[1,2]`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("array body status=%d", rr.Code)
	}

	sess := h.createSession("Kyoto trip")
	if sess.Status != core.SessionActive || !sess.TransportationCost.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("unexpected session %+v", sess)
	}

	rr = h.do(http.MethodGet, "/api/sessions/"+sess.ID, "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get status=%d", rr.Code)
	}

	rr = h.do(http.MethodPut, "/api/sessions/"+sess.ID,
		`{"title":"Kyoto trip 2","session_date":"2026-03-02","status":"completed"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body)
	}
	if got := decode[core.PurchaseSession](t, rr); got.Title != "Kyoto trip 2" || got.Status != core.SessionCompleted {
		t.Fatalf("update not applied: %+v", got)
	}

	rr = h.do(http.MethodGet, "/api/sessions?status=completed", "", nil)
	list := decode[sessionListResponse](t, rr)
	if len(list.Sessions) != 1 || list.ViewID == "" {
		t.Fatalf("unexpected list %+v", list)
	}
	if rr.Header().Get(HeaderViewID) != list.ViewID {
		t.Errorf("view id header %q != body %q", rr.Header().Get(HeaderViewID), list.ViewID)
	}
	rr = h.do(http.MethodGet, "/api/sessions?status=bogus", "", nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad filter status=%d", rr.Code)
	}

	rr = h.do(http.MethodDelete, "/api/sessions/"+sess.ID, "", nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("unconfirmed delete status=%d", rr.Code)
	}
	rr = h.do(http.MethodDelete, "/api/sessions/"+sess.ID+"?confirm=true", "", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	rr = h.do(http.MethodGet, "/api/sessions/"+sess.ID, "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete status=%d", rr.Code)
	}
}

func TestEmptySessionListIsArray(t *testing.T) {
	h := newHarness(t, 100)
	rr := h.do(http.MethodGet, "/api/sessions", "", nil)
	if !strings.Contains(rr.Body.String(), `"sessions":[]`) {
		t.Fatalf("body=%s", rr.Body)
	}
}

func TestExpandCollapseKeepsViewState(t *testing.T) {
	h := newHarness(t, 100)
	sess := h.createSession("Nagoya")
	h.addPurchase(sess.ID, "Hard Off", "3", "3000")
	h.addPurchase(sess.ID, "2nd Street", "1", "1000")

	tab := map[string]string{HeaderViewID: "tab-1"}
	rr := h.do(http.MethodPost, "/api/sessions/"+sess.ID+"/expand", "", tab)
	if rr.Code != http.StatusOK {
		t.Fatalf("expand status=%d body=%s", rr.Code, rr.Body)
	}
	res := decode[services.SessionAnalysis](t, rr)
	if len(res.Stores) != 2 || res.Registration.TotalItems != 4 {
		t.Fatalf("unexpected analysis %+v", res)
	}

	list := decode[sessionListResponse](t, h.do(http.MethodGet, "/api/sessions", "", tab))
	if len(list.Expanded) != 1 || list.Expanded[0] != sess.ID {
		t.Fatalf("expanded=%v", list.Expanded)
	}
	other := decode[sessionListResponse](t, h.do(http.MethodGet, "/api/sessions", "", map[string]string{HeaderViewID: "tab-2"}))
	if len(other.Expanded) != 0 {
		t.Fatalf("other view expanded=%v", other.Expanded)
	}

	rr = h.do(http.MethodPost, "/api/sessions/"+sess.ID+"/collapse", "", tab)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"expanded":[]`) {
		t.Fatalf("collapse status=%d body=%s", rr.Code, rr.Body)
	}

	rr = h.do(http.MethodPost, "/api/sessions/missing/expand", "", tab)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expand missing status=%d", rr.Code)
	}
}

func TestAnalysisAndRegistration(t *testing.T) {
	h := newHarness(t, 100)
	sess := h.createSession("Tokyo")
	p := h.addPurchase(sess.ID, "Book Off", "2", "2000")

	rr := h.do(http.MethodPost, "/api/products",
		`{"name":"Camera","store_purchase_id":"`+p.ID+`","purchase_price":"1000","photos":["a.jpg"]}`, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create product status=%d body=%s", rr.Code, rr.Body)
	}

	rr = h.do(http.MethodGet, "/api/sessions/"+sess.ID+"/registration", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("registration status=%d", rr.Code)
	}
	reg := decode[core.Registration](t, rr)
	if reg.TotalItems != 2 || reg.RegisteredItems != 1 || reg.WithPhotos != 1 {
		t.Fatalf("unexpected registration %+v", reg)
	}
	if !reg.RegistrationPercent.Equal(decimal.NewFromInt(50)) {
		t.Errorf("registration percent = %s", reg.RegistrationPercent)
	}

	rr = h.do(http.MethodGet, "/api/sessions/"+sess.ID+"/analysis", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("analysis status=%d", rr.Code)
	}
	res := decode[services.SessionAnalysis](t, rr)
	if len(res.Stores) != 1 || !res.Stores[0].AllocatedSharedCost.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("unexpected analysis %+v", res.Stores)
	}
}

func TestPurchasesAndStores(t *testing.T) {
	h := newHarness(t, 100)
	sess := h.createSession("Sendai")
	p := h.addPurchase(sess.ID, "Hard Off", "3", "1500")

	rr := h.do(http.MethodGet, "/api/sessions/"+sess.ID+"/purchases", "", nil)
	if got := decode[[]core.StorePurchase](t, rr); len(got) != 1 {
		t.Fatalf("purchases=%v", got)
	}
	rr = h.do(http.MethodGet, "/api/sessions/missing/purchases", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing session purchases status=%d", rr.Code)
	}

	rr = h.do(http.MethodPut, "/api/purchases/"+p.ID,
		`{"store_id":"`+p.StoreID+`","item_count":5,"product_amount":"1800"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("update purchase status=%d body=%s", rr.Code, rr.Body)
	}
	if got := decode[core.StorePurchase](t, rr); got.ItemCount != 5 {
		t.Fatalf("item count=%d", got.ItemCount)
	}
	rr = h.do(http.MethodPost, "/api/sessions/"+sess.ID+"/purchases",
		`{"store_name":"Hard Off","product_amount":"-5"}`, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("negative amount status=%d", rr.Code)
	}

	rr = h.do(http.MethodPost, "/api/stores", `{"name":"Hard Off"}`, nil)
	if got := decode[core.Store](t, rr); got.ID != p.StoreID {
		t.Fatalf("existing store not reused: %+v", got)
	}
	rr = h.do(http.MethodGet, "/api/stores", "", nil)
	if got := decode[[]core.Store](t, rr); len(got) != 1 {
		t.Fatalf("stores=%v", got)
	}

	rr = h.do(http.MethodDelete, "/api/purchases/"+p.ID, "", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete purchase status=%d", rr.Code)
	}
	rr = h.do(http.MethodDelete, "/api/purchases/"+p.ID, "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d", rr.Code)
	}
}

func TestProductLifecycle(t *testing.T) {
	h := newHarness(t, 100)
	rr := h.do(http.MethodPost, "/api/products", `{"name":"Lens","purchase_price":"800","status":"listed","listing_price":"2000"}`, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body)
	}
	prod := decode[core.Product](t, rr)

	rr = h.do(http.MethodGet, "/api/products?status=listed", "", nil)
	if got := decode[[]core.Product](t, rr); len(got) != 1 {
		t.Fatalf("listed=%v", got)
	}
	rr = h.do(http.MethodGet, "/api/products?status=sold", "", nil)
	if rr.Body.String() != "[]\n" {
		t.Fatalf("sold body=%q", rr.Body)
	}
	rr = h.do(http.MethodGet, "/api/products?status=nope", "", nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad status filter=%d", rr.Code)
	}

	rr = h.do(http.MethodPut, "/api/products/"+prod.ID,
		`{"name":"Lens","purchase_price":"800","status":"sold","sold_price":"2500"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body)
	}
	if got := decode[core.Product](t, rr); got.SoldAt == nil {
		t.Fatal("sold product has no sold date")
	}

	rr = h.do(http.MethodDelete, "/api/products/"+prod.ID, "", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	rr = h.do(http.MethodGet, "/api/products/"+prod.ID, "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete status=%d", rr.Code)
	}
}

func TestReportsAndExport(t *testing.T) {
	h := newHarness(t, 100)
	rr := h.do(http.MethodGet, "/api/reports?from=2026-01-01&to=2026-01-31", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("report status=%d body=%s", rr.Code, rr.Body)
	}
	rep := decode[core.Report](t, rr)
	if rep.SoldCount != 0 || !rep.Revenue.IsZero() {
		t.Fatalf("empty report %+v", rep)
	}

	rr = h.do(http.MethodGet, "/api/reports?from=2026-02-01&to=2026-01-01", "", nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("inverted range status=%d", rr.Code)
	}

	rr = h.do(http.MethodPost, "/api/reports/export?format=pdf", "", nil)
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("export status=%d", rr.Code)
	}
	if body := decode[APIError](t, rr); body.Notice == "" {
		t.Error("export response has no notice")
	}
	rr = h.do(http.MethodPost, "/api/reports/export?format=docx", "", nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unsupported format status=%d", rr.Code)
	}
}

func TestImportWorkbook(t *testing.T) {
	h := newHarness(t, 100)
	sess := h.createSession("Fukuoka")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Store", "Item Count", "Product Amount", "Shipping"},
		{"Hard Off", 2, "1200", "300"},
		{"", 1, "500", ""},
		{"Book Off", 4, "800", ""},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	xlsx, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	f.Close()

	upload := func(path string, withFile bool) *httptest.ResponseRecorder {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		if withFile {
			part, err := mw.CreateFormFile("file", "purchases.xlsx")
			if err != nil {
				t.Fatal(err)
			}
			part.Write(xlsx.Bytes())
		}
		mw.Close()
		req := httptest.NewRequest(http.MethodPost, path, &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rr := httptest.NewRecorder()
		h.srv.Handler.ServeHTTP(rr, req)
		return rr
	}

	rr := upload("/api/sessions/"+sess.ID+"/import", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("import status=%d body=%s", rr.Code, rr.Body)
	}
	res := decode[importer.Result](t, rr)
	if res.Imported != 2 || len(res.Errors) != 1 || res.Errors[0].Line != 3 {
		t.Fatalf("unexpected result %+v", res)
	}

	if rr := upload("/api/sessions/"+sess.ID+"/import", false); rr.Code != http.StatusBadRequest {
		t.Fatalf("missing file status=%d", rr.Code)
	}
	if rr := upload("/api/sessions/missing/import", true); rr.Code != http.StatusNotFound {
		t.Fatalf("missing session status=%d", rr.Code)
	}
}

func TestWritesAreRateLimited(t *testing.T) {
	h := newHarness(t, 2)
	for i := 0; i < 2; i++ {
		h.createSession("Session")
	}
	rr := h.do(http.MethodPost, "/api/sessions", `{"title":"x","session_date":"2026-03-01"}`, nil)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("third write status=%d", rr.Code)
	}
	// reads are not limited
	rr = h.do(http.MethodGet, "/api/sessions", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("read status=%d", rr.Code)
	}
}
