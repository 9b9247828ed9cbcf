package http

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"materials/internal/analytics"
	"materials/internal/core"
	"materials/internal/export"
	applog "materials/internal/log"
	"materials/internal/metrics"
	"materials/internal/middleware/ratelimit"
	"materials/internal/services"
	"materials/internal/storage"
)

var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	srv     *Server
	svc     *services.RecordService
	metrics *metrics.Metrics
}

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Level: slog.LevelError, Output: io.Discard})
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "materials.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	m := metrics.New()
	svc := services.NewRecordService(repo, services.WithMetrics(m))

	opts.SecretKey = "test-secret"
	opts.Metrics = m
	opts.Logger = quietLogger()
	opts.Now = func() time.Time { return fixedNow }
	srv, err := NewServer(":0", svc, opts)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, svc: svc, metrics: m}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(target string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (e *testEnv) postForm(form url.Values) *httptest.ResponseRecorder {
	return e.postRaw(form.Encode())
}

func (e *testEnv) postRaw(body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/add", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req)
}

func (e *testEnv) seed(t *testing.T, recs ...core.MaterialRecord) {
	t.Helper()
	for _, r := range recs {
		if _, err := e.svc.CreateRecord(context.Background(), r); err != nil {
			t.Fatalf("seed %s: %v", r.MaterialName, err)
		}
	}
}

func (e *testEnv) count(t *testing.T) int {
	t.Helper()
	recs, err := e.svc.ListRecords(context.Background(), core.RecordFilter{SortBy: core.SortDateUsed})
	if err != nil {
		t.Fatal(err)
	}
	return len(recs)
}

func material(name, site string, qtyMilli, costCents int64, day int) core.MaterialRecord {
	return core.MaterialRecord{
		MaterialName: name,
		MaterialType: "Binder",
		SiteLocation: site,
		Quantity:     core.Quantity{Milli: qtyMilli},
		Unit:         "bags",
		CostPerUnit:  core.Money{Cents: costCents},
		DateUsed:     core.NewDate(2024, 3, day),
		Supplier:     "Acme",
	}
}

func seedSites(t *testing.T, e *testEnv) {
	e.seed(t,
		material("Cement", "North Yard", 10000, 35000, 1),
		material("Sand", "north yard annex", 2500, 1999, 2),
		material("Steel", "South Yard", 1000, 120000, 3),
	)
}

func validForm() url.Values {
	return url.Values{
		"material_name": {"Cement"},
		"material_type": {"Binder"},
		"site_location": {"Site A"},
		"quantity":      {"50"},
		"unit":          {"bags"},
		"cost_per_unit": {"350"},
		"date_used":     {"2024-03-01"},
		"supplier":      {"Acme"},
		"total_cost":    {"1"},
	}
}

func TestAddValidRecordPersistsComputedTotal(t *testing.T) {
	e := newTestEnv(t, Options{})

	rr := e.postForm(validForm())
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if loc := rr.Header().Get("Location"); loc != "/records" {
		t.Errorf("Location = %q", loc)
	}

	recs, err := e.svc.ListRecords(context.Background(), core.RecordFilter{SortBy: core.SortDateUsed})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("rows = %d, want 1", len(recs))
	}
	if got := recs[0].TotalCost.Cents; got != 1750000 {
		t.Errorf("total = %d cents, want 1750000 (50 × 350.00)", got)
	}
}

func TestAddShowsFlashAfterRedirect(t *testing.T) {
	e := newTestEnv(t, Options{})

	rr := e.postForm(validForm())
	cookies := rr.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("no flash cookie set")
	}

	req := httptest.NewRequest(http.MethodGet, "/records", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	page := e.do(req)
	if !strings.Contains(page.Body.String(), "Material record added. Total cost: ₹17,500.00") {
		t.Errorf("flash not rendered: %s", page.Body.String())
	}

	// A forged cookie is ignored.
	req = httptest.NewRequest(http.MethodGet, "/records", nil)
	req.AddCookie(&http.Cookie{Name: flashCookie, Value: "aGFja2Vk.bad"})
	if strings.Contains(e.do(req).Body.String(), "hacked") {
		t.Error("forged flash rendered")
	}
}

func TestAddInvalidRecordRejected(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		value   string
		message string
	}{
		{"negative quantity", "quantity", "-5", "Quantity must be a positive number."},
		{"zero quantity", "quantity", "0", "Quantity must be a positive number."},
		{"non numeric quantity", "quantity", "abc", "Quantity must be a positive number."},
		{"zero cost", "cost_per_unit", "0", "Cost per unit must be a positive amount."},
		{"missing site", "site_location", "", "Site location is required."},
		{"missing material", "material_name", "   ", "Material name is required."},
		{"missing unit", "unit", "", "Unit is required."},
		{"bad date", "date_used", "2024-13-01", "Enter a valid date (YYYY-MM-DD)."},
		{"missing date", "date_used", "", "Enter a valid date (YYYY-MM-DD)."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t, Options{})
			form := validForm()
			form.Set(tt.field, tt.value)

			rr := e.postForm(form)
			if rr.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422", rr.Code)
			}
			body := rr.Body.String()
			if !strings.Contains(body, tt.message) {
				t.Errorf("body missing %q", tt.message)
			}
			if tt.field != "material_name" && !strings.Contains(body, `value="Cement"`) {
				t.Error("submitted values not echoed back")
			}
			if n := e.count(t); n != 0 {
				t.Errorf("rows = %d, want 0", n)
			}
		})
	}
}

func TestAddReportsEveryInvalidField(t *testing.T) {
	e := newTestEnv(t, Options{})
	form := validForm()
	form.Set("quantity", "-1")
	form.Set("site_location", "")

	body := e.postForm(form).Body.String()
	for _, want := range []string{"Quantity must be a positive number.", "Site location is required."} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestAddMalformedBody(t *testing.T) {
	e := newTestEnv(t, Options{})
	rr := e.postRaw("material_name=%zz&quantity=1")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if n := e.count(t); n != 0 {
		t.Errorf("rows = %d, want 0", n)
	}
}

func TestAddFormDefaults(t *testing.T) {
	e := newTestEnv(t, Options{})
	seedSites(t, e)

	rr := e.get("/add")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `value="2024-03-15"`) {
		t.Error("date does not default to today")
	}
	if !strings.Contains(body, `<option value="South Yard">`) {
		t.Error("site suggestions missing")
	}
}

func TestRecordsFilterBySite(t *testing.T) {
	e := newTestEnv(t, Options{})
	seedSites(t, e)

	tests := []struct {
		query string
		rows  int
	}{
		{"", 3},
		{"?site=north", 2},
		{"?site=NORTH+YARD+ANNEX", 1},
		{"?site=nowhere", 0},
		{"?site=south&material=steel", 1},
		{"?date_from=2024-03-02&date_to=2024-03-03", 2},
	}
	for _, tt := range tests {
		rr := e.get("/records" + tt.query)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", tt.query, rr.Code)
		}
		if got := strings.Count(rr.Body.String(), "<tr data-id="); got != tt.rows {
			t.Errorf("%s: rows = %d, want %d", tt.query, got, tt.rows)
		}
	}
}

func TestRecordsWarnsOnBadDate(t *testing.T) {
	e := newTestEnv(t, Options{})
	seedSites(t, e)

	rr := e.get("/records?date_from=yesterday")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Ignoring invalid start date") {
		t.Error("warning not rendered")
	}
	if got := strings.Count(body, "<tr data-id="); got != 3 {
		t.Errorf("rows = %d, want 3 (bad date ignored)", got)
	}
}

func TestRecordsSortOrder(t *testing.T) {
	e := newTestEnv(t, Options{})
	seedSites(t, e)

	body := e.get("/records?sort_by=total_cost&sort_order=asc").Body.String()
	sand := strings.Index(body, "<td>Sand</td>")
	cement := strings.Index(body, "<td>Cement</td>")
	steel := strings.Index(body, "<td>Steel</td>")
	if !(sand < steel && steel < cement) {
		t.Errorf("unexpected order: sand=%d steel=%d cement=%d", sand, steel, cement)
	}
}

func readCSV(t *testing.T, body []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	return rows
}

func TestExportCSVRoundTrip(t *testing.T) {
	e := newTestEnv(t, Options{})
	seedSites(t, e)

	rr := e.get("/export/csv?site=north")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); cd != `attachment; filename="construction_materials_20240315.csv"` {
		t.Errorf("Content-Disposition = %q", cd)
	}

	rows := readCSV(t, rr.Body.Bytes())
	want, err := e.svc.ListRecords(context.Background(), core.RecordFilter{Site: "north", SortBy: core.SortDateUsed})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != len(want)+1 {
		t.Fatalf("csv rows = %d, want %d", len(rows), len(want)+1)
	}
	if strings.Join(rows[0], ",") != strings.Join(export.Columns, ",") {
		t.Errorf("header = %v", rows[0])
	}
	for i, rec := range want {
		if got, exp := strings.Join(rows[i+1], "|"), strings.Join(export.Row(rec), "|"); got != exp {
			t.Errorf("row %d = %s, want %s", i+1, got, exp)
		}
	}

	if got := testCounter(t, e.metrics, `materials_exports_total{format="csv"} 1`); !got {
		t.Error("export not counted")
	}
}

func TestExportXLSX(t *testing.T) {
	e := newTestEnv(t, Options{})
	seedSites(t, e)

	for _, format := range []string{"xlsx", "excel", "Spreadsheet"} {
		rr := e.get("/export/" + format)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", format, rr.Code)
		}
		if cd := rr.Header().Get("Content-Disposition"); !strings.HasSuffix(cd, `.xlsx"`) {
			t.Errorf("%s: Content-Disposition = %q", format, cd)
		}
		f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
		if err != nil {
			t.Fatalf("%s: open workbook: %v", format, err)
		}
		rows, err := f.GetRows("Materials")
		_ = f.Close()
		if err != nil {
			t.Fatal(err)
		}
		if len(rows) != 4 {
			t.Errorf("%s: sheet rows = %d, want 4", format, len(rows))
		}
	}
}

func TestExportUnsupportedFormat(t *testing.T) {
	e := newTestEnv(t, Options{})
	rr := e.get("/export/pdf")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Unsupported export format") {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestIndexOverview(t *testing.T) {
	e := newTestEnv(t, Options{})
	seedSites(t, e)

	rr := e.get("/")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	// 10 × 350.00 + 2.5 × 19.99 + 1 × 1200.00
	if !strings.Contains(body, "₹4,749.98") {
		t.Errorf("total missing from overview: %s", body)
	}
	if e.get("/nope").Code != http.StatusNotFound {
		t.Error("unknown path should 404")
	}
}

func TestDashboardAndCharts(t *testing.T) {
	e := newTestEnv(t, Options{})
	seedSites(t, e)

	rr := e.get("/dashboard")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"North Yard", "₹4,749.98", "₹1,583.33", "2024-03-01 to 2024-03-03", `data-chart="cost_over_time"`} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}

	rr = e.get("/api/charts/cost_by_site?site=yard")
	if rr.Code != http.StatusOK {
		t.Fatalf("chart status = %d", rr.Code)
	}
	var series analytics.Series
	if err := json.Unmarshal(rr.Body.Bytes(), &series); err != nil {
		t.Fatal(err)
	}
	if len(series.Labels) != 3 || series.Labels[0] != "North Yard" || series.Values[0] != 3500 {
		t.Errorf("series = %+v", series)
	}

	if e.get("/api/charts/pie_in_the_sky").Code != http.StatusNotFound {
		t.Error("unknown chart should 404")
	}
}

func TestHealthReadyMetrics(t *testing.T) {
	e := newTestEnv(t, Options{})

	for _, path := range []string{"/healthz", "/readyz"} {
		if rr := e.get(path); rr.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rr.Code)
		}
	}
	e.get("/records")
	if !testCounter(t, e.metrics, `materials_http_requests_total{method="GET",route="/records",status="200"} 1`) {
		t.Error("request not instrumented")
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	e := newTestEnv(t, Options{})
	rr := e.get("/")
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("security headers missing")
	}
	if !strings.HasPrefix(rr.Header().Get("X-Request-ID"), "req_") {
		t.Errorf("X-Request-ID = %q", rr.Header().Get("X-Request-ID"))
	}
}

func TestRateLimitOnPost(t *testing.T) {
	e := newTestEnv(t, Options{RateLimit: ratelimit.Config{RequestsPerMinute: 1, Methods: []string{http.MethodPost}}})

	if rr := e.postForm(validForm()); rr.Code != http.StatusSeeOther {
		t.Fatalf("first post = %d", rr.Code)
	}
	if rr := e.postForm(validForm()); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second post = %d, want 429", rr.Code)
	}
	if rr := e.get("/records"); rr.Code != http.StatusOK {
		t.Fatalf("GET should not be limited, got %d", rr.Code)
	}
	if n := e.count(t); n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	e := newTestEnv(t, Options{})
	rr := e.do(httptest.NewRequest(http.MethodDelete, "/add", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rr.Code)
	}
}

// failingService fails every call, for error-path tests.
type failingService struct{ err error }

func (f failingService) CreateRecord(context.Context, core.MaterialRecord) (core.MaterialRecord, error) {
	return core.MaterialRecord{}, f.err
}
func (f failingService) ListRecords(context.Context, core.RecordFilter) ([]core.MaterialRecord, error) {
	return nil, f.err
}
func (f failingService) RecentRecords(context.Context, int) ([]core.MaterialRecord, error) {
	return nil, f.err
}
func (f failingService) Overview(context.Context) (core.Overview, error) {
	return core.Overview{}, f.err
}
func (f failingService) FilterOptions(context.Context) (core.FilterOptions, error) {
	return core.FilterOptions{}, f.err
}
func (f failingService) Dashboard(context.Context, core.RecordFilter) (analytics.Dashboard, error) {
	return analytics.Dashboard{}, f.err
}
func (f failingService) Ping(context.Context) error { return f.err }

func TestStorageErrors(t *testing.T) {
	srv, err := NewServer(":0", failingService{err: errors.New("database is locked")}, Options{Logger: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	tests := []struct {
		method, target string
		want           int
	}{
		{http.MethodGet, "/", http.StatusInternalServerError},
		{http.MethodGet, "/records", http.StatusInternalServerError},
		{http.MethodGet, "/export/csv", http.StatusInternalServerError},
		{http.MethodGet, "/dashboard", http.StatusInternalServerError},
		{http.MethodGet, "/api/charts/cost_by_site", http.StatusInternalServerError},
		{http.MethodGet, "/readyz", http.StatusServiceUnavailable},
		{http.MethodGet, "/healthz", http.StatusOK},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.target, nil))
		if rr.Code != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.target, rr.Code, tt.want)
		}
		if strings.Contains(rr.Body.String(), "database is locked") && tt.target != "/readyz" {
			t.Errorf("%s leaks the storage error", tt.target)
		}
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/add", strings.NewReader(validForm().Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("POST /add = %d, want 500", rr.Code)
	}
}

func testCounter(t *testing.T, m *metrics.Metrics, line string) bool {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return strings.Contains(rr.Body.String(), line)
}
