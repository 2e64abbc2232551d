package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"candlesig/internal/config/writer"
	"candlesig/internal/decision"
	"candlesig/internal/gateway/cache"
	"candlesig/internal/service"
)

func waveCSV(n int) string {
	var b strings.Builder
	b.WriteString("date,opening,closing,highest,lowest,turnover_count\n")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		c := 100 + 10*math.Sin(float64(i)/8) + float64(i)*0.1
		o := c - math.Cos(float64(i)/3)
		fmt.Fprintf(&b, "%s,%.4f,%.4f,%.4f,%.4f,%.0f\n",
			start.AddDate(0, 0, i).Format("2006-01-02"),
			o, c, math.Max(o, c)+1, math.Min(o, c)-1,
			1000+400*math.Abs(math.Sin(float64(i)/2)))
	}
	return b.String()
}

func newTestServer(t *testing.T, profiles *writer.ProfileWriter) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := service.New(service.Config{HistoryLimit: 300, CacheTTL: time.Minute}, service.Deps{Cache: cache.NewMemoryCache()})
	srv, err := NewServer(Config{Svc: svc, Profiles: profiles, Analysis: decision.DefaultOptions()})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}

func call(srv *Server, method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func importWave(t *testing.T, srv *Server, symbol string) {
	t.Helper()
	rec := call(srv, http.MethodPost, "/api/import?symbol="+symbol+"&interval=1d", "text/csv", []byte(waveCSV(240)))
	if rec.Code != http.StatusOK {
		t.Fatalf("import: %d %s", rec.Code, rec.Body.String())
	}
}

func TestNewServerRequiresService(t *testing.T) {
	if _, err := NewServer(Config{}); err == nil {
		t.Fatalf("expected error without service")
	}
}

func TestIndexServed(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := call(srv, http.MethodGet, "/", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("index: %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
}

func TestAnalysisErrors(t *testing.T) {
	srv := newTestServer(t, nil)
	if rec := call(srv, http.MethodGet, "/api/analysis", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing symbol: %d", rec.Code)
	}
	if rec := call(srv, http.MethodGet, "/api/analysis?symbol=NOPE", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown series: %d %s", rec.Code, rec.Body.String())
	}
	if rec := call(srv, http.MethodGet, "/api/analysis?symbol=NOPE&profile=ghost", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown profile: %d", rec.Code)
	}
}

func TestImportRejectsBadCSV(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := call(srv, http.MethodPost, "/api/import?symbol=btc", "text/csv", []byte("date,opening\n2024-01-01,1\n"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad csv: %d %s", rec.Code, rec.Body.String())
	}
}

func TestAnalysisAfterImport(t *testing.T) {
	srv := newTestServer(t, nil)
	importWave(t, srv, "btcusdt")

	rec := call(srv, http.MethodGet, "/api/analysis?symbol=btcusdt&interval=1d", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("analysis: %d %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Symbol     string          `json:"symbol"`
		Count      int             `json:"count"`
		Cached     bool            `json:"cached"`
		Daily      []any           `json:"daily"`
		Statistics json.RawMessage `json:"statistics"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Symbol != "BTCUSDT" || out.Count != 240 || out.Cached {
		t.Fatalf("unexpected analysis header: %+v", out)
	}
	if len(out.Statistics) == 0 {
		t.Fatalf("statistics missing")
	}

	rec = call(srv, http.MethodGet, "/api/analysis?symbol=btcusdt&interval=1d", "", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Cached {
		t.Fatalf("second call should hit cache")
	}
}

func TestPatternsSignalsIndicators(t *testing.T) {
	srv := newTestServer(t, nil)
	importWave(t, srv, "ETHUSDT")

	if rec := call(srv, http.MethodGet, "/api/patterns?symbol=ETHUSDT&types=nope", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad pattern type: %d", rec.Code)
	}
	rec := call(srv, http.MethodGet, "/api/patterns?symbol=ETHUSDT&types=hammer,doji", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("patterns: %d %s", rec.Code, rec.Body.String())
	}
	var pats struct {
		Patterns []struct {
			Type string `json:"pattern_type"`
		} `json:"patterns"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &pats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, p := range pats.Patterns {
		if p.Type != "hammer" && p.Type != "doji" {
			t.Fatalf("unexpected pattern type %q", p.Type)
		}
	}

	if rec := call(srv, http.MethodGet, "/api/signals?symbol=ETHUSDT&strategies=ZZ", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad strategy: %d", rec.Code)
	}
	if rec := call(srv, http.MethodGet, "/api/signals?symbol=ETHUSDT&strategies=M,R", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("signals: %d %s", rec.Code, rec.Body.String())
	}
	rec = call(srv, http.MethodGet, "/api/signals?symbol=ETHUSDT&strategies=M,R&by_strategy=true", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"results"`) {
		t.Fatalf("by strategy: %d %s", rec.Code, rec.Body.String())
	}
	if rec := call(srv, http.MethodGet, "/api/indicators?symbol=ETHUSDT", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("indicators: %d %s", rec.Code, rec.Body.String())
	}
}

func TestBacktestValidation(t *testing.T) {
	srv := newTestServer(t, nil)
	importWave(t, srv, "SOLUSDT")

	body, _ := json.Marshal(map[string]any{"interval": "1d"})
	if rec := call(srv, http.MethodPost, "/api/backtest", "application/json", body); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing symbol: %d", rec.Code)
	}
	body, _ = json.Marshal(map[string]any{"symbol": "SOLUSDT", "source": "oracle"})
	if rec := call(srv, http.MethodPost, "/api/backtest", "application/json", body); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown source: %d %s", rec.Code, rec.Body.String())
	}
}

func TestChartAndExport(t *testing.T) {
	srv := newTestServer(t, nil)
	importWave(t, srv, "BNBUSDT")

	rec := call(srv, http.MethodGet, "/api/chart?symbol=BNBUSDT&ma=5,20", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "BNBUSDT 1d") {
		t.Fatalf("chart: %d", rec.Code)
	}
	if rec := call(srv, http.MethodGet, "/api/chart?symbol=BNBUSDT&format=svg", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad format: %d", rec.Code)
	}
	if rec := call(srv, http.MethodGet, "/api/chart?symbol=BNBUSDT&ma=x", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad ma: %d", rec.Code)
	}

	rec = call(srv, http.MethodGet, "/api/export?symbol=BNBUSDT&format=csv", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "BNBUSDT_1d.csv") {
		t.Fatalf("unexpected disposition %q", rec.Header().Get("Content-Disposition"))
	}
	if !strings.HasPrefix(rec.Body.String(), "date,opening") {
		t.Fatalf("unexpected export body: %.60s", rec.Body.String())
	}
	if rec := call(srv, http.MethodGet, "/api/export?symbol=BNBUSDT&format=xlsx", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad export format: %d", rec.Code)
	}
}

func TestAlgorithms(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := call(srv, http.MethodGet, "/api/algorithms", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("algorithms: %d", rec.Code)
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"decision", "patterns", "strategies"} {
		if len(out[key]) < 3 {
			t.Fatalf("section %s empty", key)
		}
	}
}

func TestBatchLifecycle(t *testing.T) {
	srv := newTestServer(t, nil)
	importWave(t, srv, "AAA")

	body, _ := json.Marshal(map[string]any{"symbols": []string{"aaa", "missing"}})
	rec := call(srv, http.MethodPost, "/api/batch", "application/json", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("submit: %d %s", rec.Code, rec.Body.String())
	}
	var sub struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &sub); err != nil || sub.JobID == "" {
		t.Fatalf("decode submit: %v %s", err, rec.Body.String())
	}

	deadline := time.Now().Add(5 * time.Second)
	var job service.BatchJob
	for time.Now().Before(deadline) {
		rec = call(srv, http.MethodGet, "/api/batch/"+sub.JobID, "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status: %d", rec.Code)
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
			t.Fatalf("decode job: %v", err)
		}
		if job.Status != service.JobStatusPending && job.Status != service.JobStatusRunning {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if job.Status != service.JobStatusPartial {
		t.Fatalf("expected partial, got %s (%s)", job.Status, job.Message)
	}

	if rec := call(srv, http.MethodGet, "/api/batch/unknown", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown job: %d", rec.Code)
	}
	rec = call(srv, http.MethodGet, "/api/batch", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), sub.JobID) {
		t.Fatalf("list jobs: %d", rec.Code)
	}
}

func TestHistoryDisabled(t *testing.T) {
	srv := newTestServer(t, nil)
	if rec := call(srv, http.MethodGet, "/api/history/signals?symbol=BTC", "", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("history without db: %d", rec.Code)
	}
}

func TestProfilesMounted(t *testing.T) {
	w := writer.NewProfileWriter(filepath.Join(t.TempDir(), "profiles.yaml"))
	opts := decision.DefaultOptions()
	opts.MAWindows = []int{7, 30}
	if err := w.UpdateProfile("swing", writer.ProfileEntry{Analysis: opts, Default: true}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	srv := newTestServer(t, w)
	importWave(t, srv, "XRPUSDT")

	rec := call(srv, http.MethodGet, "/api/profiles/swing", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile route: %d", rec.Code)
	}
	rec = call(srv, http.MethodGet, "/api/analysis?symbol=XRPUSDT", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("analysis with default profile: %d %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Options decision.Options `json:"options"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Options.MAWindows) != 2 || out.Options.MAWindows[0] != 7 {
		t.Fatalf("default profile options not applied: %v", out.Options.MAWindows)
	}
}
