package admin

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"scrapemonitor/packages/domain"
	"scrapemonitor/packages/toggle"
)

type stubFetcher struct {
	calls []domain.Target
	res   domain.FetchResult
}

func (s *stubFetcher) Fetch(ctx context.Context, target domain.Target) domain.FetchResult {
	s.calls = append(s.calls, target)
	res := s.res
	res.Target = target
	return res
}

func newTestRouter(fetcher Fetcher) (*http.ServeMux, *toggle.State) {
	tg := toggle.New(slog.New(slog.NewJSONHandler(io.Discard, nil)))
	return NewRouter(tg, fetcher), tg
}

func TestStatusAndToggle(t *testing.T) {
	router, tg := newTestRouter(nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"enabled":false}` {
		t.Fatalf("GET /status = %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/toggle", strings.NewReader(`{"enabled":true}`)))
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"enabled":true}` {
		t.Fatalf("POST /toggle = %d %s", rec.Code, rec.Body.String())
	}
	if !tg.IsEnabled() {
		t.Error("toggle should be enabled")
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/toggle", strings.NewReader(`{"enabled":false}`)))
	if tg.IsEnabled() {
		t.Error("toggle should be disabled")
	}
}

func TestToggleRejectsBadBody(t *testing.T) {
	router, tg := newTestRouter(nil)
	for _, body := range []string{``, `not json`, `{}`, `{"enabled":"yes"}`} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/toggle", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status %d, want 400", body, rec.Code)
		}
	}
	if tg.IsEnabled() {
		t.Error("a rejected request must not change the toggle")
	}
}

func TestFetchOne(t *testing.T) {
	stub := &stubFetcher{res: domain.FetchResult{
		HTTPStatus:   200,
		ResponseTime: 120 * time.Millisecond,
		Body:         []byte("<html>captcha</html>"),
		Blocked:      true,
		BlockType:    domain.Captcha,
	}}
	router, tg := newTestRouter(stub)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scrape-url/1234", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["target"] != float64(1234) || got["block_type"] != "captcha" || got["body"] != "<html>captcha</html>" {
		t.Errorf("unexpected response: %v", got)
	}
	if v, present := got["error"]; !present || v != nil {
		t.Errorf("error should be null, got %v", v)
	}
	if got["response_time_ms"] != float64(120) {
		t.Errorf("response_time_ms = %v", got["response_time_ms"])
	}
	if len(stub.calls) != 1 || stub.calls[0] != 1234 {
		t.Errorf("fetcher calls = %v", stub.calls)
	}
	if tg.IsEnabled() {
		t.Error("fetch-one must not touch the toggle")
	}
}

func TestFetchOneNullFields(t *testing.T) {
	stub := &stubFetcher{res: domain.FetchResult{Error: "dial tcp: connection refused", Blocked: true, BlockType: domain.ConnectionBlocked}}
	router, _ := newTestRouter(stub)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scrape-url/9", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `"body":null`) || !strings.Contains(body, `"error":"dial tcp: connection refused"`) {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestFetchOneValidation(t *testing.T) {
	router, _ := newTestRouter(&stubFetcher{})
	for _, path := range []string{"/scrape-url/abc", "/scrape-url/0", "/scrape-url/-4"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", path, rec.Code)
		}
	}

	unconfigured, _ := newTestRouter(nil)
	rec := httptest.NewRecorder()
	unconfigured.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scrape-url/5", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("unconfigured proxy: status %d, want 503", rec.Code)
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	router, _ := newTestRouter(nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "scrape_enabled") {
		t.Errorf("metrics endpoint missing scrape_enabled: %d", rec.Code)
	}
}
