package api

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"pastebin/cfg"
	"pastebin/pkg/domain"
	"pastebin/svc/cache"
	"pastebin/svc/hist"
	"pastebin/svc/lim"
	"pastebin/svc/web"

	"github.com/joho/godotenv"
)

var envLoadOnce sync.Once

// loadTestEnv picks up an optional .env.test so a developer can point the
// tests at a local Redis without editing code.
func loadTestEnv() {
	envLoadOnce.Do(func() {
		for _, p := range []string{".env.test", "../.env.test", "../../.env.test"} {
			if absPath, err := filepath.Abs(p); err == nil {
				if _, err := os.Stat(absPath); err == nil {
					if err := godotenv.Load(absPath); err == nil {
						return
					}
				}
			}
		}
	})
}

func createTestConfig() *cfg.Cfg {
	loadTestEnv()
	return &cfg.Cfg{
		Port:                    "0",
		Environment:             "test",
		StoreBackend:            cfg.BackendFile,
		DefaultMaxActiveEntries: 3,
		DefaultRetentionDays:    32,
		MaxPasteSize:            1024,
		ContextTimeout:          5 * time.Second,
		RateLimit:               cfg.RateLimitCfg{RPM: 6000, Burst: 1000},
		PageCacheSize:           32,
	}
}

type testEnv struct {
	srv   *Server
	store *hist.Store
	pages *cache.PageCache
	cfg   *cfg.Cfg
}

func newTestEnv(t *testing.T, c *cfg.Cfg) *testEnv {
	t.Helper()
	if c == nil {
		c = createTestConfig()
	}
	store := hist.New(domain.EmptyState(c.DefaultMaxActiveEntries, c.DefaultRetentionDays))
	renderer, err := web.NewRenderer(time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	pages, err := cache.NewPageCache(c.PageCacheSize)
	if err != nil {
		t.Fatal(err)
	}
	limiter := lim.New(c.RateLimit.RPM, c.RateLimit.Burst, nil, c.TrustedProxies)
	t.Cleanup(limiter.Stop)
	srv := NewServer(c, ":0", Deps{
		Store:    store,
		Renderer: renderer,
		Pages:    pages,
		Limiter:  limiter,
	})
	return &testEnv{srv: srv, store: store, pages: pages, cfg: c}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (e *testEnv) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req)
}

func (e *testEnv) paste(t *testing.T, text string) domain.Entry {
	t.Helper()
	rec := e.post("/paste", url.Values{"text": {text}})
	if rec.Code != http.StatusOK {
		t.Fatalf("paste %q: status %d", text, rec.Code)
	}
	return e.store.Snapshot().Active[0]
}

func texts(list []domain.Entry) []string {
	out := make([]string, len(list))
	for i, e := range list {
		out[i] = e.Text
	}
	return out
}
