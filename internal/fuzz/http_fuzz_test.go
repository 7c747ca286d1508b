package fuzz

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Billy-Davies-2/lottery-draft-ui/internal/dal"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/draftview"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/handlers"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/logger"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/lottery"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/lottery/lotterytest"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/mocks"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/session"
)

func init() {
	// keep fuzz output readable
	logger.Init("error")
}

var fuzzDelay = draftview.DelayRange{Min: time.Millisecond, Max: time.Millisecond}

func newStore(tb testing.TB) *session.Store {
	tb.Helper()
	_, url := lotterytest.NewServer(tb, lotterytest.Teams("Alpha", 100, "Bravo", 60, "Charlie", 40)...)
	store := session.NewStore(session.Options{
		API:   lottery.NewClient(url, time.Second),
		Delay: fuzzDelay,
	})
	tb.Cleanup(store.CloseAll)
	return store
}

func newRouter(tb testing.TB) (http.Handler, string) {
	tb.Helper()
	h, err := handlers.New(handlers.Options{
		Store:   newStore(tb),
		Journal: dal.NewMemoryJournal(),
		Stats:   mocks.NewMockClickHouseClient(),
	})
	if err != nil {
		tb.Fatalf("handlers.New: %v", err)
	}
	return h.Routes(), session.NewID()
}

func post(router http.Handler, viewID, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Requested-With", "fetch")
	req.AddCookie(&http.Cookie{Name: handlers.CookieName, Value: viewID})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// FuzzHTTPTeamRename fuzzes the inline edit flow with arbitrary names.
func FuzzHTTPTeamRename(f *testing.F) {
	f.Add("Aces")
	f.Add("")
	f.Add("   ")
	f.Add("<script>alert(1)</script>")
	f.Add(strings.Repeat("🏈", 500))

	router, viewID := newRouter(f)

	f.Fuzz(func(t *testing.T, name string) {
		post(router, viewID, "/actions/teams/0/edit", nil)
		post(router, viewID, "/actions/teams/0/input", url.Values{"name": {name}})
		w := post(router, viewID, "/actions/teams/0/commit", nil)
		if w.Code >= 500 {
			t.Errorf("commit returned %d", w.Code)
		}

		// the page must always render
		req := httptest.NewRequest(http.MethodGet, "/view", nil)
		req.AddCookie(&http.Cookie{Name: handlers.CookieName, Value: viewID})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("view returned %d", rec.Code)
		}
	})
}

// FuzzHTTPActionPaths fuzzes path parameters of the command endpoints.
func FuzzHTTPActionPaths(f *testing.F) {
	f.Add("0", "reset-confirm", "backdrop")
	f.Add("-1", "pick-result", "content")
	f.Add("99999999999999999999", "", "close")
	f.Add("abc", "../../etc", "%00")

	router, viewID := newRouter(f)

	f.Fuzz(func(t *testing.T, index, name, target string) {
		paths := []string{
			"/actions/teams/" + url.PathEscape(index) + "/edit",
			"/actions/modal/" + url.PathEscape(name) + "/" + url.PathEscape(target),
		}
		for _, p := range paths {
			if w := post(router, viewID, p, nil); w.Code >= 500 {
				t.Errorf("%s returned %d", p, w.Code)
			}
		}
		post(router, viewID, "/actions/teams/cancel", nil)
	})
}

// FuzzHTTPViewportAndKeys fuzzes the ambient inputs the browser reports.
func FuzzHTTPViewportAndKeys(f *testing.F) {
	f.Add("1280", "800", "Escape")
	f.Add("-5", "0", "Enter")
	f.Add("99999999", "x", "")

	router, viewID := newRouter(f)

	f.Fuzz(func(t *testing.T, width, height, key string) {
		w := post(router, viewID, "/actions/viewport", url.Values{"width": {width}, "height": {height}})
		if w.Code >= 500 {
			t.Errorf("viewport returned %d", w.Code)
		}
		if w := post(router, viewID, "/actions/key", url.Values{"key": {key}}); w.Code >= 500 {
			t.Errorf("key returned %d", w.Code)
		}
	})
}

// FuzzHTTPHistoryLimit fuzzes the history query string.
func FuzzHTTPHistoryLimit(f *testing.F) {
	f.Add("10")
	f.Add("-1")
	f.Add("1000000")
	f.Add("ten")

	router, _ := newRouter(f)

	f.Fuzz(func(t *testing.T, limit string) {
		req := httptest.NewRequest(http.MethodGet, "/api/history?limit="+url.QueryEscape(limit), nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK && w.Code != http.StatusBadRequest {
			t.Errorf("history returned %d", w.Code)
		}
	})
}

// FuzzHTTPSessionCookie fuzzes the session cookie value.
func FuzzHTTPSessionCookie(f *testing.F) {
	f.Add("")
	f.Add("not-a-uuid")
	f.Add("00000000-0000-0000-0000-000000000000")

	router, _ := newRouter(f)

	f.Fuzz(func(t *testing.T, cookie string) {
		req := httptest.NewRequest(http.MethodGet, "/api/view", nil)
		req.Header.Set("Cookie", handlers.CookieName+"="+cookie)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("view returned %d", w.Code)
		}
	})
}
