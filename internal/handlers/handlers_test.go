package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Billy-Davies-2/lottery-draft-ui/internal/dal"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/draftview"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/lottery"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/lottery/lotterytest"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/mocks"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/models"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/session"
)

type testEnv struct {
	t       *testing.T
	srv     *httptest.Server
	client  *http.Client
	svc     *lotterytest.Service
	store   *session.Store
	journal *dal.MemoryJournal
	stats   *mocks.MockClickHouseClient
}

func newTestEnv(t *testing.T, delay draftview.DelayRange, checks ...HealthCheck) *testEnv {
	t.Helper()
	svc, apiURL := lotterytest.NewServer(t, lotterytest.Teams("Alpha", 100, "Bravo", 60, "Charlie", 40)...)
	store := session.NewStore(session.Options{
		API:   lottery.NewClient(apiURL, time.Second),
		Delay: delay,
		Seed:  3,
	})
	journal := dal.NewMemoryJournal()
	stats := mocks.NewMockClickHouseClient()

	h, err := New(Options{
		Store:     store,
		Journal:   journal,
		Stats:     stats,
		Checks:    checks,
		Keepalive: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(h.Routes())
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.CloseAll()
		srv.Close()
	})
	return &testEnv{
		t:       t,
		srv:     srv,
		client:  &http.Client{Jar: jar, Timeout: 5 * time.Second},
		svc:     svc,
		store:   store,
		journal: journal,
		stats:   stats,
	}
}

var fast = draftview.DelayRange{Min: time.Millisecond, Max: 2 * time.Millisecond}

func (e *testEnv) get(path string) *http.Response {
	e.t.Helper()
	resp, err := e.client.Get(e.srv.URL + path)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) post(path string, form url.Values) *http.Response {
	e.t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.srv.URL+path, strings.NewReader(form.Encode()))
	require.NoError(e.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Requested-With", "fetch")
	resp, err := e.client.Do(req)
	require.NoError(e.t, err)
	resp.Body.Close()
	return resp
}

func (e *testEnv) document(path string) *goquery.Document {
	e.t.Helper()
	resp := e.get(path)
	require.Equal(e.t, http.StatusOK, resp.StatusCode)
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(e.t, err)
	return doc
}

func (e *testEnv) snapshot() draftview.Snapshot {
	e.t.Helper()
	resp := e.get("/api/view")
	require.Equal(e.t, http.StatusOK, resp.StatusCode)
	var s draftview.Snapshot
	require.NoError(e.t, json.NewDecoder(resp.Body).Decode(&s))
	return s
}

func TestHomeRendersInitialDraft(t *testing.T) {
	env := newTestEnv(t, fast)

	resp := env.get("/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == CookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "session cookie should be issued")
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, cookie.Value, doc.Find("#app").AttrOr("data-view-id", ""))

	assert.Equal(t, "Texan Boys Lottery Draft", doc.Find("title").Text())
	assert.Equal(t, 3, doc.Find(".team-odds").Length())
	assert.Equal(t, "Alpha", doc.Find(".team-odds .team-name").First().Text())
	assert.Equal(t, "100 pts", doc.Find(".team-odds .team-points").First().Text())
	assert.Equal(t, "50%", doc.Find(".team-odds .team-percentage").First().Text())
	assert.Equal(t, "No picks made yet", doc.Find(".no-picks").Text())
	assert.Equal(t, "Generate Pick #1", strings.TrimSpace(doc.Find(".generate-button").Text()))
	assert.Zero(t, doc.Find(".modal-overlay").Length())
	assert.Zero(t, doc.Find(".error-message").Length())
}

func TestSessionIsReused(t *testing.T) {
	env := newTestEnv(t, fast)

	first := env.document("/").Find("#app").AttrOr("data-view-id", "")
	second := env.document("/").Find("#app").AttrOr("data-view-id", "")
	assert.Equal(t, first, second)
	assert.Equal(t, 1, env.store.Len())
	assert.Equal(t, 1, env.svc.Calls("/state"), "mounted view should not reload")
}

func TestInvalidCookieIsReplaced(t *testing.T) {
	env := newTestEnv(t, fast)

	u, err := url.Parse(env.srv.URL)
	require.NoError(t, err)
	env.client.Jar.SetCookies(u, []*http.Cookie{{Name: CookieName, Value: "not-a-session", Path: "/"}})

	id := env.document("/").Find("#app").AttrOr("data-view-id", "")
	assert.True(t, session.ValidID(id))
	assert.NotEqual(t, "not-a-session", id)
}

func TestLoadFailureShowsBanner(t *testing.T) {
	env := newTestEnv(t, fast)
	env.svc.Fail("/state", http.StatusInternalServerError)

	doc := env.document("/")
	assert.Equal(t, draftview.MsgLoadFailed, doc.Find(".error-message").Text())
	assert.Equal(t, "All teams have been drafted!", doc.Find(".no-teams").Text())
}

func TestGeneratePick(t *testing.T) {
	env := newTestEnv(t, fast)
	env.get("/")

	resp := env.post("/actions/pick", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	require.Eventually(t, func() bool {
		return len(env.snapshot().State.DraftOrder) == 1
	}, 2*time.Second, 10*time.Millisecond)

	doc := env.document("/view")
	assert.Equal(t, "Alpha", doc.Find(".draft-pick .pick-team").Text())
	assert.Equal(t, "1", doc.Find(".draft-pick .pick-number").Text())
	assert.Equal(t, 2, doc.Find(".team-odds").Length())
	assert.Contains(t, doc.Find(`.modal-content[data-modal="pick-result"] h2`).Text(), "Alpha")
	assert.Equal(t, "Odds: 50%", doc.Find(".current-odds").Text())
	assert.Equal(t, "Generate Pick #2", strings.TrimSpace(doc.Find(".generate-button").Text()))

	resp = env.post("/actions/pick/close", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.False(t, env.snapshot().PickResultOpen)
}

func TestCompletedDraftShowsCompletionMessage(t *testing.T) {
	env := newTestEnv(t, fast)
	env.get("/")

	for n := 1; n <= 3; n++ {
		require.Equal(t, http.StatusNoContent, env.post("/actions/pick", nil).StatusCode)
		require.Eventually(t, func() bool {
			return len(env.snapshot().State.DraftOrder) == n
		}, 2*time.Second, 10*time.Millisecond)
		env.post("/actions/pick/close", nil)
	}
	require.True(t, env.snapshot().State.IsComplete)

	doc := env.document("/view")
	assert.Contains(t, doc.Find(".completion-message").Text(), "Draft Complete!")
	assert.Zero(t, doc.Find(".generate-button").Length())
	assert.Equal(t, "All teams have been drafted!", doc.Find(".no-teams").Text())
	assert.Equal(t, 3, doc.Find(".draft-pick").Length())

	assert.Equal(t, http.StatusConflict, env.post("/actions/pick", nil).StatusCode)
}

func TestPickWhileDrawingConflicts(t *testing.T) {
	env := newTestEnv(t, draftview.DelayRange{Min: time.Hour, Max: time.Hour})
	env.get("/")

	assert.Equal(t, http.StatusNoContent, env.post("/actions/pick", nil).StatusCode)
	assert.Equal(t, http.StatusConflict, env.post("/actions/pick", nil).StatusCode)

	doc := env.document("/view")
	button := doc.Find(".generate-button")
	_, disabled := button.Attr("disabled")
	assert.True(t, disabled)
	assert.Zero(t, env.svc.Calls("/generate-pick"))
}

func TestRenameFlow(t *testing.T) {
	env := newTestEnv(t, fast)
	env.get("/")

	assert.Equal(t, http.StatusNoContent, env.post("/actions/teams/0/edit", nil).StatusCode)
	input := env.document("/view").Find("input.team-name-input")
	require.Equal(t, 1, input.Length())
	assert.Equal(t, "Alpha", input.AttrOr("value", ""))

	assert.Equal(t, http.StatusNoContent, env.post("/actions/teams/0/input", url.Values{"name": {"Aces"}}).StatusCode)
	assert.Equal(t, http.StatusNoContent, env.post("/actions/teams/0/commit", nil).StatusCode)

	assert.Equal(t, "Aces", env.svc.State().Teams[0].Name)
	doc := env.document("/view")
	assert.Zero(t, doc.Find("input.team-name-input").Length())
	assert.Equal(t, "Aces", doc.Find(".team-odds .team-name").First().Text())

	// nothing is being edited anymore
	assert.Equal(t, http.StatusConflict, env.post("/actions/teams/0/commit", nil).StatusCode)
}

func TestCancelEdit(t *testing.T) {
	env := newTestEnv(t, fast)
	env.get("/")

	env.post("/actions/teams/1/edit", nil)
	env.post("/actions/teams/1/input", url.Values{"name": {"Nope"}})
	assert.Equal(t, http.StatusNoContent, env.post("/actions/teams/cancel", nil).StatusCode)

	s := env.snapshot()
	assert.Equal(t, -1, s.EditingIndex)
	assert.Equal(t, "Bravo", s.State.Teams[1].Name)
	assert.Zero(t, env.svc.Calls("/update-team-name"))
}

func TestBadTeamIndex(t *testing.T) {
	env := newTestEnv(t, fast)
	env.get("/")

	assert.Equal(t, http.StatusBadRequest, env.post("/actions/teams/x/edit", nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, env.post("/actions/teams/9/edit", nil).StatusCode)
}

func TestResetFlow(t *testing.T) {
	env := newTestEnv(t, fast)
	env.get("/")

	assert.Equal(t, http.StatusConflict, env.post("/actions/reset/confirm", nil).StatusCode)
	assert.Zero(t, env.svc.Calls("/reset-draft"))

	assert.Equal(t, http.StatusNoContent, env.post("/actions/reset", nil).StatusCode)
	doc := env.document("/view")
	assert.Equal(t, "Are you sure you want to reset the draft?", doc.Find(".reset-confirmation").Text())

	assert.Equal(t, http.StatusNoContent, env.post("/actions/reset/confirm", nil).StatusCode)
	assert.Equal(t, 1, env.svc.Calls("/reset-draft"))
	assert.False(t, env.snapshot().ResetConfirmOpen)
}

func TestModalActions(t *testing.T) {
	env := newTestEnv(t, fast)
	env.get("/")

	env.post("/actions/reset", nil)
	assert.Equal(t, http.StatusNoContent, env.post("/actions/modal/reset-confirm/content", nil).StatusCode)
	assert.True(t, env.snapshot().ResetConfirmOpen, "clicks inside the content keep the modal open")

	assert.Equal(t, http.StatusNoContent, env.post("/actions/modal/reset-confirm/backdrop", nil).StatusCode)
	assert.False(t, env.snapshot().ResetConfirmOpen)

	env.post("/actions/reset", nil)
	assert.Equal(t, http.StatusNoContent, env.post("/actions/key", url.Values{"key": {"Escape"}}).StatusCode)
	assert.False(t, env.snapshot().ResetConfirmOpen)

	assert.Equal(t, http.StatusNotFound, env.post("/actions/modal/nope/close", nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, env.post("/actions/modal/reset-confirm/elsewhere", nil).StatusCode)
}

func TestViewport(t *testing.T) {
	env := newTestEnv(t, fast)
	env.get("/")

	assert.Equal(t, http.StatusNoContent, env.post("/actions/viewport", url.Values{"width": {"640"}, "height": {"480"}}).StatusCode)
	assert.Equal(t, http.StatusBadRequest, env.post("/actions/viewport", url.Values{"width": {"wide"}}).StatusCode)
}

func TestFormPostRedirects(t *testing.T) {
	env := newTestEnv(t, fast)
	env.get("/")
	env.client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp, err := env.client.PostForm(env.srv.URL+"/actions/reset", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
}

func TestEventsStreamInitialView(t *testing.T) {
	env := newTestEnv(t, fast)
	env.get("/")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := env.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	var event string
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" && event != "" {
			break
		}
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data.WriteString(strings.TrimPrefix(line, "data: "))
			data.WriteString("\n")
		}
	}
	assert.Equal(t, "view", event)
	assert.Contains(t, data.String(), "Generate Pick #1")
}

func TestEventsPushesChanges(t *testing.T) {
	env := newTestEnv(t, fast)
	env.get("/")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := env.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	lines := make(chan string, 256)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1<<20)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	env.post("/actions/reset", nil)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			require.True(t, ok, "stream ended early")
			if strings.Contains(line, "reset-confirmation") {
				return
			}
		case <-deadline:
			t.Fatal("reset dialog never streamed")
		}
	}
}

func TestKeepaliveResendsDriftedView(t *testing.T) {
	env := newTestEnv(t, fast)
	env.get("/")
	require.Equal(t, http.StatusNoContent, env.post("/actions/teams/0/edit", nil).StatusCode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := env.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	lines := make(chan string, 256)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1<<20)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	// keystrokes publish no event, so only the keepalive tick can deliver them
	require.Equal(t, http.StatusNoContent, env.post("/actions/teams/0/input", url.Values{"name": {"Aces"}}).StatusCode)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			require.True(t, ok, "stream ended early")
			if strings.Contains(line, `value="Aces"`) {
				return
			}
		case <-deadline:
			t.Fatal("drifted view never resent")
		}
	}
}

func TestAPIHistory(t *testing.T) {
	env := newTestEnv(t, fast)
	ctx := context.Background()
	require.NoError(t, env.journal.Record(ctx, &models.JournalEntry{Kind: models.JournalPick, TeamName: "Alpha", PickNumber: 1}))
	require.NoError(t, env.journal.Record(ctx, &models.JournalEntry{Kind: models.JournalReset}))

	resp := env.get("/api/history?limit=1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var entries []models.JournalEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	require.Len(t, entries, 1)
	assert.Equal(t, models.JournalReset, entries[0].Kind)

	assert.Equal(t, http.StatusBadRequest, env.get("/api/history?limit=abc").StatusCode)
}

func TestAPIStats(t *testing.T) {
	env := newTestEnv(t, fast)
	ctx := context.Background()
	require.NoError(t, env.stats.RecordPick(ctx, models.PickRecord{TeamName: "Alpha", PickNumber: 1, Percentage: 50}))
	require.NoError(t, env.stats.RecordPick(ctx, models.PickRecord{TeamName: "Bravo", PickNumber: 2, Percentage: 60}))

	resp := env.get("/api/stats")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats []models.TeamStat
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Len(t, stats, 2)
}

func TestHealthEndpoints(t *testing.T) {
	down := errors.New("connection refused")
	env := newTestEnv(t, fast,
		HealthCheck{Name: "lottery", Critical: true, Check: func(context.Context) error { return down }},
		HealthCheck{Name: "analytics", Check: func(context.Context) error { return nil }},
	)

	assert.Equal(t, http.StatusOK, env.get("/healthz").StatusCode)
	assert.Equal(t, http.StatusServiceUnavailable, env.get("/readyz").StatusCode)

	resp := env.get("/api/health")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var body struct {
		Status string                 `json:"status"`
		Checks map[string]checkResult `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "unhealthy", body.Checks["lottery"].Status)
	assert.Equal(t, "connection refused", body.Checks["lottery"].Error)
	assert.Equal(t, "healthy", body.Checks["analytics"].Status)
}

func TestHealthyReadiness(t *testing.T) {
	env := newTestEnv(t, fast, HealthCheck{Name: "journal", Critical: true, Check: func(context.Context) error { return nil }})
	assert.Equal(t, http.StatusOK, env.get("/readyz").StatusCode)
	assert.Equal(t, http.StatusOK, env.get("/api/health").StatusCode)
}

func TestStaticAssets(t *testing.T) {
	env := newTestEnv(t, fast)
	assert.Equal(t, http.StatusOK, env.get("/static/app.js").StatusCode)
	assert.Equal(t, http.StatusOK, env.get("/static/app.css").StatusCode)
	assert.Equal(t, http.StatusNotFound, env.get("/static/missing.js").StatusCode)
}

func TestShutdownRejectsNewSessions(t *testing.T) {
	env := newTestEnv(t, fast)
	env.store.CloseAll()
	assert.Equal(t, http.StatusServiceUnavailable, env.get("/").StatusCode)
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "12.5", formatNumber(12.5))
	assert.Equal(t, "40", formatNumber(40))
	assert.Equal(t, "33.3", formatNumber(33.3))
}
