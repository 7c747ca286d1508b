// Package handlers serves the draft page, its command endpoints, the event stream and
// the JSON/health API.
package handlers

import (
	"context"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Billy-Davies-2/lottery-draft-ui/internal/dal"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/draftview"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/logger"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/modal"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/models"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/session"
)

const (
	CookieName       = "lottery_view"
	defaultKeepalive = 30 * time.Second
	actionTimeout    = 30 * time.Second
)

// StatsSource answers aggregate pick questions (ClickHouse or its mock).
type StatsSource interface {
	TeamStats(ctx context.Context) ([]models.TeamStat, error)
}

// HealthCheck is one dependency probe. Critical checks gate readiness.
type HealthCheck struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) error
}

type Options struct {
	Store     *session.Store
	Journal   dal.Journal
	Stats     StatsSource
	Checks    []HealthCheck
	Keepalive time.Duration
}

type Handlers struct {
	store     *session.Store
	journal   dal.Journal
	stats     StatsSource
	checks    []HealthCheck
	keepalive time.Duration
	tmpl      *template.Template
}

func New(opts Options) (*Handlers, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	if opts.Keepalive <= 0 {
		opts.Keepalive = defaultKeepalive
	}
	return &Handlers{
		store:     opts.Store,
		journal:   opts.Journal,
		stats:     opts.Stats,
		checks:    opts.Checks,
		keepalive: opts.Keepalive,
		tmpl:      tmpl,
	}, nil
}

// Routes builds the full router.
func (h *Handlers) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	r.Mount("/static", http.StripPrefix("/static", http.FileServer(http.FS(static))))

	r.Get("/healthz", h.liveness)
	r.Get("/readyz", h.readiness)
	r.Get("/api/health", h.health)

	// The event stream outlives any request timeout.
	r.Get("/events", h.events)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(actionTimeout))

		r.Get("/", h.home)
		r.Get("/view", h.viewFragment)

		r.Get("/api/view", h.apiView)
		r.Get("/api/history", h.apiHistory)
		r.Get("/api/stats", h.apiStats)

		r.Route("/actions", func(r chi.Router) {
			r.Post("/pick", h.action(func(r *http.Request, v *draftview.View) error {
				_, err := v.GeneratePick()
				return err
			}))
			r.Post("/pick/close", h.action(func(r *http.Request, v *draftview.View) error {
				v.ClosePickResult()
				return nil
			}))
			r.Post("/teams/{index}/edit", h.teamAction(func(r *http.Request, v *draftview.View, i int) error {
				return v.BeginEdit(i)
			}))
			r.Post("/teams/{index}/input", h.teamAction(func(r *http.Request, v *draftview.View, i int) error {
				return v.EditInput(i, r.FormValue("name"))
			}))
			r.Post("/teams/{index}/commit", h.teamAction(func(r *http.Request, v *draftview.View, i int) error {
				return v.CommitEdit(r.Context(), i)
			}))
			r.Post("/teams/cancel", h.action(func(r *http.Request, v *draftview.View) error {
				v.CancelEdit()
				return nil
			}))
			r.Post("/reset", h.action(func(r *http.Request, v *draftview.View) error {
				v.RequestReset()
				return nil
			}))
			r.Post("/reset/cancel", h.action(func(r *http.Request, v *draftview.View) error {
				v.CancelReset()
				return nil
			}))
			r.Post("/reset/confirm", h.action(func(r *http.Request, v *draftview.View) error {
				return v.ConfirmReset(r.Context())
			}))
			r.Post("/modal/{name}/{target}", h.action(func(r *http.Request, v *draftview.View) error {
				target := modal.Target(chi.URLParam(r, "target"))
				switch target {
				case modal.TargetBackdrop, modal.TargetClose, modal.TargetContent:
				default:
					return errBadRequest
				}
				_, err := v.ClickModal(chi.URLParam(r, "name"), target)
				return err
			}))
			r.Post("/key", h.action(func(r *http.Request, v *draftview.View) error {
				v.HandleKey(r.FormValue("key"))
				return nil
			}))
			r.Post("/viewport", h.action(func(r *http.Request, v *draftview.View) error {
				width, err1 := strconv.Atoi(r.FormValue("width"))
				height, err2 := strconv.Atoi(r.FormValue("height"))
				if err1 != nil || err2 != nil {
					return errBadRequest
				}
				v.SetViewport(width, height)
				return nil
			}))
		})
	})

	return r
}

var errBadRequest = errors.New("bad request")

// view resolves the caller's session cookie to a mounted view, issuing a new session
// when the cookie is missing or malformed.
func (h *Handlers) view(w http.ResponseWriter, r *http.Request) (*draftview.View, error) {
	id := ""
	if c, err := r.Cookie(CookieName); err == nil && session.ValidID(c.Value) {
		id = c.Value
	}
	if id == "" {
		id = session.NewID()
		http.SetCookie(w, &http.Cookie{
			Name:     CookieName,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return h.store.GetOrCreate(r.Context(), id)
}

func (h *Handlers) home(w http.ResponseWriter, r *http.Request) {
	v, err := h.view(w, r)
	if err != nil {
		http.Error(w, "service shutting down", http.StatusServiceUnavailable)
		return
	}
	render(w, r, h.page(v.Snapshot()))
}

func (h *Handlers) viewFragment(w http.ResponseWriter, r *http.Request) {
	v, err := h.view(w, r)
	if err != nil {
		http.Error(w, "service shutting down", http.StatusServiceUnavailable)
		return
	}
	render(w, r, h.fragment(v.Snapshot()))
}

type actionFunc func(r *http.Request, v *draftview.View) error

// action wraps a view command. Failures of the lottery service are already shown in
// the view's error banner, so only rejected commands produce an error status.
func (h *Handlers) action(fn actionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		v, err := h.view(w, r)
		if err != nil {
			http.Error(w, "service shutting down", http.StatusServiceUnavailable)
			return
		}
		if err := fn(r, v); err != nil {
			if status, rejected := commandStatus(err); rejected {
				http.Error(w, err.Error(), status)
				return
			}
		}
		if r.Header.Get("X-Requested-With") == "fetch" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (h *Handlers) teamAction(fn func(r *http.Request, v *draftview.View, i int) error) http.HandlerFunc {
	return h.action(func(r *http.Request, v *draftview.View) error {
		i, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			return draftview.ErrTeamIndex
		}
		return fn(r, v, i)
	})
}

func commandStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, draftview.ErrTeamIndex):
		return http.StatusBadRequest, true
	case errors.Is(err, draftview.ErrUnknownModal):
		return http.StatusNotFound, true
	case errors.Is(err, draftview.ErrClosed):
		return http.StatusGone, true
	case errors.Is(err, draftview.ErrDraftComplete),
		errors.Is(err, draftview.ErrPickInFlight),
		errors.Is(err, draftview.ErrResetInFlight),
		errors.Is(err, draftview.ErrResetNotConfirmed),
		errors.Is(err, draftview.ErrNotEditing):
		return http.StatusConflict, true
	default:
		return 0, false
	}
}

// requestLogger logs each request through the structured logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
