// Package lotterytest provides an in-memory stand-in for the lottery service's HTTP
// contract. Picks are deterministic (Pick chooses the index) so tests can assert on them.
package lotterytest

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/Billy-Davies-2/lottery-draft-ui/internal/models"
)

type team struct {
	original string
	name     string
	points   float64
	perc     float64
}

// Service implements /state, /generate-pick, /update-team-name, /reset-draft and /health.
type Service struct {
	mu      sync.Mutex
	initial []models.Team
	teams   []*team
	order   []*team
	calls   map[string]int
	fail    map[string]int

	// Pick selects which pool index is drawn; defaults to 0.
	Pick func(pool []models.Team) int
	// BeforeRespond runs before every handler, outside the lock.
	BeforeRespond func(path string)
}

// New seeds the pool with the given teams (name and points; percentages are derived).
func New(teams ...models.Team) *Service {
	s := &Service{
		initial: append([]models.Team(nil), teams...),
		calls:   make(map[string]int),
		fail:    make(map[string]int),
	}
	s.resetLocked()
	return s
}

// NewServer starts an httptest server serving the fake under /api and returns its base URL.
func NewServer(t testing.TB, teams ...models.Team) (*Service, string) {
	t.Helper()
	s := New(teams...)
	srv := httptest.NewServer(http.StripPrefix("/api", s))
	t.Cleanup(srv.Close)
	return s, srv.URL + "/api"
}

// Teams builds a pool from names and points.
func Teams(pairs ...any) []models.Team {
	out := make([]models.Team, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, models.Team{Name: pairs[i].(string), Points: float64(pairs[i+1].(int))})
	}
	return out
}

// Fail makes the given path answer with status until cleared with status 0.
func (s *Service) Fail(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.fail, path)
		return
	}
	s.fail[path] = status
}

// Calls returns how many requests reached path.
func (s *Service) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// State returns the current wire state.
func (s *Service) State() models.ServerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.BeforeRespond != nil {
		s.BeforeRespond(r.URL.Path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[r.URL.Path]++
	if status, ok := s.fail[r.URL.Path]; ok {
		writeJSON(w, status, map[string]string{"error": "injected failure"})
		return
	}

	switch {
	case r.URL.Path == "/health" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	case r.URL.Path == "/state" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, s.stateLocked())
	case r.URL.Path == "/generate-pick" && r.Method == http.MethodPost:
		s.generateLocked(w)
	case r.URL.Path == "/update-team-name" && r.Method == http.MethodPost:
		s.renameLocked(w, r)
	case r.URL.Path == "/reset-draft" && r.Method == http.MethodPost:
		s.resetLocked()
		writeJSON(w, http.StatusOK, s.stateLocked())
	default:
		http.NotFound(w, r)
	}
}

func (s *Service) generateLocked(w http.ResponseWriter) {
	if len(s.teams) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Draft is complete or no teams available"})
		return
	}
	idx := 0
	if s.Pick != nil {
		idx = s.Pick(s.stateLocked().Teams)
	}
	chosen := s.teams[idx]
	s.order = append(s.order, chosen)
	s.teams = append(s.teams[:idx:idx], s.teams[idx+1:]...)
	s.recalcLocked()

	writeJSON(w, http.StatusOK, map[string]any{
		"chosen_team": toModel(chosen),
		"pick_number": len(s.order),
		"state":       s.stateLocked(),
	})
}

func (s *Service) renameLocked(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OriginalName *string `json:"original_name"`
		NewName      *string `json:"new_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OriginalName == nil || req.NewName == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing original_name or new_name"})
		return
	}
	for _, t := range s.teams {
		if t.original == *req.OriginalName {
			t.name = *req.NewName
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "state": s.stateLocked()})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Team not found"})
}

func (s *Service) resetLocked() {
	s.teams = make([]*team, 0, len(s.initial))
	for _, t := range s.initial {
		s.teams = append(s.teams, &team{original: t.Name, name: t.Name, points: t.Points})
	}
	s.order = nil
	s.recalcLocked()
}

// recalcLocked only touches the pool; drafted teams keep their percentage at selection.
func (s *Service) recalcLocked() {
	var sum float64
	for _, t := range s.teams {
		sum += t.points
	}
	for _, t := range s.teams {
		if sum == 0 {
			t.perc = 0
			continue
		}
		t.perc = t.points / sum * 100
	}
}

func (s *Service) stateLocked() models.ServerState {
	st := models.ServerState{
		Teams:      make([]models.Team, 0, len(s.teams)),
		DraftOrder: make([]models.Team, 0, len(s.order)),
		IsComplete: len(s.teams) == 0,
	}
	for _, t := range s.teams {
		st.Teams = append(st.Teams, toModel(t))
	}
	for _, t := range s.order {
		st.DraftOrder = append(st.DraftOrder, toModel(t))
	}
	return st
}

func toModel(t *team) models.Team {
	return models.Team{
		Name:         t.name,
		OriginalName: t.original,
		Points:       t.points,
		Percentage:   math.Round(t.perc*10) / 10,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
