package models

import "time"

// Team is a team still in the draft pool.
type Team struct {
	Name       string  `json:"team_name"`
	Points     float64 `json:"team_lottery_pick_points"`
	Percentage float64 `json:"team_lottery_pick_perc"`
	// OriginalName is the name the lottery service keys renames on. Optional on the wire.
	OriginalName string `json:"original_name,omitempty"`
}

// DraftOrderEntry is a snapshot of a team at the moment it was drawn. Never edited after creation.
type DraftOrderEntry struct {
	TeamName              string  `json:"teamName"`
	PercentageAtSelection float64 `json:"teamPercAtSelection"`
}

// DraftState is the client-side view of a draft.
type DraftState struct {
	Teams      []Team            `json:"teams"`
	DraftOrder []DraftOrderEntry `json:"draft_order"`
	IsComplete bool              `json:"is_complete"`
}

// ServerState is the shape returned by the lottery service's /state endpoint.
// Draft order entries arrive as full teams and must go through Normalize.
type ServerState struct {
	Teams      []Team `json:"teams"`
	DraftOrder []Team `json:"draft_order"`
	IsComplete bool   `json:"is_complete"`
}

// Normalize maps the service's draft state onto the client shape. It is the only
// place the team_name/team_lottery_pick_perc -> teamName/teamPercAtSelection mapping happens.
func Normalize(s ServerState) DraftState {
	out := DraftState{
		Teams:      make([]Team, len(s.Teams)),
		DraftOrder: make([]DraftOrderEntry, 0, len(s.DraftOrder)),
		IsComplete: s.IsComplete,
	}
	copy(out.Teams, s.Teams)
	for _, t := range s.DraftOrder {
		out.DraftOrder = append(out.DraftOrder, DraftOrderEntry{
			TeamName:              t.Name,
			PercentageAtSelection: t.Percentage,
		})
	}
	return out
}

// Clone returns a deep copy so snapshots never alias controller state.
func (s DraftState) Clone() DraftState {
	out := DraftState{
		Teams:      make([]Team, len(s.Teams)),
		DraftOrder: make([]DraftOrderEntry, len(s.DraftOrder)),
		IsComplete: s.IsComplete,
	}
	copy(out.Teams, s.Teams)
	copy(out.DraftOrder, s.DraftOrder)
	return out
}

// Size is the number of teams across pool and order; constant over one draft.
func (s DraftState) Size() int {
	return len(s.Teams) + len(s.DraftOrder)
}

// LatestPick returns the most recently drawn entry.
func (s DraftState) LatestPick() (DraftOrderEntry, bool) {
	if len(s.DraftOrder) == 0 {
		return DraftOrderEntry{}, false
	}
	return s.DraftOrder[len(s.DraftOrder)-1], true
}

// NextPickNumber is the 1-based number of the pick that would be drawn next.
func (s DraftState) NextPickNumber() int {
	return len(s.DraftOrder) + 1
}

// JournalKind classifies a journal entry.
type JournalKind string

const (
	JournalPick   JournalKind = "pick"
	JournalRename JournalKind = "rename"
	JournalReset  JournalKind = "reset"
)

// JournalEntry records a draft event observed by a view.
type JournalEntry struct {
	ID           string      `json:"id"`
	ViewID       string      `json:"viewId"`
	Kind         JournalKind `json:"kind"`
	TeamName     string      `json:"teamName,omitempty"`
	PreviousName string      `json:"previousName,omitempty"`
	PickNumber   int         `json:"pickNumber,omitempty"`
	Percentage   float64     `json:"percentage,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// PickRecord is what the analytics sink stores for every drawn pick.
type PickRecord struct {
	ViewID     string
	PickNumber int
	TeamName   string
	Percentage float64
	PoolSize   int
	DrawnAt    time.Time
}

// TeamStat aggregates recorded picks for one team.
type TeamStat struct {
	TeamName      string  `json:"teamName"`
	Picks         uint64  `json:"picks"`
	FirstPicks    uint64  `json:"firstPicks"`
	AvgPercentage float64 `json:"avgPercentage"`
}
