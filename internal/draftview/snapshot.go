package draftview

import (
	"strings"

	"github.com/Billy-Davies-2/lottery-draft-ui/internal/confetti"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/models"
)

// Snapshot is a read-only projection of a view for rendering.
type Snapshot struct {
	ViewID         string            `json:"viewId"`
	Loaded         bool              `json:"loaded"`
	State          models.DraftState `json:"state"`
	Error          string            `json:"error,omitempty"`
	Drawing        bool              `json:"drawing"`
	Resetting      bool              `json:"resetting"`
	DrumRoll       string            `json:"drumRoll,omitempty"`
	EditingIndex   int               `json:"editingIndex"`
	CanGenerate    bool              `json:"canGenerate"`
	NextPickNumber int               `json:"nextPickNumber"`

	PickResultOpen   bool                    `json:"pickResultOpen"`
	LatestPick       *models.DraftOrderEntry `json:"latestPick,omitempty"`
	ResetConfirmOpen bool                    `json:"resetConfirmOpen"`

	ConfettiShowing bool                `json:"confettiShowing"`
	Confetti        []confetti.Particle `json:"-"`
	Viewport        confetti.Viewport   `json:"-"`
}

// Editing reports whether team row i is in edit mode.
func (s Snapshot) Editing(i int) bool {
	return s.EditingIndex == i
}

func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := Snapshot{
		ViewID:           v.id,
		Loaded:           v.loaded,
		State:            v.state.Clone(),
		Error:            v.errMsg,
		Drawing:          v.drawing,
		Resetting:        v.resetting,
		DrumRoll:         strings.Repeat(drumGlyph, v.drum),
		EditingIndex:     -1,
		CanGenerate:      !v.closed && !v.state.IsComplete && !v.drawing,
		NextPickNumber:   v.state.NextPickNumber(),
		PickResultOpen:   v.pickResult.Visible(),
		ResetConfirmOpen: v.resetConfirm.Visible(),
		ConfettiShowing:  v.confetti.Showing(),
		Confetti:         v.confetti.Particles(),
		Viewport:         v.confetti.Viewport(),
	}
	if v.editing != nil {
		s.EditingIndex = v.editing.index
	}
	if latest, ok := v.state.LatestPick(); ok {
		s.LatestPick = &latest
	}
	return s
}
