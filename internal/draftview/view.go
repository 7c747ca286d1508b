// Package draftview is the controller behind the lottery draft page. A View owns the
// locally cached draft state for one browser session, funnels every mutation through
// a named command (Load, GeneratePick, CommitEdit, ConfirmReset) and reports changes
// through a notify callback so the page can be re-rendered.
package draftview

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/Billy-Davies-2/lottery-draft-ui/internal/confetti"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/logger"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/lottery"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/modal"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/models"
)

// Banner messages. Underlying errors only go to the log.
const (
	MsgLoadFailed   = "Failed to fetch draft state"
	MsgPickFailed   = "Failed to generate next pick"
	MsgRenameFailed = "Failed to update team name"
	MsgResetFailed  = "Failed to reset draft"
)

const (
	ModalPickResult   = "pick-result"
	ModalResetConfirm = "reset-confirm"

	DefaultDrumInterval = 500 * time.Millisecond
	drumGlyph           = "🥁"
)

var (
	ErrClosed            = errors.New("view is closed")
	ErrDraftComplete     = errors.New("draft is complete")
	ErrPickInFlight      = errors.New("a pick is already being drawn")
	ErrResetInFlight     = errors.New("a reset is already in progress")
	ErrResetNotConfirmed = errors.New("reset requires confirmation")
	ErrNotEditing        = errors.New("team is not being edited")
	ErrTeamIndex         = errors.New("team index out of range")
	ErrUnknownModal      = errors.New("unknown modal")
)

// ChangeKind tells subscribers what kind of re-render a change needs.
type ChangeKind string

const (
	ChangeUI     ChangeKind = "view:ui"
	ChangeState  ChangeKind = "view:state"
	ChangeError  ChangeKind = "view:error"
	ChangePick   ChangeKind = "draft:pick"
	ChangeRename ChangeKind = "draft:rename"
	ChangeReset  ChangeKind = "draft:reset"
)

// Change is emitted after every state transition, outside the view lock.
type Change struct {
	Kind         ChangeKind
	ViewID       string
	Pick         *models.DraftOrderEntry
	PickNumber   int
	PoolSize     int
	TeamName     string
	PreviousName string
	Error        string
}

type Options struct {
	ID           string
	API          lottery.API
	Delay        DelayRange
	Rand         *rand.Rand
	Confetti     confetti.Config
	DrumInterval time.Duration
	Notify       func(Change)
}

type editSession struct {
	index     int
	confirmed string
	key       string
	draft     string
}

type View struct {
	id     string
	api    lottery.API
	delay  DelayRange
	drumIv time.Duration
	notify func(Change)
	log    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	keys         *modal.KeyBus
	pickResult   *modal.Modal
	resetConfirm *modal.Modal
	confetti     *confetti.Effect

	mu        sync.Mutex
	rng       *rand.Rand
	closed    bool
	loaded    bool
	state     models.DraftState
	confirmed []string
	errMsg    string
	drawing   bool
	resetting bool
	drum      int
	drumStop  context.CancelFunc
	editing   *editSession
}

// New creates a view with an empty draft state. Call Load to mount it.
func New(opts Options) *View {
	if opts.Delay == (DelayRange{}) {
		opts.Delay = DefaultDelay
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.DrumInterval <= 0 {
		opts.DrumInterval = DefaultDrumInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	v := &View{
		id:     opts.ID,
		api:    opts.API,
		delay:  opts.Delay,
		drumIv: opts.DrumInterval,
		notify: opts.Notify,
		log:    logger.With("component", "draftview", "view_id", opts.ID),
		ctx:    ctx,
		cancel: cancel,
		keys:   modal.NewKeyBus(),
		rng:    opts.Rand,
		state:  models.DraftState{Teams: []models.Team{}, DraftOrder: []models.DraftOrderEntry{}},
	}
	v.pickResult = modal.New(ModalPickResult, v.keys, v.ClosePickResult)
	v.resetConfirm = modal.New(ModalResetConfirm, v.keys, v.CancelReset)
	v.confetti = confetti.New(opts.Confetti, nil, func() { v.emit(Change{Kind: ChangeUI}) })
	return v
}

func (v *View) ID() string {
	return v.id
}

// Load fetches the authoritative state. On failure the previous state is kept and the
// error banner is set.
func (v *View) Load(ctx context.Context) error {
	ctx, cancel := v.requestContext(ctx)
	defer cancel()

	s, err := v.api.State(ctx)

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		v.errMsg = MsgLoadFailed
		v.mu.Unlock()
		v.log.Error("Error fetching draft state", "error", err)
		v.emit(Change{Kind: ChangeError, Error: MsgLoadFailed})
		return err
	}
	v.replaceLocked(models.Normalize(s))
	v.errMsg = ""
	v.loaded = true
	v.mu.Unlock()

	v.emit(Change{Kind: ChangeState})
	return nil
}

// GeneratePick enters the drawing state and schedules the pick request after a
// randomized drama delay. It returns the sampled delay.
func (v *View) GeneratePick() (time.Duration, error) {
	v.mu.Lock()
	switch {
	case v.closed:
		v.mu.Unlock()
		return 0, ErrClosed
	case v.state.IsComplete:
		v.mu.Unlock()
		return 0, ErrDraftComplete
	case v.drawing:
		v.mu.Unlock()
		return 0, ErrPickInFlight
	}
	v.drawing = true
	delay := v.delay.Sample(v.rng)
	v.startDrumLocked()
	v.wg.Add(1)
	v.mu.Unlock()

	v.log.Info("Drama delay", "delay_ms", delay.Milliseconds())
	v.emit(Change{Kind: ChangeUI})

	go v.drawAfter(delay)
	return delay, nil
}

func (v *View) drawAfter(delay time.Duration) {
	defer v.wg.Done()

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-v.ctx.Done():
		return
	case <-timer.C:
	}

	res, err := v.api.GeneratePick(v.ctx)

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.drawing = false
	v.stopDrumLocked()
	if err != nil {
		v.errMsg = MsgPickFailed
		v.mu.Unlock()
		v.log.Error("Error generating pick", "error", err)
		v.emit(Change{Kind: ChangeError, Error: MsgPickFailed})
		return
	}

	v.replaceLocked(models.Normalize(res.State))
	v.errMsg = ""
	change := Change{Kind: ChangePick, PickNumber: len(v.state.DraftOrder), PoolSize: v.state.Size()}
	if latest, ok := v.state.LatestPick(); ok {
		change.Pick = &latest
	}
	v.confetti.Set(true)
	v.pickResult.Show()
	v.mu.Unlock()

	if change.Pick != nil {
		v.log.Info("Pick drawn", "pick_number", change.PickNumber, "team", change.Pick.TeamName, "percentage", change.Pick.PercentageAtSelection)
	}
	v.emit(change)
}

// ClosePickResult dismisses the result dialog and the confetti with it.
func (v *View) ClosePickResult() {
	v.pickResult.Hide()
	v.confetti.Set(false)
	v.emit(Change{Kind: ChangeUI})
}

// BeginEdit turns team row i into an editable field seeded with its current name.
func (v *View) BeginEdit(i int) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	if i < 0 || i >= len(v.state.Teams) {
		v.mu.Unlock()
		return ErrTeamIndex
	}
	// an edit abandoned on another row goes back to its confirmed name
	if e := v.editing; e != nil && e.index != i {
		v.revertLocked(e.confirmed, e.draft)
	}
	team := v.state.Teams[i]
	key := team.OriginalName
	if key == "" {
		key = v.confirmed[i]
	}
	v.editing = &editSession{index: i, confirmed: v.confirmed[i], key: key, draft: team.Name}
	v.mu.Unlock()

	v.emit(Change{Kind: ChangeUI})
	return nil
}

// EditInput records a keystroke. Local only: no request and no change notification.
func (v *View) EditInput(i int, text string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	if v.editing == nil || v.editing.index != i {
		return ErrNotEditing
	}
	v.editing.draft = text
	v.state.Teams[i].Name = text
	return nil
}

// CancelEdit leaves edit mode and restores the confirmed name.
func (v *View) CancelEdit() {
	v.mu.Lock()
	if v.editing != nil {
		v.revertLocked(v.editing.confirmed, v.editing.draft)
		v.editing = nil
	}
	v.mu.Unlock()
	v.emit(Change{Kind: ChangeUI})
}

// CommitEdit ends edit mode for row i and persists the name if it differs from the
// last name the server confirmed. A rejected rename reverts to the confirmed name.
func (v *View) CommitEdit(ctx context.Context, i int) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	if v.editing == nil || v.editing.index != i {
		v.mu.Unlock()
		return ErrNotEditing
	}
	edit := *v.editing
	v.editing = nil
	newName := edit.draft

	if newName == edit.confirmed {
		v.mu.Unlock()
		v.emit(Change{Kind: ChangeUI})
		return nil
	}
	if strings.TrimSpace(newName) == "" {
		v.revertLocked(edit.confirmed, newName)
		v.mu.Unlock()
		v.emit(Change{Kind: ChangeUI})
		return nil
	}
	v.mu.Unlock()

	ctx, cancel := v.requestContext(ctx)
	defer cancel()
	s, err := v.api.UpdateTeamName(ctx, edit.key, newName)

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		v.errMsg = MsgRenameFailed
		v.revertLocked(edit.confirmed, newName)
		v.mu.Unlock()
		v.log.Error("Error updating team name", "error", err, "original_name", edit.key, "new_name", newName)
		v.emit(Change{Kind: ChangeError, Error: MsgRenameFailed})
		return err
	}
	v.replaceLocked(models.Normalize(s))
	v.errMsg = ""
	v.mu.Unlock()

	v.emit(Change{Kind: ChangeRename, TeamName: newName, PreviousName: edit.confirmed})
	return nil
}

// RequestReset opens the confirmation dialog.
func (v *View) RequestReset() {
	v.resetConfirm.Show()
	v.emit(Change{Kind: ChangeUI})
}

// CancelReset closes the confirmation dialog without resetting.
func (v *View) CancelReset() {
	v.resetConfirm.Hide()
	v.emit(Change{Kind: ChangeUI})
}

// ConfirmReset resets the draft on the server and re-fetches state. The resetting flag
// is cleared and the dialog dismissed whatever the outcome.
func (v *View) ConfirmReset(ctx context.Context) error {
	v.mu.Lock()
	switch {
	case v.closed:
		v.mu.Unlock()
		return ErrClosed
	case v.resetting:
		v.mu.Unlock()
		return ErrResetInFlight
	case !v.resetConfirm.Visible():
		v.mu.Unlock()
		return ErrResetNotConfirmed
	}
	v.resetting = true
	v.mu.Unlock()
	v.emit(Change{Kind: ChangeUI})

	ctx, cancel := v.requestContext(ctx)
	defer cancel()

	var s models.ServerState
	resetErr := v.api.ResetDraft(ctx)
	var fetchErr error
	if resetErr == nil {
		s, fetchErr = v.api.State(ctx)
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	v.resetting = false
	v.resetConfirm.Hide()

	switch {
	case resetErr != nil:
		v.errMsg = MsgResetFailed
		v.mu.Unlock()
		v.log.Error("Error resetting draft", "error", resetErr)
		v.emit(Change{Kind: ChangeError, Error: MsgResetFailed})
		return resetErr
	case fetchErr != nil:
		v.errMsg = MsgLoadFailed
		v.mu.Unlock()
		v.log.Error("Error fetching draft state after reset", "error", fetchErr)
		v.emit(Change{Kind: ChangeError, Error: MsgLoadFailed})
		return fetchErr
	}

	v.editing = nil
	v.replaceLocked(models.Normalize(s))
	v.errMsg = ""
	v.loaded = true
	v.pickResult.Hide()
	v.confetti.Set(false)
	v.mu.Unlock()

	v.log.Info("Draft reset")
	v.emit(Change{Kind: ChangeReset, PoolSize: len(s.Teams) + len(s.DraftOrder)})
	return nil
}

// HandleKey forwards a keydown to whichever modals are listening.
func (v *View) HandleKey(key string) {
	v.keys.Dispatch(key)
}

// ClickModal routes a click on one of the view's modals. It reports whether the modal closed.
func (v *View) ClickModal(name string, target modal.Target) (bool, error) {
	switch name {
	case ModalPickResult:
		return v.pickResult.Click(target), nil
	case ModalResetConfirm:
		return v.resetConfirm.Click(target), nil
	default:
		return false, ErrUnknownModal
	}
}

// SetViewport records the browser window size for the particle effect.
func (v *View) SetViewport(width, height int) {
	v.confetti.Resize(confetti.Viewport{Width: width, Height: height})
}

// Close is the unmount hook. Pending timers stop, key listeners detach, and any
// response that arrives afterwards is dropped.
func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.stopDrumLocked()
	v.mu.Unlock()

	v.cancel()
	v.pickResult.Close()
	v.resetConfirm.Close()
	v.confetti.Stop()
}

// Wait blocks until background pick goroutines have finished.
func (v *View) Wait() {
	v.wg.Wait()
}

// Done is closed once the view has been unmounted.
func (v *View) Done() <-chan struct{} {
	return v.ctx.Done()
}

func (v *View) Closed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

// replaceLocked swaps in a new authoritative state. An edit in progress survives if its
// team is still at the same row with the same confirmed name.
func (v *View) replaceLocked(s models.DraftState) {
	v.state = s
	v.confirmed = make([]string, len(s.Teams))
	for i, t := range s.Teams {
		v.confirmed[i] = t.Name
	}
	if e := v.editing; e != nil {
		if e.index < len(s.Teams) && v.confirmed[e.index] == e.confirmed {
			v.state.Teams[e.index].Name = e.draft
		} else {
			v.editing = nil
		}
	}
}

func (v *View) revertLocked(confirmed, draft string) {
	for j := range v.state.Teams {
		if v.confirmed[j] == confirmed && v.state.Teams[j].Name == draft {
			v.state.Teams[j].Name = confirmed
			return
		}
	}
}

func (v *View) startDrumLocked() {
	v.drum = 0
	ctx, cancel := context.WithCancel(v.ctx)
	v.drumStop = cancel
	go func() {
		t := time.NewTicker(v.drumIv)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				v.mu.Lock()
				if ctx.Err() != nil {
					v.mu.Unlock()
					return
				}
				v.drum++
				v.mu.Unlock()
				v.emit(Change{Kind: ChangeUI})
			}
		}
	}()
}

func (v *View) stopDrumLocked() {
	if v.drumStop != nil {
		v.drumStop()
		v.drumStop = nil
	}
	v.drum = 0
}

// requestContext ties a caller's context to the view lifetime.
func (v *View) requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(v.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (v *View) emit(c Change) {
	if v.notify == nil {
		return
	}
	c.ViewID = v.id
	v.notify(c)
}
