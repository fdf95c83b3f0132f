// Package app is the bubbletea front end of the statement import workflow.
package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/jwulff/stmtimport/internal/geometry"
	"github.com/jwulff/stmtimport/internal/selector"
	"github.com/jwulff/stmtimport/internal/session"
	"github.com/jwulff/stmtimport/internal/ui"
	"github.com/jwulff/stmtimport/internal/workflow"
)

// Layout constants.
const (
	headerRows   = 3 // title, status, divider
	footerRows   = 4 // divider, notice, hint, keys
	canvasShare  = 60
	cursorStride = 5
)

// Options configure a Model.
type Options struct {
	Backend  Backend
	History  Recorder // nil disables the local ledger
	Settings workflow.Settings
	Method   session.Method
	// File, when set, is uploaded as soon as the program starts.
	File           string
	MaxUploadBytes int64
	// NoticeTTL is how long informational notices stay up. Zero keeps them
	// until replaced.
	NoticeTTL time.Duration
	Logger    zerolog.Logger
}

// Model is the bubbletea model.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	backend        Backend
	recorder       Recorder
	log            zerolog.Logger
	maxUploadBytes int64
	noticeTTL      time.Duration
	initialFile    string

	machine workflow.Machine

	// Page display
	surface   selector.Surface
	pageSeq   uint64
	pageReady bool
	pageImg   image.Image
	imgErr    string

	// Keyboard pointer on the canvas
	cursorCol, cursorRow int
	cursorOn             bool

	pathInput string
	dupCursor int

	hint    string
	hintSeq uint64

	historyID  int64
	historyErr string

	width  int
	height int
}

// New creates a model. Call Close when the program exits.
func New(opts Options) Model {
	ctx, cancel := context.WithCancel(context.Background())
	return Model{
		ctx:            ctx,
		cancel:         cancel,
		backend:        opts.Backend,
		recorder:       opts.History,
		log:            opts.Logger,
		maxUploadBytes: opts.MaxUploadBytes,
		noticeTTL:      opts.NoticeTTL,
		initialFile:    opts.File,
		machine:        workflow.New(opts.Settings, opts.Method),
		pathInput:      opts.File,
	}
}

// Init starts the upload when a file was given up front.
func (m Model) Init() tea.Cmd {
	if m.initialFile != "" {
		return chooseFileCmd(m.initialFile)
	}
	return nil
}

// Close cancels outstanding requests.
func (m Model) Close() {
	m.cancel()
}

// Machine exposes the workflow state.
func (m Model) Machine() workflow.Machine { return m.machine }

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.clampCursor()
		return m, nil

	case workflow.Event:
		return m.apply(msg)

	case ClearNoticeMsg:
		return m.apply(workflow.NoticeDismissed{Seq: msg.Seq})

	case ClearHintMsg:
		if msg.Seq == m.hintSeq {
			m.hint = ""
		}
		return m, nil

	case HistoryRecordedMsg:
		if msg.Err != nil {
			m.historyErr = msg.Err.Error()
			m.log.Warn().Err(msg.Err).Msg("recording import history")
		} else {
			m.historyID = msg.ID
		}
		return m, nil
	}

	return m, nil
}

// apply feeds ev to the workflow and schedules the resulting effects.
func (m Model) apply(ev workflow.Event) (Model, tea.Cmd) {
	prev := m.machine.Notice().Seq
	next, effects, err := m.machine.Apply(ev)
	if err != nil {
		m.log.Debug().Err(err).Str("event", fmt.Sprintf("%T", ev)).Msg("event rejected")
		return m.setHint(hintFor(err))
	}
	m.machine = next
	m.syncPage()
	m.surface = m.surface.SetEnabled(m.machine.Phase() == workflow.PhaseReview && m.machine.Drawing())
	m.clampDupCursor()

	cmds := make([]tea.Cmd, 0, len(effects)+1)
	for _, eff := range effects {
		m.log.Debug().Str("effect", fmt.Sprintf("%T", eff)).Msg("running")
		if c := m.effectCmd(eff); c != nil {
			cmds = append(cmds, c)
		}
	}
	if n := m.machine.Notice(); n.Seq != prev && n.Text != "" {
		m.logNotice(n)
		if n.Level != workflow.LevelError && m.noticeTTL > 0 {
			cmds = append(cmds, clearNoticeCmd(n.Seq, m.noticeTTL))
		}
	}
	return m, tea.Batch(cmds...)
}

func (m Model) logNotice(n workflow.Notice) {
	switch n.Level {
	case workflow.LevelError:
		m.log.Error().Str("phase", m.machine.Phase().String()).Msg(n.Text)
	case workflow.LevelWarn:
		m.log.Warn().Str("phase", m.machine.Phase().String()).Msg(n.Text)
	default:
		m.log.Info().Str("phase", m.machine.Phase().String()).Msg(n.Text)
	}
}

// syncPage follows the workflow's current page. A new fetch drops the old
// image and any capture in progress; a finished fetch is decoded once.
func (m *Model) syncPage() {
	p := m.machine.Page()
	if p.Seq != m.pageSeq {
		m.pageSeq = p.Seq
		m.pageReady = false
		m.pageImg = nil
		m.imgErr = ""
		m.surface = m.surface.Cancel()
	}
	if m.pageReady || !p.Loaded() {
		return
	}
	m.pageReady = true

	img, err := ui.DecodeDataURL(p.Image.Image)
	if err != nil {
		m.imgErr = err.Error()
		m.log.Warn().Err(err).Int("page", p.Number).Msg("decoding page image")
	} else {
		m.pageImg = img
	}
	w, h := float64(p.Image.Width), float64(p.Image.Height)
	if (w <= 0 || h <= 0) && img != nil {
		b := img.Bounds()
		w, h = float64(b.Dx()), float64(b.Dy())
	}
	m.surface = m.surface.Resize(w, h)
	m.clampCursor()
}

func (m Model) setHint(text string) (Model, tea.Cmd) {
	m.hintSeq++
	m.hint = text
	if m.noticeTTL <= 0 {
		return m, nil
	}
	return m, clearHintCmd(m.hintSeq, m.noticeTTL)
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, workflow.ErrBusy):
		return "Wait for the current operation to finish."
	case errors.Is(err, workflow.ErrNoTransactions):
		return "Extract some transactions first."
	case errors.Is(err, workflow.ErrEmptySelection):
		return "Select at least one transaction to import."
	case errors.Is(err, workflow.ErrDrawingOff):
		return "Press d to turn on region drawing."
	case errors.Is(err, workflow.ErrNoFile):
		return "Enter the path of a statement file."
	case errors.Is(err, session.ErrPageOutOfRange):
		return "No more pages in that direction."
	case errors.Is(err, workflow.ErrNotAllowed):
		return "Not available in this step."
	}
	return err.Error()
}

// canvas returns the page canvas for the current layout. It is invalid until
// a page size is known.
func (m Model) canvas() ui.Canvas {
	w, h := m.surface.PageSize()
	cols, rows := ui.Fit(m.width*canvasShare/100, m.bodyHeight(), w, h)
	return ui.NewCanvas(cols, rows, w, h)
}

func (m Model) bodyHeight() int {
	return max(0, m.height-headerRows-footerRows)
}

func (m *Model) clampCursor() {
	c := m.canvas()
	if !c.Valid() {
		return
	}
	m.cursorCol = min(max(m.cursorCol, 0), c.Cols-1)
	m.cursorRow = min(max(m.cursorRow, 0), c.Rows-1)
}

func (m *Model) clampDupCursor() {
	n := len(m.machine.Partition().Unique)
	if m.dupCursor >= n {
		m.dupCursor = n - 1
	}
	if m.dupCursor < 0 {
		m.dupCursor = 0
	}
}

// quit abandons an unfinished import, cancels outstanding requests and exits.
func (m Model) quit() (tea.Model, tea.Cmd) {
	if !m.machine.Phase().Terminal() {
		m.machine, _, _ = m.machine.Apply(workflow.Aborted{})
		m.log.Info().Str("file", m.machine.File()).Msg("import abandoned")
	}
	m.cancel()
	return m, tea.Quit
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == KeyCtrlC {
		return m.quit()
	}

	switch m.machine.Phase() {
	case workflow.PhaseUpload:
		return m.handleUploadKey(msg)
	case workflow.PhaseReview:
		return m.handleReviewKey(key)
	case workflow.PhaseDuplicateCheck:
		return m.handleDuplicateKey(key)
	}

	switch key {
	case KeyQuit, KeyEsc, KeyEnter:
		return m.quit()
	case KeyNextPage, KeyPgDown:
		return m.apply(workflow.PageRequested{Page: m.machine.Session().CurrentPage + 1})
	case KeyPrevPage, KeyPgUp:
		return m.apply(workflow.PageRequested{Page: m.machine.Session().CurrentPage - 1})
	}
	return m, nil
}

// handleUploadKey edits the path input. Printable keys are text here, so
// only esc quits.
func (m Model) handleUploadKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyEsc:
		return m.quit()
	case KeyEnter:
		return m.apply(workflow.FileChosen{Path: m.pathInput})
	case KeyBackspace:
		if r := []rune(m.pathInput); len(r) > 0 {
			m.pathInput = string(r[:len(r)-1])
		}
		return m, nil
	case KeyTab, KeyDown:
		return m.apply(workflow.MethodChosen{Method: stepMethod(m.machine.Method(), 1)})
	case KeyShiftTab, KeyUp:
		return m.apply(workflow.MethodChosen{Method: stepMethod(m.machine.Method(), -1)})
	}
	if m.machine.Busy() {
		return m, nil
	}
	switch msg.Type {
	case tea.KeyRunes:
		m.pathInput += string(msg.Runes)
	case tea.KeySpace:
		m.pathInput += " "
	}
	return m, nil
}

func stepMethod(cur session.Method, step int) session.Method {
	methods := session.Methods()
	for i, meth := range methods {
		if meth == cur {
			return methods[(i+step+len(methods))%len(methods)]
		}
	}
	return methods[0]
}

func (m Model) handleReviewKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case KeyQuit:
		return m.quit()
	case KeyEsc:
		if m.surface.Capturing() {
			m.surface = m.surface.Cancel()
			return m, nil
		}
		return m.quit()
	case KeyDraw:
		return m.apply(workflow.DrawingToggled{})
	case KeyProceed:
		return m.apply(workflow.ProceedRequested{})
	case KeyNextPage, KeyPgDown:
		return m.apply(workflow.PageRequested{Page: m.machine.Session().CurrentPage + 1})
	case KeyPrevPage, KeyPgUp:
		return m.apply(workflow.PageRequested{Page: m.machine.Session().CurrentPage - 1})
	case KeyUp, KeyK:
		return m.moveCursor(0, -1)
	case KeyDown, KeyJ:
		return m.moveCursor(0, 1)
	case KeyLeft, KeyH:
		return m.moveCursor(-1, 0)
	case KeyRight, KeyL:
		return m.moveCursor(1, 0)
	case KeyFastUp:
		return m.moveCursor(0, -cursorStride)
	case KeyFastDown:
		return m.moveCursor(0, cursorStride)
	case KeyFastLeft:
		return m.moveCursor(-cursorStride, 0)
	case KeyFastRight:
		return m.moveCursor(cursorStride, 0)
	case KeySpace, KeyEnter:
		return m.cursorClick()
	}
	return m, nil
}

func (m Model) moveCursor(dc, dr int) (tea.Model, tea.Cmd) {
	c := m.canvas()
	if !c.Valid() {
		return m, nil
	}
	m.cursorOn = true
	m.cursorCol += dc
	m.cursorRow += dr
	m.clampCursor()
	if m.surface.Capturing() {
		m.surface = m.surface.PointerMove(c.PointAt(m.cursorCol, m.cursorRow))
	}
	return m, nil
}

// cursorClick starts a region at the keyboard cursor, or finishes the one in
// progress.
func (m Model) cursorClick() (tea.Model, tea.Cmd) {
	if !m.machine.Drawing() {
		return m.setHint(hintFor(workflow.ErrDrawingOff))
	}
	c := m.canvas()
	if !c.Valid() {
		return m, nil
	}
	m.cursorOn = true
	p := c.PointAt(m.cursorCol, m.cursorRow)
	if !m.surface.Capturing() {
		m.surface = m.surface.PointerDown(p)
		return m, nil
	}
	return m.finishCapture(p)
}

func (m Model) finishCapture(p geometry.Point) (tea.Model, tea.Cmd) {
	var box *geometry.BoundingBox
	m.surface, box = m.surface.PointerUp(p)
	if box == nil {
		return m.setHint(fmt.Sprintf("Region too small, draw at least %gpx each way.", geometry.MinRegionPx))
	}
	return m.apply(workflow.RegionCaptured{Box: *box})
}

// handleMouse maps terminal mouse events onto the drawing surface.
func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.machine.Phase() != workflow.PhaseReview || !m.surface.Enabled() {
		return m, nil
	}
	c := m.canvas()
	if !c.Valid() {
		return m, nil
	}
	col, row := msg.X, msg.Y-headerRows
	inside := col >= 0 && col < c.Cols && row >= 0 && row < c.Rows
	p := c.PointAt(col, row)

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft || !inside {
			return m, nil
		}
		m.cursorOn = false
		m.surface = m.surface.PointerDown(p)
	case tea.MouseActionMotion:
		m.surface = m.surface.PointerMove(p)
	case tea.MouseActionRelease:
		if !m.surface.Capturing() {
			return m, nil
		}
		return m.finishCapture(p)
	}
	return m, nil
}

func (m Model) handleDuplicateKey(key string) (tea.Model, tea.Cmd) {
	keys := m.machine.UniqueKeys()
	switch key {
	case KeyQuit, KeyEsc:
		return m.quit()
	case KeyUp, KeyK:
		if m.dupCursor > 0 {
			m.dupCursor--
		}
	case KeyDown, KeyJ:
		if m.dupCursor < len(keys)-1 {
			m.dupCursor++
		}
	case KeyPgUp:
		m.dupCursor = max(0, m.dupCursor-m.listRows())
	case KeyPgDown:
		m.dupCursor = max(0, min(len(keys)-1, m.dupCursor+m.listRows()))
	case KeySpace:
		if len(keys) == 0 {
			return m, nil
		}
		return m.apply(workflow.TransactionToggled{Key: keys[m.dupCursor]})
	case KeySelectAll:
		return m.apply(workflow.AllSelected{})
	case KeySelectNone:
		return m.apply(workflow.SelectionCleared{})
	case KeyBack:
		return m.apply(workflow.BackToReview{})
	case KeyEnter:
		return m.apply(workflow.ConfirmRequested{})
	}
	return m, nil
}
