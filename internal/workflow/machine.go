// Package workflow sequences a statement import: upload, automatic parse,
// manual region review, duplicate check and save.
//
// Machine is a value. Apply returns the next machine plus the effects the
// host must run; results of those effects come back as events. At most one
// state-advancing operation is in flight at a time. Page image fetches are
// tracked separately and never block the workflow.
package workflow

import (
	"errors"
	"fmt"

	"github.com/jwulff/stmtimport/internal/api"
	"github.com/jwulff/stmtimport/internal/model"
	"github.com/jwulff/stmtimport/internal/reconcile"
	"github.com/jwulff/stmtimport/internal/selection"
	"github.com/jwulff/stmtimport/internal/session"
)

// Phase is the workflow state.
type Phase int

const (
	PhaseUpload Phase = iota
	PhaseParsing
	PhaseReview
	PhaseDuplicateCheck
	PhaseSaving
	PhaseDone
	PhaseAborted
)

var phaseNames = [...]string{"upload", "parsing", "review", "duplicate-check", "saving", "done", "aborted"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Terminal reports whether no further transitions are possible.
func (p Phase) Terminal() bool { return p == PhaseDone || p == PhaseAborted }

// Op is a state-advancing network operation.
type Op int

const (
	OpNone Op = iota
	OpUpload
	OpParse
	OpExtract
	OpCheckDuplicates
	OpSave
)

var opNames = [...]string{"none", "upload", "parse", "extract", "check-duplicates", "save"}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", int(o))
}

var (
	ErrBusy           = errors.New("another operation is in progress")
	ErrNotAllowed     = errors.New("not allowed in the current step")
	ErrNoTransactions = errors.New("no transactions extracted yet")
	ErrEmptySelection = errors.New("no transactions selected")
	ErrDrawingOff     = errors.New("region drawing is off")
	ErrNoFile         = errors.New("no file chosen")
)

// Level grades a notice.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

// Notice is the latest user-visible message. Seq increases with every new
// notice so hosts can expire the right one.
type Notice struct {
	Seq   uint64
	Level Level
	Text  string
}

// Page is the page currently shown.
type Page struct {
	Number  int
	Seq     uint64
	Loading bool
	Image   api.PageImage
	Err     string
}

// Loaded reports whether the page image is available.
func (p Page) Loaded() bool { return !p.Loading && p.Image.Image != "" }

// Settings are per-import options from configuration.
type Settings struct {
	AccountID      string
	AIModel        string
	TableType      string
	PageScale      float64
	SkipDuplicates bool
	AddTag         bool
}

// Machine is the workflow state.
type Machine struct {
	phase    Phase
	inflight Op
	settings Settings
	method   session.Method
	file     string

	session   session.State
	partition reconcile.Partition
	selected  selection.Set
	// declined holds keys the user deselected before going back to review.
	declined selection.Set

	drawing bool
	page    Page
	pageSeq uint64

	notice Notice
	result *api.SaveResponse
}

// New returns a machine waiting for a file.
func New(settings Settings, method session.Method) Machine {
	if settings.PageScale <= 0 {
		settings.PageScale = 1.5
	}
	return Machine{settings: settings, method: method}
}

func (m Machine) Phase() Phase                   { return m.phase }
func (m Machine) Inflight() Op                   { return m.inflight }
func (m Machine) Busy() bool                     { return m.inflight != OpNone }
func (m Machine) Method() session.Method         { return m.method }
func (m Machine) File() string                   { return m.file }
func (m Machine) Session() session.State         { return m.session }
func (m Machine) Partition() reconcile.Partition { return m.partition }
func (m Machine) Selected() selection.Set        { return m.selected }
func (m Machine) Drawing() bool                  { return m.drawing }
func (m Machine) Page() Page                     { return m.page }
func (m Machine) Notice() Notice                 { return m.notice }
func (m Machine) Settings() Settings             { return m.settings }

// Result returns the save outcome once the import is done.
func (m Machine) Result() (api.SaveResponse, bool) {
	if m.result == nil {
		return api.SaveResponse{}, false
	}
	return *m.result, true
}

// CanProceed reports whether the duplicate check may start.
func (m Machine) CanProceed() bool {
	return m.phase == PhaseReview && !m.Busy() && len(m.session.Transactions) > 0
}

// CanConfirm reports whether the selection may be saved.
func (m Machine) CanConfirm() bool {
	return m.phase == PhaseDuplicateCheck && !m.Busy() && !m.selected.Empty()
}

// UniqueKeys returns the selection keys of the unique transactions, in list
// order.
func (m Machine) UniqueKeys() []selection.Key { return m.partition.Keys() }

// SelectedTransactions resolves the selection against the unique list.
func (m Machine) SelectedTransactions() []model.Transaction {
	return m.selected.Resolve(m.partition.Unique)
}

// ParseRequestFor maps a processing method onto a parse request.
func ParseRequestFor(method session.Method, aiModel string) api.ParseRequest {
	switch method {
	case session.MethodOCR:
		return api.ParseRequest{Mode: api.ModeManual}
	case session.MethodAI:
		return api.ParseRequest{Mode: api.ModeAuto, AIModel: aiModel}
	case session.MethodHybrid:
		return api.ParseRequest{Mode: api.ModeHybrid, AIModel: aiModel}
	default:
		return api.ParseRequest{Mode: api.ModeAuto}
	}
}

func (m Machine) extractionModel() string {
	if m.method == session.MethodOCR {
		return ""
	}
	return m.settings.AIModel
}

func (m Machine) saveRequest() api.SaveRequest {
	return api.SaveRequest{
		Transactions:   m.SelectedTransactions(),
		SkipDuplicates: m.settings.SkipDuplicates,
		AddTag:         m.settings.AddTag,
	}
}

func (m *Machine) notify(level Level, format string, args ...any) {
	m.notice = Notice{Seq: m.notice.Seq + 1, Level: level, Text: fmt.Sprintf(format, args...)}
}

// userMessage prefers the server's message, then a message the error carries
// for users, then the generic fallback.
func userMessage(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return api.UserMessage(err)
	}
	var um interface{ UserMessage() string }
	if errors.As(err, &um) && um.UserMessage() != "" {
		return um.UserMessage()
	}
	return api.GenericMessage
}
