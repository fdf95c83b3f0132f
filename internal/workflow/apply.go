package workflow

import (
	"fmt"

	"github.com/jwulff/stmtimport/internal/reconcile"
	"github.com/jwulff/stmtimport/internal/selection"
	"github.com/jwulff/stmtimport/internal/session"
)

// Apply advances the machine by one event. User actions that are not allowed
// right now return an error and leave the machine unchanged. Results for
// operations that are no longer in flight are dropped silently.
func (m Machine) Apply(ev Event) (Machine, []Effect, error) {
	if d, ok := ev.(NoticeDismissed); ok {
		if m.notice.Seq == d.Seq {
			m.notice.Text = ""
		}
		return m, nil, nil
	}
	if m.phase.Terminal() {
		return m, nil, nil
	}

	switch ev := ev.(type) {
	case MethodChosen:
		if m.phase != PhaseUpload {
			return m, nil, ErrNotAllowed
		}
		if m.Busy() {
			return m, nil, ErrBusy
		}
		m.method = ev.Method
		return m, nil, nil

	case FileChosen:
		return m.chooseFile(ev)
	case UploadSucceeded:
		return m.uploaded(ev)
	case UploadFailed:
		if m.inflight != OpUpload {
			return m, nil, nil
		}
		m.inflight = OpNone
		m.notify(LevelError, "%s", userMessage(ev.Err))
		return m, nil, nil

	case ParseSucceeded:
		return m.parsed(ev)
	case ParseFailed:
		if m.inflight != OpParse {
			return m, nil, nil
		}
		m.inflight = OpNone
		m.phase = PhaseReview
		m.drawing = true
		m.notify(LevelWarn, "Automatic parsing failed: %s", userMessage(ev.Err))
		return m, nil, nil

	case DrawingToggled:
		if m.phase != PhaseReview {
			return m, nil, ErrNotAllowed
		}
		m.drawing = !m.drawing
		return m, nil, nil

	case RegionCaptured:
		return m.regionCaptured(ev)
	case ExtractSucceeded:
		return m.extracted(ev)
	case ExtractFailed:
		if m.inflight != OpExtract {
			return m, nil, nil
		}
		m.inflight = OpNone
		m.notify(LevelError, "Extraction on page %d failed: %s", ev.Page, userMessage(ev.Err))
		return m, nil, nil

	case PageRequested:
		return m.requestPage(ev.Page)
	case PageLoaded:
		if ev.Seq != m.page.Seq || !m.page.Loading {
			return m, nil, nil
		}
		m.page.Loading = false
		m.page.Image = ev.Image
		m.page.Err = ""
		return m, nil, nil
	case PageFailed:
		if ev.Seq != m.page.Seq || !m.page.Loading {
			return m, nil, nil
		}
		m.page.Loading = false
		m.page.Err = userMessage(ev.Err)
		return m, nil, nil

	case ProceedRequested:
		if m.phase != PhaseReview {
			return m, nil, ErrNotAllowed
		}
		if m.Busy() {
			return m, nil, ErrBusy
		}
		if len(m.session.Transactions) == 0 {
			return m, nil, ErrNoTransactions
		}
		m.inflight = OpCheckDuplicates
		return m, []Effect{CheckDuplicates{SessionID: m.session.ID, Expected: len(m.session.Transactions)}}, nil

	case DuplicatesChecked:
		if m.inflight != OpCheckDuplicates {
			return m, nil, nil
		}
		m.inflight = OpNone
		m.phase = PhaseDuplicateCheck
		m.drawing = false
		m.partition = ev.Partition
		m.selected = reseed(ev.Partition, m.declined)
		m.declined = selection.Set{}
		m.notify(LevelInfo, "%d new, %d already imported.", len(ev.Partition.Unique), len(ev.Partition.Duplicates))
		return m, nil, nil
	case DuplicateCheckFailed:
		if m.inflight != OpCheckDuplicates {
			return m, nil, nil
		}
		m.inflight = OpNone
		m.notify(LevelError, "Duplicate check failed: %s", userMessage(ev.Err))
		return m, nil, nil

	case TransactionToggled, AllSelected, SelectionCleared:
		return m.changeSelection(ev)

	case BackToReview:
		if m.phase != PhaseDuplicateCheck {
			return m, nil, ErrNotAllowed
		}
		if m.Busy() {
			return m, nil, ErrBusy
		}
		m.phase = PhaseReview
		var declined []selection.Key
		for _, k := range m.partition.Keys() {
			if !m.selected.Has(k) {
				declined = append(declined, k)
			}
		}
		m.declined = m.declined.SelectAll(declined)
		m.partition = reconcile.Partition{}
		m.selected = m.selected.Clear()
		return m, nil, nil

	case ConfirmRequested:
		if m.phase != PhaseDuplicateCheck {
			return m, nil, ErrNotAllowed
		}
		if m.Busy() {
			return m, nil, ErrBusy
		}
		if m.selected.Empty() {
			return m, nil, ErrEmptySelection
		}
		m.phase = PhaseSaving
		m.inflight = OpSave
		return m, []Effect{SaveTransactions{SessionID: m.session.ID, Request: m.saveRequest()}}, nil

	case SaveSucceeded:
		return m.saved(ev)
	case SaveFailed:
		if m.inflight != OpSave {
			return m, nil, nil
		}
		m.inflight = OpNone
		m.phase = PhaseDuplicateCheck
		m.notify(LevelError, "Save failed: %s", userMessage(ev.Err))
		return m, nil, nil

	case Aborted:
		m.phase = PhaseAborted
		m.inflight = OpNone
		m.drawing = false
		return m, nil, nil
	}
	return m, nil, fmt.Errorf("unhandled event %T", ev)
}

func (m Machine) chooseFile(ev FileChosen) (Machine, []Effect, error) {
	if m.phase != PhaseUpload {
		return m, nil, ErrNotAllowed
	}
	if m.Busy() {
		return m, nil, ErrBusy
	}
	if ev.Path == "" {
		return m, nil, ErrNoFile
	}
	m.file = ev.Path
	m.inflight = OpUpload
	return m, []Effect{UploadFile{Path: ev.Path, AccountID: m.settings.AccountID}}, nil
}

func (m Machine) uploaded(ev UploadSucceeded) (Machine, []Effect, error) {
	if m.inflight != OpUpload {
		return m, nil, nil
	}
	r := ev.Response
	m.session = session.New(session.Info{
		ID:        r.SessionID,
		FileName:  r.FileName,
		FileSize:  r.FileSize,
		FileType:  r.FileType,
		PageCount: r.PageCount,
	}, m.method)
	m.phase = PhaseParsing
	m.inflight = OpParse
	m.notify(LevelInfo, "Uploaded %s (%d pages).", r.FileName, r.PageCount)

	effects := []Effect{ParseStatement{SessionID: r.SessionID, Request: ParseRequestFor(m.method, m.settings.AIModel)}}
	if m.session.CurrentPage > 0 {
		var fetch Effect
		m, fetch = m.fetchPage(m.session.CurrentPage)
		effects = append(effects, fetch)
	}
	return m, effects, nil
}

func (m Machine) parsed(ev ParseSucceeded) (Machine, []Effect, error) {
	if m.inflight != OpParse {
		return m, nil, nil
	}
	r := ev.Response
	m.session = m.session.WithAutomaticParse(session.Parse{
		StatementImportID:  r.StatementImportID,
		Tables:             r.Tables,
		Transactions:       r.Transactions,
		Metadata:           r.Metadata,
		ExtractionMetadata: r.ExtractionMetadata,
	})
	m.inflight = OpNone
	m.phase = PhaseReview
	if len(r.Tables) == 0 {
		m.drawing = true
		m.notify(LevelWarn, "No tables were detected. Draw a box around each transaction table.")
		return m, nil, nil
	}
	m.notify(LevelInfo, "Found %d transactions in %d tables.", len(r.Transactions), len(r.Tables))
	return m, nil, nil
}

func (m Machine) regionCaptured(ev RegionCaptured) (Machine, []Effect, error) {
	if m.phase != PhaseReview {
		return m, nil, ErrNotAllowed
	}
	if !m.drawing {
		return m, nil, ErrDrawingOff
	}
	if m.Busy() {
		return m, nil, ErrBusy
	}
	if !ev.Box.Valid() {
		return m, nil, fmt.Errorf("region %+v outside the page: %w", ev.Box, ErrNotAllowed)
	}
	m.inflight = OpExtract
	eff := ExtractRegion{SessionID: m.session.ID}
	eff.Request.PageNumber = m.session.CurrentPage
	eff.Request.BoundingBox = ev.Box.Clamp()
	eff.Request.TableType = m.settings.TableType
	eff.Request.AIModel = m.extractionModel()
	return m, []Effect{eff}, nil
}

func (m Machine) extracted(ev ExtractSucceeded) (Machine, []Effect, error) {
	if m.inflight != OpExtract {
		return m, nil, nil
	}
	table := ev.Response.Table
	if table.PageNumber == 0 {
		table.PageNumber = ev.Page
	}
	if table.BoundingBox == nil {
		box := ev.Box
		table.BoundingBox = &box
	}
	if table.TableType == "" {
		table.TableType = m.settings.TableType
	}
	m.session = m.session.WithManualExtraction(table, ev.Response.Transactions)
	m.inflight = OpNone
	if n := len(ev.Response.Transactions); n == 0 {
		m.notify(LevelWarn, "No transactions found in the region on page %d.", table.PageNumber)
	} else {
		m.notify(LevelInfo, "Extracted %d transactions from page %d.", n, table.PageNumber)
	}
	return m, nil, nil
}

func (m Machine) requestPage(n int) (Machine, []Effect, error) {
	if m.phase != PhaseParsing && m.phase != PhaseReview {
		return m, nil, ErrNotAllowed
	}
	s, err := m.session.WithPage(n)
	if err != nil {
		return m, nil, err
	}
	if n == m.page.Number && (m.page.Loading || m.page.Loaded()) {
		return m, nil, nil
	}
	m.session = s
	m, fetch := m.fetchPage(n)
	return m, []Effect{fetch}, nil
}

func (m Machine) fetchPage(n int) (Machine, Effect) {
	m.pageSeq++
	m.page = Page{Number: n, Seq: m.pageSeq, Loading: true}
	return m, FetchPage{SessionID: m.session.ID, Page: n, Scale: m.settings.PageScale, Seq: m.pageSeq}
}

func (m Machine) changeSelection(ev Event) (Machine, []Effect, error) {
	if m.phase != PhaseDuplicateCheck {
		return m, nil, ErrNotAllowed
	}
	if m.Busy() {
		return m, nil, ErrBusy
	}
	switch ev := ev.(type) {
	case TransactionToggled:
		known := false
		for _, k := range m.partition.Keys() {
			if k == ev.Key {
				known = true
				break
			}
		}
		if !known {
			return m, nil, fmt.Errorf("unknown transaction %q: %w", ev.Key, ErrNotAllowed)
		}
		m.selected = m.selected.Toggle(ev.Key)
	case AllSelected:
		m.selected = m.selected.SelectAll(m.partition.Keys())
	case SelectionCleared:
		m.selected = m.selected.Clear()
	}
	return m, nil, nil
}

func (m Machine) saved(ev SaveSucceeded) (Machine, []Effect, error) {
	if m.inflight != OpSave {
		return m, nil, nil
	}
	m.inflight = OpNone
	r := ev.Response
	if !r.Success {
		m.phase = PhaseDuplicateCheck
		msg := r.Message
		if msg == "" {
			msg = "the server did not save the transactions."
		}
		m.notify(LevelError, "Save failed: %s", msg)
		return m, nil, nil
	}
	m.phase = PhaseDone
	m.drawing = false
	m.result = &r
	m.notify(LevelInfo, "Imported %d transactions.", r.Created)
	return m, []Effect{Complete{
		SessionID: m.session.ID,
		FileName:  m.session.FileName,
		Submitted: m.selected.Len(),
		Result:    r,
	}}, nil
}

// reseed selects every unique transaction of p except those the user
// declined on an earlier pass that are still unique.
func reseed(p reconcile.Partition, declined selection.Set) selection.Set {
	sel := p.Seed()
	still := declined.Prune(p.Keys())
	for _, k := range p.Keys() {
		if still.Has(k) {
			sel = sel.Toggle(k)
		}
	}
	return sel
}
