package workflow

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jwulff/stmtimport/internal/api"
	"github.com/jwulff/stmtimport/internal/geometry"
	"github.com/jwulff/stmtimport/internal/model"
	"github.com/jwulff/stmtimport/internal/reconcile"
	"github.com/jwulff/stmtimport/internal/selection"
	"github.com/jwulff/stmtimport/internal/session"
)

func txns(n int, prefix string) []model.Transaction {
	out := make([]model.Transaction, n)
	for i := range out {
		out[i] = model.Transaction{
			Date:        "2025-03-01",
			Description: fmt.Sprintf("%s %d", prefix, i),
			Amount:      fmt.Sprintf("%d.00", i+1),
			Type:        model.Debit,
		}
	}
	return out
}

// mustApply applies ev and fails the test on error.
func mustApply(t *testing.T, m Machine, ev Event) (Machine, []Effect) {
	t.Helper()
	next, effects, err := m.Apply(ev)
	if err != nil {
		t.Fatalf("Apply(%T) error: %v", ev, err)
	}
	return next, effects
}

func uploadedMachine(t *testing.T, pages int) Machine {
	t.Helper()
	m := New(Settings{AccountID: "7", AIModel: "gpt-4o", PageScale: 1.5, SkipDuplicates: true}, session.MethodAuto)
	m, _ = mustApply(t, m, FileChosen{Path: "/tmp/march.pdf"})
	m, _ = mustApply(t, m, UploadSucceeded{Response: api.UploadResponse{
		SessionID: "s1", FileName: "march.pdf", FileType: "pdf", PageCount: pages,
	}})
	return m
}

func reviewMachine(t *testing.T, tables int, parsed []model.Transaction) Machine {
	t.Helper()
	m := uploadedMachine(t, 3)
	resp := api.ParseResponse{SessionID: "s1", Transactions: parsed}
	for i := 0; i < tables; i++ {
		resp.Tables = append(resp.Tables, model.ExtractedTable{PageNumber: 1})
	}
	m, _ = mustApply(t, m, ParseSucceeded{Response: resp})
	return m
}

func TestFileChosen_EmitsUpload(t *testing.T) {
	m := New(Settings{AccountID: "7"}, session.MethodAuto)
	m, effects := mustApply(t, m, FileChosen{Path: "/tmp/a.pdf"})

	if m.Inflight() != OpUpload {
		t.Errorf("Inflight = %v, want upload", m.Inflight())
	}
	if len(effects) != 1 {
		t.Fatalf("effects = %d, want 1", len(effects))
	}
	up, ok := effects[0].(UploadFile)
	if !ok {
		t.Fatalf("effect = %T, want UploadFile", effects[0])
	}
	if up.Path != "/tmp/a.pdf" || up.AccountID != "7" {
		t.Errorf("UploadFile = %+v", up)
	}
}

func TestFileChosen_RejectsEmptyAndBusy(t *testing.T) {
	m := New(Settings{}, session.MethodAuto)
	if _, _, err := m.Apply(FileChosen{}); !errors.Is(err, ErrNoFile) {
		t.Errorf("empty path error = %v, want ErrNoFile", err)
	}
	m, _ = mustApply(t, m, FileChosen{Path: "a.pdf"})
	if _, _, err := m.Apply(FileChosen{Path: "b.pdf"}); !errors.Is(err, ErrBusy) {
		t.Errorf("second upload error = %v, want ErrBusy", err)
	}
}

func TestUploadSucceeded_StartsParseAndFirstPage(t *testing.T) {
	m := New(Settings{AIModel: "gpt-4o", PageScale: 2}, session.MethodHybrid)
	m, _ = mustApply(t, m, FileChosen{Path: "a.pdf"})
	m, effects := mustApply(t, m, UploadSucceeded{Response: api.UploadResponse{SessionID: "s1", PageCount: 3}})

	if m.Phase() != PhaseParsing {
		t.Errorf("Phase = %v, want parsing", m.Phase())
	}
	if m.Session().CurrentPage != 1 || m.Session().PageCount != 3 {
		t.Errorf("session page = %d of %d", m.Session().CurrentPage, m.Session().PageCount)
	}
	if len(effects) != 2 {
		t.Fatalf("effects = %d, want 2", len(effects))
	}
	parse := effects[0].(ParseStatement)
	if parse.Request.Mode != api.ModeHybrid || parse.Request.AIModel != "gpt-4o" {
		t.Errorf("parse request = %+v", parse.Request)
	}
	fetch := effects[1].(FetchPage)
	if fetch.Page != 1 || fetch.Scale != 2 || fetch.Seq != m.Page().Seq {
		t.Errorf("fetch = %+v, page seq %d", fetch, m.Page().Seq)
	}
	if !m.Page().Loading {
		t.Error("page should be loading")
	}
}

func TestUploadFailed_StaysOnUpload(t *testing.T) {
	m := New(Settings{}, session.MethodAuto)
	m, _ = mustApply(t, m, FileChosen{Path: "a.txt"})
	m, _ = mustApply(t, m, UploadFailed{Err: &api.Error{StatusCode: 400, Message: "Unsupported file type"}})

	if m.Phase() != PhaseUpload || m.Busy() {
		t.Errorf("phase = %v busy = %v", m.Phase(), m.Busy())
	}
	if m.Notice().Text != "Unsupported file type" || m.Notice().Level != LevelError {
		t.Errorf("notice = %+v", m.Notice())
	}
	// A new file may be chosen after the failure.
	if _, _, err := m.Apply(FileChosen{Path: "a.pdf"}); err != nil {
		t.Errorf("retry error = %v", err)
	}
}

func TestUploadFailed_GenericMessage(t *testing.T) {
	m := New(Settings{}, session.MethodAuto)
	m, _ = mustApply(t, m, FileChosen{Path: "a.pdf"})
	m, _ = mustApply(t, m, UploadFailed{Err: errors.New("dial tcp: connection refused")})
	if m.Notice().Text != api.GenericMessage {
		t.Errorf("notice = %q, want generic", m.Notice().Text)
	}
}

func TestParseRequestFor(t *testing.T) {
	tests := []struct {
		method session.Method
		want   api.ParseRequest
	}{
		{session.MethodAuto, api.ParseRequest{Mode: api.ModeAuto}},
		{session.MethodOCR, api.ParseRequest{Mode: api.ModeManual}},
		{session.MethodAI, api.ParseRequest{Mode: api.ModeAuto, AIModel: "m"}},
		{session.MethodHybrid, api.ParseRequest{Mode: api.ModeHybrid, AIModel: "m"}},
	}
	for _, tt := range tests {
		t.Run(tt.method.String(), func(t *testing.T) {
			if got := ParseRequestFor(tt.method, "m"); got != tt.want {
				t.Errorf("ParseRequestFor = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseSucceeded_ToReview(t *testing.T) {
	m := reviewMachine(t, 2, txns(4, "p"))
	if m.Phase() != PhaseReview {
		t.Errorf("Phase = %v, want review", m.Phase())
	}
	if len(m.Session().Transactions) != 4 {
		t.Errorf("transactions = %d, want 4", len(m.Session().Transactions))
	}
	if m.Drawing() {
		t.Error("drawing should stay off when tables were found")
	}
	if !m.CanProceed() {
		t.Error("CanProceed = false, want true")
	}
}

func TestParseWithoutTables_IsDegraded(t *testing.T) {
	m := reviewMachine(t, 0, nil)
	if m.Phase() != PhaseReview {
		t.Errorf("Phase = %v, want review", m.Phase())
	}
	if m.Notice().Level != LevelWarn {
		t.Errorf("notice level = %v, want warn", m.Notice().Level)
	}
	if !m.Drawing() {
		t.Error("drawing should be on after an empty parse")
	}
	if m.CanProceed() {
		t.Error("CanProceed = true with no transactions")
	}
}

func TestParseFailed_ToReviewWithNotice(t *testing.T) {
	m := uploadedMachine(t, 1)
	m, _ = mustApply(t, m, ParseFailed{Err: &api.Error{StatusCode: 500, Message: "parser crashed"}})
	if m.Phase() != PhaseReview || m.Busy() {
		t.Errorf("phase = %v busy = %v", m.Phase(), m.Busy())
	}
	if m.Notice().Text != "Automatic parsing failed: parser crashed" {
		t.Errorf("notice = %q", m.Notice().Text)
	}
}

// A region drawn and extracted accumulates on top of the parse result.
func TestManualExtraction_Accumulates(t *testing.T) {
	m := reviewMachine(t, 0, nil)
	box := geometry.BoundingBox{X: 10, Y: 20, Width: 50, Height: 30}

	m, effects := mustApply(t, m, RegionCaptured{Box: box})
	if len(effects) != 1 {
		t.Fatalf("effects = %d, want 1", len(effects))
	}
	ex := effects[0].(ExtractRegion)
	if ex.Request.PageNumber != 1 || ex.Box() != box || ex.Request.AIModel != "gpt-4o" {
		t.Errorf("extract = %+v", ex.Request)
	}
	if _, _, err := m.Apply(RegionCaptured{Box: box}); !errors.Is(err, ErrBusy) {
		t.Errorf("second region error = %v, want ErrBusy", err)
	}

	m, _ = mustApply(t, m, ExtractSucceeded{Page: 1, Box: box, Response: api.ExtractTableResponse{
		Transactions: txns(3, "m"),
	}})
	s := m.Session()
	if len(s.Tables) != 1 || len(s.Transactions) != 3 {
		t.Fatalf("tables = %d transactions = %d", len(s.Tables), len(s.Transactions))
	}
	if s.Tables[0].BoundingBox == nil || *s.Tables[0].BoundingBox != box || s.Tables[0].PageNumber != 1 {
		t.Errorf("table = %+v", s.Tables[0])
	}
	if regions := s.Regions(1); len(regions) != 1 {
		t.Errorf("regions on page 1 = %d, want 1", len(regions))
	}
}

func TestRegionCaptured_RequiresDrawing(t *testing.T) {
	m := reviewMachine(t, 1, txns(1, "p"))
	box := geometry.BoundingBox{X: 1, Y: 1, Width: 10, Height: 10}
	if _, _, err := m.Apply(RegionCaptured{Box: box}); !errors.Is(err, ErrDrawingOff) {
		t.Errorf("error = %v, want ErrDrawingOff", err)
	}
	m, _ = mustApply(t, m, DrawingToggled{})
	if _, _, err := m.Apply(RegionCaptured{Box: box}); err != nil {
		t.Errorf("error = %v", err)
	}
}

func TestExtractFailed_KeepsSession(t *testing.T) {
	m := reviewMachine(t, 0, txns(2, "p"))
	m, _ = mustApply(t, m, RegionCaptured{Box: geometry.BoundingBox{X: 1, Y: 1, Width: 10, Height: 10}})
	m, _ = mustApply(t, m, ExtractFailed{Page: 1, Err: &api.Error{StatusCode: 422, Message: "No table found"}})

	if m.Busy() {
		t.Error("still busy after failure")
	}
	if len(m.Session().Tables) != 0 || len(m.Session().Transactions) != 2 {
		t.Errorf("session changed: %d tables %d transactions", len(m.Session().Tables), len(m.Session().Transactions))
	}
	if m.Notice().Text != "Extraction on page 1 failed: No table found" {
		t.Errorf("notice = %q", m.Notice().Text)
	}
}

// Extraction results land on the page they were requested for even when the
// user navigated away in between.
func TestExtraction_AfterNavigation(t *testing.T) {
	m := reviewMachine(t, 0, nil)
	box := geometry.BoundingBox{X: 5, Y: 5, Width: 20, Height: 20}
	m, _ = mustApply(t, m, RegionCaptured{Box: box})
	m, _ = mustApply(t, m, PageRequested{Page: 2})
	m, _ = mustApply(t, m, ExtractSucceeded{Page: 1, Box: box, Response: api.ExtractTableResponse{Transactions: txns(1, "x")}})

	if got := len(m.Session().Regions(1)); got != 1 {
		t.Errorf("regions on page 1 = %d, want 1", got)
	}
	if got := len(m.Session().Regions(2)); got != 0 {
		t.Errorf("regions on page 2 = %d, want 0", got)
	}
}

func TestPageNavigation_DiscardsStaleImages(t *testing.T) {
	m := reviewMachine(t, 1, txns(1, "p"))
	first := m.Page().Seq

	m, effects := mustApply(t, m, PageRequested{Page: 2})
	fetch2 := effects[0].(FetchPage)
	m, effects = mustApply(t, m, PageRequested{Page: 3})
	fetch3 := effects[0].(FetchPage)

	if fetch2.Seq == first || fetch3.Seq == fetch2.Seq {
		t.Fatalf("sequence not increasing: %d %d %d", first, fetch2.Seq, fetch3.Seq)
	}

	m, _ = mustApply(t, m, PageLoaded{Seq: fetch2.Seq, Image: api.PageImage{PageNumber: 2, Image: "data:image/png;base64,AA=="}})
	if !m.Page().Loading || m.Page().Number != 3 {
		t.Errorf("stale image applied: %+v", m.Page())
	}
	m, _ = mustApply(t, m, PageLoaded{Seq: fetch3.Seq, Image: api.PageImage{PageNumber: 3, Image: "data:image/png;base64,AA==", Width: 300, Height: 420}})
	if !m.Page().Loaded() || m.Page().Image.Width != 300 {
		t.Errorf("current image not applied: %+v", m.Page())
	}
	m, _ = mustApply(t, m, PageFailed{Seq: first, Err: errors.New("late")})
	if m.Page().Err != "" {
		t.Errorf("stale failure applied: %q", m.Page().Err)
	}
}

func TestPageRequested_OutOfRange(t *testing.T) {
	m := reviewMachine(t, 1, txns(1, "p"))
	for _, n := range []int{0, 4} {
		if _, _, err := m.Apply(PageRequested{Page: n}); !errors.Is(err, session.ErrPageOutOfRange) {
			t.Errorf("page %d error = %v, want ErrPageOutOfRange", n, err)
		}
	}
}

func TestPageFailed_AllowsRetry(t *testing.T) {
	m := reviewMachine(t, 1, txns(1, "p"))
	m, _ = mustApply(t, m, PageFailed{Seq: m.Page().Seq, Err: &api.Error{StatusCode: 404, Message: "Not found."}})
	if m.Page().Err != "Not found." {
		t.Errorf("page err = %q", m.Page().Err)
	}
	_, effects := mustApply(t, m, PageRequested{Page: 1})
	if len(effects) != 1 {
		t.Errorf("retry effects = %d, want 1", len(effects))
	}
}

func TestProceed_RequiresTransactions(t *testing.T) {
	m := reviewMachine(t, 0, nil)
	if _, _, err := m.Apply(ProceedRequested{}); !errors.Is(err, ErrNoTransactions) {
		t.Errorf("error = %v, want ErrNoTransactions", err)
	}
}

func duplicateCheckMachine(t *testing.T, dups, unique int) Machine {
	t.Helper()
	all := append(txns(dups, "dup"), txns(unique, "new")...)
	m := reviewMachine(t, 1, all)
	m, effects := mustApply(t, m, ProceedRequested{})
	check := effects[0].(CheckDuplicates)
	if check.Expected != dups+unique || check.SessionID != "s1" {
		t.Fatalf("check = %+v", check)
	}
	p, err := reconcile.FromResponse(api.DuplicateCheckResponse{
		Duplicates: txns(dups, "dup"),
		Unique:     txns(unique, "new"),
	}, check.Expected)
	if err != nil {
		t.Fatalf("FromResponse: %v", err)
	}
	m, _ = mustApply(t, m, DuplicatesChecked{Partition: p})
	return m
}

func TestDuplicatesChecked_SeedsSelection(t *testing.T) {
	m := duplicateCheckMachine(t, 2, 3)
	if m.Phase() != PhaseDuplicateCheck {
		t.Errorf("Phase = %v, want duplicate-check", m.Phase())
	}
	if m.Selected().Len() != 3 {
		t.Errorf("selected = %d, want 3", m.Selected().Len())
	}
	if !m.CanConfirm() {
		t.Error("CanConfirm = false")
	}
}

func TestDuplicateCheckFailed_StaysInReview(t *testing.T) {
	m := reviewMachine(t, 1, txns(2, "p"))
	m, _ = mustApply(t, m, ProceedRequested{})
	m, _ = mustApply(t, m, DuplicateCheckFailed{Err: reconcile.ErrPartitionMismatch})
	if m.Phase() != PhaseReview || m.Busy() {
		t.Errorf("phase = %v busy = %v", m.Phase(), m.Busy())
	}
	if m.Notice().Level != LevelError {
		t.Errorf("notice = %+v", m.Notice())
	}
}

func TestSelectionChanges(t *testing.T) {
	m := duplicateCheckMachine(t, 1, 3)
	keys := m.UniqueKeys()

	m, _ = mustApply(t, m, TransactionToggled{Key: keys[1]})
	if m.Selected().Has(keys[1]) || m.Selected().Len() != 2 {
		t.Errorf("toggle off failed: len %d", m.Selected().Len())
	}
	m, _ = mustApply(t, m, SelectionCleared{})
	if !m.Selected().Empty() || m.CanConfirm() {
		t.Error("clear failed")
	}
	if _, _, err := m.Apply(ConfirmRequested{}); !errors.Is(err, ErrEmptySelection) {
		t.Errorf("confirm error = %v, want ErrEmptySelection", err)
	}
	m, _ = mustApply(t, m, AllSelected{})
	if m.Selected().Len() != 3 {
		t.Errorf("select all = %d, want 3", m.Selected().Len())
	}
	if _, _, err := m.Apply(TransactionToggled{Key: "nope#0"}); !errors.Is(err, ErrNotAllowed) {
		t.Errorf("unknown key error = %v, want ErrNotAllowed", err)
	}
}

// Deselecting one of three unique transactions saves exactly the other two.
func TestConfirm_SavesSelection(t *testing.T) {
	m := duplicateCheckMachine(t, 2, 3)
	keys := m.UniqueKeys()
	m, _ = mustApply(t, m, TransactionToggled{Key: keys[0]})

	m, effects := mustApply(t, m, ConfirmRequested{})
	if m.Phase() != PhaseSaving || m.Inflight() != OpSave {
		t.Errorf("phase = %v inflight = %v", m.Phase(), m.Inflight())
	}
	save := effects[0].(SaveTransactions)
	if len(save.Request.Transactions) != 2 || !save.Request.SkipDuplicates {
		t.Fatalf("save request = %+v", save.Request)
	}
	if save.Request.Transactions[0].Description != "new 1" || save.Request.Transactions[1].Description != "new 2" {
		t.Errorf("saved = %q, %q", save.Request.Transactions[0].Description, save.Request.Transactions[1].Description)
	}

	m, effects = mustApply(t, m, SaveSucceeded{Response: api.SaveResponse{Success: true, Created: 2, SessionID: "s1"}})
	if m.Phase() != PhaseDone {
		t.Errorf("Phase = %v, want done", m.Phase())
	}
	done := effects[0].(Complete)
	if done.Submitted != 2 || done.Result.Created != 2 || done.FileName != "march.pdf" {
		t.Errorf("complete = %+v", done)
	}
	if r, ok := m.Result(); !ok || r.Created != 2 {
		t.Errorf("Result = %+v, %v", r, ok)
	}
}

// Skipped or failed rows in a successful save still finish the import.
func TestSaveSucceeded_PartialCounts(t *testing.T) {
	tests := []struct {
		name string
		resp api.SaveResponse
	}{
		{"all created", api.SaveResponse{Success: true, Created: 3}},
		{"one skipped as duplicate", api.SaveResponse{Success: true, Created: 2, SkippedDuplicates: 1}},
		{"one failed", api.SaveResponse{Success: true, Created: 2, Failed: 1}},
		{"nothing created", api.SaveResponse{Success: true, SkippedDuplicates: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := duplicateCheckMachine(t, 0, 3)
			m, _ = mustApply(t, m, ConfirmRequested{})
			m, effects := mustApply(t, m, SaveSucceeded{Response: tt.resp})

			if m.Phase() != PhaseDone || m.Busy() {
				t.Fatalf("phase = %v busy = %v, want done", m.Phase(), m.Busy())
			}
			if len(effects) != 1 {
				t.Fatalf("effects = %v, want one Complete", effects)
			}
			done := effects[0].(Complete)
			if done.Submitted != 3 {
				t.Errorf("Submitted = %d, want 3", done.Submitted)
			}
			r, ok := m.Result()
			if !ok {
				t.Fatal("Result missing")
			}
			if r.Created != tt.resp.Created || r.SkippedDuplicates != tt.resp.SkippedDuplicates || r.Failed != tt.resp.Failed {
				t.Errorf("Result = %+v, want %+v", r, tt.resp)
			}
			if m.Notice().Level == LevelError {
				t.Errorf("notice = %q, want no error", m.Notice().Text)
			}
		})
	}
}

func TestSaveFailure_KeepsSelection(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{"error", SaveFailed{Err: &api.Error{StatusCode: 400, Message: "Account is closed"}}, "Save failed: Account is closed"},
		{"unsuccessful", SaveSucceeded{Response: api.SaveResponse{Success: false, Message: "nothing saved"}}, "Save failed: nothing saved"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := duplicateCheckMachine(t, 0, 3)
			keys := m.UniqueKeys()
			m, _ = mustApply(t, m, TransactionToggled{Key: keys[2]})
			m, _ = mustApply(t, m, ConfirmRequested{})
			m, effects := mustApply(t, m, tt.ev)

			if len(effects) != 0 {
				t.Errorf("effects = %v, want none", effects)
			}
			if m.Phase() != PhaseDuplicateCheck || m.Busy() {
				t.Errorf("phase = %v busy = %v", m.Phase(), m.Busy())
			}
			if m.Selected().Len() != 2 || m.Selected().Has(keys[2]) {
				t.Errorf("selection changed: len %d", m.Selected().Len())
			}
			if m.Notice().Text != tt.want {
				t.Errorf("notice = %q, want %q", m.Notice().Text, tt.want)
			}
		})
	}
}

func TestBackToReview(t *testing.T) {
	m := duplicateCheckMachine(t, 1, 1)
	m, _ = mustApply(t, m, BackToReview{})
	if m.Phase() != PhaseReview {
		t.Errorf("Phase = %v, want review", m.Phase())
	}
	if !m.Selected().Empty() || m.Partition().Total() != 0 {
		t.Error("partition and selection should be reset")
	}
	if len(m.Session().Transactions) != 2 {
		t.Errorf("transactions = %d, want 2", len(m.Session().Transactions))
	}
}

// Transactions deselected before going back stay deselected after the next
// duplicate check.
func TestBackToReview_KeepsDeclined(t *testing.T) {
	m := duplicateCheckMachine(t, 1, 3)
	keys := m.UniqueKeys()
	m, _ = mustApply(t, m, TransactionToggled{Key: keys[1]})
	m, _ = mustApply(t, m, BackToReview{})

	m, effects := mustApply(t, m, ProceedRequested{})
	check := effects[0].(CheckDuplicates)
	p, err := reconcile.FromResponse(api.DuplicateCheckResponse{
		Duplicates: txns(1, "dup"),
		Unique:     txns(3, "new"),
	}, check.Expected)
	if err != nil {
		t.Fatalf("FromResponse: %v", err)
	}
	m, _ = mustApply(t, m, DuplicatesChecked{Partition: p})

	if m.Selected().Len() != 2 || m.Selected().Has(keys[1]) {
		t.Errorf("selected = %d, has declined = %v", m.Selected().Len(), m.Selected().Has(keys[1]))
	}
	if !m.Selected().Has(keys[0]) || !m.Selected().Has(keys[2]) {
		t.Error("other unique transactions should stay selected")
	}

	// A later pass starts from a full selection again.
	m, _ = mustApply(t, m, AllSelected{})
	m, _ = mustApply(t, m, BackToReview{})
	m, _ = mustApply(t, m, ProceedRequested{})
	m, _ = mustApply(t, m, DuplicatesChecked{Partition: p})
	if m.Selected().Len() != 3 {
		t.Errorf("selected = %d, want 3", m.Selected().Len())
	}
}

func TestReseed(t *testing.T) {
	p := reconcile.Partition{Unique: txns(3, "new")}
	keys := p.Keys()
	declined := selection.Of(keys[2], "gone#0")

	sel := reseed(p, declined)
	if sel.Len() != 2 || sel.Has(keys[2]) || sel.Has("gone#0") {
		t.Errorf("reseed = %d selected, has declined %v", sel.Len(), sel.Has(keys[2]))
	}
	if got := reseed(p, selection.Set{}); got.Len() != 3 {
		t.Errorf("reseed without declined = %d, want 3", got.Len())
	}
}

func TestAbort_IsTerminal(t *testing.T) {
	m := reviewMachine(t, 1, txns(1, "p"))
	m, _ = mustApply(t, m, ProceedRequested{})
	m, _ = mustApply(t, m, Aborted{})
	if m.Phase() != PhaseAborted || m.Busy() {
		t.Errorf("phase = %v busy = %v", m.Phase(), m.Busy())
	}

	// Late results and further input are ignored.
	next, effects, err := m.Apply(DuplicatesChecked{Partition: reconcile.Partition{Unique: txns(1, "p")}})
	if err != nil || len(effects) != 0 || next.Phase() != PhaseAborted {
		t.Errorf("late result changed machine: %v %v %v", next.Phase(), effects, err)
	}
	if _, _, err := m.Apply(ProceedRequested{}); err != nil {
		t.Errorf("input after abort error = %v", err)
	}
}

func TestLateResultsIgnored(t *testing.T) {
	m := reviewMachine(t, 1, txns(1, "p"))
	before := len(m.Session().Transactions)
	m, effects := mustApply(t, m, ExtractSucceeded{Page: 1, Response: api.ExtractTableResponse{Transactions: txns(2, "x")}})
	if len(effects) != 0 || len(m.Session().Transactions) != before {
		t.Error("extraction without a request was applied")
	}
	m, _ = mustApply(t, m, UploadSucceeded{Response: api.UploadResponse{SessionID: "other"}})
	if m.Session().ID != "s1" {
		t.Errorf("session replaced by late upload: %q", m.Session().ID)
	}
}

func TestNoticeDismissed(t *testing.T) {
	m := reviewMachine(t, 1, txns(1, "p"))
	old := m.Notice().Seq
	m, _ = mustApply(t, m, DrawingToggled{})
	m, _ = mustApply(t, m, RegionCaptured{Box: geometry.BoundingBox{X: 1, Y: 1, Width: 10, Height: 10}})
	m, _ = mustApply(t, m, ExtractFailed{Page: 1, Err: errors.New("x")})
	current := m.Notice().Seq
	if current == old {
		t.Fatal("notice seq did not advance")
	}

	m, _ = mustApply(t, m, NoticeDismissed{Seq: old})
	if m.Notice().Text == "" {
		t.Error("dismissing an old notice cleared the current one")
	}
	m, _ = mustApply(t, m, NoticeDismissed{Seq: current})
	if m.Notice().Text != "" {
		t.Errorf("notice = %q, want cleared", m.Notice().Text)
	}
}

func TestMethodChosen(t *testing.T) {
	m := New(Settings{}, session.MethodAuto)
	m, _ = mustApply(t, m, MethodChosen{Method: session.MethodOCR})
	if m.Method() != session.MethodOCR {
		t.Errorf("Method = %v", m.Method())
	}
	m = uploadedMachine(t, 1)
	if _, _, err := m.Apply(MethodChosen{Method: session.MethodAI}); !errors.Is(err, ErrNotAllowed) {
		t.Errorf("error = %v, want ErrNotAllowed", err)
	}
}

func TestOCRMethod_ExtractsWithoutModel(t *testing.T) {
	m := New(Settings{AIModel: "gpt-4o"}, session.MethodOCR)
	m, _ = mustApply(t, m, FileChosen{Path: "a.pdf"})
	m, _ = mustApply(t, m, UploadSucceeded{Response: api.UploadResponse{SessionID: "s1", PageCount: 1}})
	m, _ = mustApply(t, m, ParseSucceeded{})
	_, effects := mustApply(t, m, RegionCaptured{Box: geometry.BoundingBox{X: 1, Y: 1, Width: 10, Height: 10}})
	if ex := effects[0].(ExtractRegion); ex.Request.AIModel != "" {
		t.Errorf("AIModel = %q, want empty", ex.Request.AIModel)
	}
}
