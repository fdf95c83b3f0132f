package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jwulff/stmtimport/internal/geometry"
	"github.com/jwulff/stmtimport/internal/model"
	"github.com/jwulff/stmtimport/internal/selector"
	"github.com/jwulff/stmtimport/internal/session"
	"github.com/jwulff/stmtimport/internal/ui"
	"github.com/jwulff/stmtimport/internal/workflow"
)

var steps = []struct {
	phase workflow.Phase
	label string
}{
	{workflow.PhaseUpload, "Upload"},
	{workflow.PhaseParsing, "Parse"},
	{workflow.PhaseReview, "Review"},
	{workflow.PhaseDuplicateCheck, "Duplicates"},
	{workflow.PhaseSaving, "Save"},
	{workflow.PhaseDone, "Done"},
}

var busyText = map[workflow.Op]string{
	workflow.OpUpload:          "uploading",
	workflow.OpParse:           "parsing",
	workflow.OpExtract:         "extracting region",
	workflow.OpCheckDuplicates: "checking duplicates",
	workflow.OpSave:            "saving",
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	divider := ui.DividerStyle.Render(strings.Repeat("─", m.width))
	sections := []string{
		m.renderHeader(),
		m.renderStatusBar(),
		divider,
		m.renderBody(),
		divider,
		m.renderNotice(),
		m.renderHint(),
		m.renderFooter(),
	}
	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := ui.TitleStyle.Render("STMTIMPORT")
	var file string
	if s := m.machine.Session(); s.Active() {
		file = ui.HeaderStyle.Render(" · " + s.FileName)
	} else if f := m.machine.File(); f != "" {
		file = ui.HeaderStyle.Render(" · " + f)
	}
	method := ui.DimStyle.Render(" [" + m.machine.Method().Label() + "]")
	return clip(title+file+method, m.width)
}

func (m Model) renderStatusBar() string {
	phase := m.machine.Phase()
	var parts []string
	for _, st := range steps {
		switch {
		case st.phase == phase:
			parts = append(parts, ui.SelectedStyle.Render(st.label))
		default:
			parts = append(parts, ui.StatusStyle.Render(st.label))
		}
	}
	bar := strings.Join(parts, ui.StatusStyle.Render(" › "))
	if phase == workflow.PhaseAborted {
		bar = ui.ErrorStyle.Render("ABANDONED")
	}
	if m.machine.Busy() {
		bar += "  " + ui.BusyBadgeStyle.Render("⟳") + ui.SpinnerStyle.Render(" "+busyText[m.machine.Inflight()]+"...")
	}
	if m.machine.Drawing() {
		bar += "  " + ui.DrawBadgeStyle.Render("● DRAW")
	}
	return bar
}

func (m Model) renderBody() string {
	height := m.bodyHeight()
	var lines []string
	switch m.machine.Phase() {
	case workflow.PhaseUpload:
		lines = m.uploadLines()
	case workflow.PhaseParsing, workflow.PhaseReview:
		lines = m.reviewLines(height)
	case workflow.PhaseDuplicateCheck, workflow.PhaseSaving:
		lines = m.duplicateLines(height)
	case workflow.PhaseDone:
		lines = m.doneLines()
	case workflow.PhaseAborted:
		lines = []string{"", "  Import abandoned. Nothing was saved."}
	}
	return fitLines(lines, m.width, height)
}

func (m Model) uploadLines() []string {
	input := m.pathInput
	if !m.machine.Busy() {
		input += "█"
	}
	lines := []string{
		"",
		ui.PanelTitleStyle.Render("  Statement file"),
		"  > " + input,
		"",
		ui.PanelTitleStyle.Render("  Processing method"),
	}
	for _, meth := range session.Methods() {
		if meth == m.machine.Method() {
			lines = append(lines, ui.SelectedStyle.Render("  ◉ "+meth.Label()))
		} else {
			lines = append(lines, ui.DimStyle.Render("  ○ "+meth.Label()))
		}
	}
	return lines
}

// reviewLines draws the page canvas with the session panel to its right.
func (m Model) reviewLines(height int) []string {
	var left []string
	leftW := m.width * canvasShare / 100
	c := m.canvas()
	if c.Valid() {
		left = c.Draw(m.renderOps(), m.pageImg, m.cursorPoint(c))
		leftW = c.Cols
	} else {
		left = []string{"", "  " + m.pageStatus()}
	}

	rightW := max(10, m.width-leftW-3)
	right := m.panelLines(rightW)
	sep := ui.DividerStyle.Render(" │ ")

	lines := make([]string, 0, height)
	for i := 0; i < height; i++ {
		var l, r string
		if i < len(left) {
			l = left[i]
		}
		if i < len(right) {
			r = right[i]
		}
		lines = append(lines, padRight(l, leftW)+sep+clip(r, rightW))
	}
	return lines
}

func (m Model) renderOps() []selector.DrawOp {
	s := m.machine.Session()
	frame := m.surface.Frame(m.pageImg != nil, s.Regions(s.CurrentPage))
	return selector.Render(frame)
}

func (m Model) cursorPoint(c ui.Canvas) *geometry.Point {
	if !m.cursorOn || !m.surface.Enabled() {
		return nil
	}
	p := c.PointAt(m.cursorCol, m.cursorRow)
	return &p
}

func (m Model) pageStatus() string {
	p := m.machine.Page()
	switch {
	case p.Number == 0:
		return ui.DimStyle.Render("No page to show.")
	case p.Loading:
		return ui.SpinnerStyle.Render(fmt.Sprintf("Loading page %d...", p.Number))
	case p.Err != "":
		return ui.ErrorTextStyle.Render(fmt.Sprintf("Page %d unavailable: %s", p.Number, p.Err))
	case m.imgErr != "":
		return ui.ErrorTextStyle.Render("Page image unreadable: " + m.imgErr)
	}
	return ""
}

func (m Model) panelLines(width int) []string {
	s := m.machine.Session()
	lines := []string{
		ui.PanelTitleActiveStyle.Render(fmt.Sprintf("Page %d/%d", s.CurrentPage, s.PageCount)),
	}
	if st := m.pageStatus(); st != "" && m.canvas().Valid() {
		lines = append(lines, st)
	}
	if bank := s.DetectedString("bank"); bank != "" {
		lines = append(lines, "Bank: "+bank)
	}
	if cur := s.DetectedString("currency"); cur != "" {
		lines = append(lines, "Currency: "+cur)
	}
	tot := s.Totals()
	lines = append(lines,
		fmt.Sprintf("Tables: %d  Transactions: %d", len(s.Tables), len(s.Transactions)),
		ui.DebitStyle.Render("Debits  "+tot.Debits.StringFixed(2))+"  "+
			ui.CreditStyle.Render("Credits "+tot.Credits.StringFixed(2)),
	)
	if n := len(s.ManualBoxes(s.CurrentPage)); n > 0 {
		lines = append(lines, fmt.Sprintf("Regions on this page: %d", n))
	}
	if tot.Invalid > 0 {
		lines = append(lines, ui.WarnTextStyle.Render(fmt.Sprintf("%d amounts could not be read", tot.Invalid)))
	}
	if m.machine.Phase() == workflow.PhaseReview {
		if m.machine.Drawing() {
			lines = append(lines, ui.DrawBadgeStyle.Render("Drawing on")+ui.DimStyle.Render(" drag or use space to mark a table"))
		} else {
			lines = append(lines, ui.DimStyle.Render("Drawing off"))
		}
	}
	lines = append(lines, "", ui.PanelTitleStyle.Render("Transactions"))
	for _, t := range s.Transactions {
		lines = append(lines, txnLine(t, width))
	}
	return lines
}

// listRows is how many unique transactions fit on screen at once.
func (m Model) listRows() int {
	return max(1, m.bodyHeight()-3-m.duplicateRows())
}

func (m Model) duplicateRows() int {
	n := len(m.machine.Partition().Duplicates)
	if n == 0 {
		return 0
	}
	return min(n, m.bodyHeight()/3) + 2
}

func (m Model) duplicateLines(height int) []string {
	p := m.machine.Partition()
	sel := m.machine.Selected()
	tot := sel.Total(p.Unique)

	lines := []string{
		ui.PanelTitleActiveStyle.Render(fmt.Sprintf("New transactions: %d of %d selected", sel.Len(), len(p.Unique))) +
			"  " + ui.DebitStyle.Render("Debits "+tot.Debits.StringFixed(2)) +
			"  " + ui.CreditStyle.Render("Credits "+tot.Credits.StringFixed(2)),
		"",
	}
	if len(p.Unique) == 0 {
		lines = append(lines, ui.DimStyle.Render("  Every transaction has already been imported."))
	}

	keys := p.Keys()
	rows := m.listRows()
	start := 0
	if m.dupCursor >= rows {
		start = m.dupCursor - rows + 1
	}
	end := min(len(p.Unique), start+rows)
	for i := start; i < end; i++ {
		box := "[ ]"
		if sel.Has(keys[i]) {
			box = "[x]"
		}
		pointer := "  "
		if i == m.dupCursor {
			pointer = ui.SelectedStyle.Render("› ")
		}
		lines = append(lines, pointer+box+" "+txnLine(p.Unique[i], m.width-6))
	}

	if len(p.Duplicates) > 0 {
		lines = append(lines, "", ui.PanelTitleStyle.Render(fmt.Sprintf("Already imported: %d", len(p.Duplicates))))
		shown := m.duplicateRows() - 2
		for _, t := range p.Duplicates[:shown] {
			lines = append(lines, "      "+txnLine(t, m.width-6))
		}
		if shown < len(p.Duplicates) {
			lines = append(lines, ui.DimStyle.Render(fmt.Sprintf("      … %d more", len(p.Duplicates)-shown)))
		}
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	return lines
}

func (m Model) doneLines() []string {
	r, _ := m.machine.Result()
	lines := []string{
		"",
		ui.InfoTextStyle.Render(fmt.Sprintf("  Imported %d transactions.", r.Created)),
	}
	if r.SkippedDuplicates > 0 {
		lines = append(lines, ui.WarnTextStyle.Render(fmt.Sprintf("  %d skipped as duplicates.", r.SkippedDuplicates)))
	}
	if r.Failed > 0 {
		lines = append(lines, ui.ErrorTextStyle.Render(fmt.Sprintf("  %d failed to save.", r.Failed)))
	}
	switch {
	case m.historyErr != "":
		lines = append(lines, "", ui.WarnTextStyle.Render("  History not recorded: "+m.historyErr))
	case m.historyID > 0:
		lines = append(lines, "", ui.DimStyle.Render(fmt.Sprintf("  Recorded as import #%d.", m.historyID)))
	}
	return lines
}

func (m Model) renderNotice() string {
	n := m.machine.Notice()
	if n.Text == "" {
		return ""
	}
	var line string
	switch n.Level {
	case workflow.LevelError:
		line = ui.ErrorStyle.Render("Error: ") + ui.ErrorTextStyle.Render(n.Text)
	case workflow.LevelWarn:
		line = ui.WarnTextStyle.Render(n.Text)
	default:
		line = ui.InfoTextStyle.Render(n.Text)
	}
	return clip(line, m.width)
}

func (m Model) renderHint() string {
	if m.hint == "" {
		return ""
	}
	return ui.DimStyle.Render(truncateToWidth(m.hint, m.width))
}

func (m Model) renderFooter() string {
	var parts []string
	add := func(key, desc string) {
		parts = append(parts, ui.FooterKeyStyle.Render(key)+ui.FooterDescStyle.Render(" "+desc))
	}

	switch m.machine.Phase() {
	case workflow.PhaseUpload:
		add("Enter", "Upload")
		add("Tab", "Method")
		add("Esc", "Quit")
		return strings.Join(parts, "  ")
	case workflow.PhaseParsing:
		add("[/]", "Page")
	case workflow.PhaseReview:
		add("d", "Draw")
		add("←↑↓→", "Cursor")
		add("Space", "Mark")
		add("[/]", "Page")
		if m.machine.CanProceed() {
			add("c", "Check duplicates")
		}
	case workflow.PhaseDuplicateCheck:
		add("Space", "Toggle")
		add("a", "All")
		add("n", "None")
		add("b", "Back")
		if m.machine.CanConfirm() {
			add("Enter", "Import")
		}
	case workflow.PhaseDone, workflow.PhaseAborted:
		add("q", "Exit")
		return strings.Join(parts, "  ")
	}
	add("q", "Quit")
	return strings.Join(parts, "  ")
}

// txnLine formats one transaction row. Rows already in the account are
// struck through.
func txnLine(t model.Transaction, width int) string {
	if t.IsDuplicate() {
		return ui.DuplicateStyle.Render(plainTxnLine(t, width))
	}
	amount := t.Amount
	if d, err := t.Decimal(); err == nil {
		amount = d.Abs().StringFixed(2)
	}
	style := ui.DebitStyle
	sign := "-"
	if t.Type == model.Credit {
		style = ui.CreditStyle
		sign = "+"
	}
	descW := max(4, width-26)
	return fmt.Sprintf("%-10s ", t.Date) +
		padRight(truncateToWidth(t.Description, descW), descW) + " " +
		style.Render(fmt.Sprintf("%13s", sign+amount))
}

func plainTxnLine(t model.Transaction, width int) string {
	descW := max(4, width-26)
	return fmt.Sprintf("%-10s %s %13s", t.Date, padRight(truncateToWidth(t.Description, descW), descW), t.Amount)
}

// fitLines pads or cuts lines to exactly height rows.
func fitLines(lines []string, width, height int) string {
	out := make([]string, height)
	for i := range out {
		if i < len(lines) {
			out[i] = clip(lines[i], width)
		}
	}
	return strings.Join(out, "\n")
}

// Helpers

// clip cuts a styled line to width cells.
func clip(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(s)
}

func padRight(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}

func truncateToWidth(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible <= width {
		return s
	}
	// Simple truncation for non-styled strings
	runes := []rune(s)
	if width > 0 && len(runes) > width-1 {
		return string(runes[:width-1]) + "…"
	}
	return s
}
