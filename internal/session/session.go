// Package session accumulates the state of one statement extraction. Every
// transition returns a new State; earlier states are never modified.
package session

import (
	"errors"
	"fmt"

	"github.com/jwulff/stmtimport/internal/geometry"
	"github.com/jwulff/stmtimport/internal/model"
	"github.com/jwulff/stmtimport/internal/selector"
)

// Method selects how the server parses the statement.
type Method int

const (
	MethodAuto Method = iota
	MethodOCR
	MethodAI
	MethodHybrid
)

var methodNames = [...]string{"auto", "ocr", "ai", "hybrid"}

func (m Method) String() string {
	if int(m) < len(methodNames) {
		return methodNames[m]
	}
	return fmt.Sprintf("method(%d)", int(m))
}

// Label is the human-readable name shown in the method picker.
func (m Method) Label() string {
	switch m {
	case MethodOCR:
		return "OCR only"
	case MethodAI:
		return "AI only"
	case MethodHybrid:
		return "OCR + AI"
	default:
		return "Automatic"
	}
}

// ParseMethod maps a config or flag value onto a Method.
func ParseMethod(s string) (Method, error) {
	for i, n := range methodNames {
		if n == s {
			return Method(i), nil
		}
	}
	return MethodAuto, fmt.Errorf("unknown processing method %q", s)
}

// Methods lists every method in picker order.
func Methods() []Method { return []Method{MethodAuto, MethodOCR, MethodAI, MethodHybrid} }

// ErrPageOutOfRange is returned when navigating outside the document.
var ErrPageOutOfRange = errors.New("page out of range")

// Info is what the server reports for a successful upload.
type Info struct {
	ID        string
	FileName  string
	FileSize  int64
	FileType  string
	PageCount int
}

// State is one extraction session.
type State struct {
	ID                string
	FileName          string
	FileSize          int64
	FileType          string
	PageCount         int
	CurrentPage       int
	Method            Method
	StatementImportID string

	Tables             []model.ExtractedTable
	Transactions       []model.Transaction
	Metadata           map[string]any
	ExtractionMetadata map[string]any
}

// New starts a session from an upload result. Accumulated tables and
// transactions start empty.
func New(info Info, method Method) State {
	page := 1
	if info.PageCount < 1 {
		page = 0
	}
	return State{
		ID:          info.ID,
		FileName:    info.FileName,
		FileSize:    info.FileSize,
		FileType:    info.FileType,
		PageCount:   info.PageCount,
		CurrentPage: page,
		Method:      method,
	}
}

// Active reports whether a session has been created.
func (s State) Active() bool { return s.ID != "" }

// Parse is the result of the automatic parsing pass.
type Parse struct {
	StatementImportID  string
	Tables             []model.ExtractedTable
	Transactions       []model.Transaction
	Metadata           map[string]any
	ExtractionMetadata map[string]any
}

// WithAutomaticParse replaces accumulated tables and transactions with the
// automatic parse result.
func (s State) WithAutomaticParse(p Parse) State {
	s.Tables = append([]model.ExtractedTable(nil), p.Tables...)
	s.Transactions = append([]model.Transaction(nil), p.Transactions...)
	s.Metadata = copyMap(p.Metadata)
	s.ExtractionMetadata = copyMap(p.ExtractionMetadata)
	if p.StatementImportID != "" {
		s.StatementImportID = p.StatementImportID
	}
	return s
}

// WithManualExtraction appends one table and its transactions.
func (s State) WithManualExtraction(table model.ExtractedTable, txns []model.Transaction) State {
	tables := make([]model.ExtractedTable, 0, len(s.Tables)+1)
	tables = append(tables, s.Tables...)
	s.Tables = append(tables, table)

	all := make([]model.Transaction, 0, len(s.Transactions)+len(txns))
	all = append(all, s.Transactions...)
	s.Transactions = append(all, txns...)
	return s
}

// WithPage moves to page n.
func (s State) WithPage(n int) (State, error) {
	if n < 1 || n > s.PageCount {
		return s, fmt.Errorf("page %d of %d: %w", n, s.PageCount, ErrPageOutOfRange)
	}
	s.CurrentPage = n
	return s, nil
}

// Regions returns overlays for the manually extracted tables on page.
// Labels number tables in session order.
func (s State) Regions(page int) []selector.Region {
	var out []selector.Region
	for i, t := range s.Tables {
		if t.PageNumber != page || t.BoundingBox == nil {
			continue
		}
		label := fmt.Sprintf("Table %d", i+1)
		if t.TableType != "" {
			label += " · " + t.TableType
		}
		out = append(out, selector.Region{Label: label, Box: *t.BoundingBox})
	}
	return out
}

// ManualBoxes returns the bounding boxes drawn on page.
func (s State) ManualBoxes(page int) []geometry.BoundingBox {
	var out []geometry.BoundingBox
	for _, r := range s.Regions(page) {
		out = append(out, r.Box)
	}
	return out
}

// Totals sums the accumulated transactions.
func (s State) Totals() model.Totals { return model.Sum(s.Transactions) }

// DetectedString returns a string entry of the extraction metadata, e.g. the
// detected bank or currency.
func (s State) DetectedString(key string) string {
	if v, ok := s.ExtractionMetadata[key].(string); ok {
		return v
	}
	return ""
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
