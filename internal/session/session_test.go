package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwulff/stmtimport/internal/geometry"
	"github.com/jwulff/stmtimport/internal/model"
)

func txn(desc, amount string) model.Transaction {
	return model.Transaction{Date: "2025-01-02", Description: desc, Amount: amount, Type: model.Debit}
}

func TestNew(t *testing.T) {
	s := New(Info{ID: "sess-1", FileName: "jan.pdf", PageCount: 3}, MethodHybrid)
	assert.True(t, s.Active())
	assert.Equal(t, 3, s.PageCount)
	assert.Equal(t, 1, s.CurrentPage)
	assert.Equal(t, MethodHybrid, s.Method)
	assert.Empty(t, s.Tables)
	assert.Empty(t, s.Transactions)
}

func TestAutomaticParseReplaces(t *testing.T) {
	s := New(Info{ID: "s", PageCount: 1}, MethodAuto)
	s = s.WithManualExtraction(model.ExtractedTable{PageNumber: 1}, []model.Transaction{txn("old", "1")})

	s = s.WithAutomaticParse(Parse{
		Tables:             []model.ExtractedTable{{PageNumber: 1}, {PageNumber: 1}},
		Transactions:       []model.Transaction{txn("a", "1"), txn("b", "2")},
		ExtractionMetadata: map[string]any{"bank": "Barclays", "currency": "GBP"},
	})

	assert.Len(t, s.Tables, 2)
	require.Len(t, s.Transactions, 2)
	assert.Equal(t, "a", s.Transactions[0].Description)
	assert.Equal(t, "Barclays", s.DetectedString("bank"))
	assert.Equal(t, "", s.DetectedString("missing"))
}

func TestManualExtractionAppends(t *testing.T) {
	s := New(Info{ID: "s", PageCount: 2}, MethodAuto).WithAutomaticParse(Parse{
		Tables:       []model.ExtractedTable{{PageNumber: 1}},
		Transactions: []model.Transaction{txn("a", "1")},
	})

	box := geometry.BoundingBox{X: 10, Y: 10, Width: 50, Height: 30}
	s = s.WithManualExtraction(model.ExtractedTable{PageNumber: 2, BoundingBox: &box},
		[]model.Transaction{txn("b", "2"), txn("c", "3")})
	s = s.WithManualExtraction(model.ExtractedTable{PageNumber: 2, BoundingBox: &box}, nil)

	assert.Len(t, s.Tables, 3)
	require.Len(t, s.Transactions, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{
		s.Transactions[0].Description, s.Transactions[1].Description, s.Transactions[2].Description,
	})
}

func TestTransitionsDoNotMutatePriorState(t *testing.T) {
	base := New(Info{ID: "s", PageCount: 2}, MethodAuto).WithAutomaticParse(Parse{
		Transactions: make([]model.Transaction, 0, 10),
	})
	base = base.WithManualExtraction(model.ExtractedTable{PageNumber: 1}, []model.Transaction{txn("a", "1")})

	left := base.WithManualExtraction(model.ExtractedTable{PageNumber: 1}, []model.Transaction{txn("left", "1")})
	right := base.WithManualExtraction(model.ExtractedTable{PageNumber: 2}, []model.Transaction{txn("right", "1")})

	assert.Len(t, base.Transactions, 1)
	assert.Len(t, base.Tables, 1)
	assert.Equal(t, "left", left.Transactions[1].Description)
	assert.Equal(t, "right", right.Transactions[1].Description)

	parsed := []model.Transaction{txn("p", "1")}
	s := base.WithAutomaticParse(Parse{Transactions: parsed})
	parsed[0].Description = "mutated"
	assert.Equal(t, "p", s.Transactions[0].Description)
}

func TestWithPage(t *testing.T) {
	s := New(Info{ID: "s", PageCount: 3}, MethodAuto)

	s2, err := s.WithPage(2)
	require.NoError(t, err)
	assert.Equal(t, 2, s2.CurrentPage)
	assert.Equal(t, 1, s.CurrentPage)

	_, err = s.WithPage(4)
	assert.ErrorIs(t, err, ErrPageOutOfRange)
	_, err = s.WithPage(0)
	assert.ErrorIs(t, err, ErrPageOutOfRange)
}

func TestRegions(t *testing.T) {
	box := geometry.BoundingBox{X: 1, Y: 2, Width: 30, Height: 40}
	s := New(Info{ID: "s", PageCount: 2}, MethodAuto).WithAutomaticParse(Parse{
		Tables: []model.ExtractedTable{{PageNumber: 1}},
	})
	s = s.WithManualExtraction(model.ExtractedTable{PageNumber: 1, BoundingBox: &box, TableType: "transactions"}, nil)
	s = s.WithManualExtraction(model.ExtractedTable{PageNumber: 2, BoundingBox: &box}, nil)

	r1 := s.Regions(1)
	require.Len(t, r1, 1)
	assert.Equal(t, "Table 2 · transactions", r1[0].Label)
	assert.Equal(t, box, r1[0].Box)

	r2 := s.Regions(2)
	require.Len(t, r2, 1)
	assert.Equal(t, "Table 3", r2[0].Label)
	assert.Len(t, s.ManualBoxes(2), 1)
}

func TestParseMethod(t *testing.T) {
	for _, m := range Methods() {
		got, err := ParseMethod(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseMethod("magic")
	assert.Error(t, err)
}
