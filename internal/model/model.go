// Package model holds the statement extraction records shared by the client,
// the session store and the reconciler.
package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jwulff/stmtimport/internal/geometry"
)

// TxnType is the direction of a transaction.
type TxnType string

const (
	Debit  TxnType = "debit"
	Credit TxnType = "credit"
)

// Status is set by the duplicate reconciler.
type Status string

const (
	StatusNew       Status = "new"
	StatusDuplicate Status = "duplicate"
)

// ExtractedTable is one table found by automatic parsing or by a manual
// region extraction. BoundingBox is only set for manual extractions.
type ExtractedTable struct {
	Headers     []string              `json:"headers"`
	Rows        [][]string            `json:"rows"`
	PageNumber  int                   `json:"page_number"`
	TableType   string                `json:"table_type,omitempty"`
	BoundingBox *geometry.BoundingBox `json:"bounding_box,omitempty"`
	Confidence  *float64              `json:"confidence,omitempty"`
	Metadata    map[string]any        `json:"metadata,omitempty"`
}

// ExistingRef points at the stored transaction a duplicate collides with.
type ExistingRef struct {
	ID          int64  `json:"id"`
	Date        string `json:"date,omitempty"`
	Description string `json:"description,omitempty"`
	Amount      string `json:"amount,omitempty"`
}

// Transaction is a parsed statement line. Amount and Balance are decimal
// strings as sent by the server.
type Transaction struct {
	Date                string       `json:"date"`
	Description         string       `json:"description"`
	Amount              string       `json:"amount"`
	Type                TxnType      `json:"transaction_type"`
	Balance             *string      `json:"balance,omitempty"`
	ExternalID          string       `json:"external_id,omitempty"`
	AccountID           *int64       `json:"account,omitempty"`
	Status              Status       `json:"status,omitempty"`
	ExistingTransaction *ExistingRef `json:"existing_transaction,omitempty"`
}

// Decimal parses Amount.
func (t Transaction) Decimal() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(t.Amount))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", t.Amount, err)
	}
	return d, nil
}

// Validate checks the fields the client relies on.
func (t Transaction) Validate() error {
	if t.Type != Debit && t.Type != Credit {
		return fmt.Errorf("unknown transaction type %q", t.Type)
	}
	if _, err := t.Decimal(); err != nil {
		return err
	}
	if t.Balance != nil {
		if _, err := decimal.NewFromString(strings.TrimSpace(*t.Balance)); err != nil {
			return fmt.Errorf("parsing balance %q: %w", *t.Balance, err)
		}
	}
	return nil
}

// IsDuplicate reports whether the reconciler marked t as already stored.
func (t Transaction) IsDuplicate() bool { return t.Status == StatusDuplicate }

// Totals sums debits and credits separately. Amounts that do not parse are
// counted in Invalid and left out of the sums.
type Totals struct {
	Debits  decimal.Decimal
	Credits decimal.Decimal
	Invalid int
}

// Net is credits minus debits, using absolute amounts.
func (t Totals) Net() decimal.Decimal { return t.Credits.Sub(t.Debits) }

// Sum computes Totals for txns.
func Sum(txns []Transaction) Totals {
	tot := Totals{Debits: decimal.Zero, Credits: decimal.Zero}
	for _, txn := range txns {
		d, err := txn.Decimal()
		if err != nil {
			tot.Invalid++
			continue
		}
		if txn.Type == Credit {
			tot.Credits = tot.Credits.Add(d.Abs())
		} else {
			tot.Debits = tot.Debits.Add(d.Abs())
		}
	}
	return tot
}
