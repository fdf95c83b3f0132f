// Package history keeps a local SQLite ledger of completed statement imports.
package history

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entry is one completed import.
type Entry struct {
	ID                int64
	SessionID         string
	FileName          string
	Method            string
	Submitted         int
	Created           int
	SkippedDuplicates int
	Failed            int
	Debits            decimal.Decimal
	Credits           decimal.Decimal
	ImportedAt        time.Time
}

// Partial reports whether fewer transactions were created than submitted.
func (e Entry) Partial() bool { return e.Created < e.Submitted }
