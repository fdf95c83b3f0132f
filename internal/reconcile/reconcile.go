// Package reconcile splits a session's extracted transactions into those
// already stored in the account and those safe to import. Matching happens
// server-side; this package validates and annotates the partition.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/jwulff/stmtimport/internal/api"
	"github.com/jwulff/stmtimport/internal/model"
	"github.com/jwulff/stmtimport/internal/selection"
)

// ErrPartitionMismatch means the server's partition does not cover the
// session's transactions exactly once.
var ErrPartitionMismatch = errors.New("duplicate partition does not match session transactions")

// Checker runs the server-side duplicate check.
type Checker interface {
	CheckDuplicates(ctx context.Context, sessionID string) (api.DuplicateCheckResponse, error)
}

// Partition is the outcome of a duplicate check. Duplicates and Unique are
// disjoint and together hold every session transaction.
type Partition struct {
	Duplicates []model.Transaction
	Unique     []model.Transaction
}

// Total is the number of transactions checked.
func (p Partition) Total() int { return len(p.Duplicates) + len(p.Unique) }

// Keys returns selection keys for the unique transactions.
func (p Partition) Keys() []selection.Key { return selection.Keys(p.Unique) }

// Seed selects every unique transaction.
func (p Partition) Seed() selection.Set { return selection.Of(p.Keys()...) }

// Run asks checker for the partition of sessionID and validates it against
// the expected number of accumulated transactions.
func Run(ctx context.Context, checker Checker, sessionID string, expected int) (Partition, error) {
	resp, err := checker.CheckDuplicates(ctx, sessionID)
	if err != nil {
		return Partition{}, fmt.Errorf("check duplicates: %w", err)
	}
	return FromResponse(resp, expected)
}

// FromResponse validates resp and marks each transaction with its status.
func FromResponse(resp api.DuplicateCheckResponse, expected int) (Partition, error) {
	n := len(resp.Duplicates) + len(resp.Unique)
	if n != expected {
		return Partition{}, fmt.Errorf("%w: got %d duplicates + %d unique, session has %d",
			ErrPartitionMismatch, len(resp.Duplicates), len(resp.Unique), expected)
	}
	if resp.Total != 0 && resp.Total != n {
		return Partition{}, fmt.Errorf("%w: server total %d, lists hold %d", ErrPartitionMismatch, resp.Total, n)
	}
	if (resp.DuplicateCount != 0 || resp.UniqueCount != 0) &&
		(resp.DuplicateCount != len(resp.Duplicates) || resp.UniqueCount != len(resp.Unique)) {
		return Partition{}, fmt.Errorf("%w: counts %d/%d disagree with lists %d/%d", ErrPartitionMismatch,
			resp.DuplicateCount, resp.UniqueCount, len(resp.Duplicates), len(resp.Unique))
	}

	p := Partition{
		Duplicates: make([]model.Transaction, len(resp.Duplicates)),
		Unique:     make([]model.Transaction, len(resp.Unique)),
	}
	for i, t := range resp.Duplicates {
		t.Status = model.StatusDuplicate
		p.Duplicates[i] = t
	}
	for i, t := range resp.Unique {
		t.Status = model.StatusNew
		t.ExistingTransaction = nil
		p.Unique[i] = t
	}
	return p, nil
}
