// Package selection tracks which unique transactions the user wants to save.
//
// Selections are keyed by a stable transaction key rather than a position, so
// a refetched or reordered list resolves to the same transactions.
package selection

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/shopspring/decimal"

	"github.com/jwulff/stmtimport/internal/model"
)

// Key identifies a transaction within one list.
type Key string

// Fingerprint hashes the identifying fields of t. Amounts are compared as
// decimals so "12.5" and "12.50" match.
func Fingerprint(t model.Transaction) uint64 {
	amount := strings.TrimSpace(t.Amount)
	if d, err := decimal.NewFromString(amount); err == nil {
		amount = d.String()
	}
	var b strings.Builder
	b.WriteString(strings.TrimSpace(t.Date))
	b.WriteByte(0)
	b.WriteString(strings.Join(strings.Fields(strings.ToLower(t.Description)), " "))
	b.WriteByte(0)
	b.WriteString(amount)
	b.WriteByte(0)
	b.WriteString(string(t.Type))
	b.WriteByte(0)
	b.WriteString(t.ExternalID)
	return xxhash.Sum64String(b.String())
}

// Keys returns a key per transaction. Identical transactions get distinct
// keys by occurrence order.
func Keys(txns []model.Transaction) []Key {
	seen := make(map[uint64]int, len(txns))
	keys := make([]Key, len(txns))
	for i, t := range txns {
		fp := Fingerprint(t)
		n := seen[fp]
		seen[fp] = n + 1
		keys[i] = Key(fmt.Sprintf("%016x#%s", fp, strconv.Itoa(n)))
	}
	return keys
}

// Set is an immutable set of selected keys. Methods return a new Set.
type Set struct {
	keys map[Key]struct{}
}

// Of returns a Set holding keys.
func Of(keys ...Key) Set {
	return Set{}.SelectAll(keys)
}

// Has reports whether k is selected.
func (s Set) Has(k Key) bool {
	_, ok := s.keys[k]
	return ok
}

// Len is the number of selected keys.
func (s Set) Len() int { return len(s.keys) }

// Empty reports whether nothing is selected.
func (s Set) Empty() bool { return len(s.keys) == 0 }

// Toggle adds k if absent and removes it if present.
func (s Set) Toggle(k Key) Set {
	out := s.clone(1)
	if _, ok := out.keys[k]; ok {
		delete(out.keys, k)
	} else {
		out.keys[k] = struct{}{}
	}
	return out
}

// SelectAll adds every key.
func (s Set) SelectAll(keys []Key) Set {
	out := s.clone(len(keys))
	for _, k := range keys {
		out.keys[k] = struct{}{}
	}
	return out
}

// Clear returns an empty Set.
func (s Set) Clear() Set { return Set{} }

// Prune drops selected keys that are not in keys.
func (s Set) Prune(keys []Key) Set {
	valid := make(map[Key]struct{}, len(keys))
	for _, k := range keys {
		valid[k] = struct{}{}
	}
	out := Set{keys: make(map[Key]struct{}, len(s.keys))}
	for k := range s.keys {
		if _, ok := valid[k]; ok {
			out.keys[k] = struct{}{}
		}
	}
	return out
}

// Resolve returns the selected transactions of txns, in list order.
func (s Set) Resolve(txns []model.Transaction) []model.Transaction {
	var out []model.Transaction
	for i, k := range Keys(txns) {
		if s.Has(k) {
			out = append(out, txns[i])
		}
	}
	return out
}

// Total sums the selected transactions of txns.
func (s Set) Total(txns []model.Transaction) model.Totals {
	return model.Sum(s.Resolve(txns))
}

func (s Set) clone(extra int) Set {
	out := Set{keys: make(map[Key]struct{}, len(s.keys)+extra)}
	for k := range s.keys {
		out.keys[k] = struct{}{}
	}
	return out
}
