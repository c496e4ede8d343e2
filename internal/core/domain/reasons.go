package domain

import (
	"encoding/json"
	"sort"
)

// Reason is a stable machine token explaining a classification or quality outcome.
type Reason string

// Reasons is an append-only, order-preserving list without duplicates.
type Reasons []Reason

// Append adds tokens that are not present yet and returns the extended list.
func (rs Reasons) Append(tokens ...Reason) Reasons {
	for _, tok := range tokens {
		if tok == "" || rs.Has(tok) {
			continue
		}
		rs = append(rs, tok)
	}
	return rs
}

func (rs Reasons) Has(tok Reason) bool {
	for _, r := range rs {
		if r == tok {
			return true
		}
	}
	return false
}

func (rs Reasons) HasAny(tokens ...Reason) bool {
	for _, tok := range tokens {
		if rs.Has(tok) {
			return true
		}
	}
	return false
}

// Clone returns an independent copy so callers can extend it without aliasing.
func (rs Reasons) Clone() Reasons {
	out := make(Reasons, len(rs))
	copy(out, rs)
	return out
}

// Sorted returns a deduplicated, lexically sorted copy.
func (rs Reasons) Sorted() Reasons {
	out := Reasons{}.Append(rs...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Top returns at most n leading reasons.
func (rs Reasons) Top(n int) Reasons {
	if n >= len(rs) {
		return rs.Clone()
	}
	return rs[:n].Clone()
}

func (rs Reasons) Strings() []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}

// MarshalJSON keeps empty lists as [] instead of null.
func (rs Reasons) MarshalJSON() ([]byte, error) {
	return json.Marshal(rs.Strings())
}
