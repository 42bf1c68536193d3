package docstore

import (
	"slices"
)

// Direction orders documents by create time.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Filter is a single equality predicate on one field.
type Filter struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// Where builds an equality filter.
func Where(field string, value any) *Filter {
	return &Filter{Field: field, Value: value}
}

// Match reports whether doc satisfies f. A nil filter matches everything.
func (f *Filter) Match(doc Document) bool {
	if f == nil {
		return true
	}
	v, ok := doc.Fields[f.Field]
	if !ok {
		return false
	}
	return Equal(v, f.Value)
}

// Query restricts and orders a collection subscription. The zero Query
// returns every document in insertion order.
type Query struct {
	Filter            *Filter   `json:"filter,omitempty"`
	OrderByCreateTime Direction `json:"orderByCreateTime,omitempty"`
	Limit             int       `json:"limit,omitempty"`
}

// SameFilter reports whether two filters select the same documents.
func SameFilter(a, b *Filter) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Field == b.Field && Equal(a.Value, b.Value)
}

// Apply filters, orders and limits docs. Ties in create time are broken by
// insertion order in the same direction.
func (q Query) Apply(docs []Document) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if q.Filter.Match(d) {
			out = append(out, d)
		}
	}

	slices.SortStableFunc(out, func(a, b Document) int {
		switch q.OrderByCreateTime {
		case Ascending:
			if c := a.CreateTime.Compare(b.CreateTime); c != 0 {
				return c
			}
		case Descending:
			if c := b.CreateTime.Compare(a.CreateTime); c != 0 {
				return c
			}
			return compareSeq(b.Seq, a.Seq)
		}
		return compareSeq(a.Seq, b.Seq)
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func compareSeq(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
