// Package table implements the client-side search and sort the list screens
// apply to fetched rows.
package table

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

var ErrUnknownColumn = errors.New("unknown sort column")

// Column is a visible column of a list screen.
type Column[T any] struct {
	Key  string
	Text func(T) string
	// Number, when set, makes the column sort numerically.
	Number func(T) float64
}

type Query struct {
	Search string
	SortBy string
	Desc   bool
}

// ParseQuery reads q, sort and dir from a request query string.
func ParseQuery(v url.Values) Query {
	return Query{
		Search: strings.TrimSpace(v.Get("q")),
		SortBy: v.Get("sort"),
		Desc:   strings.EqualFold(v.Get("dir"), "desc"),
	}
}

// Apply filters rows by q.Search and sorts them by q.SortBy. The input slice
// is not modified.
func Apply[T any](rows []T, cols []Column[T], q Query) ([]T, error) {
	out := Filter(rows, cols, q.Search)
	if q.SortBy == "" {
		return out, nil
	}
	if err := Sort(out, cols, q.SortBy, q.Desc); err != nil {
		return nil, err
	}
	return out, nil
}

// Filter keeps the rows where any column contains term, ignoring case.
func Filter[T any](rows []T, cols []Column[T], term string) []T {
	out := make([]T, 0, len(rows))
	if term == "" {
		return append(out, rows...)
	}

	fold := cases.Fold()
	needle := fold.String(term)
	for _, row := range rows {
		for _, c := range cols {
			if strings.Contains(fold.String(c.Text(row)), needle) {
				out = append(out, row)
				break
			}
		}
	}
	return out
}

// Sort orders rows in place by the column named key.
func Sort[T any](rows []T, cols []Column[T], key string, desc bool) error {
	var col *Column[T]
	for i := range cols {
		if cols[i].Key == key {
			col = &cols[i]
			break
		}
	}
	if col == nil {
		return fmt.Errorf("%w %q", ErrUnknownColumn, key)
	}

	var less func(a, b T) bool
	if col.Number != nil {
		less = func(a, b T) bool { return col.Number(a) < col.Number(b) }
	} else {
		coll := collate.New(language.BrazilianPortuguese, collate.IgnoreCase, collate.IgnoreDiacritics)
		less = func(a, b T) bool { return coll.CompareString(col.Text(a), col.Text(b)) < 0 }
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if desc {
			return less(rows[j], rows[i])
		}
		return less(rows[i], rows[j])
	})
	return nil
}
