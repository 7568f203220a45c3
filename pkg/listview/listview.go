// Package listview derives what a note list shows from the notes held by the
// note store and the ephemeral filter state of the view. Everything here is
// pure; the input slice is never modified.
package listview

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/collabnotes/collabnotes.go/pkg/models"
)

// SortKey orders the derived list.
type SortKey string

const (
	SortDate       SortKey = "date"
	SortTitle      SortKey = "title"
	SortVisibility SortKey = "visibility"
)

var SortKeys = []SortKey{SortDate, SortTitle, SortVisibility}

// ParseSortKey accepts the names above, case-insensitively. Empty means date.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return SortDate, nil
	case SortDate, SortTitle, SortVisibility:
		return k, nil
	}
	return "", fmt.Errorf("invalid sort key %q: want one of date, title, visibility", s)
}

// Query is the client filter state of a list view.
type Query struct {
	Search string
	// Visibility is "all", empty or one of the visibilities.
	Visibility string
	Tags       []string
	Sort       SortKey
	// Locale drives title collation. The zero value collates as English.
	Locale language.Tag
}

// Derive filters notes by q and sorts the result. Search is a
// case-insensitive substring match on the title, the content or any tag name.
// A note passes the tag facet only when it carries every selected tag. The
// facets are ANDed and the sort is stable.
func Derive(notes []models.Note, q Query) []models.Note {
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]models.Note, 0, len(notes))
	for _, n := range notes {
		if !matchesSearch(n, needle) || !matchesVisibility(n, q.Visibility) || !hasTags(n, q.Tags) {
			continue
		}
		out = append(out, n)
	}

	switch q.Sort {
	case SortTitle:
		locale := q.Locale
		if locale == language.Und {
			locale = language.English
		}
		col := collate.New(locale, collate.IgnoreCase)
		sort.SliceStable(out, func(i, j int) bool {
			return col.CompareString(out[i].Title, out[j].Title) < 0
		})
	case SortVisibility:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Visibility < out[j].Visibility
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].LastModified().After(out[j].LastModified())
		})
	}
	return out
}

func matchesSearch(n models.Note, needle string) bool {
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(n.Title), needle) || strings.Contains(strings.ToLower(n.Content), needle) {
		return true
	}
	for _, t := range n.Tags {
		if strings.Contains(strings.ToLower(t.Name), needle) {
			return true
		}
	}
	return false
}

func matchesVisibility(n models.Note, v string) bool {
	if v == "" || strings.EqualFold(v, models.VisibilityAll) {
		return true
	}
	return string(n.Visibility) == v
}

func hasTags(n models.Note, tags []string) bool {
	for _, t := range tags {
		if !n.HasTag(t) {
			return false
		}
	}
	return true
}

// AllTags returns the distinct tag names of notes in first-seen order.
func AllTags(notes []models.Note) []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range notes {
		for _, t := range n.Tags {
			if !seen[t.Name] {
				seen[t.Name] = true
				out = append(out, t.Name)
			}
		}
	}
	return out
}

// ToggleTag adds tag to the selection, or removes it when already selected.
func ToggleTag(selected []string, tag string) []string {
	out := make([]string, 0, len(selected)+1)
	found := false
	for _, t := range selected {
		if t == tag {
			found = true
			continue
		}
		out = append(out, t)
	}
	if !found {
		out = append(out, tag)
	}
	return out
}
