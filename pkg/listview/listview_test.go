package listview_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/collabnotes/collabnotes.go/pkg/listview"
	"github.com/collabnotes/collabnotes.go/pkg/models"
)

func note(id int, title string, v models.Visibility, created time.Time, tags ...string) models.Note {
	n := models.Note{
		ID:         models.NoteID(id),
		Title:      title,
		Visibility: v,
		CreatedAt:  models.NewTimestamp(created),
	}
	for i, t := range tags {
		n.Tags = append(n.Tags, models.Tag{ID: models.TagID(i + 1), Name: t})
	}
	return n
}

func ids(list []models.Note) []models.NoteID {
	out := make([]models.NoteID, 0, len(list))
	for _, n := range list {
		out = append(out, n.ID)
	}
	return out
}

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestDeriveVisibility(t *testing.T) {
	notes := []models.Note{
		note(1, "A", models.VisibilityPrivate, base, "x"),
		note(2, "B", models.VisibilityPublic, base, "y"),
	}
	got := listview.Derive(notes, listview.Query{Visibility: "PUBLIC"})
	assert.Equal(t, []models.NoteID{2}, ids(got))

	got = listview.Derive(notes, listview.Query{Visibility: "all"})
	assert.Len(t, got, 2)
}

func TestDeriveFacets(t *testing.T) {
	work := note(1, "Meeting", models.VisibilityPrivate, base, "work", "urgent")
	work.Content = "Discuss the roadmap"
	home := note(2, "Groceries", models.VisibilityShared, base.Add(time.Hour), "home")
	both := note(3, "Plans", models.VisibilityPrivate, base.Add(2*time.Hour), "work")
	notes := []models.Note{work, home, both}

	tests := []struct {
		name  string
		query listview.Query
		want  []models.NoteID
	}{
		{"no facets sorts by date", listview.Query{}, []models.NoteID{3, 2, 1}},
		{"search title", listview.Query{Search: "GROC"}, []models.NoteID{2}},
		{"search content", listview.Query{Search: "roadmap"}, []models.NoteID{1}},
		{"search tag", listview.Query{Search: "urg"}, []models.NoteID{1}},
		{"tags are ANDed", listview.Query{Tags: []string{"work", "urgent"}}, []models.NoteID{1}},
		{"tag match is exact", listview.Query{Tags: []string{"wor"}}, []models.NoteID{}},
		{"facets combine", listview.Query{Search: "p", Visibility: "PRIVATE", Tags: []string{"work"}}, []models.NoteID{3, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(listview.Derive(notes, tt.query)))
		})
	}
}

func TestDeriveSorts(t *testing.T) {
	a := note(1, "éclair", models.VisibilityShared, base)
	b := note(2, "Zebra", models.VisibilityPrivate, base.Add(time.Hour))
	c := note(3, "apple", models.VisibilityPublic, base.Add(-time.Hour))
	c.UpdatedAt = models.NewTimestamp(base.Add(2 * time.Hour))
	d := note(4, "banana", models.VisibilityPrivate, base)
	notes := []models.Note{a, b, c, d}

	assert.Equal(t, []models.NoteID{3, 2, 1, 4}, ids(listview.Derive(notes, listview.Query{Sort: listview.SortDate})), "updated_at wins, ties keep input order")
	assert.Equal(t, []models.NoteID{3, 4, 1, 2}, ids(listview.Derive(notes, listview.Query{Sort: listview.SortTitle})))
	assert.Equal(t, []models.NoteID{3, 4, 1, 2}, ids(listview.Derive(notes, listview.Query{Sort: listview.SortTitle, Locale: language.French})))
	assert.Equal(t, []models.NoteID{2, 4, 3, 1}, ids(listview.Derive(notes, listview.Query{Sort: listview.SortVisibility})))
}

func TestDeriveDoesNotModifyInput(t *testing.T) {
	notes := []models.Note{
		note(1, "b", models.VisibilityPrivate, base),
		note(2, "a", models.VisibilityPrivate, base.Add(time.Hour)),
	}
	_ = listview.Derive(notes, listview.Query{Sort: listview.SortTitle})
	assert.Equal(t, []models.NoteID{1, 2}, ids(notes))
}

func TestAllTagsAndToggle(t *testing.T) {
	notes := []models.Note{
		note(1, "a", models.VisibilityPrivate, base, "go", "db"),
		note(2, "b", models.VisibilityPrivate, base, "db", "ui"),
	}
	assert.Equal(t, []string{"go", "db", "ui"}, listview.AllTags(notes))
	assert.Nil(t, listview.AllTags(nil))

	sel := listview.ToggleTag(nil, "go")
	sel = listview.ToggleTag(sel, "db")
	assert.Equal(t, []string{"go", "db"}, sel)
	assert.Equal(t, []string{"db"}, listview.ToggleTag(sel, "go"))
}

func TestParseSortKey(t *testing.T) {
	k, err := listview.ParseSortKey("")
	require.NoError(t, err)
	assert.Equal(t, listview.SortDate, k)

	k, err = listview.ParseSortKey("Title")
	require.NoError(t, err)
	assert.Equal(t, listview.SortTitle, k)

	_, err = listview.ParseSortKey("size")
	assert.Error(t, err)
}
