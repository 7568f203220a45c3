package tui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabnotes/collabnotes.go/internal/fakeapi"
	"github.com/collabnotes/collabnotes.go/internal/testenv"
	"github.com/collabnotes/collabnotes.go/pkg/models"
)

func key(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func send(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func press(m Model, keys ...string) Model {
	for _, k := range keys {
		m, _ = send(m, key(k))
	}
	return m
}

// settle runs cmd, which must be one of the model's own commands, and feeds
// its message back.
func settle(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	require.NotNil(t, cmd)
	m, _ = send(m, cmd())
	return m
}

func titles(m Model) []string {
	var out []string
	for _, it := range m.list.Items() {
		out = append(out, it.(noteItem).note.Title)
	}
	return out
}

func setup(t *testing.T) (*fakeapi.Server, Model) {
	env := testenv.New(t)
	api := env.RequireFake(t)
	ada := env.AddUser(t, "ada@example.com", "secret", "Ada")
	api.AddNote(ada.ID, models.NoteDraft{Title: "Groceries", Content: "- milk", Tags: []string{"home"}})
	api.AddNote(ada.ID, models.NoteDraft{Title: "Roadmap", Content: "# Q3\n\nship it", Visibility: models.VisibilityPublic, Tags: []string{"work"}})
	api.AddNote(ada.ID, models.NoteDraft{Title: "Archive", Content: "old things", Tags: []string{"work", "home"}})

	app := env.LoggedInApp(t, "ada@example.com", "secret")
	m := New(context.Background(), app, Options{Style: "notty", Width: 100, Height: 40})
	m = settle(t, m, m.fetch())
	return api, m
}

func TestBrowserLoadsInServerOrder(t *testing.T) {
	_, m := setup(t)
	assert.Equal(t, []string{"Archive", "Roadmap", "Groceries"}, titles(m))
	assert.Contains(t, m.View(), "Loaded 3 notes")
}

func TestBrowserSortAndVisibility(t *testing.T) {
	_, m := setup(t)

	m = press(m, "s")
	assert.Equal(t, []string{"Archive", "Groceries", "Roadmap"}, titles(m), "title sort")

	m = press(m, "v")
	assert.Equal(t, "PRIVATE", m.query.Visibility)
	assert.Equal(t, []string{"Archive", "Groceries"}, titles(m))

	m = press(m, "v", "v")
	assert.Equal(t, "PUBLIC", m.query.Visibility)
	assert.Equal(t, []string{"Roadmap"}, titles(m))

	m = press(m, "x")
	assert.Equal(t, []string{"Archive", "Groceries", "Roadmap"}, titles(m), "clearing keeps the sort")
}

func TestBrowserTagToggle(t *testing.T) {
	_, m := setup(t)

	// Tags are numbered in first-seen order: 1 work, 2 home.
	m = press(m, "1")
	assert.Equal(t, []string{"Archive", "Roadmap"}, titles(m))
	m = press(m, "2")
	assert.Equal(t, []string{"Archive"}, titles(m), "selected tags are ANDed")
	m = press(m, "1")
	assert.Equal(t, []string{"Archive", "Groceries"}, titles(m))
	assert.Contains(t, m.facets(), "2:home*")

	m = press(m, "9")
	assert.Equal(t, []string{"home"}, m.query.Tags, "unknown tag number is ignored")
}

func TestBrowserSearch(t *testing.T) {
	_, m := setup(t)

	m = press(m, "/", "milk", "enter")
	assert.Equal(t, stateList, m.state)
	assert.Equal(t, []string{"Groceries"}, titles(m), "search matches content")

	m = press(m, "/", "esc")
	assert.Len(t, titles(m), 3)
}

func TestBrowserViewAndDelete(t *testing.T) {
	api, m := setup(t)

	m = press(m, "enter")
	require.Equal(t, stateView, m.state)
	assert.Contains(t, m.View(), "Archive")
	assert.Contains(t, m.View(), "old things")

	m = press(m, "b", "d")
	require.Equal(t, stateConfirm, m.state)
	assert.Contains(t, m.View(), "Delete note 'Archive'?")

	m = press(m, "n")
	assert.Equal(t, stateList, m.state)
	assert.Len(t, titles(m), 3)

	m = press(m, "d")
	m, cmd := send(m, key("y"))
	m = settle(t, m, cmd)
	assert.Equal(t, []string{"Roadmap", "Groceries"}, titles(m))
	_, exists := api.Note(3)
	assert.False(t, exists)
}

func TestBrowserPublish(t *testing.T) {
	_, m := setup(t)

	m, cmd := send(m, key("p"))
	m = settle(t, m, cmd)
	assert.Contains(t, m.status, "/public/notes/")

	m, cmd = send(m, key("u"))
	m = settle(t, m, cmd)
	assert.Contains(t, m.status, "revoked")
}

func TestBrowserStopsOnExpiredSession(t *testing.T) {
	api, m := setup(t)
	api.ExpireTokens()

	m, cmd := send(m, key("r"))
	m = settle(t, m, cmd)
	require.Equal(t, stateExpired, m.state)
	assert.Contains(t, m.View(), "collabnotes login")
	assert.False(t, m.app.Session.Authenticated())

	_, cmd = send(m, key("j"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
