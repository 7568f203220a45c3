// Package tui is the interactive note browser started by "collabnotes browse".
//
// It is a list view over the note store of a [collabnotes.App]: the notes are
// fetched once, then searched, filtered by visibility and tags, and sorted
// locally with [listview.Derive]. A selected note opens in a scrollable
// Markdown view. Deleting and publishing go through the store, so the list
// always shows what the store holds.
//
// When the API rejects the session the browser stops on a notice telling the
// user to log in again, and [Run] returns the error.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	collabnotes "github.com/collabnotes/collabnotes.go"
	"github.com/collabnotes/collabnotes.go/pkg/client"
	"github.com/collabnotes/collabnotes.go/pkg/listview"
	"github.com/collabnotes/collabnotes.go/pkg/models"
	"github.com/collabnotes/collabnotes.go/pkg/tui/common"
)

type state int

const (
	stateList state = iota
	stateSearch
	stateView
	stateConfirm
	stateExpired
)

// Options configures the browser. The zero value renders with an automatic
// Markdown style on the process terminal.
type Options struct {
	Style  string
	Input  io.Reader
	Output io.Writer
	// Width and Height size the first frame, before the terminal reports its
	// size.
	Width  int
	Height int
}

// Run starts the browser and blocks until the user quits or ctx is done.
func Run(ctx context.Context, app *collabnotes.App, opts Options) error {
	progOpts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}
	if opts.Input != nil {
		progOpts = append(progOpts, tea.WithInput(opts.Input))
	}
	if opts.Output != nil {
		progOpts = append(progOpts, tea.WithOutput(opts.Output))
	}
	final, err := tea.NewProgram(New(ctx, app, opts), progOpts...).Run()
	if err != nil {
		return fmt.Errorf("browser failed: %w", err)
	}
	if m, ok := final.(Model); ok && m.state == stateExpired {
		return m.err
	}
	return nil
}

// nowFunc is the clock item ages are computed against.
var nowFunc = time.Now

type notesLoadedMsg struct{ err error }

type noteDeletedMsg struct {
	id  models.NoteID
	err error
}

type linkMsg struct {
	id      models.NoteID
	link    models.PublicLink
	revoked bool
	err     error
}

// noteItem adapts a note to the list's default delegate.
type noteItem struct {
	note  models.Note
	owned bool
}

func (i noteItem) Title() string { return i.note.Title }

func (i noteItem) Description() string {
	parts := []string{string(i.note.Visibility), common.FormatTime(i.note.LastModified(), nowFunc())}
	if names := i.note.TagNames(); len(names) > 0 {
		parts = append(parts, "#"+strings.Join(names, " #"))
	}
	if i.note.HasPublicToken() {
		parts = append(parts, "public link")
	}
	if !i.owned {
		parts = append(parts, "shared with me")
	}
	return strings.Join(parts, " · ")
}

func (i noteItem) FilterValue() string { return i.note.Title }

type Model struct {
	ctx   context.Context
	app   *collabnotes.App
	style string

	state    state
	query    listview.Query
	list     list.Model
	search   textinput.Model
	spinner  spinner.Model
	viewport viewport.Model

	current   models.Note
	confirm   string
	confirmID models.NoteID
	status    string
	err       error
	width     int
	height    int
}

// New builds the browser model. Nothing is fetched until Init runs.
func New(ctx context.Context, app *collabnotes.App, opts Options) Model {
	width, height := opts.Width, opts.Height
	if width <= 0 {
		width = common.DefaultWrap
	}
	if height <= 0 {
		height = 24
	}

	si := textinput.New()
	si.Placeholder = "search titles, content and tags..."
	si.CharLimit = 100
	si.Width = 40

	l := list.New([]list.Item{}, list.NewDefaultDelegate(), width-4, height-8)
	l.Title = "Notes"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:      ctx,
		app:      app,
		style:    opts.Style,
		query:    listview.Query{Visibility: models.VisibilityAll, Sort: listview.SortDate},
		list:     l,
		search:   si,
		spinner:  sp,
		viewport: viewport.New(width-4, height-8),
		width:    width,
		height:   height,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch())
}

func (m Model) fetch() tea.Cmd {
	app, ctx := m.app, m.ctx
	return func() tea.Msg {
		_, err := app.Notes.Fetch(ctx, models.NoteFilter{})
		return notesLoadedMsg{err: err}
	}
}

func (m Model) delete(id models.NoteID) tea.Cmd {
	app, ctx := m.app, m.ctx
	return func() tea.Msg {
		return noteDeletedMsg{id: id, err: app.Notes.Delete(ctx, id)}
	}
}

func (m Model) publish(id models.NoteID) tea.Cmd {
	app, ctx := m.app, m.ctx
	return func() tea.Msg {
		link, err := app.Notes.GeneratePublicLink(ctx, id)
		return linkMsg{id: id, link: link, err: err}
	}
}

func (m Model) unpublish(id models.NoteID) tea.Cmd {
	app, ctx := m.app, m.ctx
	return func() tea.Msg {
		return linkMsg{id: id, revoked: true, err: app.Notes.RevokePublicLink(ctx, id)}
	}
}

// refreshList derives the visible items from the store and the query.
func (m *Model) refreshList() {
	var me models.UserID
	if user, ok := m.app.Session.User(); ok {
		me = user.ID
	}
	shown := listview.Derive(m.app.Notes.Notes(), m.query)
	items := make([]list.Item, 0, len(shown))
	for _, n := range shown {
		items = append(items, noteItem{note: n, owned: n.IsOwnedBy(me)})
	}
	m.list.SetItems(items)
}

// fail records err. A rejected or missing credential ends the browser.
func (m *Model) fail(prefix string, err error) {
	m.err = err
	switch client.KindOf(err) {
	case client.KindUnauthorized, client.KindMissingCredential:
		m.state = stateExpired
		return
	}
	m.status = prefix + ": " + err.Error()
}

func (m Model) selected() (models.Note, bool) {
	it, ok := m.list.SelectedItem().(noteItem)
	if !ok {
		return models.Note{}, false
	}
	return it.note, true
}

func (m *Model) openNote(note models.Note) {
	m.current = note
	out, err := common.RenderMarkdown(note.Content, m.style, m.width)
	if err != nil {
		out = note.Content
	}
	m.viewport.SetContent(out)
	m.viewport.GotoTop()
	m.state = stateView
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-8)
		m.viewport.Width, m.viewport.Height = msg.Width-4, msg.Height-8
		if m.state == stateView {
			m.openNote(m.current)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case notesLoadedMsg:
		if msg.err != nil {
			m.fail("Refresh failed", msg.err)
			return m, nil
		}
		m.err = nil
		m.refreshList()
		m.status = fmt.Sprintf("Loaded %d notes", len(m.app.Notes.Notes()))
		return m, nil

	case noteDeletedMsg:
		if msg.err != nil {
			m.fail("Delete failed", msg.err)
			return m, nil
		}
		m.err = nil
		m.refreshList()
		m.status = fmt.Sprintf("Deleted note #%s", msg.id)
		if m.state == stateView && m.current.ID == msg.id {
			m.state = stateList
		}
		return m, nil

	case linkMsg:
		if msg.err != nil {
			m.fail("Public link failed", msg.err)
			return m, nil
		}
		m.err = nil
		if msg.revoked {
			m.status = fmt.Sprintf("Public link of note #%s revoked", msg.id)
		} else {
			m.status = "Public link: " + msg.link.URL
		}
		m.refreshList()
		return m, nil
	}

	key, ok := msg.(tea.KeyMsg)

	switch m.state {
	case stateExpired:
		if ok {
			return m, tea.Quit
		}
		return m, nil

	case stateSearch:
		var cmd tea.Cmd
		if ok {
			switch key.String() {
			case "enter":
				m.query.Search = m.search.Value()
				m.search.Blur()
				m.state = stateList
				m.refreshList()
				return m, nil
			case "esc":
				m.query.Search = ""
				m.search.SetValue("")
				m.search.Blur()
				m.state = stateList
				m.refreshList()
				return m, nil
			}
		}
		m.search, cmd = m.search.Update(msg)
		return m, cmd

	case stateConfirm:
		if ok {
			switch key.String() {
			case "y", "Y":
				m.state = stateList
				return m, m.delete(m.confirmID)
			case "n", "N", "esc":
				m.state = stateList
				m.status = "Delete cancelled"
			}
		}
		return m, nil

	case stateView:
		if ok {
			switch key.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			case "b", "esc":
				m.state = stateList
				return m, nil
			case "d":
				return m.askDelete(m.current), nil
			}
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if ok {
		if next, cmd, handled := m.handleListKey(key); handled {
			return next, cmd
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleListKey runs the browser's own bindings before the list sees the key.
func (m Model) handleListKey(key tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch s := key.String(); s {
	case "ctrl+c", "q":
		return m, tea.Quit, true
	case "/":
		m.search.SetValue(m.query.Search)
		m.search.Focus()
		m.state = stateSearch
		return m, textinput.Blink, true
	case "v":
		m.query.Visibility = nextVisibility(m.query.Visibility)
		m.refreshList()
		return m, nil, true
	case "s":
		m.query.Sort = nextSort(m.query.Sort)
		m.refreshList()
		return m, nil, true
	case "x":
		m.query = listview.Query{Visibility: models.VisibilityAll, Sort: m.query.Sort, Locale: m.query.Locale}
		m.search.SetValue("")
		m.refreshList()
		m.status = "Filters cleared"
		return m, nil, true
	case "r":
		m.status = "Refreshing..."
		return m, m.fetch(), true
	case "enter":
		if note, ok := m.selected(); ok {
			m.openNote(note)
		}
		return m, nil, true
	case "d":
		if note, ok := m.selected(); ok {
			return m.askDelete(note), nil, true
		}
		return m, nil, true
	case "p":
		if note, ok := m.selected(); ok {
			return m, m.publish(note.ID), true
		}
		return m, nil, true
	case "u":
		if note, ok := m.selected(); ok {
			return m, m.unpublish(note.ID), true
		}
		return m, nil, true
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		tags := listview.AllTags(m.app.Notes.Notes())
		if i := int(s[0] - '1'); i < len(tags) {
			m.query.Tags = listview.ToggleTag(m.query.Tags, tags[i])
			m.refreshList()
		}
		return m, nil, true
	}
	return m, nil, false
}

func (m Model) askDelete(note models.Note) Model {
	m.confirm = fmt.Sprintf("Delete note '%s'? (y/N)", note.Title)
	m.confirmID = note.ID
	m.state = stateConfirm
	return m
}

func nextVisibility(v string) string {
	switch strings.ToUpper(v) {
	case string(models.VisibilityPrivate):
		return string(models.VisibilityShared)
	case string(models.VisibilityShared):
		return string(models.VisibilityPublic)
	case string(models.VisibilityPublic):
		return models.VisibilityAll
	}
	return string(models.VisibilityPrivate)
}

func nextSort(k listview.SortKey) listview.SortKey {
	for i, key := range listview.SortKeys {
		if key == k {
			return listview.SortKeys[(i+1)%len(listview.SortKeys)]
		}
	}
	return listview.SortDate
}

func (m Model) View() string {
	var s strings.Builder
	s.WriteString(common.TitleStyle.Render("collabnotes"))
	if user, ok := m.app.Session.User(); ok {
		s.WriteString(common.MetaStyle.Render("  " + user.Email))
	}
	if m.app.Notes.Loading() {
		s.WriteString("  " + m.spinner.View())
	}
	s.WriteString("\n\n")

	switch m.state {
	case stateExpired:
		s.WriteString(common.ErrorStyle.Render("Session expired. Run collabnotes login, then browse again."))
		s.WriteString("\n\n")
		s.WriteString(common.HelpStyle.Render("press any key to quit"))
		return s.String()

	case stateSearch:
		s.WriteString("Search notes:\n\n")
		s.WriteString(m.search.View())
		s.WriteString("\n\n")
		s.WriteString(common.HelpStyle.Render("enter: search  esc: clear"))
		return s.String()

	case stateConfirm:
		s.WriteString(common.WarningStyle.Render(m.confirm))
		s.WriteString("\n\n")
		s.WriteString(common.HelpStyle.Render("y: confirm  n/esc: cancel"))
		return s.String()

	case stateView:
		s.WriteString(common.TitleStyle.Render(m.current.Title))
		s.WriteString("\n")
		s.WriteString(common.MetaStyle.Render(fmt.Sprintf("#%s · %s", m.current.ID, m.current.Visibility)))
		s.WriteString("\n\n")
		s.WriteString(m.viewport.View())
		s.WriteString("\n")
		s.WriteString(common.HelpStyle.Render("↑/↓: scroll  d: delete  b: back  q: quit"))
		return s.String()
	}

	if len(m.list.Items()) == 0 {
		s.WriteString(common.EmptyStyle.Render("No notes match."))
		s.WriteString("\n")
	} else {
		s.WriteString(m.list.View())
		s.WriteString("\n")
	}
	s.WriteString(common.HelpStyle.Render("enter:view  /:search  v:visibility  s:sort  1-9:tag  x:clear  r:refresh  d:delete  p:publish  u:unpublish  q:quit"))
	s.WriteString("\n")
	s.WriteString(common.HelpStyle.Render(m.facets()))
	if m.status != "" {
		s.WriteString("\n")
		if m.err != nil {
			s.WriteString(common.ErrorStyle.Render(m.status))
		} else {
			s.WriteString(common.SuccessStyle.Render(m.status))
		}
	}
	return s.String()
}

// facets describes the current query and numbers the known tags.
func (m Model) facets() string {
	parts := []string{
		"visibility: " + m.query.Visibility,
		"sort: " + string(m.query.Sort),
	}
	if m.query.Search != "" {
		parts = append(parts, fmt.Sprintf("search: '%s'", m.query.Search))
	}
	tags := listview.AllTags(m.app.Notes.Notes())
	if len(tags) > 9 {
		tags = tags[:9]
	}
	if len(tags) > 0 {
		labels := make([]string, 0, len(tags))
		for i, t := range tags {
			label := fmt.Sprintf("%d:%s", i+1, t)
			for _, sel := range m.query.Tags {
				if sel == t {
					label += "*"
				}
			}
			labels = append(labels, label)
		}
		parts = append(parts, "tags "+strings.Join(labels, " "))
	}
	return strings.Join(parts, " • ")
}
