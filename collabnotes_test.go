package collabnotes_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	collabnotes "github.com/collabnotes/collabnotes.go"
	"github.com/collabnotes/collabnotes.go/internal/testenv"
	"github.com/collabnotes/collabnotes.go/pkg/client"
	"github.com/collabnotes/collabnotes.go/pkg/listview"
	"github.com/collabnotes/collabnotes.go/pkg/models"
	"github.com/collabnotes/collabnotes.go/pkg/notestesting"
	"github.com/collabnotes/collabnotes.go/pkg/storage"
)

func TestNewAppStartsEmpty(t *testing.T) {
	app, err := collabnotes.New(collabnotes.Options{})
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, "http://localhost:8000", app.Client.BaseURL())
	assert.False(t, app.Session.Authenticated())
	assert.Empty(t, app.Notes.Notes())
	assert.False(t, app.Restore(context.Background()), "nothing persisted, nothing sent")

	_, err = collabnotes.New(collabnotes.Options{Codec: "xml"})
	assert.Error(t, err)
}

func TestSessionSurvivesRestart(t *testing.T) {
	env := testenv.New(t)
	env.AddUser(t, "ada@example.com", "secret", "Ada")
	ctx := context.Background()

	for _, backend := range []string{storage.BackendFile, storage.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			cfg := storage.Config{Backend: backend, Path: filepath.Join(t.TempDir(), "state")}
			open := func() *collabnotes.App {
				app, err := collabnotes.New(collabnotes.Options{APIURL: env.URL, StorageConfig: cfg, Codec: "cbor"})
				require.NoError(t, err)
				return app
			}

			first := open()
			_, err := first.Session.Login(ctx, "ada@example.com", "secret")
			require.NoError(t, err)
			require.NoError(t, first.Close())

			second := open()
			defer second.Close()
			require.True(t, second.Restore(ctx))
			user, _ := second.Session.User()
			assert.Equal(t, "Ada", user.Name)
		})
	}
}

func TestEditorToListFlow(t *testing.T) {
	env := testenv.New(t)
	env.AddUser(t, "ada@example.com", "secret", "Ada")
	app := env.LoggedInApp(t, "ada@example.com", "secret")
	ctx := context.Background()

	ed := app.NewEditor()
	defer ed.Close()
	ed.SetTitle("Groceries")
	ed.SetContent("- milk")
	ed.AddTag("home")
	require.NoError(t, ed.SetVisibility("PUBLIC"))
	created, err := ed.Submit(ctx, app.Notes.Create)
	require.NoError(t, err)

	_, err = app.Notes.Create(ctx, models.NoteDraft{Title: "Roadmap", Tags: []string{"work"}})
	require.NoError(t, err)

	shown := listview.Derive(app.Notes.Notes(), listview.Query{Visibility: "PUBLIC"})
	require.Len(t, shown, 1)
	assert.Equal(t, created.ID, shown[0].ID)
	assert.Equal(t, []string{"work", "home"}, listview.AllTags(app.Notes.Notes()))

	edit, err := app.EditNote(ctx, created.ID)
	require.NoError(t, err)
	defer edit.Close()
	edit.SetTitle("Groceries (week 2)")
	_, err = edit.Submit(ctx, app.UpdateFunc(created.ID))
	require.NoError(t, err)

	note, ok := app.Notes.Note(created.ID)
	require.True(t, ok)
	assert.Equal(t, "Groceries (week 2)", note.Title)
	assert.Equal(t, []string{"home"}, note.TagNames())
}

func TestAccountDeletionEmptiesApp(t *testing.T) {
	env := testenv.New(t)
	env.AddUser(t, "ada@example.com", "secret", "Ada")
	app := env.LoggedInApp(t, "ada@example.com", "secret")
	ctx := context.Background()

	_, err := app.Notes.Create(ctx, models.NoteDraft{Title: "gone soon"})
	require.NoError(t, err)
	require.NoError(t, app.Settings.DeleteAccount(ctx, "secret"))

	assert.False(t, app.Session.Authenticated())
	assert.Empty(t, app.Notes.Notes())

	_, err = app.Session.Login(ctx, "ada@example.com", "secret")
	assert.Equal(t, client.KindInvalidCredentials, client.KindOf(err))
}

func TestRejectedCredentialDropsNotes(t *testing.T) {
	env := testenv.New(t)
	api := env.RequireFake(t)
	ada := env.AddUser(t, "ada@example.com", "secret", "Ada")
	env.AddUser(t, "bob@example.com", "secret", "Bob")
	api.AddNote(ada.ID, models.NoteDraft{Title: "ada private diary"})
	app := env.LoggedInApp(t, "ada@example.com", "secret")
	ctx := context.Background()

	_, err := app.Notes.Fetch(ctx, models.NoteFilter{})
	require.NoError(t, err)
	require.Len(t, app.Notes.Notes(), 1)

	api.ExpireTokens()
	_, err = app.Notes.Fetch(ctx, models.NoteFilter{})
	require.True(t, client.IsUnauthorized(err))
	assert.False(t, app.Session.Authenticated())
	assert.Empty(t, app.Notes.Notes())

	_, err = app.Session.Login(ctx, "bob@example.com", "secret")
	require.NoError(t, err)
	assert.Empty(t, app.Notes.Notes(), "the next user starts from an empty list")

	// A 401 seen by the settings store drops the list too.
	_, err = app.Notes.Create(ctx, models.NoteDraft{Title: "bob's"})
	require.NoError(t, err)
	require.Len(t, app.Notes.Notes(), 1)
	api.ExpireTokens()
	theme := "dark"
	_, err = app.Settings.UpdatePreferences(ctx, models.PreferencesUpdate{Theme: &theme})
	require.True(t, client.IsUnauthorized(err))
	assert.Empty(t, app.Notes.Notes())
}

func TestVirtualUsers(t *testing.T) {
	env := testenv.New(t)
	env.AddUser(t, "reader@example.com", "secret", "Reader")
	ctx := context.Background()

	const numUsers = 4
	users := make([]*notestesting.VirtualUser, numUsers)
	for i := range users {
		users[i] = notestesting.NewVirtualUser(i, env.NewApp(t))
	}

	var wg sync.WaitGroup
	errs := make([]error, numUsers)
	for i, vu := range users {
		wg.Add(1)
		go func(i int, vu *notestesting.VirtualUser) {
			defer wg.Done()
			errs[i] = vu.RunScenario(ctx, "reader@example.com")
		}(i, vu)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, fmt.Sprintf("virtual user %d", i))
	}
}
