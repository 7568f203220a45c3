package collabnotes

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/collabnotes/collabnotes.go/pkg/client"
	"github.com/collabnotes/collabnotes.go/pkg/constants"
	"github.com/collabnotes/collabnotes.go/pkg/editor"
	"github.com/collabnotes/collabnotes.go/pkg/models"
	"github.com/collabnotes/collabnotes.go/pkg/notes"
	"github.com/collabnotes/collabnotes.go/pkg/session"
	"github.com/collabnotes/collabnotes.go/pkg/settings"
	"github.com/collabnotes/collabnotes.go/pkg/storage"
)

// Options configures an App. The zero value talks to constants.DefaultAPIURL
// and keeps session state in memory.
type Options struct {
	// APIURL is the base URL of the REST API.
	APIURL string
	// PublicOrigin is the origin public note links are built on.
	PublicOrigin string

	// Storage is used as is when set. Otherwise StorageConfig is opened and
	// the App owns, and closes, the result.
	Storage       storage.Storage
	StorageConfig storage.Config
	// Codec encodes the persisted user projection: "json" (default) or "cbor".
	Codec string

	Timeout    time.Duration
	HTTPClient *http.Client
	// RateLimit caps requests per second. Zero disables the limiter.
	RateLimit float64

	Logger *zerolog.Logger
}

// App is the explicit client context. It wires one API client, one storage
// area and the stores built on them. A new App has no session and an empty
// note list.
type App struct {
	Client   *client.Client
	Storage  storage.Storage
	Session  *session.Store
	Notes    *notes.Store
	Settings *settings.Store
	Logger   zerolog.Logger

	ownsStorage bool
}

// New builds an App from opts.
func New(opts Options) (*App, error) {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	apiURL := opts.APIURL
	if apiURL == "" {
		apiURL = constants.DefaultAPIURL
	}
	origin := opts.PublicOrigin
	if origin == "" {
		origin = constants.DefaultPublicOrigin
	}

	codec, err := storage.CodecByName(opts.Codec)
	if err != nil {
		return nil, err
	}

	app := &App{Logger: logger, Storage: opts.Storage}
	if app.Storage == nil {
		app.Storage, err = storage.Open(opts.StorageConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
		app.ownsStorage = true
	}

	clientOpts := []client.Option{client.WithLogger(logger.With().Str("component", "client").Logger())}
	if opts.Timeout > 0 {
		clientOpts = append(clientOpts, client.WithTimeout(opts.Timeout))
	}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, client.WithHTTPClient(opts.HTTPClient))
	}
	if opts.RateLimit > 0 {
		clientOpts = append(clientOpts, client.WithRateLimit(opts.RateLimit, 1))
	}
	app.Client = client.New(apiURL, clientOpts...)

	app.Session = session.New(app.Client, app.Storage,
		session.WithCodec(codec),
		session.WithLogger(logger.With().Str("component", "session").Logger()),
		session.OnExpire(func() { app.Notes.Reset() }),
	)
	app.Notes = notes.New(app.Client, app.Session,
		notes.WithPublicOrigin(origin),
		notes.WithLogger(logger.With().Str("component", "notes").Logger()),
	)
	app.Settings = settings.New(app.Client, app.Session,
		settings.WithLogger(logger.With().Str("component", "settings").Logger()),
		settings.OnAccountDeleted(app.Notes.Reset),
	)
	return app, nil
}

// Restore revalidates a persisted session, if any.
func (a *App) Restore(ctx context.Context) bool {
	return a.Session.Restore(ctx)
}

// Logout ends the session and empties the note list.
func (a *App) Logout() {
	a.Session.Logout()
	a.Notes.Reset()
}

// NewEditor returns an editor for a new note.
func (a *App) NewEditor(opts ...editor.Option) *editor.Editor {
	return editor.New(opts...)
}

// EditNote returns an editor prefilled with the note with id from the list,
// fetching it when the list does not hold it.
func (a *App) EditNote(ctx context.Context, id models.NoteID, opts ...editor.Option) (*editor.Editor, error) {
	note, ok := a.Notes.Note(id)
	if !ok {
		var err error
		if note, err = a.Notes.Get(ctx, id); err != nil {
			return nil, err
		}
	}
	return editor.FromNote(note, opts...), nil
}

// UpdateFunc adapts Notes.Update to an editor submit function for id.
func (a *App) UpdateFunc(id models.NoteID) editor.SubmitFunc {
	return func(ctx context.Context, draft models.NoteDraft) (models.Note, error) {
		return a.Notes.Update(ctx, id, draft)
	}
}

// Close releases the storage backend when the App opened it.
func (a *App) Close() error {
	if a.ownsStorage {
		return a.Storage.Close()
	}
	return nil
}
