// Package testenv provides a CollabNotes backend for tests and builds Apps
// wired to it.
//
// By default every Env runs its own in-memory fake backend on an httptest
// server. Setting COLLABNOTES_TEST_API_URL points the Env at a running backend
// instead; fixtures then go through the public API and failure injection is
// unavailable.
package testenv

import (
	"context"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/rs/zerolog"

	collabnotes "github.com/collabnotes/collabnotes.go"
	"github.com/collabnotes/collabnotes.go/internal/fakeapi"
	"github.com/collabnotes/collabnotes.go/pkg/client"
	"github.com/collabnotes/collabnotes.go/pkg/models"
	"github.com/collabnotes/collabnotes.go/pkg/storage"
)

// EnvAPIURL is the environment variable that selects an external backend.
const EnvAPIURL = "COLLABNOTES_TEST_API_URL"

// Env is one backend and the Apps built against it.
type Env struct {
	// API is the fake backend, or nil when an external backend is used.
	API *fakeapi.Server
	URL string
}

// New starts a fake backend, or connects to the one named by EnvAPIURL. The
// fake is stopped when the test ends.
func New(t testing.TB, opts ...fakeapi.Option) *Env {
	t.Helper()
	if url := os.Getenv(EnvAPIURL); url != "" {
		return &Env{URL: url}
	}
	api := fakeapi.NewServer("127.0.0.1:0", opts...)
	ts := httptest.NewServer(api.Handler())
	t.Cleanup(ts.Close)
	return &Env{API: api, URL: ts.URL}
}

// RequireFake skips the test when the Env does not run the fake backend.
func (e *Env) RequireFake(t testing.TB) *fakeapi.Server {
	t.Helper()
	if e.API == nil {
		t.Skip("needs the fake backend")
	}
	return e.API
}

// Logger writes through t so log lines show up next to the failing test.
func Logger(t testing.TB) zerolog.Logger {
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
}

// NewApp builds an App with in-memory storage against the Env. The App is
// closed when the test ends.
func (e *Env) NewApp(t testing.TB, configure ...func(*collabnotes.Options)) *collabnotes.App {
	t.Helper()
	logger := Logger(t)
	opts := collabnotes.Options{
		APIURL:  e.URL,
		Storage: storage.NewMemory(0),
		Logger:  &logger,
	}
	for _, fn := range configure {
		fn(&opts)
	}
	app, err := collabnotes.New(opts)
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	return app
}

// AddUser creates an account directly in the fake backend, or registers it
// through the API otherwise.
func (e *Env) AddUser(t testing.TB, email, password, name string) models.User {
	t.Helper()
	if e.API != nil {
		u, err := e.API.AddUser(email, password, name)
		if err != nil {
			t.Fatalf("failed to add user %s: %v", email, err)
		}
		return u
	}
	u, err := client.New(e.URL).Register(context.Background(), models.Registration{Email: email, Password: password, Name: name})
	if err != nil {
		t.Fatalf("failed to register user %s: %v", email, err)
	}
	return *u
}

// LoggedInApp is NewApp followed by a login as email.
func (e *Env) LoggedInApp(t testing.TB, email, password string, configure ...func(*collabnotes.Options)) *collabnotes.App {
	t.Helper()
	app := e.NewApp(t, configure...)
	if _, err := app.Session.Login(context.Background(), email, password); err != nil {
		t.Fatalf("failed to log in as %s: %v", email, err)
	}
	return app
}
