package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabnotes/collabnotes.go/internal/fakeapi"
	"github.com/collabnotes/collabnotes.go/internal/testenv"
	"github.com/collabnotes/collabnotes.go/pkg/listview"
	"github.com/collabnotes/collabnotes.go/pkg/models"
	"github.com/collabnotes/collabnotes.go/pkg/storage"
	"github.com/collabnotes/collabnotes.go/pkg/tui/common"
)

// clearEnv keeps the developer's own configuration out of the tests.
func clearEnv(t *testing.T) {
	for _, key := range []string{
		EnvAPIURL, EnvPublicOrigin, EnvState, EnvStateBackend, EnvStateCodec,
		EnvLogLevel, EnvLogFile, EnvRateLimit, EnvStyle, EnvConfig,
	} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseConfigPrecedence(t *testing.T) {
	clearEnv(t)
	yamlPath := writeFile(t, "collabnotes.yaml", `
api_url: http://yaml
public_origin: http://yaml-origin
codec: cbor
timeout: 5s
style: light
state:
  backend: sqlite
  path: /tmp/yaml.db
log:
  level: info
`)
	envPath := writeFile(t, ".env", strings.Join([]string{
		"COLLABNOTES_API_URL=http://dotenv",
		"COLLABNOTES_PUBLIC_ORIGIN=http://dotenv-origin",
		"COLLABNOTES_STYLE=dark",
		"COLLABNOTES_RATE_LIMIT=2.5",
	}, "\n"))
	t.Setenv(EnvPublicOrigin, "http://env-origin")

	cmd, config, err := Parse([]string{
		"-config", yamlPath,
		"-env-file", envPath,
		"-api", "http://flag",
		"whoami",
	})
	require.NoError(t, err)
	assert.IsType(t, &WhoamiCommand{}, cmd)

	assert.Equal(t, "http://flag", config.APIURL, "flag wins")
	assert.Equal(t, "http://env-origin", config.PublicOrigin, "environment beats .env")
	assert.Equal(t, "dark", config.Style, ".env beats YAML")
	assert.Equal(t, 2.5, config.RateLimit)
	assert.Equal(t, storage.CodecCBOR, config.Codec, "YAML beats defaults")
	assert.Equal(t, 5*time.Second, config.Timeout)
	assert.Equal(t, storage.BackendSQLite, config.State.Backend)
	assert.Equal(t, "info", config.Log.Level)
}

func TestParseDefaults(t *testing.T) {
	clearEnv(t)
	_, config, err := Parse([]string{"-env-file", "", "info"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", config.APIURL)
	assert.Equal(t, "http://localhost:3000", config.PublicOrigin)
	assert.Equal(t, storage.BackendFile, config.State.Backend)
	assert.Equal(t, "state.yaml", filepath.Base(config.State.Path))
	assert.Equal(t, "warn", config.Log.Level)
}

func TestParseConfigErrors(t *testing.T) {
	clearEnv(t)

	_, _, err := Parse([]string{"-env-file", ""})
	assert.ErrorContains(t, err, "subcommand required")

	_, _, err = Parse([]string{"-env-file", "", "frobnicate"})
	assert.ErrorContains(t, err, "unknown command: frobnicate")

	_, _, err = Parse([]string{"-env-file", filepath.Join(t.TempDir(), "missing.env"), "info"})
	assert.ErrorContains(t, err, "failed to read env file", "an explicit env file must exist")

	_, _, err = Parse([]string{"-env-file", "", "-timeout", "-1s", "info"})
	assert.ErrorContains(t, err, "invalid timeout")

	t.Setenv(EnvRateLimit, "fast")
	_, _, err = Parse([]string{"-env-file", "", "info"})
	assert.ErrorContains(t, err, EnvRateLimit)
}

func ptr[T any](v T) *T { return &v }

func TestParseCommands(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		args []string
		want Command
	}{
		{
			args: []string{"login", "-email", "ada@example.com", "-password", "secret"},
			want: &LoginCommand{Email: "ada@example.com", Password: "secret"},
		},
		{
			args: []string{"list", "-tag", "work", "-tag", "home", "-sort", "title", "-visibility", "public"},
			want: &ListCommand{Visibility: "PUBLIC", Tags: []string{"work", "home"}, Sort: listview.SortTitle},
		},
		{
			args: []string{"list"},
			want: &ListCommand{Visibility: models.VisibilityAll, Sort: listview.SortDate},
		},
		{
			args: []string{"show", "12", "-raw"},
			want: &ShowCommand{ID: 12, Raw: true},
		},
		{
			args: []string{"edit", "4", "-title", "Renamed", "-add-tag", "urgent", "-remove-tag", "home"},
			want: &EditCommand{ID: 4, Title: ptr("Renamed"), AddTags: []string{"urgent"}, RemoveTags: []string{"home"}},
		},
		{
			args: []string{"edit", "4", "-content", ""},
			want: &EditCommand{ID: 4, Content: ptr("")},
		},
		{
			args: []string{"share", "3", "bob@example.com"},
			want: &ShareCommand{ID: 3, Email: "bob@example.com"},
		},
		{
			args: []string{"public", "https://notes.example.com/public/notes/abc123"},
			want: &PublicCommand{Token: "abc123"},
		},
		{
			args: []string{"public", "abc123", "-raw"},
			want: &PublicCommand{Token: "abc123", Raw: true},
		},
		{
			args: []string{"prefs", "-email-notifications", "off", "-language", "fr"},
			want: &PrefsCommand{Language: ptr("fr"), EmailNotifications: ptr(false)},
		},
		{
			args: []string{"profile", "-name", "Ada L."},
			want: &ProfileCommand{DisplayName: ptr("Ada L.")},
		},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			cmd, _, err := Parse(append([]string{"-env-file", ""}, tt.args...))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd)
		})
	}
}

func TestParseCommandErrors(t *testing.T) {
	clearEnv(t)

	tests := map[string][]string{
		"missing id":        {"show"},
		"bad id":            {"delete", "twelve"},
		"extra argument":    {"whoami", "now"},
		"unknown sort":      {"list", "-sort", "size"},
		"unknown filter":    {"list", "-visibility", "secret"},
		"share without to":  {"share", "3"},
		"empty profile":     {"profile"},
		"empty prefs":       {"prefs"},
		"bad switch":        {"prefs", "-browser-notifications", "maybe"},
		"public no token":   {"public"},
		"unknown flag":      {"create", "-colour", "red"},
		"positional create": {"create", "Groceries"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := Parse(append([]string{"-env-file", ""}, args...))
			assert.Error(t, err)
		})
	}
}

type harness struct {
	env  *testenv.Env
	api  *fakeapi.Server
	base []string
}

func newHarness(t *testing.T) *harness {
	clearEnv(t)
	env := testenv.New(t)
	api := env.RequireFake(t)
	env.AddUser(t, "ada@example.com", "secret", "Ada")
	env.AddUser(t, "bob@example.com", "secret", "Bob")
	return &harness{
		env: env,
		api: api,
		base: []string{
			"-api", env.URL,
			"-origin", "https://notes.example.com",
			"-state", filepath.Join(t.TempDir(), "state.yaml"),
			"-env-file", "",
			"-style", "notty",
			"-log-level", "error",
		},
	}
}

// run executes one CLI invocation and returns what it printed.
func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := Main(context.Background(), append(append([]string{}, h.base...), args...), &out)
	return out.String(), err
}

func (h *harness) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := h.run(t, args...)
	require.NoError(t, err)
	return out
}

func TestMainNoteLifecycle(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun(t, "login", "-email", "ada@example.com", "-password", "secret")
	assert.Contains(t, out, "Logged in as Ada <ada@example.com>")

	out = h.mustRun(t, "whoami")
	assert.Contains(t, out, "Ada <ada@example.com>")
	assert.Contains(t, out, "session expires")

	out = h.mustRun(t, "create", "-title", "Groceries", "-content", "- milk\n- eggs", "-tag", "home")
	assert.Contains(t, out, "Created note #1.")

	out = h.mustRun(t, "list")
	assert.Contains(t, out, "Groceries")
	assert.Contains(t, out, "home")
	assert.Contains(t, out, "1 notes")

	out = h.mustRun(t, "edit", "1", "-title", "Shopping", "-add-tag", "weekly", "-remove-tag", "home")
	assert.Contains(t, out, "Updated note #1.")
	note, ok := h.api.Note(1)
	require.True(t, ok)
	assert.Equal(t, "Shopping", note.Title)
	assert.Equal(t, []string{"weekly"}, note.TagNames())

	out = h.mustRun(t, "show", "1", "-raw")
	assert.Contains(t, out, "Shopping")
	assert.Contains(t, out, "- milk\n- eggs")

	out = h.mustRun(t, "list", "-visibility", "PUBLIC")
	assert.Contains(t, out, "No notes.")

	out = h.mustRun(t, "delete", "1")
	assert.Contains(t, out, "Deleted note #1.")
	_, ok = h.api.Note(1)
	assert.False(t, ok)
}

func TestMainContentFile(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "login", "-email", "ada@example.com", "-password", "secret")

	path := writeFile(t, "plan.md", "# Plan\n\nfrom a file")
	h.mustRun(t, "create", "-title", "Plan", "-content-file", path)

	note, ok := h.api.Note(1)
	require.True(t, ok)
	assert.Equal(t, "# Plan\n\nfrom a file", note.Content)

	_, err := h.run(t, "create", "-title", "Missing", "-content-file", filepath.Join(t.TempDir(), "nope.md"))
	assert.ErrorContains(t, err, "failed to read content file")
}

func TestMainSharing(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "login", "-email", "ada@example.com", "-password", "secret")
	h.mustRun(t, "create", "-title", "Roadmap", "-content", "ship it")

	_, err := h.run(t, "share", "1", "ada@example.com")
	assert.ErrorContains(t, err, "you cannot share a note with yourself")

	_, err = h.run(t, "share", "1", "ghost@example.com")
	assert.ErrorContains(t, err, "no account uses ghost@example.com")

	_, err = h.run(t, "share", "1", "not-an-email")
	assert.ErrorContains(t, err, "is not a valid email")

	out := h.mustRun(t, "share", "1", "bob@example.com")
	assert.Contains(t, out, "Note #1 shared with bob@example.com.")

	h.mustRun(t, "logout")
	h.mustRun(t, "login", "-email", "bob@example.com", "-password", "secret")
	out = h.mustRun(t, "list")
	assert.Contains(t, out, "Roadmap")
	assert.Contains(t, out, "shared with me")

	_, err = h.run(t, "share", "1", "ada@example.com")
	assert.ErrorContains(t, err, "only the owner can share note #1")
}

func TestMainPublicLinks(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "login", "-email", "ada@example.com", "-password", "secret")
	h.mustRun(t, "create", "-title", "Roadmap", "-content", "ship it")

	link := strings.TrimSpace(h.mustRun(t, "link", "1"))
	assert.True(t, strings.HasPrefix(link, "https://notes.example.com/public/notes/"), link)

	// Public notes need no session.
	h.mustRun(t, "logout")
	out := h.mustRun(t, "public", link, "-raw")
	assert.Contains(t, out, "Roadmap")
	assert.Contains(t, out, "ship it")

	h.mustRun(t, "login", "-email", "ada@example.com", "-password", "secret")
	out = h.mustRun(t, "unlink", "1")
	assert.Contains(t, out, "revoked")

	_, err := h.run(t, "public", link)
	assert.ErrorContains(t, err, "may have been revoked")
}

func TestMainCredentialErrors(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "login", "-email", "ada@example.com", "-password", "wrong")
	assert.ErrorContains(t, err, "incorrect email or password")

	_, err = h.run(t, "whoami")
	assert.ErrorContains(t, err, "whoami: not logged in, run collabnotes login")

	_, err = h.run(t, "list")
	assert.ErrorContains(t, err, "list: not logged in, run collabnotes login")
	assert.Zero(t, h.api.RequestCount("GET", "/api/notes"), "no request without a credential")
}

func TestMainExpiredSession(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "login", "-email", "ada@example.com", "-password", "secret")
	h.api.ExpireTokens()

	_, err := h.run(t, "list")
	assert.ErrorContains(t, err, "list: session expired, run collabnotes login")

	// The rejected session was purged, so the next command is plainly anonymous.
	_, err = h.run(t, "list")
	assert.ErrorContains(t, err, "not logged in")
}

func TestMainSettings(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "login", "-email", "ada@example.com", "-password", "secret")

	out := h.mustRun(t, "profile", "-name", "Ada Lovelace")
	assert.Contains(t, out, "Ada Lovelace <ada@example.com>")

	h.mustRun(t, "prefs", "-theme", "dark", "-language", "fr", "-email-notifications", "off")
	out = h.mustRun(t, "whoami")
	assert.Contains(t, out, "Ada Lovelace")
	assert.Contains(t, out, "dark")
	assert.Contains(t, out, "fr")
	assert.Contains(t, out, "email notifications    off")

	_, err := h.run(t, "password", "-current", "wrong", "-new", "longer-secret")
	assert.Error(t, err)
	h.mustRun(t, "password", "-current", "secret", "-new", "longer-secret")

	out = h.mustRun(t, "delete-account", "-password", "longer-secret")
	assert.Contains(t, out, "Account deleted.")

	_, err = h.run(t, "login", "-email", "ada@example.com", "-password", "longer-secret")
	assert.ErrorContains(t, err, "incorrect email or password")
}

func TestMainRegisterAndInfo(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun(t, "register", "-email", "cy@example.com", "-password", "long-enough", "-name", "Cy")
	assert.Contains(t, out, "Registered and logged in as Cy <cy@example.com>")
	out = h.mustRun(t, "whoami")
	assert.Contains(t, out, "cy@example.com")

	out = h.mustRun(t, "info")
	assert.Contains(t, out, fakeapi.Version)
}

func TestNoteTable(t *testing.T) {
	assert.Contains(t, NoteTable(nil, 1), "No notes.")

	notes := []models.Note{
		{ID: 1, Title: "Mine", OwnerID: 1, Visibility: models.VisibilityPrivate},
		{ID: 2, Title: "Theirs", OwnerID: 2, Visibility: models.VisibilityPublic, PublicToken: ptr("tok")},
	}
	out := NoteTable(notes, 1)
	assert.Contains(t, out, "TITLE")
	assert.Contains(t, out, "Mine")
	assert.Contains(t, out, "PUBLIC (link)")
	assert.Contains(t, out, "shared with me")
}

func TestFormatTime(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "-", common.FormatTime(time.Time{}, now))
	assert.Equal(t, "just now", common.FormatTime(now.Add(-10*time.Second), now))
	assert.Equal(t, "5m ago", common.FormatTime(now.Add(-5*time.Minute), now))
	assert.Equal(t, "3h ago", common.FormatTime(now.Add(-3*time.Hour), now))
	assert.Equal(t, "2d ago", common.FormatTime(now.Add(-49*time.Hour), now))
	assert.Equal(t, "2024-01-02", common.FormatTime(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), now))
}
