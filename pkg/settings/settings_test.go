package settings_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabnotes/collabnotes.go/internal/fakeapi"
	"github.com/collabnotes/collabnotes.go/pkg/client"
	"github.com/collabnotes/collabnotes.go/pkg/constants"
	"github.com/collabnotes/collabnotes.go/pkg/models"
	"github.com/collabnotes/collabnotes.go/pkg/session"
	"github.com/collabnotes/collabnotes.go/pkg/settings"
	"github.com/collabnotes/collabnotes.go/pkg/storage"
)

type fixture struct {
	api     *fakeapi.Server
	storage *storage.Memory
	session *session.Store
	store   *settings.Store
	deleted int
}

func setup(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{api: fakeapi.NewServer("127.0.0.1:0")}
	ts := httptest.NewServer(f.api.Handler())
	t.Cleanup(ts.Close)
	_, err := f.api.AddUser("ada@example.com", "secret", "Ada")
	require.NoError(t, err)
	_, err = f.api.AddUser("bob@example.com", "secret", "Bob")
	require.NoError(t, err)

	c := client.New(ts.URL)
	f.storage = storage.NewMemory(0)
	f.session = session.New(c, f.storage)
	_, err = f.session.Login(context.Background(), "ada@example.com", "secret")
	require.NoError(t, err)
	f.store = settings.New(c, f.session, settings.OnAccountDeleted(func() { f.deleted++ }))
	f.api.ResetRequests()
	return f
}

func ptr[T any](v T) *T { return &v }

func TestUpdateProfileMergesIdentity(t *testing.T) {
	f := setup(t)
	user, err := f.store.UpdateProfile(context.Background(), models.ProfileUpdate{Name: ptr("Ada L.")})
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", user.Name)

	local, _ := f.session.User()
	assert.Equal(t, "Ada L.", local.Name)
	persisted, ok := f.session.PersistedUser()
	require.True(t, ok)
	assert.Equal(t, "Ada L.", persisted.Name)
	assert.False(t, f.store.Loading())
}

func TestUpdateProfileRejectsTakenEmail(t *testing.T) {
	f := setup(t)
	_, err := f.store.UpdateProfile(context.Background(), models.ProfileUpdate{Email: ptr(" bob@example.com ")})
	assert.True(t, errors.Is(err, constants.ErrValidation))
	local, _ := f.session.User()
	assert.Equal(t, "ada@example.com", local.Email)
	assert.Equal(t, err, f.store.LastError())
}

func TestUpdatePreferences(t *testing.T) {
	f := setup(t)
	off := false
	user, err := f.store.UpdatePreferences(context.Background(), models.PreferencesUpdate{
		Theme:              ptr("dark"),
		Language:           ptr("fr"),
		EmailNotifications: &off,
	})
	require.NoError(t, err)
	assert.Equal(t, "dark", user.Theme)

	local, _ := f.session.User()
	assert.Equal(t, "dark", local.Theme)
	assert.Equal(t, "fr", local.Language)
	require.NotNil(t, local.EmailNotifications)
	assert.False(t, *local.EmailNotifications)

	_, err = f.store.UpdatePreferences(context.Background(), models.PreferencesUpdate{Language: ptr("de")})
	assert.Equal(t, client.KindValidation, client.KindOf(err))
	assert.Equal(t, 1, f.api.RequestCount(http.MethodPut, "/api/users/preferences"), "invalid language never leaves the client")
}

func TestUpdatePassword(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	err := f.store.UpdatePassword(ctx, "secret", "short")
	assert.Equal(t, client.KindValidation, client.KindOf(err))
	assert.Empty(t, f.api.Requests())

	err = f.store.UpdatePassword(ctx, "wrong", "longenough")
	assert.Equal(t, client.KindValidation, client.KindOf(err))
	assert.True(t, f.session.Authenticated(), "a wrong password is not a session failure")

	require.NoError(t, f.store.UpdatePassword(ctx, "secret", "longenough"))
}

func TestDeleteAccountLogsOut(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	err := f.store.DeleteAccount(ctx, "wrong")
	assert.Error(t, err)
	assert.True(t, f.session.Authenticated())
	assert.Equal(t, 0, f.deleted)

	require.NoError(t, f.store.DeleteAccount(ctx, "secret"))
	assert.False(t, f.session.Authenticated())
	assert.Empty(t, f.storage.Keys())
	assert.Equal(t, 1, f.deleted)
}

func TestUnauthorizedExpiresSession(t *testing.T) {
	f := setup(t)
	f.api.ExpireTokens()

	_, err := f.store.UpdateProfile(context.Background(), models.ProfileUpdate{Name: ptr("x")})
	assert.True(t, client.IsUnauthorized(err))
	assert.False(t, f.session.Authenticated())
	assert.Empty(t, f.storage.Keys())

	f.api.ResetRequests()
	err = f.store.UpdatePassword(context.Background(), "secret", "longenough")
	assert.True(t, errors.Is(err, constants.ErrNoToken))
	assert.Empty(t, f.api.Requests())
	assert.False(t, f.store.Loading())
}
