// Package settings updates the account of the current user: profile,
// password, preferences and deletion.
//
// It follows the same rules as the note store. Every call needs a bearer
// credential, a single loading flag covers every call and a 401 expires the
// session. Successful profile and preference updates are merged into the
// session identity so the rest of the client sees them without a reload.
package settings

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/collabnotes/collabnotes.go/pkg/client"
	"github.com/collabnotes/collabnotes.go/pkg/constants"
	"github.com/collabnotes/collabnotes.go/pkg/models"
	"github.com/collabnotes/collabnotes.go/pkg/validate"
)

// Client is the part of the API client the settings store needs.
type Client interface {
	UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*models.UserResponse, error)
	UpdatePassword(ctx context.Context, update models.PasswordUpdate) (*models.MessageResponse, error)
	UpdatePreferences(ctx context.Context, update models.PreferencesUpdate) (*models.UserResponse, error)
	DeleteAccount(ctx context.Context, password string) (*models.MessageResponse, error)
}

// Session is what the settings store reads from and changes in the session
// store.
type Session interface {
	Token() string
	UpdateLocalIdentity(patch models.UserPatch)
	Logout()
	Expire()
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// OnAccountDeleted registers fn to run after a deleted account has been
// logged out, for example to empty the note list.
func OnAccountDeleted(fn func()) Option {
	return func(s *Store) {
		s.onDeleted = fn
	}
}

// Store changes the account of the session. It is safe for concurrent use.
type Store struct {
	client    Client
	session   Session
	logger    zerolog.Logger
	onDeleted func()

	mu      sync.RWMutex
	loading bool
	lastErr error
}

// New creates a settings store for the session sess.
func New(c Client, sess Session, opts ...Option) *Store {
	s := &Store{
		client:  c,
		session: sess,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Store) fail(err error) error {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	return err
}

func (s *Store) begin(op string) error {
	if s.session.Token() == "" {
		return s.fail(client.NewError(op, client.KindMissingCredential, constants.ErrNoToken))
	}
	s.mu.Lock()
	s.loading = true
	s.lastErr = nil
	s.mu.Unlock()
	return nil
}

func (s *Store) end(op string, err error) error {
	s.mu.Lock()
	s.loading = false
	s.lastErr = err
	s.mu.Unlock()

	if err == nil {
		return nil
	}
	if client.IsUnauthorized(err) {
		s.logger.Warn().Str("op", op).Msg("credential rejected, expiring session")
		s.session.Expire()
		return err
	}
	s.logger.Warn().Err(err).Str("op", op).Msg("settings update failed")
	return err
}

func (s *Store) check(op string, v any) error {
	if err := validate.Struct(v); err != nil {
		return s.fail(client.NewError(op, client.KindValidation, err))
	}
	return nil
}

// UpdateProfile changes the name, email or picture of the account and returns
// the updated identity.
func (s *Store) UpdateProfile(ctx context.Context, update models.ProfileUpdate) (models.User, error) {
	if update.Email != nil {
		email := strings.TrimSpace(*update.Email)
		update.Email = &email
	}
	if err := s.check(client.OpUpdateProfile, update); err != nil {
		return models.User{}, err
	}
	if err := s.begin(client.OpUpdateProfile); err != nil {
		return models.User{}, err
	}
	resp, err := s.client.UpdateProfile(ctx, update)
	if err != nil {
		return models.User{}, s.end(client.OpUpdateProfile, err)
	}

	s.session.UpdateLocalIdentity(models.UserPatch{
		Name:           &resp.User.Name,
		Email:          &resp.User.Email,
		ProfilePicture: &resp.User.ProfilePicture,
		UpdatedAt:      &resp.User.UpdatedAt,
	})
	s.logger.Debug().Msg("profile updated")
	return resp.User, s.end(client.OpUpdateProfile, nil)
}

// UpdatePassword changes the password. A wrong current password is a
// validation error.
func (s *Store) UpdatePassword(ctx context.Context, current, next string) error {
	update := models.PasswordUpdate{CurrentPassword: current, NewPassword: next}
	if err := s.check(client.OpUpdatePassword, update); err != nil {
		return err
	}
	if err := s.begin(client.OpUpdatePassword); err != nil {
		return err
	}
	if _, err := s.client.UpdatePassword(ctx, update); err != nil {
		return s.end(client.OpUpdatePassword, err)
	}
	s.logger.Debug().Msg("password updated")
	return s.end(client.OpUpdatePassword, nil)
}

// UpdatePreferences changes theme, language and notification settings.
func (s *Store) UpdatePreferences(ctx context.Context, update models.PreferencesUpdate) (models.User, error) {
	if err := s.check(client.OpUpdatePreferences, update); err != nil {
		return models.User{}, err
	}
	if err := s.begin(client.OpUpdatePreferences); err != nil {
		return models.User{}, err
	}
	resp, err := s.client.UpdatePreferences(ctx, update)
	if err != nil {
		return models.User{}, s.end(client.OpUpdatePreferences, err)
	}

	u := resp.User
	s.session.UpdateLocalIdentity(models.UserPatch{
		Theme:                &u.Theme,
		Language:             &u.Language,
		EmailNotifications:   u.EmailNotifications,
		BrowserNotifications: u.BrowserNotifications,
		UpdatedAt:            &u.UpdatedAt,
	})
	s.logger.Debug().Msg("preferences updated")
	return u, s.end(client.OpUpdatePreferences, nil)
}

// DeleteAccount removes the account after the server confirms password, then
// logs the session out.
func (s *Store) DeleteAccount(ctx context.Context, password string) error {
	if err := s.check(client.OpDeleteAccount, models.AccountDelete{Password: password}); err != nil {
		return err
	}
	if err := s.begin(client.OpDeleteAccount); err != nil {
		return err
	}
	if _, err := s.client.DeleteAccount(ctx, password); err != nil {
		return s.end(client.OpDeleteAccount, err)
	}

	s.session.Logout()
	if s.onDeleted != nil {
		s.onDeleted()
	}
	s.logger.Info().Msg("account deleted")
	return s.end(client.OpDeleteAccount, nil)
}
