// Package session owns the authenticated identity of a client: the bearer
// token, the current user and the projection of both kept in persistent
// storage between runs.
//
// Other stores reach the session through three methods: Token, User and
// Expire. Expire is the single recovery path for stale credentials; any store
// that sees a 401 calls it, and telling the user to log in again is left to
// the caller.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/collabnotes/collabnotes.go/pkg/client"
	"github.com/collabnotes/collabnotes.go/pkg/constants"
	"github.com/collabnotes/collabnotes.go/pkg/models"
	"github.com/collabnotes/collabnotes.go/pkg/storage"
	"github.com/collabnotes/collabnotes.go/pkg/validate"
)

// Client is the part of the API client the session needs.
type Client interface {
	Login(ctx context.Context, creds models.Credentials) (*client.TokenResponse, error)
	Register(ctx context.Context, reg models.Registration) (*models.User, error)
	Me(ctx context.Context) (*models.User, error)
	SetAuthToken(token string)
}

// persistedUser is the projection stored under constants.UserKey. It never
// holds the profile picture or other payload.
type persistedUser struct {
	ID                   models.UserID     `json:"id" cbor:"id"`
	Email                string            `json:"email" cbor:"email"`
	Name                 string            `json:"name,omitempty" cbor:"name,omitempty"`
	Theme                string            `json:"theme,omitempty" cbor:"theme,omitempty"`
	Language             string            `json:"language,omitempty" cbor:"language,omitempty"`
	EmailNotifications   *bool             `json:"email_notifications,omitempty" cbor:"email_notifications,omitempty"`
	BrowserNotifications *bool             `json:"browser_notifications,omitempty" cbor:"browser_notifications,omitempty"`
	CreatedAt            *models.Timestamp `json:"created_at,omitempty" cbor:"created_at,omitempty"`
	UpdatedAt            *models.Timestamp `json:"updated_at,omitempty" cbor:"updated_at,omitempty"`
}

// minimalUser is stored instead when the full projection does not fit.
type minimalUser struct {
	ID    models.UserID `json:"id" cbor:"id"`
	Email string        `json:"email" cbor:"email"`
	Name  string        `json:"name,omitempty" cbor:"name,omitempty"`
}

func project(u models.User) persistedUser {
	p := persistedUser{
		ID:                   u.ID,
		Email:                u.Email,
		Name:                 u.Name,
		Theme:                u.Theme,
		Language:             u.Language,
		EmailNotifications:   u.EmailNotifications,
		BrowserNotifications: u.BrowserNotifications,
	}
	if !u.CreatedAt.IsZero() {
		p.CreatedAt = &u.CreatedAt
	}
	if !u.UpdatedAt.IsZero() {
		p.UpdatedAt = &u.UpdatedAt
	}
	return p
}

func (p persistedUser) user() models.User {
	u := models.User{
		ID:                   p.ID,
		Email:                p.Email,
		Name:                 p.Name,
		Theme:                p.Theme,
		Language:             p.Language,
		EmailNotifications:   p.EmailNotifications,
		BrowserNotifications: p.BrowserNotifications,
	}
	if p.CreatedAt != nil {
		u.CreatedAt = *p.CreatedAt
	}
	if p.UpdatedAt != nil {
		u.UpdatedAt = *p.UpdatedAt
	}
	return u
}

// Option configures a Store.
type Option func(*Store)

// WithCodec selects how the user projection is encoded. The default is JSON.
func WithCodec(c storage.Codec) Option {
	return func(s *Store) {
		s.codec = c
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// OnExpire registers fn to run after Expire has purged the session, for
// example to drop the notes of the rejected user.
func OnExpire(fn func()) Option {
	return func(s *Store) {
		s.onExpire = fn
	}
}

// Store is the session store. It is safe for concurrent use.
type Store struct {
	client   Client
	storage  storage.Storage
	codec    storage.Codec
	logger   zerolog.Logger
	onExpire func()

	mu      sync.RWMutex
	token   string
	user    *models.User
	loading bool
}

// New creates an anonymous session store.
func New(c Client, s storage.Storage, opts ...Option) *Store {
	st := &Store{
		client:  c,
		storage: s,
		codec:   storage.JSON,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(st)
	}
	return st
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

// Loading reports whether a restore, login or registration is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Restore revalidates a persisted token with the API. On success the identity
// is populated and the persisted projection refreshed; on any failure every
// persisted session artifact is removed and the session stays anonymous.
// It reports whether a session was restored.
func (s *Store) Restore(ctx context.Context) bool {
	raw, ok, err := s.storage.Get(constants.TokenKey)
	if err != nil {
		s.logger.Warn().Err(err).Msg("could not read persisted token")
		return false
	}
	token := strings.TrimSpace(string(raw))
	if !ok || token == "" {
		return false
	}

	s.setLoading(true)
	defer s.setLoading(false)

	s.client.SetAuthToken(token)
	user, err := s.client.Me(ctx)
	if err != nil {
		s.logger.Info().Err(err).Str("kind", client.KindOf(err).String()).Msg("persisted session rejected")
		s.purge()
		return false
	}

	s.mu.Lock()
	s.token = token
	s.user = user
	s.mu.Unlock()
	s.persistUser(*user)

	s.logger.Debug().Str("email", user.Email).Msg("session restored")
	return true
}

// Login exchanges credentials for a token and establishes the session.
// Rejected credentials fail with constants.ErrInvalidCredentials.
func (s *Store) Login(ctx context.Context, email, password string) (models.User, error) {
	creds := models.Credentials{Email: strings.TrimSpace(email), Password: password}
	if err := validate.Struct(creds); err != nil {
		return models.User{}, client.NewError(client.OpLogin, client.KindValidation, err)
	}

	s.setLoading(true)
	defer s.setLoading(false)

	resp, err := s.client.Login(ctx, creds)
	if err != nil {
		s.logger.Warn().Err(err).Str("email", creds.Email).Msg("login failed")
		return models.User{}, err
	}

	s.establish(resp.AccessToken, resp.User)
	s.logger.Debug().Str("email", resp.User.Email).Msg("logged in")
	return resp.User, nil
}

// Register creates an account and then logs into it.
func (s *Store) Register(ctx context.Context, email, password, name string) (models.User, error) {
	reg := models.Registration{Email: strings.TrimSpace(email), Password: password, Name: strings.TrimSpace(name)}
	if err := validate.Struct(reg); err != nil {
		return models.User{}, client.NewError(client.OpRegister, client.KindValidation, err)
	}

	s.setLoading(true)
	_, err := s.client.Register(ctx, reg)
	s.setLoading(false)
	if err != nil {
		s.logger.Warn().Err(err).Str("email", reg.Email).Msg("registration failed")
		return models.User{}, err
	}

	return s.Login(ctx, reg.Email, password)
}

// Logout clears the persisted credential and the identity. It never fails.
func (s *Store) Logout() {
	s.purge()
	s.logger.Debug().Msg("logged out")
}

// Expire is Logout for a credential the API rejected.
func (s *Store) Expire() {
	wasAuthenticated := s.Authenticated()
	s.purge()
	if wasAuthenticated {
		s.logger.Warn().Msg("session expired")
	}
	if s.onExpire != nil {
		s.onExpire()
	}
}

// UpdateLocalIdentity merges patch into the identity and its persisted
// projection without calling the API. It is a no-op when anonymous.
func (s *Store) UpdateLocalIdentity(patch models.UserPatch) {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return
	}
	updated := patch.Apply(*s.user)
	s.user = &updated
	s.mu.Unlock()

	s.persistUser(updated)
}

// User returns a copy of the current identity.
func (s *Store) User() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return models.User{}, false
	}
	return *s.user, true
}

// Token is the bearer credential, empty when anonymous.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Authenticated reports whether both a credential and an identity are held.
func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.token != ""
}

// ExpiresAt reads the exp claim of the token for display. The token is not
// verified; only the API can do that.
func (s *Store) ExpiresAt() (time.Time, bool) {
	token := s.Token()
	if token == "" {
		return time.Time{}, false
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// PersistedUser reads the stored projection without contacting the API.
func (s *Store) PersistedUser() (models.User, bool) {
	var p persistedUser
	ok, err := storage.GetValue(s.storage, s.codec, constants.UserKey, &p)
	if err != nil || !ok {
		return models.User{}, false
	}
	return p.user(), true
}

func (s *Store) establish(token string, user models.User) {
	s.mu.Lock()
	s.token = token
	s.user = &user
	s.mu.Unlock()
	s.client.SetAuthToken(token)

	if err := s.storage.Set(constants.TokenKey, []byte(token)); err != nil {
		s.logger.Warn().Err(err).Msg("could not persist token, session lasts for this process only")
	}
	s.persistUser(user)
}

// persistUser stores the projection of u. When that fails, typically on a
// full store, the user key is dropped and the minimal projection stored
// instead. The token is never touched here.
func (s *Store) persistUser(u models.User) {
	err := storage.SetValue(s.storage, s.codec, constants.UserKey, project(u))
	if err == nil {
		return
	}
	s.logger.Warn().Err(err).Bool("quota", errors.Is(err, storage.ErrQuotaExceeded)).Msg("could not persist user, storing minimal projection")

	if rerr := s.storage.Remove(constants.UserKey); rerr != nil {
		s.logger.Warn().Err(rerr).Msg("could not remove persisted user")
	}
	minimal := minimalUser{ID: u.ID, Email: u.Email, Name: u.Name}
	if err := storage.SetValue(s.storage, s.codec, constants.UserKey, minimal); err != nil {
		s.logger.Error().Err(err).Msg("could not persist minimal user")
	}
}

func (s *Store) purge() {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.mu.Unlock()
	s.client.SetAuthToken("")

	for _, key := range []string{constants.TokenKey, constants.UserKey} {
		if err := s.storage.Remove(key); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("could not remove persisted key")
		}
	}
}
