// Package notes holds the list of notes visible to the current session and is
// the only component that calls the note endpoints.
//
// A Store keeps the notes in server order. Writes patch the list with the
// representation the API returns; a failed write leaves it untouched. A 401 on
// any operation expires the session through [Session.Expire] and the error is
// returned with kind Unauthorized; sending the user back to a login prompt is
// up to the caller.
//
// Every operation needs a bearer credential. Without one the operation fails
// with constants.ErrNoToken before anything is sent.
package notes

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

// Client is the part of the API client the note store needs.
type Client interface {
	ListNotes(ctx context.Context, filter models.NoteFilter) ([]models.Note, error)
	GetNote(ctx context.Context, id models.NoteID) (*models.Note, error)
	CreateNote(ctx context.Context, draft models.NoteDraft) (*models.Note, error)
	UpdateNote(ctx context.Context, id models.NoteID, draft models.NoteDraft) (*models.Note, error)
	DeleteNote(ctx context.Context, id models.NoteID) error
	ShareNote(ctx context.Context, id models.NoteID, email string) (*models.Note, error)
	CreatePublicLink(ctx context.Context, id models.NoteID) (*models.PublicLinkResponse, error)
	RevokePublicLink(ctx context.Context, id models.NoteID) error
	GetPublicNote(ctx context.Context, token string) (*models.Note, error)
}

// Session is what the store reads from the session store.
type Session interface {
	Token() string
	User() (models.User, bool)
	Expire()
}

// Option configures a Store.
type Option func(*Store)

// WithPublicOrigin sets the origin public links are built on, for example
// https://notes.example.com.
func WithPublicOrigin(origin string) Option {
	return func(s *Store) {
		s.publicOrigin = strings.TrimRight(origin, "/")
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store is the note collection store. It is safe for concurrent use; the list
// lock is never held across a request.
type Store struct {
	client       Client
	session      Session
	publicOrigin string
	logger       zerolog.Logger

	mu      sync.RWMutex
	notes   []models.Note
	loading bool
	lastErr error
}

// New creates a store with an empty list.
func New(c Client, sess Session, opts ...Option) *Store {
	s := &Store{
		client:       c,
		session:      sess,
		publicOrigin: strings.TrimRight(constants.DefaultPublicOrigin, "/"),
		logger:       zerolog.Nop(),
		notes:        []models.Note{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// begin checks the credential precondition and raises the loading flag.
func (s *Store) begin(op string) error {
	if s.session.Token() == "" {
		err := client.NewError(op, client.KindMissingCredential, constants.ErrNoToken)
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		return err
	}
	s.mu.Lock()
	s.loading = true
	s.lastErr = nil
	s.mu.Unlock()
	return nil
}

// end lowers the loading flag and records err. A 401 expires the session.
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
	s.logger.Warn().Err(err).Str("op", op).Str("kind", client.KindOf(err).String()).Msg("note operation failed")
	return err
}

// reject records a local failure that never reached the API.
func (s *Store) reject(op string, kind client.Kind, err error) error {
	cerr := client.NewError(op, kind, err)
	s.mu.Lock()
	s.lastErr = cerr
	s.mu.Unlock()
	return cerr
}

// Fetch replaces the list with the notes matching filter, in server order.
func (s *Store) Fetch(ctx context.Context, filter models.NoteFilter) ([]models.Note, error) {
	if err := s.begin(client.OpListNotes); err != nil {
		return nil, err
	}
	list, err := s.client.ListNotes(ctx, filter)
	if err != nil {
		return nil, s.end(client.OpListNotes, err)
	}

	s.mu.Lock()
	s.notes = cloneAll(list)
	s.mu.Unlock()
	s.logger.Debug().Int("count", len(list)).Msg("notes fetched")
	return cloneAll(list), s.end(client.OpListNotes, nil)
}

// Get refreshes a single note. The list is patched in place when it holds the
// note; otherwise it is left as is.
func (s *Store) Get(ctx context.Context, id models.NoteID) (models.Note, error) {
	if err := s.begin(client.OpGetNote); err != nil {
		return models.Note{}, err
	}
	note, err := s.client.GetNote(ctx, id)
	if err != nil {
		return models.Note{}, s.end(client.OpGetNote, err)
	}
	s.replace(*note)
	return note.Clone(), s.end(client.OpGetNote, nil)
}

// Create validates draft locally, creates the note and prepends it.
func (s *Store) Create(ctx context.Context, draft models.NoteDraft) (models.Note, error) {
	draft = draft.Normalize()
	if err := validate.Struct(draft); err != nil {
		return models.Note{}, s.reject(client.OpCreateNote, client.KindValidation, err)
	}
	if err := s.begin(client.OpCreateNote); err != nil {
		return models.Note{}, err
	}
	note, err := s.client.CreateNote(ctx, draft)
	if err != nil {
		return models.Note{}, s.end(client.OpCreateNote, err)
	}

	s.mu.Lock()
	s.notes = append([]models.Note{note.Clone()}, s.notes...)
	s.mu.Unlock()
	s.logger.Debug().Stringer("id", note.ID).Msg("note created")
	return note.Clone(), s.end(client.OpCreateNote, nil)
}

// Update replaces the note with id in place, keeping its position.
func (s *Store) Update(ctx context.Context, id models.NoteID, draft models.NoteDraft) (models.Note, error) {
	draft = draft.Normalize()
	if err := validate.Struct(draft); err != nil {
		return models.Note{}, s.reject(client.OpUpdateNote, client.KindValidation, err)
	}
	if err := s.begin(client.OpUpdateNote); err != nil {
		return models.Note{}, err
	}
	note, err := s.client.UpdateNote(ctx, id, draft)
	if err != nil {
		return models.Note{}, s.end(client.OpUpdateNote, err)
	}
	s.replace(*note)
	s.logger.Debug().Stringer("id", id).Msg("note updated")
	return note.Clone(), s.end(client.OpUpdateNote, nil)
}

// Delete removes the note with id.
func (s *Store) Delete(ctx context.Context, id models.NoteID) error {
	if err := s.begin(client.OpDeleteNote); err != nil {
		return err
	}
	if err := s.client.DeleteNote(ctx, id); err != nil {
		return s.end(client.OpDeleteNote, err)
	}

	s.mu.Lock()
	kept := s.notes[:0:0]
	for _, n := range s.notes {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	s.notes = kept
	s.mu.Unlock()
	s.logger.Debug().Stringer("id", id).Msg("note deleted")
	return s.end(client.OpDeleteNote, nil)
}

// Share grants the user with email access to the note. Sharing with the
// acting user fails with kind SelfShare before any request is made.
func (s *Store) Share(ctx context.Context, id models.NoteID, email string) (models.Note, error) {
	email = strings.TrimSpace(email)
	if err := validate.Var("user_email", email, "required,email"); err != nil {
		return models.Note{}, s.reject(client.OpShareNote, client.KindValidation, err)
	}
	if user, ok := s.session.User(); ok && strings.EqualFold(strings.TrimSpace(user.Email), email) {
		return models.Note{}, s.reject(client.OpShareNote, client.KindSelfShare, constants.ErrSelfShare)
	}
	if err := s.begin(client.OpShareNote); err != nil {
		return models.Note{}, err
	}
	note, err := s.client.ShareNote(ctx, id, email)
	if err != nil {
		return models.Note{}, s.end(client.OpShareNote, err)
	}
	s.replace(*note)
	s.logger.Debug().Stringer("id", id).Str("with", email).Msg("note shared")
	return note.Clone(), s.end(client.OpShareNote, nil)
}

// GeneratePublicLink asks the API for a public token and builds the absolute
// link on the configured origin. The local note is not modified.
func (s *Store) GeneratePublicLink(ctx context.Context, id models.NoteID) (models.PublicLink, error) {
	if err := s.begin(client.OpCreatePublicLink); err != nil {
		return models.PublicLink{}, err
	}
	resp, err := s.client.CreatePublicLink(ctx, id)
	if err != nil {
		return models.PublicLink{}, s.end(client.OpCreatePublicLink, err)
	}
	link := models.PublicLink{
		Token: resp.PublicToken,
		URL:   s.PublicURL(resp.PublicToken),
	}
	return link, s.end(client.OpCreatePublicLink, nil)
}

// PublicURL is the absolute public link for token.
func (s *Store) PublicURL(token string) string {
	return s.publicOrigin + constants.PublicNotePath + token
}

// RevokePublicLink drops the public token. Only that field of the local note
// changes.
func (s *Store) RevokePublicLink(ctx context.Context, id models.NoteID) error {
	if err := s.begin(client.OpRevokePublicLink); err != nil {
		return err
	}
	if err := s.client.RevokePublicLink(ctx, id); err != nil {
		return s.end(client.OpRevokePublicLink, err)
	}

	s.mu.Lock()
	for i := range s.notes {
		if s.notes[i].ID == id {
			s.notes[i].PublicToken = nil
		}
	}
	s.mu.Unlock()
	return s.end(client.OpRevokePublicLink, nil)
}

// FetchPublic reads a note through its public token. It needs no credential
// and touches neither the list nor the session.
func (s *Store) FetchPublic(ctx context.Context, token string) (models.Note, error) {
	note, err := s.client.GetPublicNote(ctx, token)
	if err != nil {
		return models.Note{}, err
	}
	return *note, nil
}

func (s *Store) replace(note models.Note) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notes {
		if s.notes[i].ID == note.ID {
			s.notes[i] = note.Clone()
			return
		}
	}
}

// Notes returns a copy of the list.
func (s *Store) Notes() []models.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.notes)
}

// Note returns a copy of the listed note with id.
func (s *Store) Note(id models.NoteID) (models.Note, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.notes {
		if n.ID == id {
			return n.Clone(), true
		}
	}
	return models.Note{}, false
}

// Loading reports whether an operation is in flight. There is one flag for
// the whole store.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// LastError is the error of the most recent operation, nil after a success.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// IsOwner reports whether the current user owns note.
func (s *Store) IsOwner(note models.Note) bool {
	user, ok := s.session.User()
	return ok && note.IsOwnedBy(user.ID)
}

// Reset empties the list, as after a logout.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = []models.Note{}
	s.lastErr = nil
}

func cloneAll(list []models.Note) []models.Note {
	out := make([]models.Note, len(list))
	for i, n := range list {
		out[i] = n.Clone()
	}
	return out
}
