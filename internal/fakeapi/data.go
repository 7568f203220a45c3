package fakeapi

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/collabnotes/collabnotes.go/pkg/models"
)

// apiError is a failure a handler turns into an error body.
type apiError struct {
	status int
	detail string
	code   string
}

func (e *apiError) Error() string { return e.detail }

func fail(status int, detail string) *apiError {
	return &apiError{status: status, detail: detail}
}

// tagsFor resolves names to tags, creating missing ones. Tags are shared by
// name across notes. The caller holds s.mu.
func (s *Server) tagsFor(names []string) []models.Tag {
	out := make([]models.Tag, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		tag, ok := s.tags[name]
		if !ok {
			s.nextTag++
			tag = models.Tag{ID: models.TagID(s.nextTag), Name: name, CreatedAt: models.NewTimestamp(s.now())}
			s.tags[name] = tag
		}
		out = append(out, tag)
	}
	return out
}

// view renders a stored note. The caller holds s.mu.
func (s *Server) view(rec *noteRecord) models.Note {
	n := rec.note.Clone()
	n.SharedWith = nil
	for id := range rec.shared {
		if acct, ok := s.accounts[id]; ok {
			n.SharedWith = append(n.SharedWith, acct.user.Email)
		}
	}
	sort.Strings(n.SharedWith)
	return n
}

func canRead(rec *noteRecord, user models.User) bool {
	return rec.note.OwnerID == user.ID || rec.note.Visibility == models.VisibilityPublic || rec.shared[user.ID]
}

// lookup applies the read permission of a single note. The caller holds s.mu.
func (s *Server) lookup(id models.NoteID, user models.User) (*noteRecord, *apiError) {
	rec, ok := s.notes[id]
	if !ok {
		return nil, fail(404, "Note not found")
	}
	if !canRead(rec, user) {
		return nil, fail(403, "Not enough permissions")
	}
	return rec, nil
}

// owned is lookup restricted to the owner. The caller holds s.mu.
func (s *Server) owned(id models.NoteID, user models.User, action string) (*noteRecord, *apiError) {
	rec, err := s.lookup(id, user)
	if err != nil {
		return nil, err
	}
	if rec.note.OwnerID != user.ID {
		return nil, fail(403, "Only owner can "+action)
	}
	return rec, nil
}

func (s *Server) listNotes(user models.User, search string, visibility models.Visibility, tags []string) []models.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(search)
	var out []models.Note
	for _, rec := range s.notes {
		if !canRead(rec, user) {
			continue
		}
		n := rec.note
		if needle != "" && !strings.Contains(strings.ToLower(n.Title), needle) && !tagContains(n.Tags, needle) {
			continue
		}
		if visibility != "" && n.Visibility != visibility {
			continue
		}
		if !hasAllTags(n, tags) {
			continue
		}
		out = append(out, s.view(rec))
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].LastModified(), out[j].LastModified()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func tagContains(tags []models.Tag, needle string) bool {
	for _, t := range tags {
		if strings.Contains(strings.ToLower(t.Name), needle) {
			return true
		}
	}
	return false
}

func hasAllTags(n models.Note, tags []string) bool {
	for _, t := range tags {
		if !n.HasTag(t) {
			return false
		}
	}
	return true
}

// AddNote stores a note directly, bypassing the HTTP API.
func (s *Server) AddNote(owner models.UserID, draft models.NoteDraft) models.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createNote(owner, draft)
}

// createNote stores a note. The caller holds s.mu.
func (s *Server) createNote(owner models.UserID, draft models.NoteDraft) models.Note {
	if draft.Visibility == "" {
		draft.Visibility = models.VisibilityPrivate
	}
	s.nextNote++
	rec := &noteRecord{
		note: models.Note{
			ID:         models.NoteID(s.nextNote),
			Title:      draft.Title,
			Content:    draft.Content,
			Visibility: draft.Visibility,
			OwnerID:    owner,
			CreatedAt:  models.NewTimestamp(s.now()),
			Tags:       s.tagsFor(draft.Tags),
		},
		shared: make(map[models.UserID]bool),
	}
	s.notes[rec.note.ID] = rec
	return s.view(rec)
}

func (s *Server) updateNote(id models.NoteID, user models.User, draft models.NoteDraft) (models.Note, *apiError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.owned(id, user, "update note")
	if err != nil {
		return models.Note{}, err
	}
	rec.note.Title = draft.Title
	rec.note.Content = draft.Content
	if draft.Visibility != "" {
		rec.note.Visibility = draft.Visibility
	}
	if draft.Tags != nil {
		rec.note.Tags = s.tagsFor(draft.Tags)
	}
	rec.note.UpdatedAt = models.NewTimestamp(s.now())
	return s.view(rec), nil
}

func (s *Server) deleteNote(id models.NoteID, user models.User) *apiError {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.owned(id, user, "delete note"); err != nil {
		return err
	}
	delete(s.notes, id)
	return nil
}

func (s *Server) shareNote(id models.NoteID, user models.User, email string) (models.Note, *apiError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.owned(id, user, "share note")
	if err != nil {
		return models.Note{}, err
	}
	targetID, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return models.Note{}, fail(404, "User not found")
	}
	if targetID == user.ID {
		return models.Note{}, fail(400, "Cannot share with yourself")
	}
	if !rec.shared[targetID] {
		rec.shared[targetID] = true
		rec.note.Visibility = models.VisibilityShared
	}
	return s.view(rec), nil
}

// ShareNote grants access directly, bypassing the HTTP API.
func (s *Server) ShareNote(id models.NoteID, with models.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.notes[id]; ok {
		rec.shared[with] = true
		rec.note.Visibility = models.VisibilityShared
	}
}

func (s *Server) createPublicLink(id models.NoteID, user models.User) (models.PublicLinkResponse, *apiError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.owned(id, user, "generate public links")
	if err != nil {
		return models.PublicLinkResponse{}, err
	}
	token := uuid.NewString()
	rec.note.PublicToken = &token
	return models.PublicLinkResponse{PublicURL: "/public/notes/" + token, PublicToken: token}, nil
}

func (s *Server) revokePublicLink(id models.NoteID, user models.User) *apiError {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.owned(id, user, "revoke public links")
	if err != nil {
		return err
	}
	rec.note.PublicToken = nil
	return nil
}

func (s *Server) publicNote(token string) (models.Note, *apiError) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.notes {
		if rec.note.PublicToken != nil && *rec.note.PublicToken == token {
			n := rec.note.Clone()
			n.OwnerID = 0
			return n, nil
		}
	}
	return models.Note{}, fail(404, "Note not found or not publicly accessible")
}

// Note returns the stored note as its owner would see it.
func (s *Server) Note(id models.NoteID) (models.Note, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.notes[id]
	if !ok {
		return models.Note{}, false
	}
	return s.view(rec), true
}

func (s *Server) deleteAccount(user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.notes {
		if rec.note.OwnerID == user.ID {
			delete(s.notes, id)
			continue
		}
		delete(rec.shared, user.ID)
	}
	delete(s.byEmail, normalizeEmail(user.Email))
	delete(s.accounts, user.ID)
}
