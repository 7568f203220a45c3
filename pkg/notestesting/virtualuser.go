// Package notestesting provides simulated users for end-to-end and load tests
// of a CollabNotes client.
//
// A [VirtualUser] drives one [collabnotes.App] through a scripted, seeded
// scenario: it registers, writes notes through the editor, tags, edits,
// shares, publishes and deletes them, and records what the backend should
// hold afterwards. [VirtualUser.Verify] then fetches the list again and checks
// it against that record.
//
// Behavior is deterministic per index. Even-indexed users mostly create; odd
// ones delete more often. Several users can run concurrently against one
// backend, each with its own App.
//
//	vu := notestesting.NewVirtualUser(0, app)
//	if err := vu.RunScenario(ctx); err != nil {
//		t.Fatalf("virtual user scenario failed: %v", err)
//	}
package notestesting

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	collabnotes "github.com/collabnotes/collabnotes.go"
	"github.com/collabnotes/collabnotes.go/pkg/client"
	"github.com/collabnotes/collabnotes.go/pkg/models"
)

var tagPool = []string{"work", "home", "ideas", "go", "reading", "todo"}

// VirtualUser is a stateful simulated user.
type VirtualUser struct {
	Index    int // position of the user in the test, not the backend id
	Name     string
	Email    string
	Password string
	App      *collabnotes.App
	RNG      *rand.Rand

	// What the backend should hold for this user.
	Notes   map[models.NoteID]models.Note
	Deleted []models.NoteID
	// Public tokens by note. A revoked link maps to the token it had.
	Links   map[models.NoteID]string
	Revoked map[models.NoteID]string

	mu sync.RWMutex
}

// NewVirtualUser creates a user driving app.
func NewVirtualUser(index int, app *collabnotes.App) *VirtualUser {
	return &VirtualUser{
		Index:    index,
		Name:     fmt.Sprintf("Virtual User %d", index),
		Email:    fmt.Sprintf("user%d-%d@test.com", index, time.Now().UnixNano()),
		Password: fmt.Sprintf("password%d", index),
		App:      app,
		RNG:      rand.New(rand.NewSource(int64(index))),
		Notes:    make(map[models.NoteID]models.Note),
		Links:    make(map[models.NoteID]string),
		Revoked:  make(map[models.NoteID]string),
	}
}

// Register creates the account and logs in.
func (vu *VirtualUser) Register(ctx context.Context) error {
	if _, err := vu.App.Session.Register(ctx, vu.Email, vu.Password, vu.Name); err != nil {
		return fmt.Errorf("virtual user %d registration failed: %w", vu.Index, err)
	}
	return nil
}

func (vu *VirtualUser) Login(ctx context.Context) error {
	if _, err := vu.App.Session.Login(ctx, vu.Email, vu.Password); err != nil {
		return fmt.Errorf("virtual user %d login failed: %w", vu.Index, err)
	}
	return nil
}

func (vu *VirtualUser) Logout() {
	vu.App.Logout()
}

// CreateNote writes a note through the editor, with a few tags from the pool.
func (vu *VirtualUser) CreateNote(ctx context.Context, title, content string) (models.Note, error) {
	ed := vu.App.NewEditor()
	defer ed.Close()
	ed.SetTitle(title)
	ed.SetContent(content)
	for i := vu.RNG.Intn(3); i > 0; i-- {
		ed.AddTag(tagPool[vu.RNG.Intn(len(tagPool))])
	}

	note, err := ed.Submit(ctx, vu.App.Notes.Create)
	if err != nil {
		return models.Note{}, fmt.Errorf("virtual user %d failed to create note: %w", vu.Index, err)
	}

	vu.mu.Lock()
	vu.Notes[note.ID] = note
	vu.mu.Unlock()
	return note, nil
}

// UpdateNote retitles a note through the editor, keeping its other fields.
func (vu *VirtualUser) UpdateNote(ctx context.Context, id models.NoteID, title string) error {
	ed, err := vu.App.EditNote(ctx, id)
	if err != nil {
		return fmt.Errorf("virtual user %d failed to open note %s: %w", vu.Index, id, err)
	}
	defer ed.Close()
	ed.SetTitle(title)

	note, err := ed.Submit(ctx, vu.App.UpdateFunc(id))
	if err != nil {
		return fmt.Errorf("virtual user %d failed to update note %s: %w", vu.Index, id, err)
	}

	vu.mu.Lock()
	vu.Notes[id] = note
	vu.mu.Unlock()
	return nil
}

func (vu *VirtualUser) DeleteNote(ctx context.Context, id models.NoteID) error {
	if err := vu.App.Notes.Delete(ctx, id); err != nil {
		return fmt.Errorf("virtual user %d failed to delete note %s: %w", vu.Index, id, err)
	}

	vu.mu.Lock()
	delete(vu.Notes, id)
	delete(vu.Links, id)
	vu.Deleted = append(vu.Deleted, id)
	vu.mu.Unlock()
	return nil
}

// Publish generates a public link for the note.
func (vu *VirtualUser) Publish(ctx context.Context, id models.NoteID) (models.PublicLink, error) {
	link, err := vu.App.Notes.GeneratePublicLink(ctx, id)
	if err != nil {
		return models.PublicLink{}, fmt.Errorf("virtual user %d failed to publish note %s: %w", vu.Index, id, err)
	}

	vu.mu.Lock()
	vu.Links[id] = link.Token
	delete(vu.Revoked, id)
	vu.mu.Unlock()
	return link, nil
}

func (vu *VirtualUser) Unpublish(ctx context.Context, id models.NoteID) error {
	if err := vu.App.Notes.RevokePublicLink(ctx, id); err != nil {
		return fmt.Errorf("virtual user %d failed to revoke link of note %s: %w", vu.Index, id, err)
	}

	vu.mu.Lock()
	if tok, ok := vu.Links[id]; ok {
		vu.Revoked[id] = tok
		delete(vu.Links, id)
	}
	vu.mu.Unlock()
	return nil
}

// ShareWith shares the note with another account by email.
func (vu *VirtualUser) ShareWith(ctx context.Context, id models.NoteID, email string) error {
	note, err := vu.App.Notes.Share(ctx, id, email)
	if err != nil {
		return fmt.Errorf("virtual user %d failed to share note %s: %w", vu.Index, id, err)
	}

	vu.mu.Lock()
	vu.Notes[id] = note
	vu.mu.Unlock()
	return nil
}

// NoteIDs returns the ids of the notes the user should own, sorted.
func (vu *VirtualUser) NoteIDs() []models.NoteID {
	vu.mu.RLock()
	defer vu.mu.RUnlock()
	ids := make([]models.NoteID, 0, len(vu.Notes))
	for id := range vu.Notes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Verify refetches the list and checks it against what the user recorded:
// every owned note is present with its last title, deleted notes are gone and
// public links resolve exactly while they are active.
func (vu *VirtualUser) Verify(ctx context.Context) error {
	list, err := vu.App.Notes.Fetch(ctx, models.NoteFilter{})
	if err != nil {
		return fmt.Errorf("virtual user %d failed to list notes: %w", vu.Index, err)
	}

	vu.mu.RLock()
	defer vu.mu.RUnlock()

	owned := make(map[models.NoteID]models.Note)
	for _, n := range list {
		if vu.App.Notes.IsOwner(n) {
			owned[n.ID] = n
		}
	}
	if len(owned) != len(vu.Notes) {
		return fmt.Errorf("virtual user %d note count mismatch: expected %d, got %d", vu.Index, len(vu.Notes), len(owned))
	}
	for id, want := range vu.Notes {
		got, ok := owned[id]
		if !ok {
			return fmt.Errorf("virtual user %d: note %s is missing", vu.Index, id)
		}
		if got.Title != want.Title {
			return fmt.Errorf("virtual user %d: note %s title mismatch: expected %q, got %q", vu.Index, id, want.Title, got.Title)
		}
	}
	for _, id := range vu.Deleted {
		if _, ok := owned[id]; ok {
			return fmt.Errorf("virtual user %d: deleted note %s still exists", vu.Index, id)
		}
	}

	for id, tok := range vu.Links {
		pub, err := vu.App.Notes.FetchPublic(ctx, tok)
		if err != nil {
			return fmt.Errorf("virtual user %d: public link of note %s does not resolve: %w", vu.Index, id, err)
		}
		if pub.ID != id {
			return fmt.Errorf("virtual user %d: public link of note %s resolves to note %s", vu.Index, id, pub.ID)
		}
	}
	for id, tok := range vu.Revoked {
		if _, err := vu.App.Notes.FetchPublic(ctx, tok); client.KindOf(err) != client.KindNotFound {
			return fmt.Errorf("virtual user %d: revoked link of note %s still resolves (err %v)", vu.Index, id, err)
		}
	}
	return nil
}

// RunScenario registers the user, runs a seeded mix of operations and
// verifies the result. shareWith, when not empty, is an account notes may be
// shared with.
func (vu *VirtualUser) RunScenario(ctx context.Context, shareWith string) error {
	if err := vu.Register(ctx); err != nil {
		return err
	}

	createBias := vu.Index%2 == 0

	numNotes := vu.RNG.Intn(5) + 2
	for i := 0; i < numNotes; i++ {
		note, err := vu.CreateNote(ctx, fmt.Sprintf("Note %d-%d", vu.Index, i), fmt.Sprintf("# Heading %d\n\nBody %d", i, vu.RNG.Intn(100)))
		if err != nil {
			return err
		}

		if vu.RNG.Float32() < 0.3 {
			if err := vu.UpdateNote(ctx, note.ID, fmt.Sprintf("Updated Note %d-%d", vu.Index, i)); err != nil {
				return err
			}
		}

		if shareWith != "" && vu.RNG.Float32() < 0.3 {
			if err := vu.ShareWith(ctx, note.ID, shareWith); err != nil {
				return err
			}
		}

		if vu.RNG.Float32() < 0.4 {
			if _, err := vu.Publish(ctx, note.ID); err != nil {
				return err
			}
			if vu.RNG.Float32() < 0.5 {
				if err := vu.Unpublish(ctx, note.ID); err != nil {
					return err
				}
			}
		}

		deleteChance := float32(0.05)
		if !createBias {
			deleteChance = 0.25
		}
		if vu.RNG.Float32() < deleteChance && len(vu.NoteIDs()) > 1 {
			if err := vu.DeleteNote(ctx, note.ID); err != nil {
				return err
			}
		}
	}

	// Logging out and back in must not lose anything.
	vu.Logout()
	if err := vu.Login(ctx); err != nil {
		return err
	}
	return vu.Verify(ctx)
}
