package notes_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/collabnotes/collabnotes.go/internal/fakeapi"
	"github.com/collabnotes/collabnotes.go/pkg/client"
	"github.com/collabnotes/collabnotes.go/pkg/constants"
	"github.com/collabnotes/collabnotes.go/pkg/models"
	"github.com/collabnotes/collabnotes.go/pkg/notes"
	"github.com/collabnotes/collabnotes.go/pkg/session"
	"github.com/collabnotes/collabnotes.go/pkg/storage"
)

type StoreTestSuite struct {
	suite.Suite
	api     *fakeapi.Server
	server  *httptest.Server
	storage *storage.Memory
	session *session.Store
	store   *notes.Store
	ada     models.User
	bob     models.User
	ctx     context.Context
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (s *StoreTestSuite) SetupTest() {
	var err error
	s.ctx = context.Background()
	s.api = fakeapi.NewServer("127.0.0.1:0")
	s.server = httptest.NewServer(s.api.Handler())
	s.ada, err = s.api.AddUser("ada@example.com", "secret", "Ada")
	s.Require().NoError(err)
	s.bob, err = s.api.AddUser("bob@example.com", "secret", "Bob")
	s.Require().NoError(err)

	c := client.New(s.server.URL)
	s.storage = storage.NewMemory(0)
	s.session = session.New(c, s.storage)
	_, err = s.session.Login(s.ctx, "ada@example.com", "secret")
	s.Require().NoError(err)

	s.store = notes.New(c, s.session, notes.WithPublicOrigin("https://notes.example.com/"))
	s.api.ResetRequests()
}

func (s *StoreTestSuite) TearDownTest() {
	s.server.Close()
}

func (s *StoreTestSuite) seed() {
	s.api.AddNote(s.ada.ID, models.NoteDraft{Title: "one", Tags: []string{"x"}})
	s.api.AddNote(s.ada.ID, models.NoteDraft{Title: "two", Visibility: models.VisibilityPublic, Tags: []string{"x", "y"}})
	s.api.AddNote(s.ada.ID, models.NoteDraft{Title: "three", Tags: []string{"y"}})
	_, err := s.store.Fetch(s.ctx, models.NoteFilter{})
	s.Require().NoError(err)
}

func ids(list []models.Note) []models.NoteID {
	out := make([]models.NoteID, len(list))
	for i, n := range list {
		out[i] = n.ID
	}
	return out
}

func (s *StoreTestSuite) TestFetchKeepsServerOrder() {
	s.seed()
	s.Equal([]models.NoteID{3, 2, 1}, ids(s.store.Notes()))
	s.False(s.store.Loading())
	s.NoError(s.store.LastError())
}

func (s *StoreTestSuite) TestFetchFilters() {
	s.seed()

	private, err := s.store.Fetch(s.ctx, models.NoteFilter{Visibility: "PRIVATE"})
	s.Require().NoError(err)
	for _, n := range private {
		s.Equal(models.VisibilityPrivate, n.Visibility)
	}
	s.Len(private, 2)

	both, err := s.store.Fetch(s.ctx, models.NoteFilter{Tags: []string{"x", "y"}})
	s.Require().NoError(err)
	s.Equal([]models.NoteID{2}, ids(both))
	s.Equal([]models.NoteID{2}, ids(s.store.Notes()), "fetch replaces the list")
}

func (s *StoreTestSuite) TestCreatePrepends() {
	s.seed()
	before := s.store.Notes()

	created, err := s.store.Create(s.ctx, models.NoteDraft{Title: "  four ", Content: "body", Tags: []string{"z", " "}})
	s.Require().NoError(err)
	s.Equal("four", created.Title)
	s.Equal(models.VisibilityPrivate, created.Visibility)
	s.Equal([]string{"z"}, created.TagNames())

	after := s.store.Notes()
	s.Len(after, len(before)+1)
	s.Equal(created.ID, after[0].ID)
	s.Equal(ids(before), ids(after[1:]))
}

func (s *StoreTestSuite) TestCreateWithEmptyTitleSendsNothing() {
	_, err := s.store.Create(s.ctx, models.NoteDraft{Title: "   ", Content: "x"})
	s.Require().Error(err)
	s.True(errors.Is(err, constants.ErrValidation))
	s.Equal(client.KindValidation, client.KindOf(err))
	s.Equal(0, s.api.RequestCount(http.MethodPost, "/api/notes"))
	s.Equal(err, s.store.LastError())
}

func (s *StoreTestSuite) TestUpdateKeepsPosition() {
	s.seed()
	updated, err := s.store.Update(s.ctx, 2, models.NoteDraft{Title: "two!", Content: "new"})
	s.Require().NoError(err)
	s.Equal("two!", updated.Title)

	list := s.store.Notes()
	s.Len(list, 3)
	s.Equal(models.NoteID(2), list[1].ID)
	s.Equal("two!", list[1].Title)
}

func (s *StoreTestSuite) TestFailedWriteLeavesListUnchanged() {
	s.seed()
	before := s.store.Notes()
	s.api.Fail(http.MethodPut, "/api/notes/{id}", http.StatusInternalServerError, "boom", "")

	_, err := s.store.Update(s.ctx, 2, models.NoteDraft{Title: "two!"})
	s.Require().Error(err)
	s.Equal(client.KindGeneric, client.KindOf(err))
	s.Equal(before, s.store.Notes())
	s.False(s.store.Loading())
	s.Equal(err, s.store.LastError())
}

func (s *StoreTestSuite) TestDeleteRemovesExactlyOne() {
	s.seed()
	s.Require().NoError(s.store.Delete(s.ctx, 2))
	s.Equal([]models.NoteID{3, 1}, ids(s.store.Notes()))

	err := s.store.Delete(s.ctx, 2)
	s.Equal(client.KindNotFound, client.KindOf(err))
	s.Len(s.store.Notes(), 2)
}

func (s *StoreTestSuite) TestShareWithSelfSendsNothing() {
	s.seed()
	_, err := s.store.Share(s.ctx, 1, "  ADA@Example.com ")
	s.Require().Error(err)
	s.Equal(client.KindSelfShare, client.KindOf(err))
	s.True(errors.Is(err, constants.ErrSelfShare))
	s.Equal(0, s.api.RequestCount(http.MethodPost, "/api/notes/{id}/share"))
}

func (s *StoreTestSuite) TestShare() {
	s.seed()

	_, err := s.store.Share(s.ctx, 1, "ghost@example.com")
	s.Equal(client.KindUserNotFound, client.KindOf(err))
	note, _ := s.store.Note(1)
	s.Equal(models.VisibilityPrivate, note.Visibility)

	shared, err := s.store.Share(s.ctx, 1, "bob@example.com")
	s.Require().NoError(err)
	s.Equal(models.VisibilityShared, shared.Visibility)
	note, _ = s.store.Note(1)
	s.Equal([]string{"bob@example.com"}, note.SharedWith)
	s.Equal(models.NoteID(1), s.store.Notes()[2].ID)
}

func (s *StoreTestSuite) TestGeneratePublicLinkDoesNotTouchList() {
	s.seed()
	before := s.store.Notes()

	link, err := s.store.GeneratePublicLink(s.ctx, 1)
	s.Require().NoError(err)
	s.NotEmpty(link.Token)
	s.Equal("https://notes.example.com/public/notes/"+link.Token, link.URL)
	s.Equal(before, s.store.Notes())

	anon := notes.New(client.New(s.server.URL), session.New(client.New(s.server.URL), storage.NewMemory(0)))
	pub, err := anon.FetchPublic(s.ctx, link.Token)
	s.Require().NoError(err)
	s.Equal("one", pub.Title)
	s.Empty(anon.Notes())
}

func (s *StoreTestSuite) TestRevokeClearsOnlyToken() {
	s.seed()
	_, err := s.store.GeneratePublicLink(s.ctx, 1)
	s.Require().NoError(err)
	withToken, err := s.store.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.True(withToken.HasPublicToken())

	s.Require().NoError(s.store.RevokePublicLink(s.ctx, 1))
	after, ok := s.store.Note(1)
	s.Require().True(ok)
	s.Nil(after.PublicToken)

	withToken.PublicToken = nil
	s.Equal(withToken, after)
}

func (s *StoreTestSuite) TestUnauthorizedOnEveryOperation() {
	s.seed()
	for name, op := range map[string]func() error{
		"fetch":  func() error { _, err := s.store.Fetch(s.ctx, models.NoteFilter{}); return err },
		"get":    func() error { _, err := s.store.Get(s.ctx, 1); return err },
		"create": func() error { _, err := s.store.Create(s.ctx, models.NoteDraft{Title: "new"}); return err },
		"update": func() error { _, err := s.store.Update(s.ctx, 1, models.NoteDraft{Title: "renamed"}); return err },
		"delete": func() error { return s.store.Delete(s.ctx, 1) },
		"share":  func() error { _, err := s.store.Share(s.ctx, 1, "bob@example.com"); return err },
		"link":   func() error { _, err := s.store.GeneratePublicLink(s.ctx, 1); return err },
		"revoke": func() error { return s.store.RevokePublicLink(s.ctx, 1) },
	} {
		_, err := s.session.Login(s.ctx, "ada@example.com", "secret")
		s.Require().NoError(err, name)
		before := s.store.Notes()
		s.api.ExpireTokens()

		err = op()
		s.True(client.IsUnauthorized(err), name)
		s.False(s.session.Authenticated(), name)
		s.Empty(s.storage.Keys(), name)
		s.False(s.store.Loading(), name)
		s.Equal(before, s.store.Notes(), name)
	}
}

func (s *StoreTestSuite) TestUnauthorizedExpiresSession() {
	s.seed()
	s.api.ExpireTokens()

	_, err := s.store.Fetch(s.ctx, models.NoteFilter{})
	s.Require().Error(err)
	s.True(client.IsUnauthorized(err))
	s.False(s.session.Authenticated())
	s.Empty(s.session.Token())
	s.Empty(s.storage.Keys())
	s.False(s.store.Loading())

	s.api.ResetRequests()
	_, err = s.store.Create(s.ctx, models.NoteDraft{Title: "after"})
	s.True(errors.Is(err, constants.ErrNoToken))
	s.Empty(s.api.Requests())
}

func (s *StoreTestSuite) TestMissingCredential() {
	s.session.Logout()
	for name, op := range map[string]func() error{
		"fetch":  func() error { _, err := s.store.Fetch(s.ctx, models.NoteFilter{}); return err },
		"delete": func() error { return s.store.Delete(s.ctx, 1) },
		"share":  func() error { _, err := s.store.Share(s.ctx, 1, "bob@example.com"); return err },
		"link":   func() error { _, err := s.store.GeneratePublicLink(s.ctx, 1); return err },
		"revoke": func() error { return s.store.RevokePublicLink(s.ctx, 1) },
	} {
		err := op()
		s.Equal(client.KindMissingCredential, client.KindOf(err), name)
		s.False(s.store.Loading(), name)
	}
	s.Empty(s.api.Requests())
}

func (s *StoreTestSuite) TestLoadingDuringRequest() {
	s.api.AddRule(fakeapi.MatchRoute(http.MethodGet, "/api/notes"), fakeapi.FailureConfig{
		Type: fakeapi.FailureDelay, MinDelay: 200 * time.Millisecond, MaxDelay: 200 * time.Millisecond, Times: 1,
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = s.store.Fetch(s.ctx, models.NoteFilter{})
	}()

	s.Eventually(s.store.Loading, time.Second, 5*time.Millisecond)
	wg.Wait()
	s.False(s.store.Loading())
}

func (s *StoreTestSuite) TestIsOwnerAndReset() {
	s.seed()
	bobs := s.api.AddNote(s.bob.ID, models.NoteDraft{Title: "bob's"})
	s.api.ShareNote(bobs.ID, s.ada.ID)
	_, err := s.store.Fetch(s.ctx, models.NoteFilter{})
	s.Require().NoError(err)

	for _, n := range s.store.Notes() {
		s.Equal(n.ID != bobs.ID, s.store.IsOwner(n), n.Title)
	}

	s.store.Reset()
	s.Empty(s.store.Notes())
}
