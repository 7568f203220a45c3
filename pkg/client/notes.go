package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/collabnotes/collabnotes.go/pkg/models"
)

func notePath(id models.NoteID) string {
	return "/api/notes/" + id.String()
}

// ListNotes returns the notes visible to the current user in server order.
func (c *Client) ListNotes(ctx context.Context, filter models.NoteFilter) ([]models.Note, error) {
	var result []models.Note
	err := c.call(ctx, request{
		op:     OpListNotes,
		method: http.MethodGet,
		path:   "/api/notes",
		query:  filter.Values(),
		auth:   true,
	}, &result)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = []models.Note{}
	}
	return result, nil
}

func (c *Client) GetNote(ctx context.Context, id models.NoteID) (*models.Note, error) {
	var result models.Note
	err := c.call(ctx, request{op: OpGetNote, method: http.MethodGet, path: notePath(id), auth: true}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) CreateNote(ctx context.Context, draft models.NoteDraft) (*models.Note, error) {
	var result models.Note
	err := c.call(ctx, request{op: OpCreateNote, method: http.MethodPost, path: "/api/notes", body: draft, auth: true}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) UpdateNote(ctx context.Context, id models.NoteID, draft models.NoteDraft) (*models.Note, error) {
	var result models.Note
	err := c.call(ctx, request{op: OpUpdateNote, method: http.MethodPut, path: notePath(id), body: draft, auth: true}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) DeleteNote(ctx context.Context, id models.NoteID) error {
	return c.call(ctx, request{op: OpDeleteNote, method: http.MethodDelete, path: notePath(id), auth: true}, nil)
}

// ShareNote grants the user with the given email access to the note and
// returns the updated note.
func (c *Client) ShareNote(ctx context.Context, id models.NoteID, email string) (*models.Note, error) {
	var result models.Note
	err := c.call(ctx, request{
		op:     OpShareNote,
		method: http.MethodPost,
		path:   notePath(id) + "/share",
		body:   models.ShareRequest{UserEmail: email},
		auth:   true,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) CreatePublicLink(ctx context.Context, id models.NoteID) (*models.PublicLinkResponse, error) {
	var result models.PublicLinkResponse
	err := c.call(ctx, request{op: OpCreatePublicLink, method: http.MethodPost, path: notePath(id) + "/public-link", auth: true}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) RevokePublicLink(ctx context.Context, id models.NoteID) error {
	return c.call(ctx, request{op: OpRevokePublicLink, method: http.MethodDelete, path: notePath(id) + "/public-link", auth: true}, nil)
}

// GetPublicNote reads a note through its public token. It needs no credential.
func (c *Client) GetPublicNote(ctx context.Context, token string) (*models.Note, error) {
	var result models.Note
	err := c.call(ctx, request{
		op:     OpGetPublicNote,
		method: http.MethodGet,
		path:   "/api/public/notes/" + url.PathEscape(token),
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}
