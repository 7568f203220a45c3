package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Visibility controls who can read a note.
type Visibility string

const (
	VisibilityPrivate Visibility = "PRIVATE"
	VisibilityShared  Visibility = "SHARED"
	VisibilityPublic  Visibility = "PUBLIC"
)

// VisibilityAll is the filter value that matches every visibility.
const VisibilityAll = "all"

var Visibilities = []Visibility{VisibilityPrivate, VisibilityShared, VisibilityPublic}

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPrivate, VisibilityShared, VisibilityPublic:
		return true
	}
	return false
}

// ParseVisibility is case-insensitive.
func ParseVisibility(s string) (Visibility, error) {
	v := Visibility(strings.ToUpper(strings.TrimSpace(s)))
	if !v.Valid() {
		return "", fmt.Errorf("invalid visibility %q: want one of PRIVATE, SHARED, PUBLIC", s)
	}
	return v, nil
}

// Tag is denormalized onto each note. Names are unique per note only.
type Tag struct {
	ID        TagID     `json:"id" cbor:"id"`
	Name      string    `json:"name" cbor:"name"`
	CreatedAt Timestamp `json:"created_at" cbor:"created_at"`
}

// Note is the server representation of a note. Identifiers and timestamps are
// always taken from the backend.
type Note struct {
	ID          NoteID     `json:"id"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Visibility  Visibility `json:"visibility"`
	OwnerID     UserID     `json:"owner_id"`
	CreatedAt   Timestamp  `json:"created_at"`
	UpdatedAt   Timestamp  `json:"updated_at"`
	Tags        []Tag      `json:"tags"`
	SharedWith  []string   `json:"shared_with,omitempty"`
	PublicToken *string    `json:"public_token"`
}

// LastModified is UpdatedAt when set, CreatedAt otherwise.
func (n Note) LastModified() time.Time {
	if !n.UpdatedAt.IsZero() {
		return n.UpdatedAt.Time
	}
	return n.CreatedAt.Time
}

func (n Note) TagNames() []string {
	names := make([]string, 0, len(n.Tags))
	for _, t := range n.Tags {
		names = append(names, t.Name)
	}
	return names
}

func (n Note) HasTag(name string) bool {
	for _, t := range n.Tags {
		if t.Name == name {
			return true
		}
	}
	return false
}

func (n Note) HasPublicToken() bool {
	return n.PublicToken != nil && *n.PublicToken != ""
}

func (n Note) IsOwnedBy(id UserID) bool {
	return !id.IsZero() && n.OwnerID == id
}

// Clone returns a deep copy so callers cannot alias store-owned slices.
func (n Note) Clone() Note {
	c := n
	if n.Tags != nil {
		c.Tags = append([]Tag(nil), n.Tags...)
	}
	if n.SharedWith != nil {
		c.SharedWith = append([]string(nil), n.SharedWith...)
	}
	if n.PublicToken != nil {
		tok := *n.PublicToken
		c.PublicToken = &tok
	}
	return c
}

// ToDraft projects the editable fields of a note.
func (n Note) ToDraft() NoteDraft {
	return NoteDraft{
		Title:      n.Title,
		Content:    n.Content,
		Visibility: n.Visibility,
		Tags:       n.TagNames(),
	}
}

// NoteDraft is the body of create and update requests.
type NoteDraft struct {
	Title      string     `json:"title" validate:"notblank"`
	Content    string     `json:"content"`
	Visibility Visibility `json:"visibility" validate:"omitempty,oneof=PRIVATE SHARED PUBLIC"`
	Tags       []string   `json:"tags" validate:"dive,required"`
}

// Normalize trims text fields, drops blank tags and defaults the visibility
// to PRIVATE.
func (d NoteDraft) Normalize() NoteDraft {
	out := NoteDraft{
		Title:      strings.TrimSpace(d.Title),
		Content:    strings.TrimSpace(d.Content),
		Visibility: d.Visibility,
		Tags:       make([]string, 0, len(d.Tags)),
	}
	if out.Visibility == "" {
		out.Visibility = VisibilityPrivate
	}
	for _, t := range d.Tags {
		if t = strings.TrimSpace(t); t != "" {
			out.Tags = append(out.Tags, t)
		}
	}
	return out
}

// NoteFilter holds the server-side query facets of a fetch.
type NoteFilter struct {
	Search     string
	Visibility string
	Tags       []string
}

// Values encodes the filter as query parameters. Empty facets are omitted, and
// a visibility of "all" means no visibility facet.
func (f NoteFilter) Values() url.Values {
	q := url.Values{}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Visibility != "" && !strings.EqualFold(f.Visibility, VisibilityAll) {
		q.Set("visibility", strings.ToUpper(f.Visibility))
	}
	for _, t := range f.Tags {
		q.Add("tags", t)
	}
	return q
}

// ShareRequest is the body of POST /api/notes/{id}/share.
type ShareRequest struct {
	UserEmail string `json:"user_email" validate:"required,email"`
}

// PublicLinkResponse is what the backend returns when a public link is generated.
type PublicLinkResponse struct {
	PublicURL   string `json:"public_url"`
	PublicToken string `json:"public_token"`
}

// PublicLink is a generated token with the absolute URL built from the
// configured public origin.
type PublicLink struct {
	Token string
	URL   string
}
