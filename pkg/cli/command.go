package cli

import (
	"github.com/collabnotes/collabnotes.go/pkg/listview"
	"github.com/collabnotes/collabnotes.go/pkg/models"
)

// Command is one parsed subcommand with its options. Main routes on the
// concrete type; Name is the subcommand as typed on the command line.
type Command interface {
	Name() string
}

// sessionless commands run without restoring the persisted session first.
type sessionless interface {
	skipRestore()
}

type LoginCommand struct {
	Email    string
	Password string
}

func (c *LoginCommand) Name() string { return "login" }
func (c *LoginCommand) skipRestore() {}

type RegisterCommand struct {
	Email       string
	Password    string
	DisplayName string
}

func (c *RegisterCommand) Name() string { return "register" }
func (c *RegisterCommand) skipRestore() {}

type LogoutCommand struct{}

func (c *LogoutCommand) Name() string { return "logout" }

type WhoamiCommand struct{}

func (c *WhoamiCommand) Name() string { return "whoami" }

// InfoCommand prints the API root document.
type InfoCommand struct{}

func (c *InfoCommand) Name() string { return "info" }
func (c *InfoCommand) skipRestore() {}

// ListCommand fetches the list with the server-side facets and renders it
// sorted by Sort.
type ListCommand struct {
	Search     string
	Visibility string
	Tags       []string
	Sort       listview.SortKey
	// Local applies the facets to the fetched list instead of sending them.
	Local bool
}

func (c *ListCommand) Name() string { return "list" }

type ShowCommand struct {
	ID models.NoteID
	// Raw prints the Markdown source instead of rendering it.
	Raw bool
}

func (c *ShowCommand) Name() string { return "show" }

type CreateCommand struct {
	Title       string
	Content     string
	ContentFile string
	Visibility  string
	Tags        []string
}

func (c *CreateCommand) Name() string { return "create" }

// EditCommand changes the fields that were given on the command line and
// keeps the others.
type EditCommand struct {
	ID          models.NoteID
	Title       *string
	Content     *string
	ContentFile string
	Visibility  string
	// Tags, when set, replaces the tag list. AddTags and RemoveTags apply
	// after it.
	Tags       []string
	AddTags    []string
	RemoveTags []string
}

func (c *EditCommand) Name() string { return "edit" }

type DeleteCommand struct {
	ID models.NoteID
}

func (c *DeleteCommand) Name() string { return "delete" }

type ShareCommand struct {
	ID    models.NoteID
	Email string
}

func (c *ShareCommand) Name() string { return "share" }

// LinkCommand generates a public link for a note.
type LinkCommand struct {
	ID models.NoteID
}

func (c *LinkCommand) Name() string { return "link" }

// UnlinkCommand revokes the public link of a note.
type UnlinkCommand struct {
	ID models.NoteID
}

func (c *UnlinkCommand) Name() string { return "unlink" }

// PublicCommand reads a note through its public token, without a session.
type PublicCommand struct {
	Token string
	Raw   bool
}

func (c *PublicCommand) Name() string { return "public" }
func (c *PublicCommand) skipRestore() {}

type ProfileCommand struct {
	DisplayName    *string
	Email          *string
	ProfilePicture *string
}

func (c *ProfileCommand) Name() string { return "profile" }

type PasswordCommand struct {
	Current string
	New     string
}

func (c *PasswordCommand) Name() string { return "password" }

type PrefsCommand struct {
	Theme                *string
	Language             *string
	EmailNotifications   *bool
	BrowserNotifications *bool
}

func (c *PrefsCommand) Name() string { return "prefs" }

type DeleteAccountCommand struct {
	Password string
}

func (c *DeleteAccountCommand) Name() string { return "delete-account" }

// BrowseCommand starts the interactive browser.
type BrowseCommand struct{}

func (c *BrowseCommand) Name() string { return "browse" }
