package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/text/language"

	collabnotes "github.com/collabnotes/collabnotes.go"
	"github.com/collabnotes/collabnotes.go/pkg/client"
	"github.com/collabnotes/collabnotes.go/pkg/constants"
	"github.com/collabnotes/collabnotes.go/pkg/editor"
	"github.com/collabnotes/collabnotes.go/pkg/listview"
	"github.com/collabnotes/collabnotes.go/pkg/models"
	"github.com/collabnotes/collabnotes.go/pkg/tui"
	"github.com/collabnotes/collabnotes.go/pkg/tui/common"
)

type runner struct {
	app    *collabnotes.App
	config *Config
	out    io.Writer
}

func (r *runner) run(ctx context.Context, cmd Command) error {
	switch c := cmd.(type) {
	case *LoginCommand:
		return r.login(ctx, c)
	case *RegisterCommand:
		return r.register(ctx, c)
	case *LogoutCommand:
		r.app.Logout()
		r.printf("Logged out.\n")
		return nil
	case *WhoamiCommand:
		return r.whoami()
	case *InfoCommand:
		return r.info(ctx)
	case *ListCommand:
		return r.list(ctx, c)
	case *ShowCommand:
		note, err := r.app.Notes.Get(ctx, c.ID)
		if err != nil {
			return err
		}
		return r.showNote(note, c.Raw)
	case *CreateCommand:
		return r.create(ctx, c)
	case *EditCommand:
		return r.edit(ctx, c)
	case *DeleteCommand:
		if err := r.app.Notes.Delete(ctx, c.ID); err != nil {
			return err
		}
		r.success("Deleted note #%s.", c.ID)
		return nil
	case *ShareCommand:
		return r.share(ctx, c)
	case *LinkCommand:
		link, err := r.app.Notes.GeneratePublicLink(ctx, c.ID)
		if err != nil {
			return err
		}
		r.printf("%s\n", link.URL)
		return nil
	case *UnlinkCommand:
		if err := r.app.Notes.RevokePublicLink(ctx, c.ID); err != nil {
			return err
		}
		r.success("Public link of note #%s revoked.", c.ID)
		return nil
	case *PublicCommand:
		note, err := r.app.Notes.FetchPublic(ctx, c.Token)
		if err != nil {
			if client.KindOf(err) == client.KindNotFound {
				return fmt.Errorf("no public note for this link, it may have been revoked: %w", err)
			}
			return err
		}
		return r.showNote(note, c.Raw)
	case *ProfileCommand:
		return r.profile(ctx, c)
	case *PasswordCommand:
		if err := r.app.Settings.UpdatePassword(ctx, c.Current, c.New); err != nil {
			return err
		}
		r.success("Password changed.")
		return nil
	case *PrefsCommand:
		return r.prefs(ctx, c)
	case *DeleteAccountCommand:
		if err := r.app.Settings.DeleteAccount(ctx, c.Password); err != nil {
			return err
		}
		r.success("Account deleted.")
		return nil
	case *BrowseCommand:
		return tui.Run(ctx, r.app, tui.Options{Style: r.config.Style, Output: r.out})
	}
	return fmt.Errorf("unknown command type: %T", cmd)
}

func (r *runner) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

func (r *runner) success(format string, args ...any) {
	fmt.Fprintln(r.out, common.SuccessStyle.Render(fmt.Sprintf(format, args...)))
}

func (r *runner) login(ctx context.Context, c *LoginCommand) error {
	user, err := r.app.Session.Login(ctx, c.Email, c.Password)
	if err != nil {
		if client.KindOf(err) == client.KindInvalidCredentials {
			return fmt.Errorf("incorrect email or password: %w", err)
		}
		return err
	}
	r.success("Logged in as %s.", displayName(user))
	return nil
}

func (r *runner) register(ctx context.Context, c *RegisterCommand) error {
	user, err := r.app.Session.Register(ctx, c.Email, c.Password, c.DisplayName)
	if err != nil {
		return err
	}
	r.success("Registered and logged in as %s.", displayName(user))
	return nil
}

func (r *runner) whoami() error {
	user, ok := r.app.Session.User()
	if !ok {
		return client.NewError(client.OpMe, client.KindMissingCredential, constants.ErrNoToken)
	}
	r.printf("%s\n", common.TitleStyle.Render(displayName(user)))
	r.printf("id        %s\n", user.ID)
	if user.Theme != "" {
		r.printf("theme     %s\n", user.Theme)
	}
	if user.Language != "" {
		r.printf("language  %s\n", user.Language)
	}
	if user.EmailNotifications != nil {
		r.printf("email notifications    %s\n", onOff(*user.EmailNotifications))
	}
	if user.BrowserNotifications != nil {
		r.printf("browser notifications  %s\n", onOff(*user.BrowserNotifications))
	}
	if exp, ok := r.app.Session.ExpiresAt(); ok {
		r.printf("session expires %s\n", exp.Local().Format(time.RFC1123))
	}
	return nil
}

func (r *runner) info(ctx context.Context) error {
	info, err := r.app.Client.Info(ctx)
	if err != nil {
		return err
	}
	r.printf("%s %s at %s\n", info.Message, info.Version, r.app.Client.BaseURL())
	if info.Docs != "" {
		r.printf("docs: %s\n", info.Docs)
	}
	return nil
}

func (r *runner) list(ctx context.Context, c *ListCommand) error {
	filter := models.NoteFilter{Search: c.Search, Visibility: c.Visibility, Tags: c.Tags}
	query := listview.Query{Sort: c.Sort}
	if c.Local {
		query.Search, query.Visibility, query.Tags = filter.Search, filter.Visibility, filter.Tags
		filter = models.NoteFilter{}
	}

	var me models.UserID
	if user, ok := r.app.Session.User(); ok {
		me = user.ID
		if user.Language != "" {
			if tag, err := language.Parse(user.Language); err == nil {
				query.Locale = tag
			}
		}
	}

	if _, err := r.app.Notes.Fetch(ctx, filter); err != nil {
		return err
	}
	shown := listview.Derive(r.app.Notes.Notes(), query)
	r.printf("%s\n", NoteTable(shown, me))
	r.printf("%s\n", common.MetaStyle.Render(fmt.Sprintf("%d notes", len(shown))))
	return nil
}

func (r *runner) showNote(note models.Note, raw bool) error {
	r.printf("%s\n\n", NoteHeader(note))
	if raw {
		r.printf("%s\n", note.Content)
		return nil
	}
	out, err := common.RenderMarkdown(note.Content, r.config.Style, common.DefaultWrap)
	if err != nil {
		return err
	}
	r.printf("%s", out)
	return nil
}

func (r *runner) create(ctx context.Context, c *CreateCommand) error {
	content, err := contentOf(c.Content, c.ContentFile)
	if err != nil {
		return err
	}
	ed := r.app.NewEditor()
	defer ed.Close()
	ed.SetTitle(c.Title)
	ed.SetContent(content)
	if err := ed.SetVisibility(c.Visibility); err != nil {
		return err
	}
	for _, tag := range c.Tags {
		ed.AddTag(tag)
	}

	note, err := ed.Submit(ctx, r.app.Notes.Create)
	if err != nil {
		return err
	}
	r.success("Created note #%s.", note.ID)
	return nil
}

func (r *runner) edit(ctx context.Context, c *EditCommand) error {
	ed, err := r.app.EditNote(ctx, c.ID)
	if err != nil {
		return err
	}
	defer ed.Close()

	if c.Title != nil {
		ed.SetTitle(*c.Title)
	}
	if c.Content != nil || c.ContentFile != "" {
		var inline string
		if c.Content != nil {
			inline = *c.Content
		}
		content, err := contentOf(inline, c.ContentFile)
		if err != nil {
			return err
		}
		ed.SetContent(content)
	}
	if c.Visibility != "" {
		if err := ed.SetVisibility(c.Visibility); err != nil {
			return err
		}
	}
	applyTags(ed, c)

	note, err := ed.Submit(ctx, r.app.UpdateFunc(c.ID))
	if err != nil {
		return err
	}
	r.success("Updated note #%s.", note.ID)
	return nil
}

func applyTags(ed *editor.Editor, c *EditCommand) {
	if c.Tags != nil {
		for _, tag := range ed.Tags() {
			ed.RemoveTag(tag)
		}
		for _, tag := range c.Tags {
			ed.AddTag(tag)
		}
	}
	for _, tag := range c.AddTags {
		ed.AddTag(tag)
	}
	for _, tag := range c.RemoveTags {
		ed.RemoveTag(strings.TrimSpace(tag))
	}
}

func (r *runner) share(ctx context.Context, c *ShareCommand) error {
	_, err := r.app.Notes.Share(ctx, c.ID, c.Email)
	if err == nil {
		r.success("Note #%s shared with %s.", c.ID, c.Email)
		return nil
	}
	switch client.KindOf(err) {
	case client.KindUserNotFound:
		return fmt.Errorf("no account uses %s: %w", c.Email, err)
	case client.KindSelfShare:
		return fmt.Errorf("you cannot share a note with yourself: %w", err)
	case client.KindForbidden:
		return fmt.Errorf("only the owner can share note #%s: %w", c.ID, err)
	case client.KindNotFound:
		return fmt.Errorf("note #%s not found: %w", c.ID, err)
	case client.KindValidation:
		return fmt.Errorf("%q is not a valid email: %w", c.Email, err)
	}
	return err
}

func (r *runner) profile(ctx context.Context, c *ProfileCommand) error {
	user, err := r.app.Settings.UpdateProfile(ctx, models.ProfileUpdate{
		Name:           c.DisplayName,
		Email:          c.Email,
		ProfilePicture: c.ProfilePicture,
	})
	if err != nil {
		return err
	}
	r.success("Profile of %s updated.", displayName(user))
	return nil
}

func (r *runner) prefs(ctx context.Context, c *PrefsCommand) error {
	_, err := r.app.Settings.UpdatePreferences(ctx, models.PreferencesUpdate{
		Theme:                c.Theme,
		Language:             c.Language,
		EmailNotifications:   c.EmailNotifications,
		BrowserNotifications: c.BrowserNotifications,
	})
	if err != nil {
		return err
	}
	r.success("Preferences updated.")
	return nil
}

// contentOf prefers the file when both are given.
func contentOf(inline, path string) (string, error) {
	if path == "" {
		return inline, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read content file: %w", err)
	}
	return string(raw), nil
}

func displayName(u models.User) string {
	if u.Name == "" {
		return u.Email
	}
	return fmt.Sprintf("%s <%s>", u.Name, u.Email)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
