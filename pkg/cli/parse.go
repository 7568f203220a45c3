package cli

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/collabnotes/collabnotes.go/pkg/constants"
	"github.com/collabnotes/collabnotes.go/pkg/listview"
	"github.com/collabnotes/collabnotes.go/pkg/models"
)

const usage = `subcommand required

Usage: collabnotes [flags] <command> [command flags]

Commands:
  login            Log in and keep the session for later commands
  register         Create an account and log into it
  logout           Forget the session
  whoami           Show the logged-in account
  info             Show the API version
  list             List the notes visible to you
  show <id>        Render a note
  create           Write a new note
  edit <id>        Change a note
  delete <id>      Delete a note
  share <id> <email>
                   Share a note with another account
  link <id>        Generate a public link
  unlink <id>      Revoke the public link
  public <token>   Read a note through its public link
  profile          Change your name, email or picture
  password         Change your password
  prefs            Change theme, language and notifications
  delete-account   Delete your account and everything in it
  browse           Browse notes interactively

Examples:
  collabnotes login -email ada@example.com -password secret
  collabnotes list -visibility PUBLIC -tag work -sort title
  collabnotes create -title Groceries -content "- milk" -tag home
  collabnotes edit 12 -add-tag urgent -visibility SHARED
  collabnotes share 12 bob@example.com
  collabnotes -api https://api.notes.example.com -state-backend sqlite whoami

Configuration is read from flags, then COLLABNOTES_* environment variables,
then a .env file, then the YAML file given with -config.`

// stringList is a repeatable string flag.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// Parse parses command line arguments into the command to run and the
// configuration shared by every command.
func Parse(args []string) (Command, *Config, error) {
	flagSet := flag.NewFlagSet("collabnotes", flag.ContinueOnError)

	var (
		apiURL       = flagSet.String("api", "", "Base URL of the CollabNotes API")
		publicOrigin = flagSet.String("origin", "", "Origin public note links are built on")
		statePath    = flagSet.String("state", "", "Path of the session state file or database")
		stateBackend = flagSet.String("state-backend", "", "Session state backend: file, sqlite or memory")
		stateQuota   = flagSet.Int("state-quota", 0, "Maximum size of the session state in bytes, 0 for unlimited")
		codec        = flagSet.String("codec", "", "Encoding of persisted values: json or cbor")
		configPath   = flagSet.String("config", "", "YAML configuration file")
		envFile      = flagSet.String("env-file", ".env", "File of KEY=value lines read as environment")
		logLevel     = flagSet.String("log-level", "", "Log level: debug, info, warn, error")
		logFile      = flagSet.String("log-file", "", "Write the log to this file instead of stderr")
		rateLimit    = flagSet.Float64("rate-limit", 0, "Maximum API requests per second, 0 for unlimited")
		timeout      = flagSet.Duration("timeout", 0, "Timeout of a single API request")
		style        = flagSet.String("style", "", "Markdown style: auto, dark, light, notty, ascii")
	)

	if err := flagSet.Parse(args); err != nil {
		return nil, nil, err
	}

	config := DefaultConfig()

	if *configPath == "" {
		*configPath = os.Getenv(EnvConfig)
	}
	if *configPath != "" {
		if err := config.LoadFile(*configPath); err != nil {
			return nil, nil, err
		}
	}

	lookup, err := newEnvLookup(*envFile, isSet(flagSet, "env-file"))
	if err != nil {
		return nil, nil, err
	}
	if err := config.applyEnv(lookup); err != nil {
		return nil, nil, err
	}

	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "api":
			config.APIURL = *apiURL
		case "origin":
			config.PublicOrigin = *publicOrigin
		case "state":
			config.State.Path = *statePath
		case "state-backend":
			config.State.Backend = *stateBackend
		case "state-quota":
			config.State.Quota = *stateQuota
		case "codec":
			config.Codec = *codec
		case "log-level":
			config.Log.Level = *logLevel
		case "log-file":
			config.Log.File = *logFile
		case "rate-limit":
			config.RateLimit = *rateLimit
		case "timeout":
			config.Timeout = *timeout
		case "style":
			config.Style = *style
		}
	})
	if config.Timeout < 0 {
		return nil, nil, fmt.Errorf("invalid timeout: %s", config.Timeout)
	}

	remainingArgs := flagSet.Args()
	if len(remainingArgs) == 0 {
		return nil, nil, errors.New(usage)
	}

	cmd, err := parseCommand(remainingArgs[0], remainingArgs[1:])
	if err != nil {
		return nil, nil, err
	}
	return cmd, config, nil
}

func parseCommand(name string, args []string) (Command, error) {
	fs := flag.NewFlagSet("collabnotes "+name, flag.ContinueOnError)

	switch name {
	case "login", "register":
		email := fs.String("email", "", "Account email")
		password := fs.String("password", "", "Account password")
		display := fs.String("name", "", "Display name (register only)")
		if err := parseNone(fs, args); err != nil {
			return nil, err
		}
		if name == "login" {
			return &LoginCommand{Email: *email, Password: *password}, nil
		}
		return &RegisterCommand{Email: *email, Password: *password, DisplayName: *display}, nil

	case "logout":
		return &LogoutCommand{}, parseNone(fs, args)
	case "whoami":
		return &WhoamiCommand{}, parseNone(fs, args)
	case "info":
		return &InfoCommand{}, parseNone(fs, args)
	case "browse":
		return &BrowseCommand{}, parseNone(fs, args)

	case "list":
		cmd := &ListCommand{}
		fs.StringVar(&cmd.Search, "search", "", "Text to look for in titles, content and tags")
		fs.StringVar(&cmd.Visibility, "visibility", models.VisibilityAll, "all, PRIVATE, SHARED or PUBLIC")
		fs.Var((*stringList)(&cmd.Tags), "tag", "Only notes with this tag (repeatable)")
		sortKey := fs.String("sort", string(listview.SortDate), "Sort by date, title or visibility")
		fs.BoolVar(&cmd.Local, "local", false, "Filter the full list locally instead of on the server")
		if err := parseNone(fs, args); err != nil {
			return nil, err
		}
		key, err := listview.ParseSortKey(*sortKey)
		if err != nil {
			return nil, err
		}
		cmd.Sort = key
		if !strings.EqualFold(cmd.Visibility, models.VisibilityAll) {
			v, err := models.ParseVisibility(cmd.Visibility)
			if err != nil {
				return nil, err
			}
			cmd.Visibility = string(v)
		}
		return cmd, nil

	case "show":
		cmd := &ShowCommand{}
		fs.BoolVar(&cmd.Raw, "raw", false, "Print the Markdown source")
		ids, err := parseNoteIDs(fs, args, 1)
		if err != nil {
			return nil, err
		}
		cmd.ID = ids[0]
		return cmd, nil

	case "create":
		cmd := &CreateCommand{}
		fs.StringVar(&cmd.Title, "title", "", "Title")
		fs.StringVar(&cmd.Content, "content", "", "Markdown content")
		fs.StringVar(&cmd.ContentFile, "content-file", "", "Read the content from this file")
		fs.StringVar(&cmd.Visibility, "visibility", string(models.VisibilityPrivate), "PRIVATE, SHARED or PUBLIC")
		fs.Var((*stringList)(&cmd.Tags), "tag", "Tag (repeatable)")
		if err := parseNone(fs, args); err != nil {
			return nil, err
		}
		return cmd, nil

	case "edit":
		cmd := &EditCommand{}
		title := fs.String("title", "", "New title")
		content := fs.String("content", "", "New Markdown content")
		fs.StringVar(&cmd.ContentFile, "content-file", "", "Read the new content from this file")
		fs.StringVar(&cmd.Visibility, "visibility", "", "New visibility")
		fs.Var((*stringList)(&cmd.Tags), "tag", "Replace the tags (repeatable)")
		fs.Var((*stringList)(&cmd.AddTags), "add-tag", "Add a tag (repeatable)")
		fs.Var((*stringList)(&cmd.RemoveTags), "remove-tag", "Remove a tag (repeatable)")
		ids, err := parseNoteIDs(fs, args, 1)
		if err != nil {
			return nil, err
		}
		cmd.ID = ids[0]
		if isSet(fs, "title") {
			cmd.Title = title
		}
		if isSet(fs, "content") {
			cmd.Content = content
		}
		return cmd, nil

	case "delete", "link", "unlink":
		ids, err := parseNoteIDs(fs, args, 1)
		if err != nil {
			return nil, err
		}
		switch name {
		case "delete":
			return &DeleteCommand{ID: ids[0]}, nil
		case "link":
			return &LinkCommand{ID: ids[0]}, nil
		}
		return &UnlinkCommand{ID: ids[0]}, nil

	case "share":
		rest, err := parseArgs(fs, args)
		if err != nil {
			return nil, err
		}
		if len(rest) != 2 {
			return nil, errors.New("usage: collabnotes share <id> <email>")
		}
		id, err := models.ParseNoteID(rest[0])
		if err != nil {
			return nil, err
		}
		return &ShareCommand{ID: id, Email: rest[1]}, nil

	case "public":
		cmd := &PublicCommand{}
		fs.BoolVar(&cmd.Raw, "raw", false, "Print the Markdown source")
		rest, err := parseArgs(fs, args)
		if err != nil {
			return nil, err
		}
		if len(rest) != 1 || rest[0] == "" {
			return nil, errors.New("usage: collabnotes public <token>")
		}
		cmd.Token = publicToken(rest[0])
		return cmd, nil

	case "profile":
		cmd := &ProfileCommand{}
		display := fs.String("name", "", "Display name")
		email := fs.String("email", "", "Email")
		picture := fs.String("picture", "", "Profile picture URL")
		if err := parseNone(fs, args); err != nil {
			return nil, err
		}
		if isSet(fs, "name") {
			cmd.DisplayName = display
		}
		if isSet(fs, "email") {
			cmd.Email = email
		}
		if isSet(fs, "picture") {
			cmd.ProfilePicture = picture
		}
		if cmd.DisplayName == nil && cmd.Email == nil && cmd.ProfilePicture == nil {
			return nil, errors.New("nothing to update: use -name, -email or -picture")
		}
		return cmd, nil

	case "password":
		cmd := &PasswordCommand{}
		fs.StringVar(&cmd.Current, "current", "", "Current password")
		fs.StringVar(&cmd.New, "new", "", "New password, at least 8 characters")
		return cmd, parseNone(fs, args)

	case "prefs":
		cmd := &PrefsCommand{}
		theme := fs.String("theme", "", "light, dark or system")
		language := fs.String("language", "", "en or fr")
		emailNotif := fs.String("email-notifications", "", "on or off")
		browserNotif := fs.String("browser-notifications", "", "on or off")
		if err := parseNone(fs, args); err != nil {
			return nil, err
		}
		if isSet(fs, "theme") {
			cmd.Theme = theme
		}
		if isSet(fs, "language") {
			cmd.Language = language
		}
		var err error
		if isSet(fs, "email-notifications") {
			if cmd.EmailNotifications, err = parseSwitch(*emailNotif); err != nil {
				return nil, err
			}
		}
		if isSet(fs, "browser-notifications") {
			if cmd.BrowserNotifications, err = parseSwitch(*browserNotif); err != nil {
				return nil, err
			}
		}
		if cmd.Theme == nil && cmd.Language == nil && cmd.EmailNotifications == nil && cmd.BrowserNotifications == nil {
			return nil, errors.New("nothing to update: use -theme, -language, -email-notifications or -browser-notifications")
		}
		return cmd, nil

	case "delete-account":
		cmd := &DeleteAccountCommand{}
		fs.StringVar(&cmd.Password, "password", "", "Current password")
		return cmd, parseNone(fs, args)
	}

	return nil, fmt.Errorf("unknown command: %s\n\nRun collabnotes without arguments for the list of commands", name)
}

// parseArgs parses fs, accepting positional arguments before the flags as
// well as after them.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		positional = append(positional, args[0])
		args = args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return append(positional, fs.Args()...), nil
}

func parseNone(fs *flag.FlagSet, args []string) error {
	rest, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(rest) > 0 {
		return fmt.Errorf("%s: unexpected argument %q", fs.Name(), rest[0])
	}
	return nil
}

func parseNoteIDs(fs *flag.FlagSet, args []string, n int) ([]models.NoteID, error) {
	rest, err := parseArgs(fs, args)
	if err != nil {
		return nil, err
	}
	if len(rest) != n {
		return nil, fmt.Errorf("%s: expected %d note id, got %d arguments", fs.Name(), n, len(rest))
	}
	ids := make([]models.NoteID, n)
	for i, s := range rest {
		if ids[i], err = models.ParseNoteID(s); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func isSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// parseSwitch accepts on/off and yes/no next to strconv.ParseBool values.
func parseSwitch(s string) (*bool, error) {
	var v bool
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "yes":
		v = true
	case "off", "no":
		v = false
	default:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("invalid switch value %q: want on or off", s)
		}
		v = b
	}
	return &v, nil
}

// publicToken accepts a bare token or a full public link.
func publicToken(arg string) string {
	if i := strings.LastIndex(arg, constants.PublicNotePath); i >= 0 {
		arg = arg[i+len(constants.PublicNotePath):]
	}
	return strings.Trim(arg, "/")
}
