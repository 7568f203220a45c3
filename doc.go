// The [collabnotes] package is the client-state layer of CollabNotes, a note-taking service with Markdown notes,
// tags, per-note visibility, sharing by email and revocable public links.
//
// # App
//
// [New] builds an [App], the one explicit context object of a client. It holds the HTTP client, the persisted
// storage area and the stores built on them. Nothing in the module is a package-level singleton; two Apps never
// share state.
//
// # Stores
//
// The session store in [github.com/collabnotes/collabnotes.go/pkg/session] owns the identity and the bearer token.
// The note store in [github.com/collabnotes/collabnotes.go/pkg/notes] owns the list of notes visible to the session
// and is the only component calling the note endpoints. The settings store in
// [github.com/collabnotes/collabnotes.go/pkg/settings] updates the account.
//
// A 401 from any endpoint expires the session. The stores return an error of kind Unauthorized and leave sending the
// user back to a login prompt to the caller; see [github.com/collabnotes/collabnotes.go/pkg/cli].
//
// # Views
//
// [github.com/collabnotes/collabnotes.go/pkg/listview] derives what a list shows from the store's notes, and
// [github.com/collabnotes/collabnotes.go/pkg/editor] holds the form state of a note being written. The terminal
// browser in [github.com/collabnotes/collabnotes.go/pkg/tui] puts both on screen.
//
// # Storage
//
// Session state persists in a [github.com/collabnotes/collabnotes.go/pkg/storage] backend: memory, a YAML file or a
// SQLite database, each with an optional byte quota.
package collabnotes
