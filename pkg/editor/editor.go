// Package editor holds the transient form state of a note being written or
// edited.
//
// The save indicator is cosmetic. Typing into the title or content moves it to
// StatusSaving, to StatusSaved after the save delay and back to StatusIdle
// after the hold delay. Nothing is sent anywhere until Submit is called.
package editor

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/collabnotes/collabnotes.go/pkg/models"
	"github.com/collabnotes/collabnotes.go/pkg/validate"
)

type Status string

const (
	StatusIdle   Status = "idle"
	StatusSaving Status = "saving"
	StatusSaved  Status = "saved"
)

const (
	DefaultSaveDelay = time.Second
	DefaultHoldDelay = 2 * time.Second
)

// SubmitFunc receives the finished draft, normally notes.Store.Create or a
// closure over notes.Store.Update.
type SubmitFunc func(ctx context.Context, draft models.NoteDraft) (models.Note, error)

type Option func(*Editor)

func WithDelays(save, hold time.Duration) Option {
	return func(e *Editor) {
		e.saveDelay = save
		e.holdDelay = hold
	}
}

// OnStatusChange registers fn to be called, outside any lock, whenever the
// indicator changes.
func OnStatusChange(fn func(Status)) Option {
	return func(e *Editor) {
		e.onStatus = fn
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(e *Editor) {
		e.logger = logger
	}
}

type Editor struct {
	saveDelay time.Duration
	holdDelay time.Duration
	onStatus  func(Status)
	logger    zerolog.Logger

	mu         sync.Mutex
	title      string
	content    string
	visibility models.Visibility
	tags       []string
	tagInput   string
	status     Status
	generation uint64
	timer      *time.Timer
	closed     bool
}

// New returns an empty editor for a new note.
func New(opts ...Option) *Editor {
	e := &Editor{
		saveDelay:  DefaultSaveDelay,
		holdDelay:  DefaultHoldDelay,
		logger:     zerolog.Nop(),
		visibility: models.VisibilityPrivate,
		status:     StatusIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FromNote returns an editor prefilled with the editable fields of note.
func FromNote(note models.Note, opts ...Option) *Editor {
	e := New(opts...)
	e.title = note.Title
	e.content = note.Content
	if note.Visibility.Valid() {
		e.visibility = note.Visibility
	}
	e.tags = note.TagNames()
	return e
}

func (e *Editor) SetTitle(title string) {
	e.mu.Lock()
	e.title = title
	e.mu.Unlock()
	e.touch()
}

func (e *Editor) SetContent(content string) {
	e.mu.Lock()
	e.content = content
	e.mu.Unlock()
	e.touch()
}

// SetVisibility accepts any casing of the three visibilities.
func (e *Editor) SetVisibility(s string) error {
	v, err := models.ParseVisibility(s)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.visibility = v
	e.mu.Unlock()
	return nil
}

// SetTagInput stores the pending, not yet added, tag text.
func (e *Editor) SetTagInput(s string) {
	e.mu.Lock()
	e.tagInput = s
	e.mu.Unlock()
}

// AddTag appends the trimmed tag. Blank and duplicate tags are ignored; the
// result reports whether the tag was added.
func (e *Editor) AddTag(tag string) bool {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range e.tags {
		if t == tag {
			return false
		}
	}
	e.tags = append(e.tags, tag)
	return true
}

// CommitTagInput adds the pending tag text and clears it.
func (e *Editor) CommitTagInput() bool {
	e.mu.Lock()
	input := e.tagInput
	e.tagInput = ""
	e.mu.Unlock()
	return e.AddTag(input)
}

func (e *Editor) RemoveTag(tag string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	kept := e.tags[:0:0]
	for _, t := range e.tags {
		if t != tag {
			kept = append(kept, t)
		}
	}
	e.tags = kept
}

func (e *Editor) Title() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.title
}

func (e *Editor) Content() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.content
}

func (e *Editor) Visibility() models.Visibility {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.visibility
}

func (e *Editor) Tags() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.tags...)
}

func (e *Editor) TagInput() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tagInput
}

func (e *Editor) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Draft returns the normalized draft. It fails with a validation error when
// the title is empty after trimming.
func (e *Editor) Draft() (models.NoteDraft, error) {
	e.mu.Lock()
	draft := models.NoteDraft{
		Title:      e.title,
		Content:    e.content,
		Visibility: e.visibility,
		Tags:       append([]string(nil), e.tags...),
	}.Normalize()
	e.mu.Unlock()

	if err := validate.Struct(draft); err != nil {
		return models.NoteDraft{}, err
	}
	return draft, nil
}

// Submit hands the draft to fn. The form state is kept either way so a failed
// submission can be retried.
func (e *Editor) Submit(ctx context.Context, fn SubmitFunc) (models.Note, error) {
	draft, err := e.Draft()
	if err != nil {
		return models.Note{}, err
	}
	note, err := fn(ctx, draft)
	if err != nil {
		e.logger.Debug().Err(err).Msg("submit failed")
		return models.Note{}, err
	}
	return note, nil
}

// Close stops the indicator timers. Later edits no longer move it.
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.generation++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// touch restarts the indicator cycle when the form holds any text. Each cycle
// carries a generation so a stale timer never overwrites a newer state.
func (e *Editor) touch() {
	e.mu.Lock()
	if e.closed || (strings.TrimSpace(e.title) == "" && strings.TrimSpace(e.content) == "") {
		e.mu.Unlock()
		return
	}
	e.generation++
	gen := e.generation
	if e.timer != nil {
		e.timer.Stop()
	}
	e.status = StatusSaving
	e.timer = time.AfterFunc(e.saveDelay, func() {
		if !e.advance(gen, StatusSaved) {
			return
		}
		e.mu.Lock()
		if e.generation == gen {
			e.timer = time.AfterFunc(e.holdDelay, func() { e.advance(gen, StatusIdle) })
		}
		e.mu.Unlock()
	})
	e.mu.Unlock()

	e.notify(StatusSaving)
}

func (e *Editor) advance(gen uint64, status Status) bool {
	e.mu.Lock()
	if e.generation != gen {
		e.mu.Unlock()
		return false
	}
	e.status = status
	e.mu.Unlock()

	e.notify(status)
	return true
}

func (e *Editor) notify(status Status) {
	if e.onStatus != nil {
		e.onStatus(status)
	}
}
