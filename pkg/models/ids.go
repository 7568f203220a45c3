package models

import (
	"fmt"
	"strconv"
)

// NoteID is a typed, server-assigned note identifier.
type NoteID int64

// UserID is a typed, server-assigned user identifier.
type UserID int64

// TagID is a typed, server-assigned tag identifier.
type TagID int64

func (id NoteID) String() string { return strconv.FormatInt(int64(id), 10) }
func (id NoteID) IsZero() bool   { return id == 0 }

func (id UserID) String() string { return strconv.FormatInt(int64(id), 10) }
func (id UserID) IsZero() bool   { return id == 0 }

func (id TagID) String() string { return strconv.FormatInt(int64(id), 10) }

// ParseNoteID parses the decimal form used in URLs and on the command line.
func ParseNoteID(s string) (NoteID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid note ID %q", s)
	}
	return NoteID(n), nil
}

func ParseUserID(s string) (UserID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid user ID %q", s)
	}
	return UserID(n), nil
}
