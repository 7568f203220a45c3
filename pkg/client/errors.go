package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/collabnotes/collabnotes.go/pkg/constants"
)

// Kind classifies a failed call. It is decided once, when the response is
// decoded, so callers never have to inspect messages.
type Kind int

const (
	KindGeneric Kind = iota
	KindMissingCredential
	KindUnauthorized
	KindInvalidCredentials
	KindValidation
	KindForbidden
	KindNotFound
	KindUserNotFound
	KindSelfShare
	KindTransport
	KindDecode
)

var kindNames = map[Kind]string{
	KindGeneric:            "generic",
	KindMissingCredential:  "missing_credential",
	KindUnauthorized:       "unauthorized",
	KindInvalidCredentials: "invalid_credentials",
	KindValidation:         "validation",
	KindForbidden:          "forbidden",
	KindNotFound:           "not_found",
	KindUserNotFound:       "user_not_found",
	KindSelfShare:          "self_share",
	KindTransport:          "transport",
	KindDecode:             "decode",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// kindFromCode maps the optional machine-readable "code" of an error body.
func kindFromCode(code string) (Kind, bool) {
	switch strings.ToLower(code) {
	case "unauthorized", "token_expired", "invalid_token":
		return KindUnauthorized, true
	case "invalid_credentials":
		return KindInvalidCredentials, true
	case "validation_error", "email_taken":
		return KindValidation, true
	case "forbidden":
		return KindForbidden, true
	case "not_found", "note_not_found":
		return KindNotFound, true
	case "user_not_found":
		return KindUserNotFound, true
	case "self_share":
		return KindSelfShare, true
	}
	return KindGeneric, false
}

// kindFromStatus is the fallback when the body carries no code. A few
// endpoints give a status a narrower meaning.
func kindFromStatus(op string, status int) Kind {
	switch {
	case status == http.StatusUnauthorized && op == OpLogin:
		return KindInvalidCredentials
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound && op == OpShareNote:
		return KindUserNotFound
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusBadRequest && op == OpShareNote:
		return KindSelfShare
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity, status == http.StatusConflict:
		return KindValidation
	}
	return KindGeneric
}

// Error is returned by every Client method that reached, or tried to reach,
// the API.
type Error struct {
	Op         string
	Kind       Kind
	StatusCode int
	Detail     string
	Code       string
	RequestID  string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	switch {
	case e.Detail != "":
		b.WriteString(": ")
		b.WriteString(e.Detail)
	case e.Err != nil:
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the sentinel of e's kind.
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindMissingCredential:
		return target == constants.ErrNoToken
	case KindUnauthorized:
		return target == constants.ErrUnauthorized
	case KindInvalidCredentials:
		return target == constants.ErrInvalidCredentials
	case KindValidation:
		return target == constants.ErrValidation
	case KindUserNotFound:
		return target == constants.ErrUserNotFound
	case KindSelfShare:
		return target == constants.ErrSelfShare
	case KindTransport:
		return target == constants.ErrTransport
	case KindNotFound:
		return target == constants.ErrNoteNotFound
	}
	return false
}

// KindOf returns the kind of the first *Error in err's chain, or KindGeneric.
func KindOf(err error) Kind {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind
	}
	return KindGeneric
}

func IsUnauthorized(err error) bool {
	return KindOf(err) == KindUnauthorized
}

// NewError builds an error of the given kind that did not come from a response.
func NewError(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// errorBody is the union of the error payloads the API may send. detail is a
// string for most errors and a list of field errors for request validation.
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Code    string          `json:"code"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

type fieldDetail struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

func parseErrorBody(data []byte) (detail, code string) {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return strings.TrimSpace(string(data)), ""
	}
	code = body.Code
	if len(body.Detail) > 0 {
		var s string
		if err := json.Unmarshal(body.Detail, &s); err == nil {
			return s, code
		}
		var fields []fieldDetail
		if err := json.Unmarshal(body.Detail, &fields); err == nil {
			msgs := make([]string, 0, len(fields))
			for _, f := range fields {
				if len(f.Loc) > 0 {
					msgs = append(msgs, fmt.Sprintf("%v: %s", f.Loc[len(f.Loc)-1], f.Msg))
				} else {
					msgs = append(msgs, f.Msg)
				}
			}
			return strings.Join(msgs, "; "), code
		}
	}
	if body.Error != "" {
		return body.Error, code
	}
	return body.Message, code
}
