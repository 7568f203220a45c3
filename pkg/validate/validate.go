// Package validate checks request payloads before they leave the client.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/collabnotes/collabnotes.go/pkg/constants"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names, as the backend does.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidators()
}

func registerCustomValidators() {
	_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// FieldError is a single failed rule.
type FieldError struct {
	Field string
	Rule  string
	Param string
}

func (e FieldError) String() string {
	switch e.Rule {
	case "required", "notblank":
		return e.Field + " is required"
	case "email":
		return e.Field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", e.Field, e.Param)
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", e.Field, strings.ReplaceAll(e.Param, " ", ", "))
	}
	return fmt.Sprintf("%s failed %s", e.Field, e.Rule)
}

// Error collects the failed rules of one struct. It matches
// constants.ErrValidation.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.String())
	}
	return strings.Join(msgs, "; ")
}

func (e *Error) Is(target error) bool {
	return target == constants.ErrValidation
}

// Struct validates s against its `validate` tags.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &Error{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()})
	}
	return out
}

// Var validates a single value, reporting it under name.
func Var(name string, value any, tag string) error {
	err := validate.Var(value, tag)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &Error{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: name, Rule: fe.Tag(), Param: fe.Param()})
	}
	return out
}
