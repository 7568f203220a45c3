package validate_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabnotes/collabnotes.go/pkg/constants"
	"github.com/collabnotes/collabnotes.go/pkg/models"
	"github.com/collabnotes/collabnotes.go/pkg/validate"
)

func TestStructReportsJSONFieldNames(t *testing.T) {
	err := validate.Struct(models.Registration{Email: "not-an-email"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, constants.ErrValidation))

	var verr *validate.Error
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Fields, 2)
	assert.Equal(t, "email", verr.Fields[0].Field)
	assert.Equal(t, "email", verr.Fields[0].Rule)
	assert.Equal(t, "password", verr.Fields[1].Field)
	assert.Contains(t, err.Error(), "password is required")
}

func TestStructDraft(t *testing.T) {
	assert.NoError(t, validate.Struct(models.NoteDraft{Title: "t", Visibility: models.VisibilityShared}))
	assert.Error(t, validate.Struct(models.NoteDraft{}))
	assert.Error(t, validate.Struct(models.NoteDraft{Title: "t", Visibility: "SECRET"}))

	err := validate.Struct(models.NoteDraft{Title: " \t "})
	require.Error(t, err, "a blank title is missing")
	assert.Equal(t, "title is required", err.Error())
}

func TestVar(t *testing.T) {
	assert.NoError(t, validate.Var("user_email", "bob@example.com", "required,email"))
	err := validate.Var("user_email", "bob", "required,email")
	require.Error(t, err)
	assert.Equal(t, "user_email must be a valid email address", err.Error())
	assert.Error(t, validate.Var("title", "   ", "notblank"))
}
