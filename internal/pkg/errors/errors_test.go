package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypedErrorsUnwrapToSentinels(t *testing.T) {
	require.True(t, IsValidation(Validation("title", "required")))
	require.True(t, IsConflict(Conflict("title", "Inbox")))
	require.True(t, IsNotFound(NotFoundOf("card", "c1")))
	require.True(t, stderrors.Is(InvalidState("card", "saved", "convert"), ErrInvalidState))
}

func TestTypedErrorFieldsSurviveWrapping(t *testing.T) {
	wrapped := fmt.Errorf("insert card: %w", Conflict("title", "Inbox"))
	require.True(t, IsConflict(wrapped))

	var conflict *ConflictError
	require.True(t, stderrors.As(wrapped, &conflict))
	require.Equal(t, "title", conflict.Field)
	require.Equal(t, "Inbox", conflict.Value)

	var notFound *NotFoundError
	err := fmt.Errorf("lookup: %w", NotFoundOf("brain", "b1"))
	require.True(t, stderrors.As(err, &notFound))
	require.Equal(t, "brain", notFound.Kind)
	require.Equal(t, "b1", notFound.ID)
}

func TestValidationErrorMessage(t *testing.T) {
	require.Equal(t, "title: required", Validation("title", "required").Error())
	require.Equal(t, "malformed body", (&ValidationError{Reason: "malformed body"}).Error())
}

func TestSentinelsAreDistinct(t *testing.T) {
	require.False(t, IsNotFound(ErrConflict))
	require.False(t, IsConflict(ErrInvalid))
	require.False(t, IsValidation(ErrNotFound))
	require.False(t, stderrors.Is(ErrQuota, ErrFileTooLarge))
}
