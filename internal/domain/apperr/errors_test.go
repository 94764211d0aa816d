package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMatching(t *testing.T) {
	err := fmt.Errorf("load task: %w", NotFound("task", 42))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, "task 42 not found", Message(err))
}

func TestGate(t *testing.T) {
	err := Gate(ErrAttachmentRequired)

	assert.True(t, errors.Is(err, ErrGateRejection))
	assert.True(t, errors.Is(err, ErrAttachmentRequired))
	assert.Equal(t, ErrAttachmentRequired.Error(), Message(err))
}

func TestKindOf_PlainError(t *testing.T) {
	err := errors.New("disk full")

	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "internal error", Message(err))
	assert.Equal(t, "internal", KindOf(err).String())
}

func TestValidationAndForbidden(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(Validation("title is required")))
	assert.Equal(t, "validation", KindValidation.String())
	assert.Equal(t, KindForbidden, KindOf(Forbidden("staff %d", 3)))
}
