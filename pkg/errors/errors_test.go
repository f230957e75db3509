package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnknownCategoryError_MatchesSentinel(t *testing.T) {
	err := Wrap(NewUnknownCategoryError("city", "Atlantis"), "predict")

	assert.True(t, Is(err, ErrUnknownCategory))

	var uc *UnknownCategoryError
	assert.True(t, As(err, &uc))
	assert.Equal(t, "city", uc.Field)
	assert.Equal(t, "Atlantis", uc.Value)
}

func TestValidationError_IsInvalidInput(t *testing.T) {
	err := NewValidationError("email", "required", "")
	assert.True(t, Is(err, ErrInvalidInput))
	assert.Contains(t, err.Error(), "email")
}

func TestWrap_Nil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "noop"))
	assert.Nil(t, Wrapf(nil, "noop %d", 1))
}

func TestJoin(t *testing.T) {
	assert.Nil(t, Join(nil, nil))

	err := Join(nil, Wrap(ErrTimeout, "close writer crime.reports.submitted"), ErrUnavailable)
	assert.True(t, Is(err, ErrTimeout))
	assert.True(t, Is(err, ErrUnavailable))
	assert.False(t, Is(err, ErrNotFound))
}
