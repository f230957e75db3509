package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crimewatch/pkg/errors"
)

type sample struct {
	Email string `json:"email" validate:"required,email"`
	Age   *int   `json:"victim_age,omitempty" validate:"omitempty,gte=0,lte=120"`
	Date  string `json:"date" validate:"required,datetime=2006-01-02"`
}

func TestStruct(t *testing.T) {
	age := 30
	assert.NoError(t, Struct(sample{Email: "a@b.in", Age: &age, Date: "2024-03-01"}))

	err := Struct(sample{Email: "nope", Date: "2024-03-01"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	var ve *errors.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "email", ve.Field)
	assert.Equal(t, "must be a valid email address", ve.Message)

	bad := 150
	err = Struct(sample{Email: "a@b.in", Age: &bad, Date: "2024-03-01"})
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "victim_age", ve.Field)

	err = Struct(sample{Email: "a@b.in", Date: "01/03/2024"})
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "date", ve.Field)
}
