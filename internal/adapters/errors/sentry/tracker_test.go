package sentry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crimewatch/pkg/errors"
)

func TestFingerprint(t *testing.T) {
	err := errors.Wrap(errors.ErrInferenceFailure, "forest")
	assert.Equal(t,
		[]string{"route:POST /predict", errors.ErrInferenceFailure.Error()},
		fingerprint(err, map[string]string{"route": "POST /predict", "component": "api"}))

	assert.Equal(t,
		[]string{"component:trainer"},
		fingerprint(errors.New("csv broke"), map[string]string{"component": "trainer"}))

	assert.Equal(t, []string{"{{ default }}"}, fingerprint(errors.New("x"), nil))
}

func TestRequestID(t *testing.T) {
	_, ok := RequestID(context.Background())
	assert.False(t, ok)

	id, ok := RequestID(WithRequestID(context.Background(), "req-1"))
	require.True(t, ok)
	assert.Equal(t, "req-1", id)
}

func TestNew_RejectsMalformedDSN(t *testing.T) {
	_, err := New("not a dsn", "test", "dev")
	require.Error(t, err)
}
