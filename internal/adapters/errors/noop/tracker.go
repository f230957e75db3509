package noop

import (
	"context"

	"crimewatch/pkg/errors"
)

// Tracker drops every error; selected when ERROR_TRACKING_ENABLED is false
// or no Sentry DSN is configured
type Tracker struct{}

var _ errors.Tracker = Tracker{}

func New() Tracker { return Tracker{} }

func (Tracker) CaptureError(context.Context, error, map[string]string) error { return nil }

func (Tracker) Flush(context.Context) error { return nil }
