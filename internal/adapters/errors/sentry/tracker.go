package sentry

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	"crimewatch/pkg/errors"
)

type requestIDKey struct{}

// WithRequestID tags ctx so captured errors can be tied to an API request
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id stored by WithRequestID
func RequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}

// Tracker reports errors to Sentry
type Tracker struct {
	hub *sentry.Hub
}

var _ errors.Tracker = (*Tracker)(nil)

// New initializes the Sentry SDK. release is the service version and lets
// Sentry group regressions per deployed build.
func New(dsn, environment, release string) (*Tracker, error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init sentry")
	}
	return &Tracker{hub: sentry.CurrentHub()}, nil
}

// CaptureError sends err on a cloned hub so tags never leak between requests
func (t *Tracker) CaptureError(ctx context.Context, err error, tags map[string]string) error {
	hub := t.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		if id, ok := RequestID(ctx); ok {
			scope.SetTag("request_id", id)
		}
		scope.SetFingerprint(fingerprint(err, tags))
	})
	hub.CaptureException(err)
	return nil
}

// Flush waits up to two seconds or until ctx is done
func (t *Tracker) Flush(ctx context.Context) error {
	timeout := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(dl))
	}
	if !sentry.Flush(timeout) {
		return errors.Wrap(errors.ErrTimeout, "sentry flush")
	}
	return nil
}

// fingerprint groups events by route or component plus the sentinel class,
// so every failed prediction on one route lands in a single issue
func fingerprint(err error, tags map[string]string) []string {
	fp := []string{"{{ default }}"}
	for _, key := range []string{"route", "component"} {
		if v, ok := tags[key]; ok {
			fp = []string{key + ":" + v}
			break
		}
	}
	for _, sentinel := range []error{
		errors.ErrModelUnavailable,
		errors.ErrInferenceFailure,
		errors.ErrTimeout,
		errors.ErrUnavailable,
		errors.ErrInternal,
	} {
		if errors.Is(err, sentinel) {
			return append(fp, sentinel.Error())
		}
	}
	return fp
}
