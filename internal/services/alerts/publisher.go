package alerts

import (
	"context"

	"crimewatch/internal/domain/report"
	"crimewatch/pkg/errors"
	"crimewatch/pkg/logger"
)

// DirectPublisher dispatches report events in-process when no broker is
// configured. It satisfies reporting.EventPublisher.
type DirectPublisher struct {
	service *Service
	log     *logger.Logger
}

// NewDirectPublisher creates a DirectPublisher
func NewDirectPublisher(service *Service, log *logger.Logger) *DirectPublisher {
	return &DirectPublisher{service: service, log: log.With("component", "direct_publisher")}
}

// Publish dispatches report.Submitted events in the background; the request
// that produced the event does not wait for delivery
func (p *DirectPublisher) Publish(ctx context.Context, _ string, _ string, event interface{}) error {
	ev, ok := event.(report.Submitted)
	if !ok {
		return errors.Newf("unsupported event %T", event)
	}
	go func() {
		if _, err := p.service.Dispatch(context.WithoutCancel(ctx), ev); err != nil {
			p.log.Errorw("In-process alert dispatch failed", "report_id", ev.ReportID, "error", err)
		}
	}()
	return nil
}
