package consumers

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"crimewatch/internal/adapters/kafka"
	"crimewatch/internal/domain/report"
	"crimewatch/internal/metrics"
	"crimewatch/pkg/errors"
	"crimewatch/pkg/logger"
)

// MessageReader is the part of *kafka.Consumer the alert consumer uses
type MessageReader interface {
	Fetch(ctx context.Context) (kafkago.Message, error)
	Commit(ctx context.Context, msg kafkago.Message) error
	Close() error
}

// Dispatcher fans a submitted report out to subscribers
type Dispatcher interface {
	Dispatch(ctx context.Context, ev report.Submitted) (int, error)
}

// AlertConsumer turns report-submitted events into subscriber alerts
type AlertConsumer struct {
	reader     MessageReader
	dispatcher Dispatcher
	log        *logger.Logger
	timeout    time.Duration
}

// NewAlertConsumer creates a new alert consumer
func NewAlertConsumer(reader MessageReader, dispatcher Dispatcher, log *logger.Logger) *AlertConsumer {
	return &AlertConsumer{
		reader:     reader,
		dispatcher: dispatcher,
		log:        log.With("consumer", "alerts"),
		timeout:    30 * time.Second,
	}
}

// Start consumes until ctx is cancelled. The message in flight when the
// context ends is finished before returning.
func (c *AlertConsumer) Start(ctx context.Context) error {
	c.log.Infow("Starting alert consumer", "topic", kafka.TopicReportSubmitted)

	defer func() {
		if err := c.reader.Close(); err != nil {
			c.log.Warnw("Failed to close alert consumer", "error", err)
		}
	}()

	for {
		msg, err := c.reader.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("Alert consumer stopping (context cancelled)")
				return nil
			}
			c.log.Warnw("Failed to read message", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		// detached so a shutdown does not abort a half-sent fan-out
		processCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		err = c.handle(processCtx, msg)
		cancel()
		metrics.RecordKafkaMessage(msg.Topic, "consumed", err)
		if err != nil {
			c.log.Errorw("Failed to handle report event",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}

		// Handler failures are logged and skipped; retrying a poison event
		// would stall every later report on the partition
		if err := c.reader.Commit(context.WithoutCancel(ctx), msg); err != nil {
			c.log.Warnw("Failed to commit offset", "offset", msg.Offset, "error", err)
		}

		if ctx.Err() != nil {
			c.log.Info("Alert consumer stopping after processing current message")
			return nil
		}
	}
}

func (c *AlertConsumer) handle(ctx context.Context, msg kafkago.Message) error {
	var ev report.Submitted
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return errors.Wrap(err, "unmarshal report event")
	}
	if ev.City == "" {
		return errors.Wrap(errors.ErrInvalidInput, "report event without city")
	}

	sent, err := c.dispatcher.Dispatch(ctx, ev)
	if err != nil {
		return err
	}
	c.log.Debugw("Report event handled", "report_id", ev.ReportID, "alerts", sent)
	return nil
}
