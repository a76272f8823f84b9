package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"huntzen-care/monitoring"
	"huntzen-care/services"
)

// MessageReader is the subset of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Indexer interface {
	Sync(ctx context.Context, practitionerID uint) error
}

type Invalidator interface {
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// CareConsumer applies care events to the derived stores: the practitioner
// search index and the read caches. Either store may be nil.
type CareConsumer struct {
	reader   MessageReader
	indexer  Indexer
	cache    Invalidator
	log      *slog.Logger
	retry    time.Duration
	shutdown chan struct{}
	done     chan struct{}
}

func NewCareConsumer(reader MessageReader, indexer Indexer, cache Invalidator, log *slog.Logger) *CareConsumer {
	return &CareConsumer{
		reader:   reader,
		indexer:  indexer,
		cache:    cache,
		log:      log,
		retry:    5 * time.Second,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (c *CareConsumer) Start(ctx context.Context) {
	c.log.Info("starting care events consumer")

	go func() {
		defer close(c.done)
		for {
			select {
			case <-c.shutdown:
				return
			case <-ctx.Done():
				return
			default:
				c.processMessage(ctx)
			}
		}
	}()
}

// Stop ends the loop and closes the reader. It waits for the message in
// flight, if any.
func (c *CareConsumer) Stop() {
	close(c.shutdown)
	if err := c.reader.Close(); err != nil {
		c.log.Warn("error closing kafka reader", "error", err)
	}
	<-c.done
}

func (c *CareConsumer) processMessage(ctx context.Context) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
			return
		}
		c.log.Warn("kafka read error, will retry", "error", err)
		select {
		case <-time.After(c.retry):
		case <-ctx.Done():
		case <-c.shutdown:
		}
		return
	}

	// A message that cannot be applied is logged and skipped so one bad
	// event never blocks the partition.
	if err := c.handleMessage(ctx, msg.Value); err != nil {
		c.log.Error("failed to apply care event",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
	}
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.log.Warn("failed to commit offset", "offset", msg.Offset, "error", err)
	}
}

func (c *CareConsumer) handleMessage(ctx context.Context, value []byte) error {
	var ev services.Event
	if err := json.Unmarshal(value, &ev); err != nil {
		monitoring.EventsConsumed.WithLabelValues("unknown", "malformed").Inc()
		return fmt.Errorf("unmarshal event: %w", err)
	}
	if err := c.HandleEvent(ctx, ev); err != nil {
		monitoring.EventsConsumed.WithLabelValues(ev.Type, "failed").Inc()
		return err
	}
	return nil
}

// HandleEvent refreshes everything derived from ev. Unknown event types are
// counted and ignored.
func (c *CareConsumer) HandleEvent(ctx context.Context, ev services.Event) error {
	prefixes := ev.CachePrefixes()
	if len(prefixes) == 0 && !ev.IsPractitionerEvent() {
		monitoring.EventsConsumed.WithLabelValues(ev.Type, "ignored").Inc()
		c.log.Debug("ignoring care event", "event", ev.Type)
		return nil
	}

	if c.cache != nil {
		for _, prefix := range prefixes {
			if err := c.cache.DeleteByPrefix(ctx, prefix); err != nil {
				return fmt.Errorf("invalidate %s: %w", prefix, err)
			}
		}
	}

	if ev.IsPractitionerEvent() && c.indexer != nil {
		if err := c.indexer.Sync(ctx, ev.EntityID); err != nil {
			return fmt.Errorf("sync practitioner %d: %w", ev.EntityID, err)
		}
	}

	monitoring.EventsConsumed.WithLabelValues(ev.Type, "ok").Inc()
	c.log.Info("processed care event", "event", ev.Type, "entity_id", ev.EntityID)
	return nil
}
