package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"bookexchange/internal/accounts"
	"bookexchange/internal/clients"
	"bookexchange/internal/config"
	"bookexchange/internal/exchange"
	"bookexchange/internal/logging"
	"bookexchange/internal/metrics"
	"bookexchange/pkg/eventstore"
)

// CheckpointName identifies the projector's position in the event log.
const CheckpointName = "exchange-notifier"

// EventSource is the slice of the event store the projector reads.
type EventSource interface {
	StreamEvents(ctx context.Context, aggregateType string, fromID int64, batchSize int) ([]eventstore.Event, error)
	LoadCheckpoint(ctx context.Context, name string) (int64, error)
	SaveCheckpoint(ctx context.Context, name string, position int64) error
}

// UserLookup resolves notification recipients.
type UserLookup interface {
	GetUser(ctx context.Context, id int64) (*accounts.User, error)
}

// Projector follows the exchange event stream and emails the party that
// needs to act or learn about each event.
type Projector struct {
	events       EventSource
	users        UserLookup
	mailer       Mailer
	limiter      *rate.Limiter
	pollInterval time.Duration
	batchSize    int
}

func NewProjector(events EventSource, users UserLookup, mailer Mailer, cfg config.NotifyConfig) *Projector {
	limit := rate.Inf
	if cfg.SendsPerMin > 0 {
		limit = rate.Limit(float64(cfg.SendsPerMin) / 60)
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 5 * time.Second
	}
	return &Projector{
		events:       events,
		users:        users,
		mailer:       mailer,
		limiter:      rate.NewLimiter(limit, 1),
		pollInterval: poll,
		batchSize:    batch,
	}
}

// Serve polls for new events until ctx is cancelled.
func (p *Projector) Serve(ctx context.Context) error {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		n, err := p.ProcessBatch(ctx)
		if err != nil && ctx.Err() == nil {
			logging.Warn().Err(err).Msg("notification batch failed")
		}
		// Drain backlogs without waiting for the next tick.
		if err == nil && n == p.batchSize {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Projector) String() string {
	return CheckpointName
}

// ProcessBatch handles at most one batch of events past the checkpoint and
// returns how many it consumed. The checkpoint advances past every handled
// event, including ones that produced no email.
func (p *Projector) ProcessBatch(ctx context.Context) (int, error) {
	from, err := p.events.LoadCheckpoint(ctx, CheckpointName)
	if err != nil {
		return 0, err
	}
	events, err := p.events.StreamEvents(ctx, exchange.AggregateType, from, p.batchSize)
	if err != nil {
		return 0, err
	}

	done := 0
	for _, ev := range events {
		if err := p.handle(ctx, ev); err != nil {
			if saveErr := p.saveProgress(ctx, events, done); saveErr != nil {
				return done, errors.Join(err, saveErr)
			}
			return done, fmt.Errorf("event %d: %w", ev.ID, err)
		}
		done++
	}
	return done, p.saveProgress(ctx, events, done)
}

func (p *Projector) saveProgress(ctx context.Context, events []eventstore.Event, done int) error {
	if done == 0 {
		return nil
	}
	return p.events.SaveCheckpoint(ctx, CheckpointName, events[done-1].ID)
}

func (p *Projector) handle(ctx context.Context, ev eventstore.Event) error {
	var (
		recipientID int64
		msg         Message
	)
	switch ev.EventType {
	case exchange.EventRequested:
		var data exchange.ExchangeRequestedEvent
		if err := ev.Decode(&data); err != nil {
			return err
		}
		recipientID = data.OwnerID
		msg = Message{
			Subject: "New exchange request",
			Body: fmt.Sprintf("Someone would like to exchange your book %q.\nExchange #%d is waiting for you to accept it.",
				data.BookTitle, data.ExchangeID),
		}
	case exchange.EventAccepted:
		var data exchange.ExchangeAcceptedEvent
		if err := ev.Decode(&data); err != nil {
			return err
		}
		recipientID = data.RequesterID
		msg = Message{
			Subject: "Your exchange request was accepted",
			Body:    fmt.Sprintf("Good news: exchange #%d for book #%d has been accepted.", data.ExchangeID, data.BookID),
		}
	default:
		return nil
	}

	user, err := p.users.GetUser(ctx, recipientID)
	if err != nil {
		if errors.Is(err, clients.ErrNotFound) || errors.Is(err, accounts.ErrNotFound) {
			metrics.NotificationsSent.WithLabelValues(ev.EventType, "skipped").Inc()
			return nil
		}
		return fmt.Errorf("resolve recipient %d: %w", recipientID, err)
	}
	if user.Email == "" {
		metrics.NotificationsSent.WithLabelValues(ev.EventType, "skipped").Inc()
		return nil
	}
	msg.To = user.Email

	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := p.mailer.Send(ctx, msg); err != nil {
		// Delivery is best effort; a failed send does not hold up the stream.
		metrics.NotificationsSent.WithLabelValues(ev.EventType, "failed").Inc()
		logging.Ctx(ctx).Warn().Err(err).Int64("event_id", ev.ID).Str("to", msg.To).Msg("failed to send notification")
		return nil
	}
	metrics.NotificationsSent.WithLabelValues(ev.EventType, "sent").Inc()
	return nil
}
