package recommend

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ExchangeRepository loads the exchanges that can influence a user's
// recommendations.
type ExchangeRepository interface {
	ExchangesFor(ctx context.Context, userID int64) ([]Exchange, error)
}

// ReviewRepository loads reviews.
type ReviewRepository interface {
	Reviews(ctx context.Context) ([]Review, error)
}

// Service computes recommendations over a snapshot read from the
// repositories on each call.
type Service interface {
	Recommend(ctx context.Context, userID int64) ([]Recommendation, error)
}

type service struct {
	exchanges ExchangeRepository
	reviews   ReviewRepository

	tracer   trace.Tracer
	requests metric.Int64Counter
	latency  metric.Float64Histogram
	returned metric.Int64Histogram
}

// NewService creates a recommendation service. Instruments come from the
// global meter provider.
func NewService(exchanges ExchangeRepository, reviews ReviewRepository) (Service, error) {
	meter := otel.Meter("bookexchange/recommend")

	requests, err := meter.Int64Counter("recommend.requests",
		metric.WithDescription("Recommendation requests by outcome"))
	if err != nil {
		return nil, fmt.Errorf("create requests counter: %w", err)
	}
	latency, err := meter.Float64Histogram("recommend.duration",
		metric.WithDescription("Time to load history and rank books"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}
	returned, err := meter.Int64Histogram("recommend.results",
		metric.WithDescription("Number of ranked books per request"))
	if err != nil {
		return nil, fmt.Errorf("create results histogram: %w", err)
	}

	return &service{
		exchanges: exchanges,
		reviews:   reviews,
		tracer:    otel.Tracer("bookexchange/recommend"),
		requests:  requests,
		latency:   latency,
		returned:  returned,
	}, nil
}

func (s *service) Recommend(ctx context.Context, userID int64) ([]Recommendation, error) {
	ctx, span := s.tracer.Start(ctx, "recommend.compute",
		trace.WithAttributes(attribute.Int64("user.id", userID)),
	)
	defer span.End()
	start := time.Now()

	recs, err := s.recommend(ctx, userID)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	s.latency.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	s.returned.Record(ctx, int64(len(recs)))
	span.SetAttributes(attribute.Int("recommendations", len(recs)))
	return recs, nil
}

func (s *service) recommend(ctx context.Context, userID int64) ([]Recommendation, error) {
	exchanges, err := s.exchanges.ExchangesFor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load exchanges: %w", err)
	}
	reviews, err := s.reviews.Reviews(ctx)
	if err != nil {
		return nil, fmt.Errorf("load reviews: %w", err)
	}
	return Recommend(userID, exchanges, reviews), nil
}
