package jetstream

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/buildrank/reputation-engine/internal/adapter"
	"github.com/buildrank/reputation-engine/internal/domain"
	"github.com/buildrank/reputation-engine/internal/logger"
	"github.com/buildrank/reputation-engine/internal/messaging"
)

// requestSubject is where analysis requests are queued
const requestSubject = "reputation.analysis.requested"

type subscriber struct {
	nc           adapter.NatsConn
	js           adapter.JetStream
	streamName   string
	consumerName string
	ackWait      time.Duration
	maxDeliver   int
	json         adapter.JSON
}

// NewSubscriber creates a new NATS JetStream analysis request subscriber
func NewSubscriber(cfg Config, consumerName string, natsJS adapter.NatsJetStream, jsonAdapter adapter.JSON) (messaging.Subscriber, error) {
	nc, js, err := connect(cfg, natsJS)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS and create JetStream: %w", err)
	}

	return &subscriber{
		nc:           nc,
		js:           js,
		streamName:   cfg.StreamName,
		consumerName: consumerName,
		ackWait:      cfg.AckWait,
		maxDeliver:   cfg.MaxDeliver,
		json:         jsonAdapter,
	}, nil
}

// SubscribeRequests starts consuming analysis requests until ctx is done.
// Malformed messages are terminated; handler errors nack for redelivery.
func (s *subscriber) SubscribeRequests(ctx context.Context, handler messaging.RequestHandler) error {
	consumer, err := s.js.CreateOrUpdateConsumer(ctx, s.streamName, jetstream.ConsumerConfig{
		Durable:       s.consumerName,
		FilterSubject: requestSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       s.ackWait,
		MaxDeliver:    s.maxDeliver,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	consumeCtx, err := consumer.Consume(func(msg adapter.Message) {
		var req domain.AnalysisRequest
		if err := s.json.Unmarshal(msg.Data(), &req); err != nil {
			logger.Error(fmt.Errorf("malformed analysis request, terminating message: %w", err),
				zap.String("subject", msg.Subject()),
			)
			if err := msg.Term(); err != nil {
				logger.Error(fmt.Errorf("failed to terminate message: %w", err))
			}
			return
		}

		if err := handler(&req); err != nil {
			logger.ErrorCtx(ctx, fmt.Errorf("analysis request failed, nacking: %w", err),
				zap.String("request_id", req.ID),
				zap.String("user_id", req.UserID),
			)
			if err := msg.Nak(); err != nil {
				logger.Error(fmt.Errorf("failed to nack message: %w", err))
			}
			return
		}

		if err := msg.Ack(); err != nil {
			logger.Error(fmt.Errorf("failed to ack message: %w", err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	<-ctx.Done()
	consumeCtx.Drain()
	return ctx.Err()
}

// Close closes the NATS connection
func (s *subscriber) Close() {
	if s.nc == nil {
		return
	}
	s.nc.Close()
}
