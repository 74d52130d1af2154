package messaging

import (
	"context"

	"github.com/buildrank/reputation-engine/internal/domain"
)

// RequestHandler is called for every received analysis request. A
// returned error nacks the message for redelivery.
type RequestHandler func(req *domain.AnalysisRequest) error

// Subscriber defines the interface for consuming analysis requests from
// the message queue
//
//go:generate mockgen -source=subscriber.go -destination=../mocks/subscriber.go -package=mocks -mock_names=Subscriber=MockSubscriber
type Subscriber interface {
	// SubscribeRequests starts consuming analysis requests until ctx is done
	SubscribeRequests(ctx context.Context, handler RequestHandler) error
	// Close closes the connection and cleans up resources
	Close()
}
