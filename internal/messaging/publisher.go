package messaging

import (
	"context"

	"github.com/buildrank/reputation-engine/internal/domain"
)

// Publisher defines the interface for publishing pipeline events to the
// message queue
//
//go:generate mockgen -source=publisher.go -destination=../mocks/publisher.go -package=mocks -mock_names=Publisher=MockPublisher
type Publisher interface {
	// PublishEvent publishes a pipeline lifecycle event
	PublishEvent(ctx context.Context, event *domain.Event) error
	// Close closes the connection
	Close()
}
