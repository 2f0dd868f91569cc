package pubsub

import (
	"context"
	"errors"

	pubsub "cloud.google.com/go/pubsub/v2"
)

// Publisher is the narrow publish surface used by workers and channels.
type Publisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) PublishResult
}

// PublishResult resolves to the server-assigned message id.
type PublishResult interface {
	Get(ctx context.Context) (string, error)
}

// NewPublisher adapts a Pub/Sub publisher handle. A nil handle yields nil.
func NewPublisher(p *pubsub.Publisher) Publisher {
	if p == nil {
		return nil
	}
	return &gcpPublisher{Publisher: p}
}

type gcpPublisher struct {
	*pubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *pubsub.Message) PublishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*pubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
