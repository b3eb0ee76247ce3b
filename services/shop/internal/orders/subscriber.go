package orders

import (
	"context"
	"fmt"

	"github.com/appetiteclub/apt"

	"github.com/appetiteclub/cakeshop/pkg"
	"github.com/appetiteclub/cakeshop/pkg/event"
)

// EventSubscriber forwards order events from other replicas to the feed.
type EventSubscriber struct {
	subscriber pkg.Subscriber
	feed       *Feed
	logger     apt.Logger
}

func NewEventSubscriber(sub pkg.Subscriber, feed *Feed, logger apt.Logger) *EventSubscriber {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &EventSubscriber{subscriber: sub, feed: feed, logger: logger}
}

func (s *EventSubscriber) Start(ctx context.Context) error {
	s.logger.Info("starting order event subscriber", "topic", event.OrdersTopic)
	if s.subscriber == nil {
		return fmt.Errorf("order event subscriber not configured")
	}
	return s.subscriber.Subscribe(ctx, event.OrdersTopic, s.feed.HandleEvent)
}
