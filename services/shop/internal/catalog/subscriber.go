package catalog

import (
	"context"
	"fmt"

	"github.com/appetiteclub/apt"

	"github.com/appetiteclub/cakeshop/pkg"
	"github.com/appetiteclub/cakeshop/pkg/event"
)

// EventSubscriber marks catalog modules stale when another replica changes
// a collection.
type EventSubscriber struct {
	subscriber pkg.Subscriber
	catalog    *Catalog
	logger     apt.Logger
}

func NewEventSubscriber(sub pkg.Subscriber, catalog *Catalog, logger apt.Logger) *EventSubscriber {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &EventSubscriber{subscriber: sub, catalog: catalog, logger: logger}
}

func (s *EventSubscriber) Start(ctx context.Context) error {
	s.logger.Info("starting catalog event subscriber", "topic", event.CatalogTopic)
	if s.subscriber == nil {
		return fmt.Errorf("catalog event subscriber not configured")
	}
	return s.subscriber.Subscribe(ctx, event.CatalogTopic, s.catalog.HandleEvent)
}
