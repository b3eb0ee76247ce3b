package event

import "time"

const (
	OrdersTopic             = "cakeshop.orders"
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status.changed"

	CatalogTopic        = "cakeshop.catalog"
	EventCatalogChanged = "catalog.changed"
)

// OrderEvent is published whenever this service creates an order or moves it
// to another status. Replicas use it to mark their order views stale.
type OrderEvent struct {
	EventType      string    `json:"event_type"`
	OccurredAt     time.Time `json:"occurred_at"`
	OrderID        string    `json:"order_id,omitempty"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	Source         string    `json:"source,omitempty"`
}

// CatalogEvent signals that a catalog collection changed.
type CatalogEvent struct {
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	Resource   string    `json:"resource"`
	Action     string    `json:"action"`
	ID         string    `json:"id,omitempty"`
	Source     string    `json:"source,omitempty"`
}
