package events

import (
	"time"

	"github.com/google/uuid"
)

// Entity names the aggregate an event belongs to. Each entity has its own topic.
type Entity string

const (
	EntityUnit    Entity = "unit"
	EntityRequest Entity = "request"
)

// Topic returns the stream topic for the entity.
func (e Entity) Topic() string {
	return "lifeline." + string(e) + "s"
}

// Kind is the type of a status-change event.
type Kind string

const (
	KindUnitCreated        Kind = "unit.created"
	KindUnitStatusChanged  Kind = "unit.status_changed"
	KindUnitScreened       Kind = "unit.screened"
	KindUnitSeparated      Kind = "unit.separated"
	KindRequestCreated     Kind = "request.created"
	KindRequestTransition  Kind = "request.status_changed"
	KindTrackingStarted    Kind = "request.tracking_started"
	KindDeliveryConfirmed  Kind = "request.delivered"
	KindDeliveryCodeFailed Kind = "request.delivery_code_rejected"
	KindPaymentUpdated     Kind = "request.payment_updated"
)

var kindEntities = map[Kind]Entity{
	KindUnitCreated:        EntityUnit,
	KindUnitStatusChanged:  EntityUnit,
	KindUnitScreened:       EntityUnit,
	KindUnitSeparated:      EntityUnit,
	KindRequestCreated:     EntityRequest,
	KindRequestTransition:  EntityRequest,
	KindTrackingStarted:    EntityRequest,
	KindDeliveryConfirmed:  EntityRequest,
	KindDeliveryCodeFailed: EntityRequest,
	KindPaymentUpdated:     EntityRequest,
}

// Entity returns the aggregate the kind belongs to. Unknown kinds map to units.
func (k Kind) Entity() Entity {
	if e, ok := kindEntities[k]; ok {
		return e
	}
	return EntityUnit
}

// Event describes one transition of a unit or a request. It is transport-agnostic
// so the memory store, the outbox and the Kafka relay carry the same shape.
type Event struct {
	ID         uuid.UUID         `json:"id"`
	Kind       Kind              `json:"kind"`
	EntityID   string            `json:"entity_id"`
	From       string            `json:"from,omitempty"`
	To         string            `json:"to,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	ActorID    string            `json:"actor_id,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Entity returns the aggregate of the event.
func (e Event) Entity() Entity {
	return e.Kind.Entity()
}
