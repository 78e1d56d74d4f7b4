package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Op is the kind of ledger mutation an Event reports.
type Op string

const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
	// OpResync asks consumers to rebuild a user's projection from scratch.
	OpResync Op = "resync"
)

var ErrInvalidEvent = errors.New("invalid ledger event")

// Event announces a committed ledger change. It carries ids only; consumers
// read the current state from the store.
type Event struct {
	Op        Op        `json:"op"`
	Entity    string    `json:"entity"`
	UserID    string    `json:"userId"`
	EntityID  string    `json:"entityId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEvent(op Op, entity, userID, entityID string) *Event {
	return &Event{
		Op:        op,
		Entity:    entity,
		UserID:    userID,
		EntityID:  entityID,
		Timestamp: time.Now().UTC(),
	}
}

func (e *Event) Validate() error {
	switch e.Op {
	case OpCreated, OpUpdated, OpDeleted, OpResync:
	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidEvent, e.Op)
	}
	if e.UserID == "" {
		return fmt.Errorf("%w: missing user id", ErrInvalidEvent)
	}
	if e.Op != OpResync && e.Entity == "" {
		return fmt.Errorf("%w: missing entity", ErrInvalidEvent)
	}
	return nil
}

// RoutingKey is entity.op, e.g. "transaction.created".
func (e *Event) RoutingKey() string {
	if e.Entity == "" {
		return string(e.Op)
	}
	return e.Entity + "." + string(e.Op)
}

func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON decodes and validates an event.
func EventFromJSON(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
