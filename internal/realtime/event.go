// Package realtime fans backend change notifications out to interested
// subscribers.
//
// Every service publishes an Event after a committed write. The Relay reads
// events back from the broker and hands each one to Hub.Dispatch, which is
// the single entry point for inbound changes on this instance.
package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

type Topic string

const (
	TopicProducts    Topic = "products"
	TopicOrders      Topic = "orders"
	TopicCart        Topic = "cart"
	TopicMessages    Topic = "messages"
	TopicLocations   Topic = "locations"
	TopicStockAlerts Topic = "stock_alerts"
)

var knownTopics = map[Topic]bool{
	TopicProducts:    true,
	TopicOrders:      true,
	TopicCart:        true,
	TopicMessages:    true,
	TopicLocations:   true,
	TopicStockAlerts: true,
}

func ParseTopic(s string) (Topic, bool) {
	t := Topic(s)
	return t, knownTopics[t]
}

type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Event describes one row change. Scope is the id of the user that owns the
// row; an empty scope means the row is visible to everyone.
type Event struct {
	Topic     Topic           `json:"topic"`
	Op        Op              `json:"op"`
	RowID     string          `json:"row_id"`
	Scope     string          `json:"scope,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func NewEvent(topic Topic, op Op, rowID, scope string, updatedAt time.Time, row any) (Event, error) {
	e := Event{
		Topic:     topic,
		Op:        op,
		RowID:     rowID,
		Scope:     scope,
		UpdatedAt: updatedAt.UTC(),
	}

	if row != nil {
		payload, err := json.Marshal(row)
		if err != nil {
			return Event{}, fmt.Errorf("failed to encode %s event payload: %w", topic, err)
		}
		e.Payload = payload
	}

	return e, nil
}

// Filter selects events for a subscription. No topics means all topics.
type Filter struct {
	Topics []Topic
	Scope  string
}

func (f Filter) Match(e Event) bool {
	if len(f.Topics) > 0 {
		found := false
		for _, t := range f.Topics {
			if t == e.Topic {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if f.Scope != "" && e.Scope != "" && e.Scope != f.Scope {
		return false
	}

	return true
}
