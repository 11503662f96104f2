package bus

import (
	"context"
	"encoding/json"
	"fmt"
)

// Message is a single payload delivered on a topic.
type Message struct {
	Topic   string
	Payload []byte
}

// Subscription is a live feed of messages for a set of topics.
// Close releases the underlying resources; the message channel is
// closed afterwards.
type Subscription interface {
	C() <-chan Message
	Close() error
}

// Bus is the broadcast fabric connecting every gateway instance.
// Publish JSON-encodes the value and fans it out to all current
// subscribers of the topic. Delivery is at-most-once and carries no
// retained history.
type Bus interface {
	Publish(ctx context.Context, topic string, v interface{}) error
	Subscribe(ctx context.Context, topics ...string) (Subscription, error)
}

// Topic name helpers. Events are scoped either to a class or a team;
// code changes and the sync handshake are always team-scoped.
func ClassEventsTopic(classID int64) string { return fmt.Sprintf("class.%d.events", classID) }
func TeamEventsTopic(teamID int64) string   { return fmt.Sprintf("team.%d.events", teamID) }
func TeamCodeTopic(teamID int64) string     { return fmt.Sprintf("team.%d.code", teamID) }
func TeamSyncRequestTopic(teamID int64) string {
	return fmt.Sprintf("team.%d.sync.request", teamID)
}
func TeamSyncResponseTopic(teamID int64) string {
	return fmt.Sprintf("team.%d.sync.response", teamID)
}

func encode(v interface{}) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode bus payload: %w", err)
	}
	return payload, nil
}
