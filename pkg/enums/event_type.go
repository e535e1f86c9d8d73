package enums

import "fmt"

// EventType identifies the proposal lifecycle event that triggered a sync.
type EventType string

const (
	EventTypeSent    EventType = "sent"
	EventTypeUpdated EventType = "updated"
	EventTypeSigned  EventType = "signed"
)

var validEventTypes = []EventType{
	EventTypeSent,
	EventTypeUpdated,
	EventTypeSigned,
}

// webhookEventNames maps the sender's wire names onto event types.
var webhookEventNames = map[string]EventType{
	"proposal_sent":    EventTypeSent,
	"proposal_updated": EventTypeUpdated,
	"proposal_signed":  EventTypeSigned,
}

// String implements fmt.Stringer.
func (e EventType) String() string {
	return string(e)
}

// IsValid reports whether the event type is recognized.
func (e EventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEventType converts a raw string into an EventType.
func ParseEventType(value string) (EventType, error) {
	for _, candidate := range validEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// ParseWebhookEvent converts a webhook event name (proposal_sent,
// proposal_updated, proposal_signed) into an EventType.
func ParseWebhookEvent(name string) (EventType, error) {
	if et, ok := webhookEventNames[name]; ok {
		return et, nil
	}
	return "", fmt.Errorf("invalid webhook event %q", name)
}
