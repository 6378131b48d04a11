package events

import "context"

// Message is one event received from the bus.
type Message struct {
	Topic string
	Data  []byte
}

// Subscriber receives events from the event bus.
type Subscriber interface {
	// Subscribe delivers events matching topic (wildcards allowed) until ctx
	// ends, then closes the channel.
	Subscribe(ctx context.Context, topic string) (<-chan Message, error)
	Close() error
}
