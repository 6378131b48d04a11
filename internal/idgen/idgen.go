// Package idgen generates the short random IDs attached to outbound
// messages and deliveries.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for the kinds of IDs the service hands out.
const (
	PrefixMessage  = "msg-"
	PrefixDelivery = "dlv-"
)

const (
	alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// randomLen is the number of random characters after the prefix.
	randomLen = 12
)

// MessageID returns an ID for one outbound channel message. The messaging
// bridge uses it to drop resent copies of a message it already delivered.
func MessageID() (string, error) {
	return withPrefix(PrefixMessage)
}

// DeliveryID returns an ID correlating all messages of one confirmation.
func DeliveryID() (string, error) {
	return withPrefix(PrefixDelivery)
}

func withPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(alphabet, randomLen)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
