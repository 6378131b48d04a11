package notify

import (
	"errors"
	"fmt"
	"strings"
)

// CountryCode is prefixed to ten-digit national numbers.
const CountryCode = "91"

// DefaultDomain is the addressing domain appended to normalized numbers.
const DefaultDomain = "s.whatsapp.net"

// ErrInvalidRecipient is returned when a phone number cannot be normalized.
var ErrInvalidRecipient = errors.New("invalid recipient")

// NormalizeRecipient reduces a phone number to its canonical form: digits
// only, leading zeros stripped, and the country code prefixed to a ten-digit
// national number. A number already in country-code form passes unchanged.
// Any other shape fails with ErrInvalidRecipient.
func NormalizeRecipient(raw string) (string, error) {
	var b strings.Builder
	for _, c := range raw {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	n := strings.TrimLeft(b.String(), "0")

	switch {
	case len(n) == 10:
		return CountryCode + n, nil
	case len(n) == 12 && strings.HasPrefix(n, CountryCode):
		return n, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRecipient, raw)
	}
}

// Address returns the channel address for a raw phone number.
func Address(raw, domain string) (string, error) {
	n, err := NormalizeRecipient(raw)
	if err != nil {
		return "", err
	}
	if domain == "" {
		domain = DefaultDomain
	}
	return n + "@" + domain, nil
}
