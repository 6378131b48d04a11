package processor

import (
	"errors"

	"github.com/alfredjeanlab/rollcall/internal/notify"
)

// Processing error taxonomy. Only ErrAuthentication and ErrLedgerUnavailable
// are returned from Process to the caller; the others are reported in the
// Result or logged.
var (
	ErrAuthentication    = errors.New("signature verification failed")
	ErrIneligible        = errors.New("event not eligible for registration")
	ErrDuplicate         = errors.New("payment already recorded")
	ErrLedgerUnavailable = errors.New("ledger unavailable")

	ErrInvalidRecipient   = notify.ErrInvalidRecipient
	ErrChannelUnavailable = notify.ErrChannelUnavailable
)
