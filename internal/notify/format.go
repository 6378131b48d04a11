package notify

import (
	"fmt"
	"strings"

	"github.com/alfredjeanlab/rollcall/internal/model"
)

// Template carries the branding around a confirmation.
type Template struct {
	Title     string // receipt heading
	Footer    string // thank-you line
	InviteURL string // community group link; empty disables the preview message
}

// DefaultTemplate is used when no branding is configured.
var DefaultTemplate = Template{
	Title:  "PAYMENT RECEIPT",
	Footer: "Thank you for registering!",
}

// Confirmation is everything a registration confirmation shows.
type Confirmation struct {
	OrderID    string
	PaymentID  string
	Roll       model.RollNumber
	Amount     int64 // minor units
	Currency   string
	Method     string
	Email      string
	Contact    string
	Registrant model.Registrant
}

// ConfirmationFor builds the confirmation for a recorded event.
func ConfirmationFor(evt *model.PaymentEvent, reg *model.Registrant, roll model.RollNumber) Confirmation {
	return Confirmation{
		OrderID:    evt.OrderID,
		PaymentID:  evt.PaymentID,
		Roll:       roll,
		Amount:     evt.Amount,
		Currency:   evt.Currency,
		Method:     evt.Method,
		Email:      evt.Email,
		Contact:    evt.Contact,
		Registrant: *reg,
	}
}

// Recipient is the raw number the confirmation goes to: the registrant's
// WhatsApp number, else the payer contact.
func (c Confirmation) Recipient() string {
	if c.Registrant.WhatsApp != "" {
		return c.Registrant.WhatsApp
	}
	return c.Contact
}

// Message is one outbound channel message.
type Message struct {
	ID         string `json:"id"`
	DeliveryID string `json:"delivery_id"`
	To         string `json:"to"`
	Text       string `json:"text"`
	PreviewURL string `json:"preview_url,omitempty"`
}

// Formatter renders confirmations into channel messages.
type Formatter struct {
	tmpl   Template
	domain string
}

// NewFormatter returns a Formatter addressing recipients at domain.
func NewFormatter(tmpl Template, domain string) *Formatter {
	if domain == "" {
		domain = DefaultDomain
	}
	return &Formatter{tmpl: tmpl, domain: domain}
}

// Format validates the recipient and renders the primary receipt message,
// followed by the invite link message when an invite URL is configured.
// Message IDs are left empty for the caller to assign.
func (f *Formatter) Format(c Confirmation) ([]Message, error) {
	to, err := Address(c.Recipient(), f.domain)
	if err != nil {
		return nil, err
	}

	msgs := []Message{{To: to, Text: f.receipt(c)}}
	if f.tmpl.InviteURL != "" {
		msgs = append(msgs, Message{To: to, Text: f.tmpl.InviteURL, PreviewURL: f.tmpl.InviteURL})
	}
	return msgs, nil
}

func (f *Formatter) receipt(c Confirmation) string {
	r := c.Registrant
	var b strings.Builder
	fmt.Fprintf(&b, "💳 *%s*\n", f.tmpl.Title)
	b.WriteString("━━━━━━━━━━━━━━━━━━━━━\n")
	b.WriteString("✅ *Payment Captured*\n\n")
	fmt.Fprintf(&b, "📄 *Order ID:* %s\n", c.OrderID)
	fmt.Fprintf(&b, "💳 *Payment ID:* %s\n", c.PaymentID)
	fmt.Fprintf(&b, "🎟️ *Roll Number:* %s\n", c.Roll)
	fmt.Fprintf(&b, "💰 *Amount:* %s%s %s\n", currencySymbol(c.Currency), model.MajorUnits(c.Amount), c.Currency)
	fmt.Fprintf(&b, "📱 *Contact:* %s\n", c.Contact)
	fmt.Fprintf(&b, "📧 *Email:* %s\n", c.Email)
	fmt.Fprintf(&b, "🏦 *Method:* %s\n\n", c.Method)
	fmt.Fprintf(&b, "👤 *Name:* %s\n", r.Name)
	fmt.Fprintf(&b, "🎂 *DOB:* %s\n", r.DOB)
	fmt.Fprintf(&b, "📍 *Address:* %s\n", r.Address)
	fmt.Fprintf(&b, "👨‍👩‍👦 *Guardian:* %s\n\n", r.Guardian)
	b.WriteString("━━━━━━━━━━━━━━━━━━━━━\n")
	b.WriteString(f.tmpl.Footer)
	if f.tmpl.InviteURL != "" {
		fmt.Fprintf(&b, "\nJoin group: %s", f.tmpl.InviteURL)
	}
	return b.String()
}

func currencySymbol(code string) string {
	switch strings.ToUpper(code) {
	case "INR":
		return "₹"
	case "USD":
		return "$"
	case "EUR":
		return "€"
	case "GBP":
		return "£"
	}
	return ""
}
