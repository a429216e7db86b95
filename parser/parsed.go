// Package parser turns payment notification text into contribution records.
//
// Each channel has its own parser. SMS and email notifications follow fixed
// per-platform layouts; WhatsApp bodies are free-form and run through the full
// platform pattern cascade, ending with a permissive fallback battery.
package parser

import "time"

// Canonical platform labels.
const (
	PlatformMpesa         = "M-Pesa"
	PlatformAirtel        = "Airtel Money"
	PlatformBank          = "Bank Transfer"
	PlatformWhatsAppPay   = "WhatsApp Pay"
	PlatformZelle         = "Zelle"
	PlatformVenmo         = "Venmo"
	PlatformCashApp       = "Cash App"
	PlatformPayPal        = "PayPal"
	PlatformMobilePayment = "Mobile Payment"
)

// UnknownMember is the member id used when neither the text nor the channel
// supplies one.
const UnknownMember = "Unknown"

// ParsedContribution is the result of a successful parse attempt.
type ParsedContribution struct {
	SenderName  string    `json:"sender_name"`
	Amount      float64   `json:"amount"`
	MemberID    string    `json:"member_id"`
	Date        time.Time `json:"date"`
	Platform    string    `json:"platform"`
	RawMessage  string    `json:"raw_message"`
	PhoneNumber string    `json:"phone_number,omitempty"`
}
