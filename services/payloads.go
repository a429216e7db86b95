package services

import (
	"strings"
	"time"
)

// SMSPayload is the body of the SMS gateway webhook.
type SMSPayload struct {
	Message   string `json:"message" binding:"required"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp,omitempty"`
}

// EmailPayload is the body of the inbound email webhook.
type EmailPayload struct {
	Subject      string `json:"subject" binding:"required"`
	Body         string `json:"body" binding:"required"`
	From         string `json:"from"`
	ReceivedDate string `json:"receivedDate,omitempty"`
}

// ManualContribution is an operator-entered contribution.
type ManualContribution struct {
	SenderName  string    `json:"sender_name" form:"sender_name" validate:"required"`
	Amount      float64   `json:"amount" form:"amount" validate:"gt=0"`
	MemberID    string    `json:"member_id" form:"member_id"`
	Date        time.Time `json:"date" form:"date"`
	Platform    string    `json:"platform" form:"platform"`
	PhoneNumber string    `json:"phone_number" form:"phone_number"`
	ReceiptURL  string    `json:"receipt_url" form:"receipt_url"`
}

var receivedDateLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseReceivedDate reads the email timestamp in the layouts mail gateways
// send. An empty or unreadable value gives the zero time, which the email
// parser replaces with the parse time.
func ParseReceivedDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range receivedDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
