package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Sources of a contribution record.
const (
	SourceSMS      = "SMS"
	SourceEmail    = "EMAIL"
	SourceWhatsApp = "WHATSAPP"
	SourceManual   = "MANUAL"
)

type Contribution struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	CampaignID  *primitive.ObjectID `bson:"campaign_id,omitempty" json:"campaign_id"`
	SenderName  string              `bson:"sender_name" json:"sender_name"`
	Amount      float64             `bson:"amount" json:"amount"`
	MemberID    string              `bson:"member_id" json:"member_id"`
	Date        time.Time           `bson:"date" json:"date"`
	Source      string              `bson:"source" json:"source"`     // SMS, EMAIL, WHATSAPP, MANUAL
	Platform    string              `bson:"platform" json:"platform"` // M-Pesa, Airtel Money, Zelle, ...
	RawMessage  string              `bson:"raw_message,omitempty" json:"raw_message,omitempty"`
	PhoneNumber string              `bson:"phone_number,omitempty" json:"phone_number,omitempty"`
	ReceiptURL  string              `bson:"receipt_url,omitempty" json:"receipt_url,omitempty"`
	Processed   bool                `bson:"processed" json:"processed"`
	CreatedAt   time.Time           `bson:"created_at" json:"created_at"`
}

// ContributionUpdate carries the fields an operator may correct after ingestion.
type ContributionUpdate struct {
	SenderName *string
	MemberID   *string
	Amount     *float64
}

// IsEmpty reports whether the update changes nothing.
func (u ContributionUpdate) IsEmpty() bool {
	return u.SenderName == nil && u.MemberID == nil && u.Amount == nil
}

// ContributionFilter narrows a contribution listing. Zero values mean "any".
type ContributionFilter struct {
	CampaignID *primitive.ObjectID
	Source     string
	Processed  *bool
	From       *time.Time
	To         *time.Time
}
