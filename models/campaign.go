package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Campaign groups contributions collected over a fundraising period. At most one
// campaign is active at a time and ingested contributions bind to it.
type Campaign struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name           string             `bson:"name" json:"name"`
	StartDate      time.Time          `bson:"start_date" json:"start_date"`
	EndDate        *time.Time         `bson:"end_date,omitempty" json:"end_date,omitempty"`
	GoogleSheetURL string             `bson:"google_sheet_url,omitempty" json:"google_sheet_url,omitempty"`
	TargetAmount   float64            `bson:"target_amount,omitempty" json:"target_amount,omitempty"`
	IsActive       bool               `bson:"is_active" json:"is_active"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
}

// CampaignUpdate carries the optional fields of a campaign edit.
type CampaignUpdate struct {
	Name           *string
	StartDate      *time.Time
	EndDate        *time.Time
	GoogleSheetURL *string
	TargetAmount   *float64
	IsActive       *bool
}

// IsEmpty reports whether the update changes nothing.
func (u CampaignUpdate) IsEmpty() bool {
	return u.Name == nil && u.StartDate == nil && u.EndDate == nil &&
		u.GoogleSheetURL == nil && u.TargetAmount == nil && u.IsActive == nil
}
