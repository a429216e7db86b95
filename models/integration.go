package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Integration types.
const (
	IntegrationSheets   = "SHEETS"
	IntegrationKafka    = "KAFKA"
	IntegrationWhatsApp = "WHATSAPP"
)

// IntegrationConfig stores the settings of one outbound integration. Config is an
// opaque JSON blob whose shape depends on Type.
type IntegrationConfig struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Type      string             `bson:"type" json:"type"`
	Config    string             `bson:"config" json:"config"`
	IsActive  bool               `bson:"is_active" json:"is_active"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// SheetsConfig is the blob of a SHEETS integration.
type SheetsConfig struct {
	SpreadsheetID  string `json:"spreadsheet_id" validate:"required_without=SpreadsheetURL"`
	SpreadsheetURL string `json:"spreadsheet_url,omitempty"`
	SheetName      string `json:"sheet_name,omitempty"`
	APIKey         string `json:"api_key" validate:"required"`
}

// KafkaConfig is the blob of a KAFKA integration.
type KafkaConfig struct {
	Topic string `json:"topic" validate:"required"`
}

// WhatsAppConfig is the blob of a WHATSAPP integration.
type WhatsAppConfig struct {
	AccessToken   string `json:"access_token" validate:"required"`
	PhoneNumberID string `json:"phone_number_id" validate:"required"`
}
