package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Log levels of a system log entry.
const (
	LevelInfo    = "INFO"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
)

// SystemLog is an append-only audit entry written by the ingestion pipeline.
type SystemLog struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Level     string             `bson:"level" json:"level"`
	Service   string             `bson:"service" json:"service"`
	Message   string             `bson:"message" json:"message"`
	Data      string             `bson:"data,omitempty" json:"data,omitempty"` // JSON
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}
