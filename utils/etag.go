package utils

import (
	"crypto/sha1"
	"encoding/hex"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GenerateETag derives a weak validator from a record id and its last change.
func GenerateETag(id primitive.ObjectID, updatedAt time.Time) string {
	sum := sha1.Sum([]byte(id.Hex() + "|" + updatedAt.UTC().Format(time.RFC3339Nano)))
	return `W/"` + hex.EncodeToString(sum[:8]) + `"`
}

// GenerateContentETag derives a weak validator from a rendered response body,
// for records that carry no update timestamp.
func GenerateContentETag(body []byte) string {
	sum := sha1.Sum(body)
	return `W/"` + hex.EncodeToString(sum[:8]) + `"`
}
