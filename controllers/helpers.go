package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/phillip/contribution-pipeline-go/store"
)

const storeTimeout = 5 * time.Second

var dateLayouts = []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04", "2006-01-02 15:04:05"}

// parseDate accepts RFC3339 or one of the plain date layouts.
func parseDate(raw string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func storeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), storeTimeout)
}

// paramID reads the :id path parameter, answering 400 when it is malformed.
func paramID(c *gin.Context, what string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + what + " id"})
		return primitive.NilObjectID, false
	}
	return oid, true
}

// storeError answers a failed store call, mapping missing records to 404.
func storeError(c *gin.Context, err error, what, action string) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "could not " + action + " " + what})
}

// notModified sets the ETag header and reports whether the client copy is
// still current, in which case a 304 has been written.
func notModified(c *gin.Context, etag string) bool {
	if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	c.Header("ETag", etag)
	return false
}
