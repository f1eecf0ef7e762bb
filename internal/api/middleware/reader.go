package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/timmy/leaflet/internal/logger"
)

// ReaderIDHeader identifies the acting reader. Authentication happens upstream.
const ReaderIDHeader = "X-Reader-ID"

const readerKey = "reader_id"

// RequireReader rejects requests without a reader ID and adds it to the
// request logger.
func RequireReader() gin.HandlerFunc {
	return func(c *gin.Context) {
		readerID := strings.TrimSpace(c.GetHeader(ReaderIDHeader))
		if readerID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing " + ReaderIDHeader + " header",
			})
			return
		}

		ctx := logger.WithField(c.Request.Context(), logger.FieldReaderID, readerID)
		c.Request = c.Request.WithContext(ctx)
		c.Set("logger", logger.FromContext(ctx))
		c.Set(readerKey, readerID)
		c.Next()
	}
}

// ReaderID returns the reader set by RequireReader.
func ReaderID(c *gin.Context) string {
	return c.GetString(readerKey)
}
