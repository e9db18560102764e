package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Keys under which the request's correlation and identity values live on the
// gin context. Error envelopes read trace_id; the auth guards set the account
// keys after token verification.
const (
	TraceIDHeader  = "X-Trace-ID"
	TraceIDKey     = "trace_id"
	AccountIDKey   = "account_id"
	AccountTypeKey = "account_type"
)

// Trace assigns every request a trace ID, honoring one supplied upstream,
// and echoes it in the response header. Access logs and error envelopes
// quote the same value.
func Trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)

		c.Next()
	}
}

// GetTraceID returns the request's trace ID, or empty before Trace ran.
func GetTraceID(c *gin.Context) string {
	if v, ok := c.Get(TraceIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
