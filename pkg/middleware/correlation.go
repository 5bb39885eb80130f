package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// contextKey keeps the correlation id off the string-key namespace
type contextKey string

const CorrelationIDKey contextKey = "correlation_id"

// CorrelationID middleware tags every request with a correlation id. An
// incoming X-Correlation-ID (or X-Request-ID from proxies that set one) is
// honored so a pinging job's own id threads through the logs; otherwise a
// fresh UUID is generated. The id is echoed back on the response.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-ID")
		if correlationID == "" {
			correlationID = r.Header.Get("X-Request-ID")
		}
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		w.Header().Set("X-Correlation-ID", correlationID)

		ctx := context.WithValue(r.Context(), CorrelationIDKey, correlationID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetCorrelationID extracts correlation ID from context
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}
