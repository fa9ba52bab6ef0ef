package interceptors

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/jcmexdev/orders-service/internal/pkg/interceptors/constants"
)

// RequestMetadata stores the chi request id and the client idempotency key in
// the request context. It must run after middleware.RequestID.
func RequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())

		idempotencyKey := strings.TrimSpace(r.Header.Get(constants.HeaderIdempotencyKey))
		if idempotencyKey == "" {
			idempotencyKey = strings.TrimSpace(r.Header.Get(constants.HeaderXIdempotencyKey))
		}

		ctx := WithRequestID(r.Context(), requestID)
		ctx = context.WithValue(ctx, constants.ContextKeyIdempotencyKey, idempotencyKey)

		w.Header().Set(constants.HeaderXRequestId, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, constants.ContextKeyRequestID, requestID)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(constants.ContextKeyRequestID).(string)
	return id
}

func IdempotencyKey(ctx context.Context) string {
	key, _ := ctx.Value(constants.ContextKeyIdempotencyKey).(string)
	return key
}
