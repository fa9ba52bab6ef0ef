package interceptors

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/jcmexdev/orders-service/internal/pkg/interceptors/constants"
)

// MessageHeaders returns the headers to attach to an outbound broker message:
// the request id plus the W3C trace context of ctx.
func MessageHeaders(ctx context.Context) map[string]string {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	if id := RequestID(ctx); id != "" {
		carrier[constants.HeaderXRequestId] = id
	}
	return carrier
}

// ContextFromHeaders is the inbound counterpart of MessageHeaders.
func ContextFromHeaders(ctx context.Context, headers map[string]string) context.Context {
	ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(headers))
	if id := headers[constants.HeaderXRequestId]; id != "" {
		ctx = WithRequestID(ctx, id)
	}
	return ctx
}

// TraceHTTP extracts the W3C trace context sent by an HTTP client so the
// spans opened while serving the request join the caller's trace.
func TraceHTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
