package httpmw

import (
	"net/http"

	"go.opentelemetry.io/otel/trace"
)

const (
	defaultTraceHeader = "X-Trace-Id"
	defaultSpanHeader  = "X-Span-Id"
)

// TraceResponseHeaders echoes the active trace and span IDs so a failed
// submission can be matched to its trace. Nothing is written when the
// request carries no valid span context.
func TraceResponseHeaders(traceHeader, spanHeader string) func(http.Handler) http.Handler {
	if traceHeader == "" {
		traceHeader = defaultTraceHeader
	}
	if spanHeader == "" {
		spanHeader = defaultSpanHeader
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
				h := w.Header()
				h.Set(traceHeader, sc.TraceID().String())
				h.Set(spanHeader, sc.SpanID().String())
			}
			next.ServeHTTP(w, r)
		})
	}
}
