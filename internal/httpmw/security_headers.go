package httpmw

import "net/http"

// CSRF tokens are not used: the API is stateless (no cookies, no sessions)
// and cross-origin POSTs are gated by CORS on the submission route.

// apiSecurityHeaders suit a JSON API read cross-origin by a static site.
// Cross-Origin-Embedder-Policy and Cross-Origin-Opener-Policy are left unset
// because the guestbook page lives on another origin.
var apiSecurityHeaders = [...][2]string{
	{"Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload"},
	// responses are JSON and never rendered, so nothing may load
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "no-referrer"},
	{"Permissions-Policy", "accelerometer=(), camera=(), geolocation=(), gyroscope=(), magnetometer=(), microphone=(), payment=(), usb=()"},
	{"X-Permitted-Cross-Domain-Policies", "none"},
	{"Cross-Origin-Resource-Policy", "cross-origin"},
	// submission results must never be cached by intermediaries
	{"Cache-Control", "no-store"},
}

// SecurityHeaders sets apiSecurityHeaders before calling next, so handlers
// may still override individual values.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for _, kv := range apiSecurityHeaders {
			h.Set(kv[0], kv[1])
		}
		next.ServeHTTP(w, r)
	})
}
