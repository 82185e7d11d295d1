// Package httpmw holds the middleware in front of the guestbook routes.
//
// httpserver.NewHandler composes them with Chain, outermost first: security
// headers, panic recovery, request ID, client IP, tracing, trace response
// headers, metrics and the request-scoped logger. Inside the chi router come
// route annotation, the access log and the body size cap.
//
// Loggers built here only carry server-derived values. Query strings,
// headers and submission bodies never reach log fields.
package httpmw
