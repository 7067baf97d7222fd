// Package api exposes the HTTP control and query surface: workspace and
// vault management, manual document ingestion, the query endpoint, gateway
// webhooks, and job queue introspection.
//
// Routes are mounted under /v1 with chi. Error responses carry a JSON body
// of the form {"detail": "..."} with 4xx statuses; store sentinel errors are
// translated in one place (respond.go). The webhook endpoint verifies an
// HMAC-SHA256 signature over the raw body before parsing the event.
package api
