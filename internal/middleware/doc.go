// Package middleware provides mux middleware for the operations listener:
// a request logger that picks its level from the method and status, and
// Prometheus request metrics labelled by route template. Both skip routes
// by name, so NewRouter must name every route.
package middleware
