// Package server implements the optional local HTTP monitoring endpoint:
// health, session library listing, sanitized configuration and Prometheus
// metrics. It is read-only and disabled by default.
package server
