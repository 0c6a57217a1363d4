// Package metrics defines the Prometheus instruments exported by the lobby server.
package metrics
