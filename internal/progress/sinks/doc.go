// Package sinks implements progress consumers: structured logging, Prometheus
// collectors and the crawl_days repository.
package sinks
