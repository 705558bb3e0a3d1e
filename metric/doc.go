// Package metric exports tripdb operational metrics to Prometheus.
package metric
