// Package metrics defines the Prometheus instrumentation for the task
// engine: queue throughput counters, an execution latency histogram, and
// the dead-letter lifecycle series (recorded, requeued, purged, active,
// alerted). All series carry a queue label so several namespaces can
// share one registry.
package metrics
