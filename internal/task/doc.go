// Package task implements the engine's execution layer: the handler
// registry, the Queue facade that producers and operators use, and the
// worker pool that drains the queue, enforces per-attempt timeouts, retries
// with exponential backoff, and dead-letters tasks whose budget is spent.
package task
