// Package memstore provides the in-memory store.Store backend. It backs
// single-process deployments and the engine's test suite, and keeps full
// behavioral parity with the Redis backend, including heartbeat expiry and
// audit-trail trimming.
package memstore
