// Package store defines interfaces for the task engine's persistence
// operations. These interfaces abstract the underlying key-value storage
// from the queueing and triage logic, allowing the engine to run against
// an in-memory backend in tests and Redis in production without changing
// behavior.
package store
