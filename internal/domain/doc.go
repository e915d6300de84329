// Package domain contains the core entities and value objects of the task
// engine: task envelopes, results, retry policies, dead-letter records,
// worker heartbeats, and the dead-letter audit trail. It represents the
// heart of the system, independent of any specific storage backend or
// delivery mechanism.
package domain
