// Package events decouples the worker pool from failure triage. When a task
// exhausts its retries the pool emits a DeadLetterEvent through an
// EventEmitter; triage components register as EventHandlers and react
// (auto-requeue, alerting) without the pool knowing they exist.
package events
