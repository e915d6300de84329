// Package triage turns dead-letter events into operational action.
//
// The Triager subscribes to the event emitter and applies two policies to
// every dead letter: whitelisted transient error types are automatically
// requeued until a per-failure budget is spent, and error types that cross
// a dead-letter threshold inside a sliding window trigger the configured
// alert playbook, rate-limited by a per-error-type cooldown.
package triage
