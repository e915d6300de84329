// Package redisstore provides the Redis-backed store.Store implementation.
// The queue is a Redis list (RPUSH/LPOP), results, dead letters, retry
// policies, and heartbeats are hashes, and the audit trail is a capped
// list. LPOP's atomicity gives each popped task exactly one owner across
// worker processes.
package redisstore
