package redisstore

// DefaultNamespace prefixes every key the engine touches when no namespace
// is configured.
const DefaultNamespace = "taskforge"

// keys derives the fixed key layout from the configured namespace:
//
//	{ns}:tasks              list    pending task envelopes, FIFO
//	{ns}:results            hash    task_id -> result
//	{ns}:dead_letter        hash    task_id -> dead-letter record
//	{ns}:dead_letter:audit  list    audit entries, newest first, capped
//	{ns}:retry_policy       hash    task name -> policy
//	{ns}:worker_heartbeats  hash    worker_id -> heartbeat, TTL on the hash
type keys struct {
	ns string
}

func newKeys(namespace string) keys {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return keys{ns: namespace}
}

func (k keys) tasks() string           { return k.ns + ":tasks" }
func (k keys) results() string         { return k.ns + ":results" }
func (k keys) deadLetter() string      { return k.ns + ":dead_letter" }
func (k keys) deadLetterAudit() string { return k.ns + ":dead_letter:audit" }
func (k keys) retryPolicy() string     { return k.ns + ":retry_policy" }
func (k keys) heartbeats() string      { return k.ns + ":worker_heartbeats" }
