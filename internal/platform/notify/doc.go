// Package notify holds the thin HTTP clients the alerting playbooks send
// through: the Slack Web API, the PagerDuty Events API, and plain JSON
// webhooks. Clients carry their own credentials and report Enabled so
// callers can skip dispatch when a channel is unconfigured.
package notify
