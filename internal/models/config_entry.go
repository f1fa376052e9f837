package models

// Recognized config keys and their initial values (§3).
const (
	ConfigMaxRetriesDefault = "max_retries_default"
	ConfigBackoffBase       = "backoff_base"
	ConfigPollIdleSecs      = "poll_idle_secs"
)

// DefaultConfig holds the initial key/value rows seeded on first use.
var DefaultConfig = map[string]string{
	ConfigMaxRetriesDefault: "3",
	ConfigBackoffBase:       "2",
	ConfigPollIdleSecs:      "0.5",
}
