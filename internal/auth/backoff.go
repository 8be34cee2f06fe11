package auth

import "time"

const maxBackoff = 30 * time.Second

// BackoffMode selects how the poll interval evolves while authorization is
// pending.
type BackoffMode string

const (
	BackoffFixed       BackoffMode = "fixed"
	BackoffExponential BackoffMode = "exponential"
)

// ParseBackoffMode maps a config value to a mode. Empty means fixed.
func ParseBackoffMode(s string) (BackoffMode, bool) {
	switch BackoffMode(s) {
	case "", BackoffFixed:
		return BackoffFixed, true
	case BackoffExponential:
		return BackoffExponential, true
	}
	return "", false
}

// cappedBackoff doubles base for every pending poll, capped at limit
// (maxBackoff when limit is zero).
func cappedBackoff(pending int, base, limit time.Duration) time.Duration {
	if limit <= 0 {
		limit = maxBackoff
	}
	if pending < 0 {
		pending = 0
	}
	delay := base
	for i := 0; i < pending; i++ {
		delay *= 2
		if delay >= limit {
			return limit
		}
	}
	if delay > limit {
		return limit
	}
	return delay
}
