// Package config loads the reeltrack TOML configuration.
//
// # Configuration Discovery
//
// Load follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/reeltrack/config.toml
//  3. If the file does not exist, use Default()
//  4. Fields that are missing or empty keep their default
//
// The result is validated once by Validate; components receive typed values
// and never re-check them.
//
// # TOML Format
//
//	base_url = "https://api.trakt.tv"
//	client_id = "..."
//	client_secret = "..."
//	credentials_path = "~/.config/reeltrack/credentials.toml"
//	log_level = "warn"
//	log_file = "~/.local/state/reeltrack/reeltrack.log"
//	theme = "Nightfox"
//
//	[requests]
//	timeout_ms = 10000
//	max_attempts = 3
//	base_backoff_ms = 500
//	backoff_multiplier = 2.0
//	max_backoff_ms = 30000
//	spacing_ms = 350
//
//	[cache]
//	search_ttl_ms = 600000
//	item_ttl_ms = 3600000
//	list_ttl_ms = 300000
//	stats_ttl_ms = 900000
//	sync_ttl_ms = 120000
//	sweep_interval_ms = 60000
//	max_entries = 0        # 0 = unbounded
//	dedupe_inflight = false
//
//	[auth]
//	poll_backoff = "fixed" # or "exponential"
//	max_poll_interval_ms = 30000
//
// Durations are integer milliseconds. spacing_ms is the only duration where
// an explicit 0 is honored; elsewhere 0 means "use the default".
//
// The client id may also live in the credentials file, which takes
// precedence. Tilde paths are expanded to the home directory and relative
// paths are made absolute.
package config
