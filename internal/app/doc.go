// Package app is the composition root for reeltrack.
//
// # Overview
//
// Open loads configuration and builds exactly one of each long-lived
// component for the session:
//
//	┌────────────┐     ┌───────────────┐     ┌──────────────────┐
//	│  Gateway   │────>│  Scheduler    │────>│ retry.Executor   │──> api.Client
//	└─────┬──────┘     └──────┬────────┘     └──────────────────┘
//	      │                   │ reads fresh per request
//	      ▼                   ▼
//	┌────────────┐     ┌───────────────┐
//	│  TTLCache  │     │  Provider     │──> credentials.toml
//	└────────────┘     └───────────────┘
//
// Nothing is a package-level singleton; every component is owned by the
// Session and released by Close.
//
// # Components
//
//   - app.go: Open/OpenConfig, Close, and the Login/Logout/Refresh helpers
//   - logging.go: root go-hclog logger; components get Named sub-loggers
//   - sweeper.go: background goroutine that sweeps expired cache entries
//
// # Lifecycle
//
// Close stops the sweeper, closes the scheduler (queued requests settle with
// api.ErrClosed), clears the cache and closes the log file. A Session must
// not be used after Close.
package app
