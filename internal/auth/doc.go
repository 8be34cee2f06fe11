// Package auth implements the device-code ("PIN") sign-in flow and token
// maintenance.
//
// # State Machine
//
//	Pending ──Start──> Polling ──token──> Succeeded
//	                    │  ▲
//	                    └──┘ pending (400/404/429 or no token)
//	                    │
//	                    ├── attempts exhausted / 410 ──> Expired
//	                    ├── Cancel / ctx done ─────────> Cancelled
//	                    └── other error ───────────────> Failed
//
// Start requests a code, hands it to the Presenter and polls the exchange
// endpoint from one goroutine. The number of polls is bounded by
// max(1, expiresIn/interval). Terminal states are final: the first terminal
// transition wins and later events are dropped, so OnComplete and
// Presenter.Done run exactly once even when Cancel races a token that has
// just arrived.
//
// On success the token is written through the TokenStore and the response
// cache is invalidated while the session lock is held.
//
// # Poll Interval
//
// BackoffFixed waits the server interval between polls. BackoffExponential
// doubles it for every pending answer, capped at MaxInterval (30s when
// unset).
//
// # Refresh and Revoke
//
// Refresh swaps the stored refresh token for a new access token. Revoke is
// best effort; sign-out proceeds locally even when it fails.
package auth
