// Package scheduler serializes outbound API calls through one FIFO queue.
//
// # Overview
//
// The remote API is rate limited, so every gateway call funnels through a
// single Scheduler. Requests are serviced strictly in enqueue order, one at a
// time, with a fixed spacing delay between consecutive requests. The delay is
// only paid when another request is waiting; the last element of a burst
// returns as soon as it settles.
//
// # Drain Loop
//
//	Enqueue() ──> queue ──> drain goroutine ──> retry.Executor ──> api.Sender
//	                 ▲            │
//	                 └── spacing ─┘ (only while queue is non-empty)
//
// The drain goroutine is started by the Enqueue call that finds the queue
// idle and exits once the queue is empty again, so an idle scheduler holds
// no goroutines and never polls.
//
// # Credentials
//
// Every request is either public (client id only) or private (bearer token),
// fixed by its api.Descriptor. Credentials are read fresh from the
// CredentialSource twice: synchronously in Enqueue, so a private call
// without a token fails with api.ErrMissingCredential and never consumes a
// network attempt, and again right before the request is sent, because the
// token may have been purged while the request waited. A 401 response
// triggers CredentialSource.InvalidateToken exactly once.
//
// # Failure Isolation
//
// A failed request settles with its classified error and the loop moves on;
// nothing aborts or reorders the rest of the queue. Individual requests are
// not cancellable once enqueued and there is no priority lane: a caller that
// stops waiting in Do only abandons the result.
//
// # Lifecycle
//
// Close cancels the in-flight request, rejects everything still queued with
// api.ErrClosed and waits for the drain goroutine. Enqueue after Close
// settles immediately with api.ErrClosed.
package scheduler
