// Package reservation implements the slot-reservation coordinator for posts.
// A post advertises a fixed number of slots (its capacity) and an ordered
// list of occupants.  The coordinator exposes a single Toggle operation that
// flips the calling user's occupancy, preferring a server-validated atomic
// procedure and degrading to a best-effort column overwrite when that
// procedure cannot be invoked.
package reservation

import (
	"context"
	"errors"
)

// Store is the contract the coordinator consumes from the data layer.  The
// production implementation lives in internal/store and talks to MySQL; tests
// substitute an in-memory fake.
type Store interface {
	// FetchPost returns the current occupant list and capacity for a post.
	// It is a plain read with no side effects.  Implementations return
	// ErrPostNotFound when the post does not exist.
	FetchPost(ctx context.Context, postID uint64) (occupants []string, capacity int, err error)

	// AtomicReserve appends the user to the post's occupant list via the
	// server-validated procedure.  The procedure re-checks capacity on the
	// server and is the authoritative guard against over-booking.  It
	// returns the updated occupant list when the procedure provides one
	// (a nil slice is allowed and means "not provided").
	//
	// ErrRejected means the server found the post full.  ErrUnavailable
	// means the procedure cannot be invoked at all (not deployed, not
	// reachable) and the caller should fall back to WriteOccupants.
	AtomicReserve(ctx context.Context, postID uint64, user string) ([]string, error)

	// AtomicUnreserve removes the user from the post's occupant list via
	// the server-validated procedure.  ErrUnavailable triggers the
	// fallback path, as with AtomicReserve.
	AtomicUnreserve(ctx context.Context, postID uint64, user string) ([]string, error)

	// WriteOccupants unconditionally overwrites the post's occupant list.
	// Last writer wins; this is only ever called on the fallback path.
	WriteOccupants(ctx context.Context, postID uint64, occupants []string) error
}

// Sentinel errors returned by Store implementations.  ErrUnavailable never
// escapes the coordinator; it only selects the fallback branch.
var (
	// ErrUnavailable signals that the atomic procedure cannot be invoked.
	ErrUnavailable = errors.New("atomic procedure unavailable")

	// ErrRejected signals that the atomic reserve was refused because the
	// post was full at the server.
	ErrRejected = errors.New("reserve rejected: post full")

	// ErrPostNotFound is returned when the referenced post does not exist.
	ErrPostNotFound = errors.New("post not found")
)

// Errors surfaced to callers of Toggle.
var (
	// ErrFull is returned when the post has no free slots.  No write was
	// attempted when this is returned from the pre-check.
	ErrFull = errors.New("post is full")

	// ErrPersistenceFailed is returned when neither the atomic path nor
	// the fallback write could be applied.  The local view is unchanged.
	ErrPersistenceFailed = errors.New("reservation could not be persisted")

	// ErrNotAuthenticated is returned when no user identity is available.
	ErrNotAuthenticated = errors.New("no authenticated user")

	// ErrInFlight is returned when a toggle for the same post and user is
	// already running.  The duplicate call is rejected, not queued, so two
	// fallback writes from the same client can never race each other.
	ErrInFlight = errors.New("toggle already in flight")
)
