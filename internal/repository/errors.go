// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrForbidden indicates that the current user is not
// authorized to perform an operation on a resource owned by
// someone else, while ErrPostNotFound signals that a referenced
// post does not exist.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrPostNotFound is returned when a post lookup matches no row.
// Handlers should translate this into an HTTP 404 response.
var ErrPostNotFound = errors.New("post not found")

// ErrUserNotFound is returned when a user lookup by handle or id
// matches no row.
var ErrUserNotFound = errors.New("user not found")
