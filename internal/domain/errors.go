package domain

import "errors"

var (
	// ErrInvalidQuery is returned when a search query is shorter than two
	// characters after trimming. Caller input error, never retried.
	ErrInvalidQuery = errors.New("query must be at least 2 characters")

	// ErrSearchUnavailable is returned when the directory backend fails
	// during a search. Transient; retry policy belongs to the caller.
	ErrSearchUnavailable = errors.New("search unavailable")

	// ErrStorageUnavailable is returned when a store write or read fails
	// for reasons other than caller input.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrInvalidStatusTransition is returned when a caller attempts a
	// section status change the lifecycle does not permit.
	ErrInvalidStatusTransition = errors.New("invalid artifact status transition")

	// ErrConversationNotFound is returned when a message is appended to a
	// conversation that does not exist.
	ErrConversationNotFound = errors.New("conversation not found")
)
