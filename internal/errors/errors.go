package errors

import "errors"

// Session errors.
var (
	ErrNoSession      = errors.New("no active session")
	ErrAuthentication = errors.New("authentication failure")
)

// Cache errors.
var (
	ErrItemNotFound = errors.New("item not found in cache")
)

// Transport errors.
var (
	ErrFeedClosed = errors.New("event feed closed")
)
