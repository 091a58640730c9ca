package database

import "errors"

// Error kinds returned by RecordStore. Backend failures are wrapped with
// ErrStorageUnreadable or ErrStorageWriteFailed so callers can use errors.Is.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrDuplicateName      = errors.New("user already exists")
	ErrNotFound           = errors.New("user not found")
	ErrStorageUnreadable  = errors.New("storage unreadable")
	ErrStorageWriteFailed = errors.New("storage write failed")
)
