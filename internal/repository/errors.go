package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicateEmail indicates a unique violation on the email column.
	ErrDuplicateEmail = errors.New("repository: email already exists")
	// ErrDuplicatePhone indicates a unique violation on the phone column.
	ErrDuplicatePhone = errors.New("repository: phone already exists")
)
