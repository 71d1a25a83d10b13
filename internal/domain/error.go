package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrUnknownModel       = errors.New("model is not in the configured catalog")
	ErrEmptyText          = errors.New("input text is empty")
	ErrClientClosed       = errors.New("space client is closed")
	ErrInvalidExecContext = errors.New("invalid database execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)
