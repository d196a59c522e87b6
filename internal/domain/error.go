package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrBusy               = errors.New("a recommendation is already in flight for this session")
	ErrDuplicateMessageID = errors.New("message id already present in ledger")
)
