package domain

import "errors"

var (
	ErrInvalidTask = errors.New("invalid_task")
	ErrUnknownTask = errors.New("unknown_task")
)
