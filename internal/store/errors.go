package store

import "errors"

var (
	ErrNotFound     = errors.New("record not found")
	ErrConflict     = errors.New("label number already exists")
	ErrInvalidState = errors.New("invalid status transition")
	ErrInvalidSide  = errors.New("invalid photo side")
)
