package repl

import (
	"errors"

	"github.com/ardnew/safeval/lang"
)

// Sentinel errors.
var (
	ErrOutOfBounds  = errors.New("index out of range")
	ErrEditDeclined = errors.New("decline edit")
	ErrInvalidName  = lang.NewError("invalid variable name")
)
