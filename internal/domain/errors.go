// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates an operation that is illegal in the current state.
var ErrConflict = errors.New("conflict: operation not allowed in current state")

// ErrValidation indicates invalid caller input.
var ErrValidation = errors.New("validation failed")

// ErrUnavailable indicates a required upstream collaborator is not reachable.
var ErrUnavailable = errors.New("upstream unavailable")
