package repository

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrNilTemplate      = errors.New("repository: nil template")
	ErrTemplateNotFound = errors.New("repository: template not found")
)
