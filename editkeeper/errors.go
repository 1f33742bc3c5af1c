package editkeeper

import "errors"

var (
	// ErrUnknownSelector is returned by Apply in strict mode for a diff
	// whose selector maps to no column.
	ErrUnknownSelector = errors.New("editkeeper: unknown selector")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("editkeeper: closed")
)
