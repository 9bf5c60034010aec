package conversation

import "github.com/pkg/errors"

var (
	// ErrInvalidPath is returned when a path does not resolve to a node.
	ErrInvalidPath = errors.New("invalid path")
	// ErrInvalidIndex is returned when a path's final index is out of range
	// of its parent's children.
	ErrInvalidIndex = errors.New("invalid index")
	// ErrUnsupportedOperation is returned for operations the tree does not
	// support, such as deleting with an empty path.
	ErrUnsupportedOperation = errors.New("unsupported operation")
)
