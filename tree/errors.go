package tree

import "errors"

var (
	ErrInvalidTree = errors.New("tree: invalid tree")
)
