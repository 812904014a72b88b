package builder

import "errors"

var (
	ErrInvalidConfig    = errors.New("bvh builder: invalid configuration")
	ErrUnknownAlgorithm = errors.New("bvh builder: unknown algorithm")
)
