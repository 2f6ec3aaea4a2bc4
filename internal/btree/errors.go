package btree

import "errors"

// These are internal sentinels distinguishing the tree's own control-flow
// outcomes from lower-layer (pager) failures. table.go maps them onto the
// public kverr.Code taxonomy; btree itself stays agnostic of that mapping.
var (
	ErrDuplicateKey = errors.New("btree: key already exists")
	ErrKeyNotFound  = errors.New("btree: key not found")
	ErrInvalidRange = errors.New("btree: lo > hi in range query")
)
