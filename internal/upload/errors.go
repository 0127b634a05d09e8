package upload

import "errors"

var (
	ErrNoFiles      = errors.New("no files provided")
	ErrSingleFile   = errors.New("multiple files not allowed: select one file")
	ErrItemNotFound = errors.New("upload item not found")
)
