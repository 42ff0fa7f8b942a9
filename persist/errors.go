package persist

import "errors"

var (
	ErrKeyNotFound  = errors.New("key not found")
	ErrLoadFailed   = errors.New("load failed")
	ErrSaveFailed   = errors.New("save failed")
	ErrCodec        = errors.New("codec failure")
	ErrUnknownCodec = errors.New("unknown codec")
)
