package cache

import "errors"

var (
	// ErrCacheMiss 表示键不在缓存中
	ErrCacheMiss = errors.New("cache miss")
	// ErrInvalidCacheKey 表示键为空
	ErrInvalidCacheKey = errors.New("invalid cache key")
)

// Error 结构化的缓存错误
type Error struct {
	Op  string // get / set / delete
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return "cache " + e.Op + " '" + e.Key + "': " + e.Err.Error()
	}
	return "cache " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op, key string, err error) error {
	return &Error{Op: op, Key: key, Err: err}
}
