package cache

import "errors"

// ErrCacheMiss indicates the requested key was not found or has expired.
// For single-use keys read with Take it also means "already consumed".
var ErrCacheMiss = errors.New("cache miss")
