package settings

import "errors"

// ErrInvalidSettings indicates settings that cannot produce a safe build layout
var ErrInvalidSettings = errors.New("invalid settings")
