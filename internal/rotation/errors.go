package rotation

import "errors"

// ErrClosed is returned by Start after Close.
//
// Starting an unknown group returns groups.ErrGroupNotFound so callers can
// map it the same way as other missing-group errors.
var ErrClosed = errors.New("rotation: scheduler closed")
