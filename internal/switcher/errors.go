package switcher

import "errors"

// Domain errors for the switcher package.
var (
	// ErrSceneRequired is returned when a switch names no scene.
	ErrSceneRequired = errors.New("switcher: scene name is required")

	// ErrGroupRequired is returned when a rotation command names no group.
	ErrGroupRequired = errors.New("switcher: group name is required")

	// ErrUnknownCommand is returned for a command topic the rotator does not handle.
	ErrUnknownCommand = errors.New("switcher: unknown command")

	// ErrInvalidCommand is returned when a command payload cannot be decoded.
	ErrInvalidCommand = errors.New("switcher: invalid command payload")

	// ErrClosed is returned after Close has been called.
	ErrClosed = errors.New("switcher: service closed")
)
