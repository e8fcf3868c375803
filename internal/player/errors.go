package player

import (
	"errors"
	"fmt"
)

var (
	// ErrRecycled is returned once an animation has been recycled.
	ErrRecycled = errors.New("player: animation recycled")
	// ErrNoFrame means the renderer produced no pixels for a requested frame.
	ErrNoFrame = errors.New("player: no frame produced")
	// ErrNotLoaded is returned by operations that need a loaded composition.
	ErrNotLoaded = errors.New("player: animation not loaded")
	// ErrSuperseded resolves a synchronous seek that a later seek replaced
	// before its frame was decoded.
	ErrSuperseded = fmt.Errorf("%w: superseded by a later seek", ErrNoFrame)

	ErrFrameOutOfRange = errors.New("player: frame out of range")
	ErrInvalidSpeed    = errors.New("player: speed must be > 0")
	ErrInvalidRepeat   = errors.New("player: repeat count must be >= -1")
	ErrMarkerNotFound  = errors.New("player: marker not found")
	ErrInvalidSize     = errors.New("player: width and height must be > 0")
)
