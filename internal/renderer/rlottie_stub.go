//go:build !rlottie

package renderer

// NativeAvailable reports whether this binary links the native renderer.
// Builds without the 'rlottie' tag stay cgo-free.
const NativeAvailable = false

// NewNative fails in builds without the 'rlottie' tag.
func NewNative() (Renderer, error) {
	return nil, ErrDependencyUnavailable
}
