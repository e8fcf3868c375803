//go:build !rlottie

package renderer

import (
	"errors"
	"testing"
)

func TestNewNativeUnavailable(t *testing.T) {
	if NativeAvailable {
		t.Fatalf("stub build must not claim native support")
	}
	if _, err := NewNative(); !errors.Is(err, ErrDependencyUnavailable) {
		t.Fatalf("expected ErrDependencyUnavailable, got %v", err)
	}
}
