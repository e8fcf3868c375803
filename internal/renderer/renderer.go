// Package renderer is the façade over the native vector renderer. A Handle
// is an opaque token; the Renderer owns whatever native state sits behind it.
package renderer

import (
	"errors"
	"fmt"
)

var (
	// ErrDecodeFailed means the renderer produced no pixels for a frame.
	ErrDecodeFailed = errors.New("renderer: decode failed")
	// ErrUnknownHandle is returned for a handle that was never created or was destroyed.
	ErrUnknownHandle = errors.New("renderer: unknown handle")
	// ErrDependencyUnavailable is returned when the native renderer is not built in.
	ErrDependencyUnavailable = errors.New("renderer: native renderer not available")
)

// Handle identifies a loaded composition. The zero Handle is never valid.
type Handle uint64

// Metadata describes a loaded composition.
type Metadata struct {
	TotalFrames     int     `json:"total_frames"`
	FrameRate       float64 `json:"frame_rate"`
	LoadedFromCache bool    `json:"loaded_from_cache"`
}

// Marker is a named frame range inside a composition.
type Marker struct {
	Name     string `json:"name"`
	InFrame  int    `json:"in_frame"`
	OutFrame int    `json:"out_frame"`
}

// LayerInfo describes one top-level layer.
type LayerInfo struct {
	Name     string `json:"name"`
	InFrame  int    `json:"in_frame"`
	OutFrame int    `json:"out_frame"`
	Type     string `json:"type"`
}

// Renderer decodes frames of loaded compositions.
//
// Implementations must tolerate concurrent calls for different handles.
// Callers guarantee at most one DecodeFrame per handle at a time and never
// call Destroy while a decode on that handle is running.
type Renderer interface {
	Create(path string, width, height int, precache bool) (Handle, Metadata, error)
	DecodeFrame(h Handle, frame int, buf *Buffer) error
	Destroy(h Handle)
	Markers(h Handle) ([]Marker, error)
	Layers(h Handle) ([]LayerInfo, error)
	ApplyProperty(h Handle, p PropertyUpdate) error
	ReplaceColors(h Handle, reps []ColorReplacement) error
}

// MarkerAt returns the i-th marker of h.
func MarkerAt(r Renderer, h Handle, i int) (Marker, error) {
	ms, err := r.Markers(h)
	if err != nil {
		return Marker{}, err
	}
	if i < 0 || i >= len(ms) {
		return Marker{}, fmt.Errorf("renderer: marker index %d out of range [0,%d)", i, len(ms))
	}
	return ms[i], nil
}

// LayerAt returns the i-th layer of h.
func LayerAt(r Renderer, h Handle, i int) (LayerInfo, error) {
	ls, err := r.Layers(h)
	if err != nil {
		return LayerInfo{}, err
	}
	if i < 0 || i >= len(ls) {
		return LayerInfo{}, fmt.Errorf("renderer: layer index %d out of range [0,%d)", i, len(ls))
	}
	return ls[i], nil
}
