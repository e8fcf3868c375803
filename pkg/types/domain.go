package types

// LibraryEntry is an animation file found in the library directory.
type LibraryEntry struct {
	// Stable identifier: the file name.
	// example: confetti.json
	ID string `json:"id" example:"confetti.json"`
	// File name without extension.
	// example: confetti
	Name string `json:"name" example:"confetti"`
	// Absolute path on disk.
	// example: /srv/lottie/confetti.json
	Path string `json:"path" example:"/srv/lottie/confetti.json"`
	// Container format: json, zip, gz or tgs.
	// example: json
	Format string `json:"format" example:"json"`
	// Size in bytes.
	// example: 20480
	SizeBytes int64 `json:"size_bytes" example:"20480"`
	// Human readable size.
	// example: 20 kB
	Size string `json:"size" example:"20 kB"`
}

// Marker is a named frame range inside a composition.
type Marker struct {
	// example: intro
	Name string `json:"name" example:"intro"`
	// example: 0
	InFrame int `json:"in_frame" example:"0"`
	// example: 30
	OutFrame int `json:"out_frame" example:"30"`
}

// Layer describes a top-level layer of a composition.
type Layer struct {
	// example: background
	Name string `json:"name" example:"background"`
	// example: 0
	InFrame int `json:"in_frame" example:"0"`
	// example: 60
	OutFrame int `json:"out_frame" example:"60"`
	// Layer kind (precomp, solid, image, null, shape, text).
	// example: shape
	Type string `json:"type" example:"shape"`
}
