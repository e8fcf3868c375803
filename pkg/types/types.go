package types

// PropertyUpdate overrides an animatable property on every node matching
// KeyPath. Property is one of fill_color, fill_opacity, stroke_color,
// stroke_opacity, stroke_width, tr_anchor, tr_position, tr_scale,
// tr_rotation, tr_opacity.
type PropertyUpdate struct {
	// example: **.Fill 1
	KeyPath string `json:"key_path" example:"**.Fill 1"`
	// example: fill_color
	Property string `json:"property" example:"fill_color"`
	// example: [1,0,0]
	Values []float64 `json:"values" example:"1,0,0"`
}

// ColorReplacement swaps every static fill or stroke color equal to From
// for To. Both are "#rrggbb".
type ColorReplacement struct {
	// example: #ff0000
	From string `json:"from" example:"#ff0000"`
	// example: #00ff00
	To string `json:"to" example:"#00ff00"`
}

// Source kinds accepted by LoadRequest.
const (
	SourceFile    = "file"
	SourceJSON    = "json"
	SourceURL     = "url"
	SourceLibrary = "library"
)
