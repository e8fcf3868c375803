package renderer

import (
	"fmt"
	"strings"
)

// PropertyKind names an animatable property that can be overridden.
type PropertyKind int

const (
	FillColor PropertyKind = iota
	FillOpacity
	StrokeColor
	StrokeOpacity
	StrokeWidth
	TrAnchor
	TrPosition
	TrScale
	TrRotation
	TrOpacity
)

var propertyNames = [...]string{
	FillColor:     "fill_color",
	FillOpacity:   "fill_opacity",
	StrokeColor:   "stroke_color",
	StrokeOpacity: "stroke_opacity",
	StrokeWidth:   "stroke_width",
	TrAnchor:      "tr_anchor",
	TrPosition:    "tr_position",
	TrScale:       "tr_scale",
	TrRotation:    "tr_rotation",
	TrOpacity:     "tr_opacity",
}

// arity is the number of values each kind takes.
var arity = [...]int{
	FillColor:     3,
	FillOpacity:   1,
	StrokeColor:   3,
	StrokeOpacity: 1,
	StrokeWidth:   1,
	TrAnchor:      2,
	TrPosition:    2,
	TrScale:       2,
	TrRotation:    1,
	TrOpacity:     1,
}

func (k PropertyKind) String() string {
	if k < 0 || int(k) >= len(propertyNames) {
		return fmt.Sprintf("property(%d)", int(k))
	}
	return propertyNames[k]
}

// ParsePropertyKind accepts the snake_case names returned by String.
func ParsePropertyKind(s string) (PropertyKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range propertyNames {
		if n == s {
			return PropertyKind(i), nil
		}
	}
	return 0, fmt.Errorf("renderer: unknown property kind %q", s)
}

// PropertyUpdate overrides one property on every node matching KeyPath
// ("layer.group.shape", with "*" and "**" wildcards).
//
// Colors are r,g,b in [0,1]; opacities are percentages; positions, anchors
// and scales are x,y pairs; rotation is in degrees.
type PropertyUpdate struct {
	KeyPath string       `json:"key_path"`
	Kind    PropertyKind `json:"kind"`
	Values  []float64    `json:"values"`
}

func (p PropertyUpdate) Validate() error {
	if strings.TrimSpace(p.KeyPath) == "" {
		return fmt.Errorf("renderer: property %s: empty key path", p.Kind)
	}
	if p.Kind < 0 || int(p.Kind) >= len(arity) {
		return fmt.Errorf("renderer: unknown property kind %d", int(p.Kind))
	}
	if len(p.Values) != arity[p.Kind] {
		return fmt.Errorf("renderer: property %s takes %d values, got %d", p.Kind, arity[p.Kind], len(p.Values))
	}
	return nil
}
