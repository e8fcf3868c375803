package renderer

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ColorReplacement swaps every static fill or stroke color equal to From
// for To. Both are 0xRRGGBB.
type ColorReplacement struct {
	From uint32 `json:"from"`
	To   uint32 `json:"to"`
}

// ParseColor accepts "#rrggbb" or "rrggbb".
func ParseColor(s string) (uint32, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return 0, fmt.Errorf("renderer: color %q is not #rrggbb", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("renderer: color %q is not #rrggbb", s)
	}
	return uint32(v), nil
}

// ColorOverrides resolves replacements against the document's static shape
// colors and returns one key-path override per matching fill or stroke.
// Unnamed nodes cannot be addressed and are skipped; so are precomp assets.
func (d *Document) ColorOverrides(reps []ColorReplacement) []PropertyUpdate {
	if len(reps) == 0 {
		return nil
	}
	to := make(map[uint32]uint32, len(reps))
	for _, r := range reps {
		to[r.From&0xffffff] = r.To & 0xffffff
	}
	var out []PropertyUpdate
	var walk func(prefix string, items []docShape)
	walk = func(prefix string, items []docShape) {
		for _, it := range items {
			if it.Name == "" {
				continue
			}
			path := prefix + "." + it.Name
			switch it.Type {
			case "gr":
				walk(path, it.Items)
			case "fl", "st":
				rgb, ok := it.Color.static()
				if !ok {
					continue
				}
				repl, ok := to[rgb]
				if !ok {
					continue
				}
				kind := FillColor
				if it.Type == "st" {
					kind = StrokeColor
				}
				out = append(out, PropertyUpdate{KeyPath: path, Kind: kind, Values: unitRGB(repl)})
			}
		}
	}
	for _, l := range d.RawLayers {
		if l.Name != "" {
			walk(l.Name, l.Shapes)
		}
	}
	return out
}

// static packs a non-animated [r,g,b(,a)] value in [0,1] into 0xRRGGBB.
func (v *docValue) static() (uint32, bool) {
	if v == nil || v.A != 0 {
		return 0, false
	}
	var rgba []float64
	if err := json.Unmarshal(v.K, &rgba); err != nil || len(rgba) < 3 {
		return 0, false
	}
	var rgb uint32
	for _, c := range rgba[:3] {
		b := math.Round(math.Max(0, math.Min(1, c)) * 255)
		rgb = rgb<<8 | uint32(b)
	}
	return rgb, true
}

func unitRGB(rgb uint32) []float64 {
	return []float64{
		float64(rgb>>16&0xff) / 255,
		float64(rgb>>8&0xff) / 255,
		float64(rgb&0xff) / 255,
	}
}
