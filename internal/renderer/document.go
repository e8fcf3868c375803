package renderer

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
)

// Document is the subset of a Lottie JSON file the service reads without
// the native renderer: timing, size, top-level layers with their shape
// colors, and markers.
type Document struct {
	Version   string      `json:"v"`
	Name      string      `json:"nm"`
	FrameRate float64     `json:"fr"`
	InPoint   float64     `json:"ip"`
	OutPoint  float64     `json:"op"`
	Width     int         `json:"w"`
	Height    int         `json:"h"`
	RawLayers []docLayer  `json:"layers"`
	RawMarks  []docMarker `json:"markers"`
}

type docLayer struct {
	Name   string     `json:"nm"`
	Type   int        `json:"ty"`
	In     float64    `json:"ip"`
	Out    float64    `json:"op"`
	Shapes []docShape `json:"shapes"`
}

// docShape is a shape-layer item. Groups nest their items under "it".
type docShape struct {
	Name  string     `json:"nm"`
	Type  string     `json:"ty"`
	Items []docShape `json:"it"`
	Color *docValue  `json:"c"`
}

// docValue is a Lottie property; K holds the static value when A is 0.
type docValue struct {
	A int             `json:"a"`
	K json.RawMessage `json:"k"`
}

type docMarker struct {
	Comment  string  `json:"cm"`
	Time     float64 `json:"tm"`
	Duration float64 `json:"dr"`
}

var layerTypes = map[int]string{
	0: "precomp",
	1: "solid",
	2: "image",
	3: "null",
	4: "shape",
	5: "text",
}

// ParseDocument decodes a Lottie document header.
func ParseDocument(r io.Reader) (*Document, error) {
	var d Document
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("renderer: parse document: %w", err)
	}
	if d.FrameRate <= 0 || d.OutPoint <= d.InPoint {
		return nil, fmt.Errorf("renderer: document has no playable frames (fr=%v ip=%v op=%v)", d.FrameRate, d.InPoint, d.OutPoint)
	}
	return &d, nil
}

func (d *Document) TotalFrames() int {
	return int(math.Round(d.OutPoint - d.InPoint))
}

func (d *Document) Markers() []Marker {
	out := make([]Marker, 0, len(d.RawMarks))
	for _, m := range d.RawMarks {
		in := int(m.Time)
		out = append(out, Marker{Name: m.Comment, InFrame: in, OutFrame: in + int(m.Duration)})
	}
	return out
}

func (d *Document) Layers() []LayerInfo {
	out := make([]LayerInfo, 0, len(d.RawLayers))
	for _, l := range d.RawLayers {
		typ, ok := layerTypes[l.Type]
		if !ok {
			typ = fmt.Sprintf("type_%d", l.Type)
		}
		out = append(out, LayerInfo{Name: l.Name, InFrame: int(l.In), OutFrame: int(l.Out), Type: typ})
	}
	return out
}
