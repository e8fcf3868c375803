package renderer

import (
	"fmt"
	"sync"

	"github.com/spf13/afero"
)

// FakeStats counts calls made against a Fake.
type FakeStats struct {
	Creates              int
	Destroys             int
	DoubleDestroys       int
	Decodes              int
	Live                 int
	MaxConcurrentDecodes int // per handle, across the Fake's lifetime
}

type fakeAnim struct {
	doc    *Document
	props  []PropertyUpdate
	colors [][]ColorReplacement
}

// Fake is a deterministic in-memory Renderer. It reads document headers
// through Fs and paints every decoded frame with its own index so tests
// can tell frames apart (see FrameOf).
type Fake struct {
	Fs afero.Fs

	// FailFrame, when set, makes DecodeFrame fail for matching frames.
	FailFrame func(h Handle, frame int) bool
	// Gate, when set, makes each DecodeFrame wait for one receive.
	Gate chan struct{}

	mu        sync.Mutex
	next      Handle
	anims     map[Handle]*fakeAnim
	destroyed map[Handle]bool
	seen      map[string]bool
	inflight  map[Handle]int
	stats     FakeStats
}

func NewFake(fs afero.Fs) *Fake {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Fake{
		Fs:        fs,
		anims:     make(map[Handle]*fakeAnim),
		destroyed: make(map[Handle]bool),
		seen:      make(map[string]bool),
		inflight:  make(map[Handle]int),
	}
}

func (f *Fake) Create(path string, width, height int, precache bool) (Handle, Metadata, error) {
	if width <= 0 || height <= 0 {
		return 0, Metadata{}, fmt.Errorf("renderer: invalid size %dx%d", width, height)
	}
	file, err := f.Fs.Open(path)
	if err != nil {
		return 0, Metadata{}, fmt.Errorf("renderer: open %s: %w", path, err)
	}
	doc, err := ParseDocument(file)
	_ = file.Close()
	if err != nil {
		return 0, Metadata{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	h := f.next
	f.anims[h] = &fakeAnim{doc: doc}
	cached := precache && f.seen[path]
	if precache {
		f.seen[path] = true
	}
	f.stats.Creates++
	f.stats.Live++
	return h, Metadata{TotalFrames: doc.TotalFrames(), FrameRate: doc.FrameRate, LoadedFromCache: cached}, nil
}

func (f *Fake) DecodeFrame(h Handle, frame int, buf *Buffer) error {
	f.mu.Lock()
	a, ok := f.anims[h]
	if !ok {
		f.mu.Unlock()
		return ErrUnknownHandle
	}
	f.inflight[h]++
	if n := f.inflight[h]; n > f.stats.MaxConcurrentDecodes {
		f.stats.MaxConcurrentDecodes = n
	}
	f.stats.Decodes++
	total := a.doc.TotalFrames()
	gate, fail := f.Gate, f.FailFrame
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inflight[h]--
		f.mu.Unlock()
	}()

	if gate != nil {
		<-gate
	}
	if frame < 0 || frame > total || (fail != nil && fail(h, frame)) {
		return ErrDecodeFailed
	}
	paint(buf, frame)
	return nil
}

func (f *Fake) Destroy(h Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.destroyed[h] {
		f.stats.DoubleDestroys++
		return
	}
	if _, ok := f.anims[h]; !ok {
		return
	}
	delete(f.anims, h)
	f.destroyed[h] = true
	f.stats.Destroys++
	f.stats.Live--
}

func (f *Fake) Markers(h Handle) ([]Marker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.anims[h]
	if !ok {
		return nil, ErrUnknownHandle
	}
	return a.doc.Markers(), nil
}

func (f *Fake) Layers(h Handle) ([]LayerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.anims[h]
	if !ok {
		return nil, ErrUnknownHandle
	}
	return a.doc.Layers(), nil
}

func (f *Fake) ApplyProperty(h Handle, p PropertyUpdate) error {
	if err := p.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.anims[h]
	if !ok {
		return ErrUnknownHandle
	}
	a.props = append(a.props, p)
	return nil
}

// ReplaceColors records reps and applies the overrides they resolve to, so
// Applied shows the resulting fill and stroke colors.
func (f *Fake) ReplaceColors(h Handle, reps []ColorReplacement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.anims[h]
	if !ok {
		return ErrUnknownHandle
	}
	a.colors = append(a.colors, append([]ColorReplacement(nil), reps...))
	a.props = append(a.props, a.doc.ColorOverrides(reps)...)
	return nil
}

// Replaced returns every ReplaceColors call made against h, oldest first.
func (f *Fake) Replaced(h Handle) [][]ColorReplacement {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.anims[h]; ok {
		return append([][]ColorReplacement(nil), a.colors...)
	}
	return nil
}

// Applied returns the property updates applied to h so far.
func (f *Fake) Applied(h Handle) []PropertyUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.anims[h]; ok {
		return append([]PropertyUpdate(nil), a.props...)
	}
	return nil
}

func (f *Fake) Stats() FakeStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

// paint writes frame into every pixel: B and G carry the frame index.
func paint(buf *Buffer, frame int) {
	for y := 0; y < buf.Height; y++ {
		row := buf.Pix[y*buf.Stride : y*buf.Stride+buf.Width*4]
		for x := 0; x < len(row); x += 4 {
			row[x+0] = byte(frame)
			row[x+1] = byte(frame >> 8)
			row[x+2] = 0x80
			row[x+3] = 0xff
		}
	}
}

// FrameOf reads back the frame index a Fake painted into buf, or -1 when
// the buffer holds no painted frame.
func FrameOf(buf *Buffer) int {
	if buf == nil || len(buf.Pix) < 4 || buf.Pix[3] != 0xff {
		return -1
	}
	return int(buf.Pix[0]) | int(buf.Pix[1])<<8
}
