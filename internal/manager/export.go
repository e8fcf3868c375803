package manager

import (
	"context"
	"io"
	"time"

	"lottied/internal/export"
	"lottied/internal/renderer"
	"lottied/pkg/types"
)

// maxExportFrames bounds the frames one export may hold in memory.
const maxExportFrames = 1000

// ExportGIF seeks through the requested frames one synchronous decode at a
// time and writes them to w as an animated GIF. The animation is left on
// the last exported frame.
func (m *Manager) ExportGIF(ctx context.Context, id string, req types.ExportRequest, w io.Writer) error {
	var (
		total int
		fps   float64
	)
	if err := m.withInstance(id, func(inst *Instance) error {
		if err := loadedOrErr(inst.anim); err != nil {
			return err
		}
		info := inst.anim.Info()
		total, fps = info.TotalFrames, info.FrameRate
		return nil
	}); err != nil {
		return playerErr(err)
	}

	step := req.Step
	if step == 0 {
		step = 1
	}
	end := req.End
	if end == 0 {
		end = total - 1
	}
	switch {
	case step < 0:
		return invalidf("step must be > 0, got %d", step)
	case req.Start < 0 || req.Start > end || end >= total:
		return invalidf("frames %d..%d outside [0,%d)", req.Start, end, total)
	case req.Width < 0 || req.Height < 0:
		return invalidf("export size must be >= 0")
	case (end-req.Start)/step+1 > maxExportFrames:
		return invalidf("export spans more than %d frames", maxExportFrames)
	}
	bg := uint32(0xffffff)
	if req.Background != "" {
		c, err := renderer.ParseColor(req.Background)
		if err != nil {
			return ErrInvalidRequest(err)
		}
		bg = c
	}
	delay := req.Delay
	if delay <= 0 {
		delay = export.DelayFor(fps, step)
	}

	start := time.Now()
	g := export.NewGIF(export.GIFOptions{
		Width:      req.Width,
		Height:     req.Height,
		Background: bg,
		Delay:      delay,
		Dither:     req.Dither,
	})
	for f := req.Start; f <= end; f += step {
		buf, err := m.Frame(ctx, id, f)
		if err != nil {
			return err
		}
		if err := g.Add(buf); err != nil {
			return err
		}
	}
	if err := g.Encode(w); err != nil {
		return err
	}
	m.log.Debug().Str("animation", id).Int("frames", g.Len()).Dur("took", time.Since(start)).Msg("gif exported")
	return nil
}
