package player

import (
	"context"
	"sync"

	"lottied/internal/renderer"
)

// FrameFuture completes when a requested frame has been decoded. It is the
// only blocking wait in the player and is opt-in per seek.
type FrameFuture struct {
	frame int
	once  sync.Once
	done  chan struct{}
	buf   *renderer.Buffer
	err   error
}

func newFrameFuture(frame int) *FrameFuture {
	return &FrameFuture{frame: frame, done: make(chan struct{})}
}

func (f *FrameFuture) Frame() int { return f.frame }

func (f *FrameFuture) Done() <-chan struct{} { return f.done }

// Wait returns a private copy of the decoded pixels. It must not be called
// on the coordinating loop.
func (f *FrameFuture) Wait(ctx context.Context) (*renderer.Buffer, error) {
	select {
	case <-f.done:
		return f.buf, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *FrameFuture) resolve(buf *renderer.Buffer, err error) {
	f.once.Do(func() {
		f.buf, f.err = buf, err
		close(f.done)
	})
}

func cloneBuffer(b *renderer.Buffer) *renderer.Buffer {
	out := *b
	out.Pix = append([]byte(nil), b.Pix...)
	return &out
}
