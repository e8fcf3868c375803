package manager

import (
	"context"
	"errors"

	"lottied/internal/player"
	"lottied/internal/renderer"
	"lottied/pkg/types"
)

// withInstance runs fn on the loop against the live instance id and marks
// it used.
func (m *Manager) withInstance(id string, fn func(inst *Instance) error) error {
	var err error
	if cerr := m.loop.Call(func() {
		inst, ok := m.instances[id]
		if !ok {
			err = ErrAnimationNotFound(id)
			return
		}
		inst.LastUsed = m.now()
		err = fn(inst)
	}); cerr != nil {
		return errClosed
	}
	return err
}

// waitFrame blocks off the loop until fut resolves.
func waitFrame(ctx context.Context, fut *player.FrameFuture) (*renderer.Buffer, error) {
	if fut == nil {
		return nil, nil
	}
	return fut.Wait(ctx)
}

// playerErr marks the player's argument errors as invalid requests.
func playerErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, player.ErrInvalidSpeed),
		errors.Is(err, player.ErrInvalidRepeat),
		errors.Is(err, player.ErrFrameOutOfRange),
		errors.Is(err, player.ErrMarkerNotFound),
		errors.Is(err, player.ErrInvalidSize):
		return ErrInvalidRequest(err)
	}
	return err
}

func toMarkers(in []renderer.Marker) []types.Marker {
	out := make([]types.Marker, 0, len(in))
	for _, mk := range in {
		out = append(out, types.Marker{Name: mk.Name, InFrame: mk.InFrame, OutFrame: mk.OutFrame})
	}
	return out
}

func toLayers(in []renderer.LayerInfo) []types.Layer {
	out := make([]types.Layer, 0, len(in))
	for _, l := range in {
		out = append(out, types.Layer{Name: l.Name, InFrame: l.InFrame, OutFrame: l.OutFrame, Type: l.Type})
	}
	return out
}
