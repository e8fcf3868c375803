package manager

// Recycle stops and releases an animation. The renderer handle is freed at
// once, or when an in-flight decode for it returns.
func (m *Manager) Recycle(id string) error {
	var err error
	if cerr := m.loop.Call(func() {
		inst, ok := m.instances[id]
		if !ok {
			err = ErrAnimationNotFound(id)
			return
		}
		m.recycle(inst)
	}); cerr != nil {
		return errClosed
	}
	return err
}

// recycle runs on the loop. The instance stays in draining until the
// player reports it destroyed.
func (m *Manager) recycle(inst *Instance) {
	delete(m.instances, inst.ID)
	m.draining[inst.ID] = inst
	m.publisher.Publish(Event{Name: EventRecycleStart, AnimationID: inst.ID, Fields: map[string]any{
		"state": inst.anim.State().String(),
	}})
	inst.surface.stop()
	inst.anim.Recycle()
}
