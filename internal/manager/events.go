package manager

// Event represents a manager lifecycle event.
// Minimal and stable: name + animation ID and optional fields via key/values.
type Event struct {
	Name        string
	AnimationID string
	Fields      map[string]any
}

// Event names.
const (
	EventLoadStart    = "load_start"
	EventLoadReady    = "load_ready"
	EventLoadFailed   = "load_failed"
	EventStopped      = "playback_stopped"
	EventEvicted      = "evicted"
	EventRecycleStart = "recycle_start"
	EventRecycleDone  = "recycle_done"
)

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic. Publish is called on
// the coordinating loop.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
