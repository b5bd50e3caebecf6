package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers
// Usage: bus.Publish(PreviewStateEvent{...})
func (b *Bus) Publish(ev Event) {
	// kelindar/event dispatches on the static type
	switch e := ev.(type) {
	case PreviewStateEvent:
		event.Publish(b.dispatcher, e)
	case PreviewProgressEvent:
		event.Publish(b.dispatcher, e)
	case FileProgressEvent:
		event.Publish(b.dispatcher, e)
	case FileDoneEvent:
		event.Publish(b.dispatcher, e)
	case PreviewCombinedEvent:
		event.Publish(b.dispatcher, e)
	case PreviewFailedEvent:
		event.Publish(b.dispatcher, e)
	case CutProgressEvent:
		event.Publish(b.dispatcher, e)
	case CutFinishedEvent:
		event.Publish(b.dispatcher, e)
	case HardwareDetectedEvent:
		event.Publish(b.dispatcher, e)
	case UploadFinishedEvent:
		event.Publish(b.dispatcher, e)
	case SettingsReloadedEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler type determines which events it receives.
// Returns an unsubscribe function; unknown handler types get a no-op.
// Usage: unsub := bus.Subscribe(func(e PreviewStateEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(PreviewStateEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PreviewProgressEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FileProgressEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FileDoneEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PreviewCombinedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PreviewFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CutProgressEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CutFinishedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(HardwareDetectedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(UploadFinishedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SettingsReloadedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
