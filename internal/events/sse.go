package events

import "github.com/kelindar/event"

// SubscribeToChannel bridges kelindar/event callback-based subscriptions to channels
// This is needed for SSE integration where Huma expects a channel-based select loop.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
			// Drop event if channel is full (non-blocking)
		}
	})
}

// SubscribeAll forwards every event type streamed to SSE clients into ch.
// The returned function removes all subscriptions.
func SubscribeAll(bus *Bus, ch chan<- any) func() {
	unsubs := []func(){
		SubscribeToChannel[PreviewStateEvent](bus, ch),
		SubscribeToChannel[PreviewProgressEvent](bus, ch),
		SubscribeToChannel[FileProgressEvent](bus, ch),
		SubscribeToChannel[FileDoneEvent](bus, ch),
		SubscribeToChannel[PreviewCombinedEvent](bus, ch),
		SubscribeToChannel[PreviewFailedEvent](bus, ch),
		SubscribeToChannel[CutProgressEvent](bus, ch),
		SubscribeToChannel[CutFinishedEvent](bus, ch),
		SubscribeToChannel[HardwareDetectedEvent](bus, ch),
		SubscribeToChannel[UploadFinishedEvent](bus, ch),
		SubscribeToChannel[SettingsReloadedEvent](bus, ch),
		SubscribeToChannel[LogEntryEvent](bus, ch),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
