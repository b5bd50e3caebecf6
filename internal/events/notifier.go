package events

import (
	"time"

	"github.com/smazurov/dropzone/internal/preview"
)

// PreviewNotifier adapts the bus to preview.Notifier.
type PreviewNotifier struct {
	bus *Bus
	now func() time.Time
}

// NewPreviewNotifier returns a notifier that publishes build updates on bus.
func NewPreviewNotifier(bus *Bus) *PreviewNotifier {
	return &PreviewNotifier{bus: bus, now: time.Now}
}

func (n *PreviewNotifier) stamp() string {
	return n.now().UTC().Format(time.RFC3339)
}

// Progress implements preview.Notifier.
func (n *PreviewNotifier) Progress(percent float64, label string) {
	n.bus.Publish(PreviewProgressEvent{Percent: percent, Label: label, Timestamp: n.stamp()})
}

// Status implements preview.Notifier.
func (n *PreviewNotifier) Status(kind string, payload any) {
	switch kind {
	case preview.StatusState:
		if sc, ok := payload.(preview.StateChange); ok {
			n.bus.Publish(PreviewStateEvent{State: string(sc.State), Mode: string(sc.Mode), Timestamp: n.stamp()})
		}
	case preview.StatusFileProgress:
		if fp, ok := payload.(preview.FileProgress); ok {
			n.bus.Publish(FileProgressEvent{Name: fp.Name, Percent: fp.Percent})
		}
	case preview.StatusFileDone:
		name, _ := payload.(string)
		n.bus.Publish(FileDoneEvent{Name: name, Timestamp: n.stamp()})
	case preview.StatusCombined:
		path, _ := payload.(string)
		n.bus.Publish(PreviewCombinedEvent{Path: path, Timestamp: n.stamp()})
	case preview.StatusCancelled:
		n.bus.Publish(PreviewFailedEvent{Cancelled: true, Timestamp: n.stamp()})
	case preview.StatusError:
		msg, _ := payload.(string)
		n.bus.Publish(PreviewFailedEvent{Error: msg, Timestamp: n.stamp()})
	}
}
