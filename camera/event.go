package camera

import "sync"

// EventType tells what happened to the file carried by an Event
type EventType int

const (
	// EventFileAdded is emitted by WaitEvents when the camera stored a new file
	EventFileAdded EventType = iota
	// EventFileCaptured is emitted by CaptureImage
	EventFileCaptured
	// EventFilePreviewed is emitted by CapturePreview
	EventFilePreviewed
	// EventFileDownloaded is emitted by DownloadFile
	EventFileDownloaded
	// EventFileDeleted is emitted by DeleteFile
	EventFileDeleted
)

func (t EventType) String() string {
	switch t {
	case EventFileAdded:
		return "file-added"
	case EventFileCaptured:
		return "file-captured"
	case EventFilePreviewed:
		return "file-previewed"
	case EventFileDownloaded:
		return "file-downloaded"
	case EventFileDeleted:
		return "file-deleted"
	}
	return "unknown"
}

// MarshalText encodes the type by name
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Event is sent to subscribers of a Session
type Event struct {
	Type EventType `json:"type"`
	File *File     `json:"file"`
}

// broadcaster fans events out to subscribers, in subscription order
type broadcaster struct {
	mu   sync.Mutex
	next int
	subs []subscriber
}

type subscriber struct {
	id int
	fn func(Event)
}

func (b *broadcaster) subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.subs = append(b.subs, subscriber{id, fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

func (b *broadcaster) emit(ev Event) {
	b.mu.Lock()
	subs := append([]subscriber(nil), b.subs...)
	b.mu.Unlock()
	for _, s := range subs {
		s.fn(ev)
	}
}
