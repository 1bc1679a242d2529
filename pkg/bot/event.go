package bot

import (
	"github.com/aretw0/minutes/pkg/domain"
)

// EventKind classifies an inbound event.
type EventKind uint8

const (
	EventCommand EventKind = iota + 1
	EventText
	EventVoice
	EventTranscript
)

func (k EventKind) String() string {
	switch k {
	case EventCommand:
		return "command"
	case EventText:
		return "text"
	case EventVoice:
		return "voice"
	case EventTranscript:
		return "transcript"
	}
	return "unknown"
}

// Commands understood by the dispatcher.
const (
	CommandStart    = "start"
	CommandHelp     = "help"
	CommandProtocol = "protocol"
	CommandCancel   = "cancel"
)

// Event is one inbound message from a user.
type Event struct {
	UserID   int64
	Username string
	Kind     EventKind

	// Command is set for EventCommand, without the leading slash.
	Command string
	// Text carries typed text (EventText) or a recognized transcript (EventTranscript).
	Text string
	// Audio carries the raw voice message for EventVoice.
	Audio []byte
	// List names the list a transcript belongs to.
	List domain.ListKind
}

// Message is one outbound reply: text, a document, or both.
type Message struct {
	Text     string `json:"text,omitempty"`
	Document []byte `json:"document,omitempty"`
	FileName string `json:"file_name,omitempty"`
}
