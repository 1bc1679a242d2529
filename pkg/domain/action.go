package domain

// Reply is what the engine hands back to the transport after every event.
type Reply struct {
	// State is the session state after the event; StateNone when the session is gone.
	State State `json:"state"`

	// Prompt is the next message to show the user.
	Prompt string `json:"prompt"`

	// Action is set only when the workflow completed and a document was rendered.
	Action *RenderAction `json:"action,omitempty"`
}

// RenderAction carries the assembled protocol and the rendered document.
type RenderAction struct {
	Metadata  Metadata `json:"metadata"`
	Questions []string `json:"questions"`
	Decisions []string `json:"decisions"`
	Document  []byte   `json:"document"`
	FileName  string   `json:"file_name"`
}
