package domain

import "fmt"

// State is one step of the guided data-collection workflow.
// The zero value, StateNone, means "no session" and is never persisted.
type State uint8

const (
	StateNone State = iota
	StateCollectingName
	StateCollectingDate
	StateCollectingProjectNumber
	StateCollectingContractYear
	StateCollectingProjectType
	StateCollectingObjectName
	StateCollectingClientName
	StateCollectingQuestionsAudio
	StateConfirmingQuestions
	StateCollectingDecisionsAudio
	StateConfirmingDecisions
	StateRenderingDocument
)

var stateNames = [...]string{
	StateNone:                     "none",
	StateCollectingName:           "collecting_name",
	StateCollectingDate:           "collecting_date",
	StateCollectingProjectNumber:  "collecting_project_number",
	StateCollectingContractYear:   "collecting_contract_year",
	StateCollectingProjectType:    "collecting_project_type",
	StateCollectingObjectName:     "collecting_object_name",
	StateCollectingClientName:     "collecting_client_name",
	StateCollectingQuestionsAudio: "collecting_questions_audio",
	StateConfirmingQuestions:      "confirming_questions",
	StateCollectingDecisionsAudio: "collecting_decisions_audio",
	StateConfirmingDecisions:      "confirming_decisions",
	StateRenderingDocument:        "rendering_document",
}

// States lists every valid workflow state in path order.
func States() []State {
	out := make([]State, 0, len(stateNames)-1)
	for s := StateCollectingName; s <= StateRenderingDocument; s++ {
		out = append(out, s)
	}
	return out
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Valid reports whether s is a member of the workflow (StateNone is not).
func (s State) Valid() bool {
	return s >= StateCollectingName && s <= StateRenderingDocument
}

// ParseState resolves a snake_case state name.
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if n == name && State(i).Valid() {
			return State(i), nil
		}
	}
	return StateNone, fmt.Errorf("%w: %q", ErrUnknownState, name)
}

// MarshalText encodes the state by name so persisted records stay readable.
func (s State) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownState, uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText rejects names outside the workflow.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
