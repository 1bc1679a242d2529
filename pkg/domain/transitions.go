package domain

// InputClass is the kind of event a state accepts.
type InputClass uint8

const (
	InputNone InputClass = iota
	InputText
	InputAudio
	InputConfirmation
)

func (c InputClass) String() string {
	switch c {
	case InputText:
		return "text"
	case InputAudio:
		return "audio"
	case InputConfirmation:
		return "confirmation"
	}
	return "none"
}

// Transition describes how a state reacts to its accepted input.
type Transition struct {
	Accepts InputClass
	// Field is the metadata field written by an InputText state.
	Field Field
	// Kind is the list collected (InputAudio) or confirmed (InputConfirmation).
	Kind ListKind
	// Next is the successor on accepted input.
	Next State
	// Retry is the back-edge taken when a confirmation is refused.
	Retry State
}

// Transitions is the full workflow table. Any edge not listed here is illegal.
var Transitions = map[State]Transition{
	StateCollectingName:           {Accepts: InputText, Field: FieldProtocolName, Next: StateCollectingDate},
	StateCollectingDate:           {Accepts: InputText, Field: FieldDate, Next: StateCollectingProjectNumber},
	StateCollectingProjectNumber:  {Accepts: InputText, Field: FieldProjectNumber, Next: StateCollectingContractYear},
	StateCollectingContractYear:   {Accepts: InputText, Field: FieldContractYear, Next: StateCollectingProjectType},
	StateCollectingProjectType:    {Accepts: InputText, Field: FieldProjectType, Next: StateCollectingObjectName},
	StateCollectingObjectName:     {Accepts: InputText, Field: FieldObjectName, Next: StateCollectingClientName},
	StateCollectingClientName:     {Accepts: InputText, Field: FieldClientName, Next: StateCollectingQuestionsAudio},
	StateCollectingQuestionsAudio: {Accepts: InputAudio, Kind: KindQuestions, Next: StateConfirmingQuestions},
	StateConfirmingQuestions:      {Accepts: InputConfirmation, Kind: KindQuestions, Next: StateCollectingDecisionsAudio, Retry: StateCollectingQuestionsAudio},
	StateCollectingDecisionsAudio: {Accepts: InputAudio, Kind: KindDecisions, Next: StateConfirmingDecisions},
	StateConfirmingDecisions:      {Accepts: InputConfirmation, Kind: KindDecisions, Next: StateRenderingDocument, Retry: StateCollectingDecisionsAudio},
	StateRenderingDocument:        {Accepts: InputNone},
}

// TransitionFor returns the table row for s.
func TransitionFor(s State) (Transition, bool) {
	t, ok := Transitions[s]
	return t, ok
}

// AudioState returns the collection state for a list kind.
func AudioState(kind ListKind) State {
	if kind == KindDecisions {
		return StateCollectingDecisionsAudio
	}
	return StateCollectingQuestionsAudio
}

// IsEdge reports whether from -> to is a documented edge (successor or retry).
func IsEdge(from, to State) bool {
	t, ok := Transitions[from]
	if !ok {
		return false
	}
	return (t.Next != StateNone && t.Next == to) || (t.Retry != StateNone && t.Retry == to)
}
