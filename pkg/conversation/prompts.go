package conversation

import (
	"strings"

	"github.com/aretw0/minutes/pkg/domain"
)

// listPlaceholder is replaced by the numbered list in confirmation prompts.
const listPlaceholder = "{list}"

// Prompts is the catalog of user-facing messages. Every field can be
// overridden from configuration; empty fields keep the default.
type Prompts struct {
	Greeting string `yaml:"greeting" mapstructure:"greeting"`
	Help     string `yaml:"help" mapstructure:"help"`

	ProtocolName  string `yaml:"protocol_name" mapstructure:"protocol_name"`
	Date          string `yaml:"date" mapstructure:"date"`
	ProjectNumber string `yaml:"project_number" mapstructure:"project_number"`
	ContractYear  string `yaml:"contract_year" mapstructure:"contract_year"`
	ProjectType   string `yaml:"project_type" mapstructure:"project_type"`
	ObjectName    string `yaml:"object_name" mapstructure:"object_name"`
	ClientName    string `yaml:"client_name" mapstructure:"client_name"`

	QuestionsAudio   string `yaml:"questions_audio" mapstructure:"questions_audio"`
	ConfirmQuestions string `yaml:"confirm_questions" mapstructure:"confirm_questions"`
	DecisionsAudio   string `yaml:"decisions_audio" mapstructure:"decisions_audio"`
	ConfirmDecisions string `yaml:"confirm_decisions" mapstructure:"confirm_decisions"`
	Rendering        string `yaml:"rendering" mapstructure:"rendering"`
	Done             string `yaml:"done" mapstructure:"done"`

	EmptyInput          string `yaml:"empty_input" mapstructure:"empty_input"`
	AudioExpected       string `yaml:"audio_expected" mapstructure:"audio_expected"`
	TextExpected        string `yaml:"text_expected" mapstructure:"text_expected"`
	TranscriptionFailed string `yaml:"transcription_failed" mapstructure:"transcription_failed"`
	RenderFailed        string `yaml:"render_failed" mapstructure:"render_failed"`
	NoSession           string `yaml:"no_session" mapstructure:"no_session"`
	Cancelled           string `yaml:"cancelled" mapstructure:"cancelled"`
	Unauthorized        string `yaml:"unauthorized" mapstructure:"unauthorized"`
	Failure             string `yaml:"failure" mapstructure:"failure"`
}

// DefaultPrompts returns the English catalog.
func DefaultPrompts() Prompts {
	return Prompts{
		Greeting: "Hello! I help you put together meeting protocols.\n" +
			"Send /protocol to start a new one, or /help to see what I can do.",
		Help: "Commands:\n" +
			"/protocol - start a new protocol (discards the current one)\n" +
			"/cancel - discard the current protocol\n" +
			"/help - show this message\n\n" +
			"I will ask for the meeting details one by one, then for two voice messages: " +
			"the questions discussed and the decisions taken.",

		ProtocolName:  "Let's create a new protocol. What is the protocol name?",
		Date:          "Enter the meeting date:",
		ProjectNumber: "Enter the project number:",
		ContractYear:  "Enter the contract year:",
		ProjectType:   "Enter the project type:",
		ObjectName:    "Enter the object name:",
		ClientName:    "Enter the client name:",

		QuestionsAudio: "Now send a voice message with the questions discussed.",
		ConfirmQuestions: "These are the questions I recorded:\n\n" + listPlaceholder +
			"\nIs this correct? Reply \"yes\" to continue or anything else to record them again.",
		DecisionsAudio: "Now send a voice message with the decisions taken.",
		ConfirmDecisions: "These are the decisions I recorded:\n\n" + listPlaceholder +
			"\nIs this correct? Reply \"yes\" to generate the document or anything else to record them again.",
		Rendering: "Generating the document...",
		Done:      "Your protocol is ready.",

		EmptyInput:          "The answer cannot be empty.",
		AudioExpected:       "Please send a voice message.",
		TextExpected:        "Please answer with text.",
		TranscriptionFailed: "I could not recognize the recording. Please try again.",
		RenderFailed:        "The document could not be generated. Send any message to try again.",
		NoSession:           "There is no protocol in progress. Send /protocol to start.",
		Cancelled:           "The protocol was discarded.",
		Unauthorized:        "Sorry, you are not allowed to use this bot.",
		Failure:             "Something went wrong. Please try again.",
	}
}

// Merge returns p with every empty field filled from defaults.
func (p Prompts) Merge(defaults Prompts) Prompts {
	fill := func(dst *string, def string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = def
		}
	}
	fill(&p.Greeting, defaults.Greeting)
	fill(&p.Help, defaults.Help)
	fill(&p.ProtocolName, defaults.ProtocolName)
	fill(&p.Date, defaults.Date)
	fill(&p.ProjectNumber, defaults.ProjectNumber)
	fill(&p.ContractYear, defaults.ContractYear)
	fill(&p.ProjectType, defaults.ProjectType)
	fill(&p.ObjectName, defaults.ObjectName)
	fill(&p.ClientName, defaults.ClientName)
	fill(&p.QuestionsAudio, defaults.QuestionsAudio)
	fill(&p.ConfirmQuestions, defaults.ConfirmQuestions)
	fill(&p.DecisionsAudio, defaults.DecisionsAudio)
	fill(&p.ConfirmDecisions, defaults.ConfirmDecisions)
	fill(&p.Rendering, defaults.Rendering)
	fill(&p.Done, defaults.Done)
	fill(&p.EmptyInput, defaults.EmptyInput)
	fill(&p.AudioExpected, defaults.AudioExpected)
	fill(&p.TextExpected, defaults.TextExpected)
	fill(&p.TranscriptionFailed, defaults.TranscriptionFailed)
	fill(&p.RenderFailed, defaults.RenderFailed)
	fill(&p.NoSession, defaults.NoSession)
	fill(&p.Cancelled, defaults.Cancelled)
	fill(&p.Unauthorized, defaults.Unauthorized)
	fill(&p.Failure, defaults.Failure)
	return p
}

// ForState returns the prompt that asks for the input s accepts.
func (p Prompts) ForState(s domain.State) string {
	switch s {
	case domain.StateCollectingName:
		return p.ProtocolName
	case domain.StateCollectingDate:
		return p.Date
	case domain.StateCollectingProjectNumber:
		return p.ProjectNumber
	case domain.StateCollectingContractYear:
		return p.ContractYear
	case domain.StateCollectingProjectType:
		return p.ProjectType
	case domain.StateCollectingObjectName:
		return p.ObjectName
	case domain.StateCollectingClientName:
		return p.ClientName
	case domain.StateCollectingQuestionsAudio:
		return p.QuestionsAudio
	case domain.StateCollectingDecisionsAudio:
		return p.DecisionsAudio
	case domain.StateRenderingDocument:
		return p.RenderFailed
	case domain.StateNone:
		return p.NoSession
	}
	return ""
}

// Confirm renders the confirmation prompt for a freshly collected list.
func (p Prompts) Confirm(kind domain.ListKind, list string) string {
	tmpl := p.ConfirmQuestions
	if kind == domain.KindDecisions {
		tmpl = p.ConfirmDecisions
	}
	if !strings.Contains(tmpl, listPlaceholder) {
		return tmpl + "\n\n" + list
	}
	return strings.ReplaceAll(tmpl, listPlaceholder, list)
}

// joinPrompts separates a notice from the re-issued prompt.
func joinPrompts(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n")
}
