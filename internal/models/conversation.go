package models

import "time"

// Conversation stages
const (
	StageGreeting = "GREETING"
	StageComplete = "COMPLETE"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation question steps, in flow order. The step cursor drives which
// question is asked next; it is distinct from the coarse stage.
const (
	StepCountry           = "COUNTRY"
	StepCountryOther      = "COUNTRY_OTHER"
	StepDegreeLevel       = "DEGREE_LEVEL"
	StepCurrentEducation  = "CURRENT_EDUCATION"
	StepGPAScore          = "GPA_SCORE"
	StepLanguageTest      = "LANGUAGE_TEST"
	StepLanguageScore     = "LANGUAGE_SCORE"
	StepStandardizedTests = "STANDARDIZED_TESTS"
	StepAdditionalInfo    = "ADDITIONAL_INFO"
	StepComplete          = "COMPLETE"
)

// Conversation is one slot-filling dialogue and its extracted profile
// accumulator. Once Stage is COMPLETE the record is never mutated again.
type Conversation struct {
	ID         string         `json:"id"`
	Stage      string         `json:"stage"`
	Step       string         `json:"step"`
	IsComplete bool           `json:"isComplete"`
	Profile    map[string]any `json:"profileAccumulator"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
	Messages   []Message      `json:"messages,omitempty"`
}

// Message is one append-only chat message within a conversation
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"-"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Options        []string  `json:"options"`
	Seq            int       `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
}

// StartChatResponse is returned when a conversation is created
type StartChatResponse struct {
	ConversationID string   `json:"conversationId"`
	Message        string   `json:"message"`
	Options        []string `json:"options,omitempty"`
}

// SendMessageRequest is the payload for one chat turn
type SendMessageRequest struct {
	ConversationID string `json:"conversationId"`
	Message        string `json:"message"`
}

// SendMessageResponse is the outcome of one chat turn
type SendMessageResponse struct {
	UserMessageID      string   `json:"userMessageId"`
	AssistantMessageID string   `json:"assistantMessageId"`
	AssistantMessage   string   `json:"assistantMessage"`
	Options            []string `json:"options,omitempty"`
	IsComplete         bool     `json:"isComplete"`
}
