package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"studyyatra/internal/database"
	"studyyatra/internal/logging"
	"studyyatra/internal/models"
)

// question is one fixed slot-filling prompt with its quick-reply options
type question struct {
	Text    string
	Options []string
}

// questionFlow holds the button-driven questions. Steps without an entry here
// use free-text prompts computed per turn.
var questionFlow = map[string]question{
	models.StepCountry: {
		Text:    "Which country would you like to study in?",
		Options: []string{"🇨🇦 Canada", "🇦🇺 Australia", "🇬🇧 UK", "🇺🇸 USA", "🇩🇪 Germany", "🇳🇿 New Zealand", "🌍 Other Country"},
	},
	models.StepDegreeLevel: {
		Text:    "What degree level are you applying for?",
		Options: []string{"Bachelor's", "Master's", "PhD", "Diploma/Certificate"},
	},
	models.StepCurrentEducation: {
		Text:    "What is your current/highest education level?",
		Options: []string{"High School (12th)", "Bachelor's Degree", "Master's Degree", "Other"},
	},
	models.StepLanguageTest: {
		Text:    "Have you taken any language proficiency test?",
		Options: []string{"IELTS", "TOEFL", "PTE", "Duolingo", "German (TestDaF/Goethe)", "Japanese (JLPT)", "Other", "Not yet"},
	},
}

const (
	questionCountryOther      = "Which country would you like to study in? (Please type the country name)"
	questionGPAScore          = "What is your GPA/CGPA or Percentage? (e.g., 3.5/4.0 or 85% or 7.5/10)"
	questionLanguageOther     = "Please specify the test name and your score (e.g., French DELF B2)"
	questionStandardizedTests = "Have you taken any standardized tests? (e.g., GRE 320, GMAT 680, SAT 1400, or type 'None')"
	questionAdditionalInfo    = "Is there anything else you'd like to mention about your academic background, work experience, or goals? (Or type 'No' to finish)"
	messageComplete           = "Perfect! I have all the information I need. Let me analyze your profile and find the best university matches for you..."
)

// otherCountrySentinel is the cleaned form of the "Other Country" button
const otherCountrySentinel = "Other Country"

// ChatService drives the slot-filling conversation that builds a student
// profile one question at a time
type ChatService struct {
	db *database.DB
}

// NewChatService creates a new chat service
func NewChatService(db *database.DB) *ChatService {
	return &ChatService{db: db}
}

// StartConversation creates a conversation at the first question step and
// emits the first assistant question synchronously.
func (s *ChatService) StartConversation() (*models.StartChatResponse, error) {
	now := time.Now().UTC()
	conv := &models.Conversation{
		ID:        uuid.NewString(),
		Stage:     models.StageGreeting,
		Step:      models.StepCountry,
		Profile:   map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.CreateConversation(conv); err != nil {
		return nil, err
	}

	first := questionFlow[models.StepCountry]
	msg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           models.RoleAssistant,
		Content:        first.Text,
		Options:        first.Options,
		CreatedAt:      now,
	}
	if err := s.db.AddMessage(msg); err != nil {
		return nil, err
	}

	logging.WithConversation(conv.ID, conv.Step).Info("conversation started")

	return &models.StartChatResponse{
		ConversationID: conv.ID,
		Message:        first.Text,
		Options:        first.Options,
	}, nil
}

// SendMessage records one user answer, advances the state machine, persists
// the updated accumulator and the next assistant question.
// Returns database.ErrNotFound for an unknown conversation id.
func (s *ChatService) SendMessage(conversationID, userMessage string) (*models.SendMessageResponse, error) {
	conv, err := s.db.GetConversation(conversationID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	userMsg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           models.RoleUser,
		Content:        userMessage,
		CreatedAt:      now,
	}
	if err := s.db.AddMessage(userMsg); err != nil {
		return nil, err
	}

	step := conv.Step
	if step == "" {
		step = models.StepCountry
	}

	updatedProfile, nextStep := ProcessAnswer(conv.Profile, step, userMessage)

	assistantText, options, persistedStep, isComplete := s.nextQuestion(updatedProfile, nextStep)

	conv.Profile = updatedProfile
	conv.Step = persistedStep
	if isComplete {
		conv.Stage = models.StageComplete
		conv.IsComplete = true
	}
	if err := s.db.UpdateConversation(conv); err != nil {
		return nil, err
	}

	assistantMsg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           models.RoleAssistant,
		Content:        assistantText,
		Options:        options,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.db.AddMessage(assistantMsg); err != nil {
		return nil, err
	}

	logging.WithConversation(conversationID, persistedStep).Debug("turn processed",
		"complete", isComplete)

	return &models.SendMessageResponse{
		UserMessageID:      userMsg.ID,
		AssistantMessageID: assistantMsg.ID,
		AssistantMessage:   assistantText,
		Options:            options,
		IsComplete:         isComplete,
	}, nil
}

// GetConversation returns the full conversation with ordered messages
func (s *ChatService) GetConversation(conversationID string) (*models.Conversation, error) {
	return s.db.GetConversation(conversationID)
}

// nextQuestion phrases the outward question for the step the transition chose.
// The language-test branches live here: "Not yet" skips straight to
// standardized tests and "Other" asks for a free-text name+score while the
// cursor stays at LANGUAGE_SCORE.
func (s *ChatService) nextQuestion(profile map[string]any, nextStep string) (text string, options []string, persistedStep string, isComplete bool) {
	switch nextStep {
	case models.StepComplete:
		return messageComplete, nil, models.StepComplete, true

	case models.StepCountryOther:
		return questionCountryOther, nil, models.StepCountryOther, false

	case models.StepGPAScore:
		return questionGPAScore, nil, models.StepGPAScore, false

	case models.StepLanguageScore:
		testName, _ := profile["languageTest"].(string)
		switch {
		case strings.EqualFold(testName, "Not yet"):
			return questionStandardizedTests, nil, models.StepStandardizedTests, false
		case strings.EqualFold(testName, "Other"):
			return questionLanguageOther, nil, models.StepLanguageScore, false
		default:
			return fmt.Sprintf("What is your %s score?", testName), nil, models.StepLanguageScore, false
		}

	case models.StepStandardizedTests:
		return questionStandardizedTests, nil, models.StepStandardizedTests, false

	case models.StepAdditionalInfo:
		return questionAdditionalInfo, nil, models.StepAdditionalInfo, false

	default:
		q, ok := questionFlow[nextStep]
		if !ok {
			// Defensive recovery: unknown step restarts the flow
			q = questionFlow[models.StepCountry]
			nextStep = models.StepCountry
		}
		return q.Text, q.Options, nextStep, false
	}
}

// ProcessAnswer is the pure transition function of the conversation state
// machine: (accumulator, step, answer) -> (updated accumulator, next step).
// It never mutates its input.
func ProcessAnswer(profile map[string]any, currentStep, answer string) (map[string]any, string) {
	updated := make(map[string]any, len(profile)+1)
	for k, v := range profile {
		updated[k] = v
	}

	switch currentStep {
	case models.StepCountry:
		cleaned := stripFlagEmoji(answer)
		if cleaned == otherCountrySentinel {
			return updated, models.StepCountryOther
		}
		updated["country"] = cleaned
		return updated, models.StepDegreeLevel

	case models.StepCountryOther:
		updated["country"] = answer
		return updated, models.StepDegreeLevel

	case models.StepDegreeLevel:
		updated["degreeLevel"] = answer
		return updated, models.StepCurrentEducation

	case models.StepCurrentEducation:
		updated["currentEducation"] = answer
		return updated, models.StepGPAScore

	case models.StepGPAScore:
		updated["gpaScore"] = answer
		return updated, models.StepLanguageTest

	case models.StepLanguageTest:
		updated["languageTest"] = answer
		return updated, models.StepLanguageScore

	case models.StepLanguageScore:
		updated["languageScore"] = answer
		return updated, models.StepStandardizedTests

	case models.StepStandardizedTests:
		if !strings.EqualFold(answer, "none") {
			updated["standardizedTests"] = answer
		}
		return updated, models.StepAdditionalInfo

	case models.StepAdditionalInfo:
		if !strings.EqualFold(answer, "no") {
			updated["additionalInfo"] = answer
		}
		return updated, models.StepComplete

	default:
		// Defensive recovery, not a normal path
		return updated, models.StepCountry
	}
}

// stripFlagEmoji removes flag-emoji decoration (regional indicator pairs and
// the globe) from a button answer, leaving the plain country name
func stripFlagEmoji(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 0x1F1E6 && r <= 0x1F1FF {
			continue // regional indicator symbols (flag pairs)
		}
		if r == 0x1F30D || r == 0x1F30E || r == 0x1F30F {
			continue // globe emoji
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
