package services

import (
	"os"
	"testing"

	"studyyatra/internal/database"
	"studyyatra/internal/models"
)

func setupTestDBForChat(t *testing.T) (*database.DB, func()) {
	tmpFile := "test_chat_service.db"
	db, err := database.New(tmpFile)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	if err := db.Initialize(); err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.Remove(tmpFile)
	}

	return db, cleanup
}

func TestProcessAnswerTransitions(t *testing.T) {
	tests := []struct {
		name       string
		step       string
		answer     string
		wantStep   string
		wantKey    string
		wantValue  string
		wantAbsent bool
	}{
		{
			name:      "country button strips flag emoji",
			step:      models.StepCountry,
			answer:    "🇨🇦 Canada",
			wantStep:  models.StepDegreeLevel,
			wantKey:   "country",
			wantValue: "Canada",
		},
		{
			name:       "other country detours without recording",
			step:       models.StepCountry,
			answer:     "🌍 Other Country",
			wantStep:   models.StepCountryOther,
			wantKey:    "country",
			wantAbsent: true,
		},
		{
			name:      "typed country recorded verbatim",
			step:      models.StepCountryOther,
			answer:    "Netherlands",
			wantStep:  models.StepDegreeLevel,
			wantKey:   "country",
			wantValue: "Netherlands",
		},
		{
			name:      "degree level advances to education",
			step:      models.StepDegreeLevel,
			answer:    "Master's",
			wantStep:  models.StepCurrentEducation,
			wantKey:   "degreeLevel",
			wantValue: "Master's",
		},
		{
			name:      "gpa answer stored raw",
			step:      models.StepGPAScore,
			answer:    "3.5/4.0",
			wantStep:  models.StepLanguageTest,
			wantKey:   "gpaScore",
			wantValue: "3.5/4.0",
		},
		{
			name:      "language test choice goes to score",
			step:      models.StepLanguageTest,
			answer:    "IELTS",
			wantStep:  models.StepLanguageScore,
			wantKey:   "languageTest",
			wantValue: "IELTS",
		},
		{
			name:       "none skips standardized tests recording",
			step:       models.StepStandardizedTests,
			answer:     "None",
			wantStep:   models.StepAdditionalInfo,
			wantKey:    "standardizedTests",
			wantAbsent: true,
		},
		{
			name:      "standardized tests recorded when given",
			step:      models.StepStandardizedTests,
			answer:    "GRE 320",
			wantStep:  models.StepAdditionalInfo,
			wantKey:   "standardizedTests",
			wantValue: "GRE 320",
		},
		{
			name:       "no skips additional info recording",
			step:       models.StepAdditionalInfo,
			answer:     "no",
			wantStep:   models.StepComplete,
			wantKey:    "additionalInfo",
			wantAbsent: true,
		},
		{
			name:      "additional info recorded and completes",
			step:      models.StepAdditionalInfo,
			answer:    "2 years work experience",
			wantStep:  models.StepComplete,
			wantKey:   "additionalInfo",
			wantValue: "2 years work experience",
		},
		{
			name:       "unknown step restarts the flow",
			step:       "BOGUS_STEP",
			answer:     "anything",
			wantStep:   models.StepCountry,
			wantKey:    "anything",
			wantAbsent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile, nextStep := ProcessAnswer(map[string]any{}, tt.step, tt.answer)

			if nextStep != tt.wantStep {
				t.Errorf("next step = %q, want %q", nextStep, tt.wantStep)
			}

			got, ok := profile[tt.wantKey]
			if tt.wantAbsent {
				if ok {
					t.Errorf("profile[%q] = %v, want absent", tt.wantKey, got)
				}
				return
			}
			if !ok || got != tt.wantValue {
				t.Errorf("profile[%q] = %v, want %q", tt.wantKey, got, tt.wantValue)
			}
		})
	}
}

func TestProcessAnswerDoesNotMutateInput(t *testing.T) {
	original := map[string]any{"country": "Canada"}

	updated, _ := ProcessAnswer(original, models.StepDegreeLevel, "PhD")

	if _, ok := original["degreeLevel"]; ok {
		t.Error("input profile was mutated")
	}
	if updated["country"] != "Canada" {
		t.Error("existing keys were not carried over")
	}
}

func TestProcessAnswerDeterministic(t *testing.T) {
	p1, s1 := ProcessAnswer(map[string]any{"country": "UK"}, models.StepDegreeLevel, "Master's")
	p2, s2 := ProcessAnswer(map[string]any{"country": "UK"}, models.StepDegreeLevel, "Master's")

	if s1 != s2 {
		t.Errorf("steps differ: %q vs %q", s1, s2)
	}
	if p1["degreeLevel"] != p2["degreeLevel"] || p1["country"] != p2["country"] {
		t.Error("repeated transitions produced different profiles")
	}
}

func TestStripFlagEmoji(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"🇨🇦 Canada", "Canada"},
		{"🇬🇧 UK", "UK"},
		{"🌍 Other Country", "Other Country"},
		{"Germany", "Germany"},
	}

	for _, tt := range tests {
		if got := stripFlagEmoji(tt.in); got != tt.want {
			t.Errorf("stripFlagEmoji(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStartConversation(t *testing.T) {
	db, cleanup := setupTestDBForChat(t)
	defer cleanup()

	service := NewChatService(db)

	resp, err := service.StartConversation()
	if err != nil {
		t.Fatalf("StartConversation failed: %v", err)
	}
	if resp.ConversationID == "" {
		t.Error("expected a conversation id")
	}
	if resp.Message != questionFlow[models.StepCountry].Text {
		t.Errorf("first question = %q", resp.Message)
	}
	if len(resp.Options) == 0 {
		t.Error("expected country options")
	}

	conv, err := service.GetConversation(resp.ConversationID)
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if conv.Step != models.StepCountry {
		t.Errorf("step = %q, want %q", conv.Step, models.StepCountry)
	}
	if len(conv.Messages) != 1 || conv.Messages[0].Role != models.RoleAssistant {
		t.Errorf("expected one assistant message, got %d messages", len(conv.Messages))
	}
}

func TestSendMessageUnknownConversation(t *testing.T) {
	db, cleanup := setupTestDBForChat(t)
	defer cleanup()

	service := NewChatService(db)

	_, err := service.SendMessage("no-such-id", "hello")
	if err != database.ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestFullConversationWalk(t *testing.T) {
	db, cleanup := setupTestDBForChat(t)
	defer cleanup()

	service := NewChatService(db)

	start, err := service.StartConversation()
	if err != nil {
		t.Fatalf("StartConversation failed: %v", err)
	}

	answers := []string{
		"🇨🇦 Canada",
		"Master's",
		"Bachelor's Degree",
		"85%",
		"IELTS",
		"7.5",
		"None",
		"No",
	}

	var last *models.SendMessageResponse
	for i, answer := range answers {
		last, err = service.SendMessage(start.ConversationID, answer)
		if err != nil {
			t.Fatalf("SendMessage(%d, %q) failed: %v", i, answer, err)
		}
		if i < len(answers)-1 && last.IsComplete {
			t.Fatalf("conversation completed early at answer %d", i)
		}
	}

	if !last.IsComplete {
		t.Fatal("conversation did not complete after final answer")
	}
	if last.AssistantMessage != messageComplete {
		t.Errorf("final message = %q", last.AssistantMessage)
	}

	conv, err := service.GetConversation(start.ConversationID)
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if !conv.IsComplete || conv.Stage != models.StageComplete {
		t.Error("conversation not marked complete")
	}
	if conv.Profile["country"] != "Canada" {
		t.Errorf("country = %v", conv.Profile["country"])
	}
	if conv.Profile["gpaScore"] != "85%" {
		t.Errorf("gpaScore = %v", conv.Profile["gpaScore"])
	}
	// 1 greeting + 8 user + 8 assistant
	if len(conv.Messages) != 17 {
		t.Errorf("message count = %d, want 17", len(conv.Messages))
	}
}

func TestLanguageTestNotYetSkipsScore(t *testing.T) {
	db, cleanup := setupTestDBForChat(t)
	defer cleanup()

	service := NewChatService(db)

	start, err := service.StartConversation()
	if err != nil {
		t.Fatalf("StartConversation failed: %v", err)
	}

	for _, answer := range []string{"🇦🇺 Australia", "Master's", "Bachelor's Degree", "3.2/4.0"} {
		if _, err := service.SendMessage(start.ConversationID, answer); err != nil {
			t.Fatalf("SendMessage(%q) failed: %v", answer, err)
		}
	}

	resp, err := service.SendMessage(start.ConversationID, "Not yet")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if resp.AssistantMessage != questionStandardizedTests {
		t.Errorf("expected standardized tests question, got %q", resp.AssistantMessage)
	}

	conv, _ := service.GetConversation(start.ConversationID)
	if conv.Step != models.StepStandardizedTests {
		t.Errorf("step = %q, want %q", conv.Step, models.StepStandardizedTests)
	}
}

func TestLanguageTestOtherAsksFreeText(t *testing.T) {
	db, cleanup := setupTestDBForChat(t)
	defer cleanup()

	service := NewChatService(db)

	start, err := service.StartConversation()
	if err != nil {
		t.Fatalf("StartConversation failed: %v", err)
	}

	for _, answer := range []string{"🇩🇪 Germany", "Master's", "Bachelor's Degree", "75%"} {
		if _, err := service.SendMessage(start.ConversationID, answer); err != nil {
			t.Fatalf("SendMessage(%q) failed: %v", answer, err)
		}
	}

	resp, err := service.SendMessage(start.ConversationID, "Other")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if resp.AssistantMessage != questionLanguageOther {
		t.Errorf("expected free-text test prompt, got %q", resp.AssistantMessage)
	}

	conv, _ := service.GetConversation(start.ConversationID)
	if conv.Step != models.StepLanguageScore {
		t.Errorf("step = %q, want %q", conv.Step, models.StepLanguageScore)
	}
}
