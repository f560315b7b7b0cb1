package services

import (
	"reflect"
	"testing"

	"studyyatra/internal/models"
)

func TestNormalizeProfileEmptyInput(t *testing.T) {
	for _, input := range []map[string]any{nil, {}} {
		p := NormalizeProfile(input)

		if p.StudyLevel != models.StudyLevelMasters {
			t.Errorf("StudyLevel = %q, want MASTERS", p.StudyLevel)
		}
		if p.CareerGoal != models.CareerGoalFlexible {
			t.Errorf("CareerGoal = %q, want FLEXIBLE", p.CareerGoal)
		}
		if p.TargetIntake != defaultTargetIntake {
			t.Errorf("TargetIntake = %q", p.TargetIntake)
		}
		if p.BudgetNPR != defaultBudgetNPR {
			t.Errorf("BudgetNPR = %d", p.BudgetNPR)
		}
		if !p.WillingToLoan {
			t.Error("WillingToLoan should default true")
		}
		if !reflect.DeepEqual(p.PreferredCountries, defaultPreferredCountries) {
			t.Errorf("PreferredCountries = %v", p.PreferredCountries)
		}
		if p.Percentage != nil || p.GPA != nil || p.Tests != nil {
			t.Error("absent numerics should be nil")
		}
	}
}

func TestNormalizeProfileChatShape(t *testing.T) {
	p := NormalizeProfile(map[string]any{
		"country":          "Canada",
		"degreeLevel":      "Master's",
		"currentEducation": "Bachelor's Degree",
		"gpaScore":         "3.5/4.0",
		"languageTest":     "IELTS",
		"languageScore":    "7.5 overall",
	})

	if p.StudyLevel != "Master's" {
		t.Errorf("StudyLevel = %q", p.StudyLevel)
	}
	if p.CurrentDegree != "Bachelor's Degree" {
		t.Errorf("CurrentDegree = %q", p.CurrentDegree)
	}
	if p.GPA == nil || *p.GPA != 3.5 {
		t.Errorf("GPA = %v, want 3.5", p.GPA)
	}
	if p.Tests == nil || p.Tests.Type != "IELTS" || p.Tests.OverallScore != 7.5 {
		t.Errorf("Tests = %+v", p.Tests)
	}
	if !reflect.DeepEqual(p.PreferredCountries, []string{"CANADA"}) {
		t.Errorf("PreferredCountries = %v", p.PreferredCountries)
	}
}

func TestNormalizeProfilePercentage(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    float64
		wantNil bool
	}{
		{"plain number", 85.0, 85, false},
		{"string with percent", "85%", 85, false},
		{"string without percent", "72.5", 72.5, false},
		{"junk string", "not a number", 0, true},
		{"wrong type", []int{1}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NormalizeProfile(map[string]any{"percentage": tt.value})
			if tt.wantNil {
				if p.Percentage != nil {
					t.Errorf("Percentage = %v, want nil", *p.Percentage)
				}
				return
			}
			if p.Percentage == nil || *p.Percentage != tt.want {
				t.Errorf("Percentage = %v, want %v", p.Percentage, tt.want)
			}
		})
	}
}

func TestNormalizeProfileGPAFallsBackToChatAnswer(t *testing.T) {
	// Explicit gpa wins over gpaScore
	p := NormalizeProfile(map[string]any{"gpa": 3.8, "gpaScore": "2.0/4.0"})
	if p.GPA == nil || *p.GPA != 3.8 {
		t.Errorf("GPA = %v, want 3.8", p.GPA)
	}

	// gpaScore percentage form: trailing % stripped
	p = NormalizeProfile(map[string]any{"gpaScore": "85%"})
	if p.GPA == nil || *p.GPA != 85 {
		t.Errorf("GPA = %v, want 85", p.GPA)
	}
}

func TestNormalizeProfileNotYetLanguageTest(t *testing.T) {
	p := NormalizeProfile(map[string]any{
		"languageTest":  "Not yet",
		"languageScore": "7.0",
	})
	if p.Tests != nil {
		t.Errorf("Tests = %+v, want nil for untaken test", p.Tests)
	}
}

func TestNormalizeProfileTestsObject(t *testing.T) {
	p := NormalizeProfile(map[string]any{
		"tests": map[string]any{"type": "TOEFL", "overallScore": 102.0},
	})
	if p.Tests == nil || p.Tests.Type != "TOEFL" || p.Tests.OverallScore != 102 {
		t.Errorf("Tests = %+v", p.Tests)
	}
}

func TestNormalizeProfileCountryList(t *testing.T) {
	p := NormalizeProfile(map[string]any{
		"preferredCountries": []any{"USA", "Canada"},
	})
	if !reflect.DeepEqual(p.PreferredCountries, []string{"USA", "Canada"}) {
		t.Errorf("PreferredCountries = %v", p.PreferredCountries)
	}
}

func TestNormalizeProfileNeverPanicsOnJunk(t *testing.T) {
	junk := map[string]any{
		"studyLevel":          42,
		"percentage":          map[string]any{"nested": true},
		"gpaScore":            []string{"3.5"},
		"tests":               "IELTS",
		"preferredCountries":  7,
		"budgetNPR":           "lots",
		"workExperienceYears": struct{}{},
		"willingToLoan":       "yes",
	}

	p := NormalizeProfile(junk)
	if p == nil {
		t.Fatal("got nil profile")
	}
	if p.StudyLevel != models.StudyLevelMasters {
		t.Errorf("StudyLevel = %q, want default", p.StudyLevel)
	}
	if p.BudgetNPR != defaultBudgetNPR {
		t.Errorf("BudgetNPR = %d, want default", p.BudgetNPR)
	}
}
