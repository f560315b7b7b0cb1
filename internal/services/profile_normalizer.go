package services

import (
	"strconv"
	"strings"

	"studyyatra/internal/models"
)

// Normalization defaults applied when a field is absent from every input shape
const (
	defaultBudgetNPR    = 3_000_000
	defaultTargetIntake = "2026"
)

var defaultPreferredCountries = []string{"CANADA", "AUSTRALIA", "UK"}

// NormalizeProfile maps a loosely-typed record — the chat accumulator shape or
// a direct API payload — into a canonical StudentProfile. Field resolution
// order is canonical field, then chat-shape synonym, then coercion, then hard
// default. It is total: any plausible malformed input yields a profile, never
// a panic; unparseable numerics resolve to nil.
func NormalizeProfile(input map[string]any) *models.StudentProfile {
	if input == nil {
		input = map[string]any{}
	}

	p := &models.StudentProfile{
		StudyLevel:          firstString(input, "studyLevel", "degreeLevel"),
		FieldOfStudy:        firstString(input, "fieldOfStudy", "field"),
		CurrentDegree:       firstString(input, "currentDegree", "currentEducation"),
		University:          firstString(input, "university"),
		Percentage:          parsePercentage(input["percentage"]),
		GPA:                 parseGPA(input),
		GraduationYear:      toIntPtr(input["graduationYear"]),
		WorkExperienceField: firstString(input, "workExperienceField"),
		GMAT:                toIntPtr(input["gmat"]),
		GRE:                 toIntPtr(input["gre"]),
		CareerGoal:          firstString(input, "careerGoal"),
		PreferredState:      firstString(input, "preferredState"),
		TargetIntake:        firstString(input, "targetIntake", "timeline"),
		WillingToLoan:       boolOr(input["willingToLoan"], true),
		NeedsScholarship:    boolOr(input["needsScholarship"], false),
	}

	if p.StudyLevel == "" {
		p.StudyLevel = models.StudyLevelMasters
	}
	if p.CareerGoal == "" {
		p.CareerGoal = models.CareerGoalFlexible
	}
	if p.TargetIntake == "" {
		p.TargetIntake = defaultTargetIntake
	}

	if years := toIntPtr(firstPresent(input, "workExperienceYears", "workExp")); years != nil {
		p.WorkExperienceYears = *years
	}

	p.Tests = parseLanguageTests(input)
	p.PreferredCountries = parseCountries(input)
	p.BudgetNPR = parseBudget(input)

	return p
}

// parsePercentage strips a trailing "%" before numeric parsing
func parsePercentage(v any) *float64 {
	s, ok := coerceString(v)
	if !ok {
		return toFloatPtr(v)
	}
	return toFloatPtr(strings.TrimSuffix(strings.TrimSpace(s), "%"))
}

// parseGPA prefers an explicit gpa field, then the chat gpaScore answer.
// A "x/y" value keeps only the numerator.
func parseGPA(input map[string]any) *float64 {
	if gpa := toFloatPtr(input["gpa"]); gpa != nil {
		return gpa
	}
	s, ok := coerceString(input["gpaScore"])
	if !ok {
		return nil
	}
	numerator := strings.SplitN(s, "/", 2)[0]
	numerator = strings.TrimSuffix(strings.TrimSpace(numerator), "%")
	return toFloatPtr(numerator)
}

// parseLanguageTests accepts the canonical tests object or the chat
// languageTest/languageScore pair. "Not yet" means no test was taken.
func parseLanguageTests(input map[string]any) *models.LanguageTestResult {
	if tests, ok := input["tests"].(map[string]any); ok {
		testType, _ := coerceString(tests["type"])
		if testType != "" {
			result := &models.LanguageTestResult{Type: testType}
			if score := toFloatPtr(tests["overallScore"]); score != nil {
				result.OverallScore = *score
			}
			return result
		}
	}

	testType, _ := coerceString(input["languageTest"])
	if testType == "" || strings.EqualFold(testType, "Not yet") {
		return nil
	}
	result := &models.LanguageTestResult{Type: testType}
	if scoreStr, ok := coerceString(input["languageScore"]); ok {
		if score := toFloatPtr(leadingNumber(scoreStr)); score != nil {
			result.OverallScore = *score
		}
	} else if score := toFloatPtr(input["languageScore"]); score != nil {
		result.OverallScore = *score
	}
	return result
}

// parseCountries takes an explicit list, or upper-cases a single free-text
// country from chat into a one-element list, or applies the default trio.
func parseCountries(input map[string]any) []string {
	switch v := input["preferredCountries"].(type) {
	case []string:
		if len(v) > 0 {
			return v
		}
	case []any:
		countries := make([]string, 0, len(v))
		for _, c := range v {
			if s, ok := coerceString(c); ok && s != "" {
				countries = append(countries, s)
			}
		}
		if len(countries) > 0 {
			return countries
		}
	}

	if country, ok := coerceString(input["country"]); ok && strings.TrimSpace(country) != "" {
		return []string{strings.ToUpper(strings.TrimSpace(country))}
	}

	return append([]string(nil), defaultPreferredCountries...)
}

func parseBudget(input map[string]any) int64 {
	for _, key := range []string{"budgetNPR", "budget"} {
		if f := toFloatPtr(input[key]); f != nil && *f > 0 {
			return int64(*f)
		}
	}
	return defaultBudgetNPR
}

// firstString returns the first present key coercible to a non-empty string
func firstString(input map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := coerceString(input[key]); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func firstPresent(input map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := input[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func coerceString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// toFloatPtr coerces numbers and numeric strings; anything else is nil
func toFloatPtr(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case float32:
		f := float64(n)
		return &f
	case int:
		f := float64(n)
		return &f
	case int64:
		f := float64(n)
		return &f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

func toIntPtr(v any) *int {
	f := toFloatPtr(v)
	if f == nil {
		return nil
	}
	i := int(*f)
	return &i
}

func boolOr(v any, defaultValue bool) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return defaultValue
}

// leadingNumber extracts the first numeric token from a free-text answer
// like "7.5 overall" or "IELTS 7.5"
func leadingNumber(s string) string {
	for _, field := range strings.Fields(s) {
		trimmed := strings.Trim(field, ",;:")
		if _, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return trimmed
		}
	}
	return s
}
