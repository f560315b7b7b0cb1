package models

import "time"

// Match categories, ordered by decreasing admission likelihood
const (
	CategorySafety = "SAFETY"
	CategoryTarget = "TARGET"
	CategoryReach  = "REACH"
	CategoryDream  = "DREAM"
)

// Tuition holds program cost in the university's native currency plus the
// NPR conversion used for budget comparison
type Tuition struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	InNPR    float64 `json:"inNPR"`
	Source   string  `json:"source,omitempty"`
	Verified bool    `json:"verified"`
}

// Requirements holds admission minimums for a program
type Requirements struct {
	MinPercentage *float64 `json:"minPercentage,omitempty"`
	MinGPA        *float64 `json:"minGPA,omitempty"`
	IELTSMin      *float64 `json:"ieltsMin,omitempty"`
	PTEMin        *float64 `json:"pteMin,omitempty"`
	GMATRequired  bool     `json:"gmatRequired"`
	GMATMin       *int     `json:"gmatMin,omitempty"`
	WorkExpYears  int      `json:"workExpYears"`
	Source        string   `json:"source,omitempty"`
	Verified      bool     `json:"verified"`
}

// PRPathway assesses post-study immigration prospects for the host country
type PRPathway struct {
	Strength      int    `json:"strength"` // 0-100
	Details       string `json:"details"`
	PostStudyWork string `json:"postStudyWork"`
}

// Scholarships summarizes funding options for a match
type Scholarships struct {
	Available       bool     `json:"available"`
	TopScholarships []string `json:"topScholarships"`
}

// MatchAnalysis is the optional per-match narrative produced by verification
type MatchAnalysis struct {
	Strengths      []string `json:"strengths"`
	Concerns       []string `json:"concerns"`
	BudgetFit      string   `json:"budgetFit"`
	Recommendation string   `json:"recommendation"`
}

// UniversityMatch is one ranked recommendation
type UniversityMatch struct {
	Rank       int    `json:"rank"`
	University string `json:"university"`
	Country    string `json:"country"`
	City       string `json:"city"`
	Program    string `json:"program"`
	Level      string `json:"level"`
	Duration   string `json:"duration"`

	Tuition      Tuition      `json:"tuition"`
	Requirements Requirements `json:"requirements"`

	MatchScore      int    `json:"matchScore"`      // 0-100
	Category        string `json:"category"`        // SAFETY/TARGET/REACH/DREAM
	AdmissionChance int    `json:"admissionChance"` // 0-100

	PRPathway    PRPathway    `json:"prPathway"`
	Scholarships Scholarships `json:"scholarships"`

	Analysis     *MatchAnalysis `json:"analysis,omitempty"`
	OfficialURL  string         `json:"officialUrl,omitempty"`
	Deadline     string         `json:"deadline,omitempty"`
	LastVerified string         `json:"lastVerified,omitempty"`
}

// ProfileSummary is the human-readable recap attached to every result
type ProfileSummary struct {
	StudyLevel     string   `json:"studyLevel"`
	Field          string   `json:"field,omitempty"`
	Countries      []string `json:"countries"`
	AcademicScore  string   `json:"academicScore"`
	EnglishTest    string   `json:"englishTest"`
	WorkExperience string   `json:"workExperience"`
	Budget         string   `json:"budget"`
	CareerGoal     string   `json:"careerGoal"`
}

// MatchResult is the outcome of one matching request
type MatchResult struct {
	Matches        []UniversityMatch `json:"matches"`
	ProfileSummary ProfileSummary    `json:"profileSummary"`
	Insights       []string          `json:"insights"`
	Disclaimer     string            `json:"disclaimer"`
	GeneratedAt    time.Time         `json:"generatedAt"`
	SearchesUsed   int               `json:"searchesUsed"`
}

// CacheStats is the introspection payload for the match cache
type CacheStats struct {
	Size    int     `json:"size"`
	MaxSize int     `json:"maxSize"`
	TTLDays float64 `json:"ttlDays"`
}
