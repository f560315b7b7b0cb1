package models

// Study levels
const (
	StudyLevelBachelors = "BACHELORS"
	StudyLevelMasters   = "MASTERS"
	StudyLevelMBA       = "MBA"
	StudyLevelPhD       = "PHD"
	StudyLevelDiploma   = "DIPLOMA"
)

// Career goals
const (
	CareerGoalPRPathway  = "PR_PATHWAY"
	CareerGoalWorkReturn = "WORK_RETURN"
	CareerGoalDegreeOnly = "DEGREE_ONLY"
	CareerGoalFlexible   = "FLEXIBLE"
)

// LanguageTestResult holds a language proficiency test type and overall score
type LanguageTestResult struct {
	Type         string  `json:"type"`
	OverallScore float64 `json:"overallScore"`
}

// StudentProfile is the canonical student record consumed by the matching
// engine. All fields are populated by NormalizeProfile before matching;
// nil pointer fields mean "not provided and no sensible default exists".
type StudentProfile struct {
	StudyLevel          string              `json:"studyLevel"`
	FieldOfStudy        string              `json:"fieldOfStudy,omitempty"`
	CurrentDegree       string              `json:"currentDegree,omitempty"`
	University          string              `json:"university,omitempty"`
	Percentage          *float64            `json:"percentage,omitempty"`
	GPA                 *float64            `json:"gpa,omitempty"`
	GraduationYear      *int                `json:"graduationYear,omitempty"`
	WorkExperienceYears int                 `json:"workExperienceYears"`
	WorkExperienceField string              `json:"workExperienceField,omitempty"`
	Tests               *LanguageTestResult `json:"tests,omitempty"`
	GMAT                *int                `json:"gmat,omitempty"`
	GRE                 *int                `json:"gre,omitempty"`
	CareerGoal          string              `json:"careerGoal"`
	PreferredCountries  []string            `json:"preferredCountries"`
	PreferredState      string              `json:"preferredState,omitempty"`
	TargetIntake        string              `json:"targetIntake"`
	BudgetNPR           int64               `json:"budgetNPR"`
	WillingToLoan       bool                `json:"willingToLoan"`
	NeedsScholarship    bool                `json:"needsScholarship"`

	// Filter overrides set on the conversation-derived matching path.
	// Never persisted back to the conversation record.
	BudgetAmount   int64  `json:"budgetAmount,omitempty"`
	BudgetCurrency string `json:"budgetCurrency,omitempty"`
}
