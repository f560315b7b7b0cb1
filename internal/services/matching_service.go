package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"studyyatra/internal/config"
	"studyyatra/internal/logging"
	"studyyatra/internal/models"
)

// completionClient is the completion capability the engine depends on
type completionClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	FastModel() string
	SmartModel() string
}

// universitySearcher is the web search capability the engine depends on
type universitySearcher interface {
	SearchUniversityInfo(ctx context.Context, university, program string, infoType UniversityInfoType) []SearchResult
}

const (
	quickCacheSuffix = ":quick"
	topMatchCount    = 3

	disclaimerVerified   = "Data verified from web search where possible. Always confirm on official university website."
	disclaimerUnverified = "Data based on AI knowledge. Verify current fees and requirements on official websites."
	disclaimerQuick      = "Preliminary matches. Verify all information on official university websites."
	disclaimerEmpty      = "Try adjusting preferences for more options."

	insightQuick   = "Quick results based on AI knowledge. Use full matching for verified data."
	insightNoMatch = "No matches found. Consider expanding country preferences or adjusting budget."
)

// MatchingService turns a canonical student profile into ranked university
// matches: knowledge-based generation via the completion capability,
// optionally cross-checked against live web search, cached by profile
// fingerprint.
type MatchingService struct {
	completion completionClient
	search     universitySearcher
	cache      *matchCache
	rates      *config.RateTable

	verifyLimiter *rate.Limiter // paces per-match verification rounds

	mu           sync.Mutex
	verification bool
}

// NewMatchingService creates the matching engine. Verification is a runtime
// toggle, off by default unless enabled in config.
func NewMatchingService(completion completionClient, search universitySearcher, rates *config.RateTable, cfg *config.Config) *MatchingService {
	return &MatchingService{
		completion:    completion,
		search:        search,
		cache:         newMatchCache(cfg.MatchCacheMaxSize, cfg.MatchCacheTTL, time.Now),
		rates:         rates,
		verifyLimiter: rate.NewLimiter(rate.Every(cfg.VerifyDelay), 1),
		verification:  cfg.VerificationEnabled,
	}
}

// FindMatches runs the full pipeline: cache check, knowledge generation,
// optional web verification, insights. The second return reports whether the
// result came from the cache.
func (s *MatchingService) FindMatches(ctx context.Context, profile *models.StudentProfile) (*models.MatchResult, bool, error) {
	key := Fingerprint(profile)
	logger := logging.WithMatching(key, false)

	if cached, ok := s.cache.get(key); ok {
		logger.Info("cache hit")
		if m := GetMetrics(); m != nil {
			m.CacheHits.Inc()
		}
		return cached, true, nil
	}

	matches, err := s.generateFromKnowledge(ctx, profile)
	if err != nil {
		return nil, false, err
	}

	if len(matches) == 0 {
		// Not cached: a later retry may legitimately produce matches
		logger.Warn("generation produced no matches")
		return s.emptyResult(profile, insightNoMatch), false, nil
	}

	searchesUsed := 0
	if s.VerificationEnabled() {
		matches, searchesUsed = s.verifyTopMatches(ctx, profile, matches)
	}

	matches = normalizeRanks(truncateMatches(matches, topMatchCount))

	disclaimer := disclaimerUnverified
	if searchesUsed > 0 {
		disclaimer = disclaimerVerified
	}

	result := &models.MatchResult{
		Matches:        matches,
		ProfileSummary: createProfileSummary(profile),
		Insights:       extractInsights(matches, profile),
		Disclaimer:     disclaimer,
		GeneratedAt:    time.Now().UTC(),
		SearchesUsed:   searchesUsed,
	}

	s.cache.set(key, result)
	logger.Info("matches generated", "count", len(matches), "searches", searchesUsed)

	return result, false, nil
}

// FindMatchesQuick runs knowledge generation only. Results are cached under a
// distinct key suffix so quick and full results never collide; verification
// never runs regardless of the toggle.
func (s *MatchingService) FindMatchesQuick(ctx context.Context, profile *models.StudentProfile) (*models.MatchResult, bool, error) {
	key := Fingerprint(profile) + quickCacheSuffix

	if cached, ok := s.cache.get(key); ok {
		if m := GetMetrics(); m != nil {
			m.CacheHits.Inc()
		}
		return cached, true, nil
	}

	matches, err := s.generateFromKnowledge(ctx, profile)
	if err != nil {
		return nil, false, err
	}
	if len(matches) == 0 {
		return s.emptyResult(profile, insightNoMatch), false, nil
	}

	result := &models.MatchResult{
		Matches:        normalizeRanks(truncateMatches(matches, topMatchCount)),
		ProfileSummary: createProfileSummary(profile),
		Insights:       []string{insightQuick},
		Disclaimer:     disclaimerQuick,
		GeneratedAt:    time.Now().UTC(),
		SearchesUsed:   0,
	}

	s.cache.set(key, result)
	return result, false, nil
}

// GetCacheStats returns cache size, cap and TTL for monitoring
func (s *MatchingService) GetCacheStats() models.CacheStats {
	return s.cache.stats()
}

// PruneCache drops expired cache entries and returns how many were removed
func (s *MatchingService) PruneCache() int {
	return s.cache.prune()
}

// SetVerificationEnabled toggles web verification. Takes effect on the next
// FindMatches call; existing cache entries are untouched.
func (s *MatchingService) SetVerificationEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verification = enabled
}

// VerificationEnabled reports the current toggle state
func (s *MatchingService) VerificationEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verification
}

// generateFromKnowledge issues one completion call constrained to return
// exactly 3 ranked universities as JSON. A malformed response degrades to an
// empty match list; a transport-level failure becomes a MatchingError.
func (s *MatchingService) generateFromKnowledge(ctx context.Context, profile *models.StudentProfile) ([]models.UniversityMatch, error) {
	content, err := s.completion.Complete(ctx, CompletionRequest{
		SystemPrompt: s.knowledgeSystemPrompt(),
		UserPrompt:   s.buildProfilePrompt(profile),
		Model:        s.completion.FastModel(),
		Temperature:  0.3,
		MaxTokens:    1500,
		JSONMode:     true,
	})
	if err != nil {
		var configErr *ConfigurationError
		if errors.As(err, &configErr) {
			return nil, err
		}
		return nil, &MatchingError{Stage: "generation", Err: err}
	}

	return parseKnowledgeResponse(content), nil
}

func (s *MatchingService) knowledgeSystemPrompt() string {
	return fmt.Sprintf(`Expert counselor. Return TOP 3 best universities for student.

RULES:
1. LOCATION: If "STRICT LOCATION" specified, ONLY that location
2. BUDGET: Tuition must be <= max budget
3. Use native currency (USA=USD, Canada=CAD, UK=GBP, Australia=AUD)
4. Exactly 3 universities
5. Categories: SAFETY(75-100), TARGET(50-74), REACH(30-49) by admission chance

Scholarships: Top 2 with amounts. Ex: ["Merit $10k/yr","Intl $5-15k"]

Rates: %s

JSON: {"matches":[{rank,university,country,city,program,level,duration,tuition:{amount,currency,inNPR,verified:false},requirements:{minGPA,ieltsMin,gmatRequired,workExpYears,verified:false},matchScore,category,admissionChance:0-100,prPathway:{strength:0-100,details,postStudyWork},scholarships:{available,topScholarships[]}}],"insights":[2]}

Real universities. TOP 3 only. Conservative costs.`, s.rates.PromptLine())
}

func (s *MatchingService) buildProfilePrompt(profile *models.StudentProfile) string {
	budget := profile.BudgetNPR
	if budget == 0 {
		budget = defaultBudgetNPR
	}
	usdRate, _ := s.rates.Get("USD")
	budgetDisplay := fmt.Sprintf("NPR %.1f Lakhs (~USD %d)", float64(budget)/100000, int(float64(budget)/(usdRate*1000))*1000)
	if profile.BudgetAmount > 0 && profile.BudgetCurrency != "" {
		budgetDisplay = fmt.Sprintf("%s %d MAXIMUM (user-specified constraint)", profile.BudgetCurrency, profile.BudgetAmount)
	}

	score := "N/A"
	if profile.Percentage != nil {
		score = fmt.Sprintf("%g%%", *profile.Percentage)
	} else if profile.GPA != nil {
		score = fmt.Sprintf("%gGPA", *profile.GPA)
	}

	test := "No test"
	if profile.Tests != nil {
		test = fmt.Sprintf("%s %g", profile.Tests.Type, profile.Tests.OverallScore)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Level: %s | Field: %s\n", orDefault(profile.StudyLevel, "Masters"), orDefault(profile.FieldOfStudy, "Any"))
	fmt.Fprintf(&b, "Countries: %s", strings.Join(profile.PreferredCountries, ","))
	if profile.PreferredState != "" {
		fmt.Fprintf(&b, "\nSTRICT LOCATION: %s ONLY!", profile.PreferredState)
	}
	fmt.Fprintf(&b, "\nScore: %s | %s\n", score, test)
	fmt.Fprintf(&b, "Work: %dyr", profile.WorkExperienceYears)
	if profile.GMAT != nil {
		fmt.Fprintf(&b, " | GMAT:%d", *profile.GMAT)
	}
	fmt.Fprintf(&b, "\nBUDGET: %s\n", budgetDisplay)
	b.WriteString("Return 3 matches JSON.")
	return b.String()
}

// parseKnowledgeResponse decodes the generation payload. Any parse failure
// degrades to an empty match list rather than propagating an error.
func parseKnowledgeResponse(content string) []models.UniversityMatch {
	var payload struct {
		Matches []models.UniversityMatch `json:"matches"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		log.Printf("⚠️ [MATCHING] Failed to parse generation response: %v", err)
		return nil
	}
	return payload.Matches
}

// verifyTopMatches runs the best-effort verification pass: two searches and
// one completion per match, sequentially, paced to avoid overwhelming the
// search backend. A failure for an individual match keeps that match
// unmodified; verification is never fatal to the overall request.
func (s *MatchingService) verifyTopMatches(ctx context.Context, profile *models.StudentProfile, matches []models.UniversityMatch) ([]models.UniversityMatch, int) {
	top := truncateMatches(matches, topMatchCount)
	verified := make([]models.UniversityMatch, 0, len(top))
	searches := 0

	for _, match := range top {
		if err := s.verifyLimiter.Wait(ctx); err != nil {
			verified = append(verified, match)
			continue
		}

		tuitionResults := s.search.SearchUniversityInfo(ctx, match.University, match.Program, InfoTuition)
		searches++
		reqResults := s.search.SearchUniversityInfo(ctx, match.University, match.Program, InfoRequirements)
		searches++

		updated, err := s.analyzeSearchResults(ctx, match, profile, tuitionResults, reqResults)
		if err != nil {
			log.Printf("⚠️ [VERIFY] Failed for %s: %v", match.University, err)
			verified = append(verified, match)
			continue
		}
		verified = append(verified, updated)
	}

	return verified, searches
}

// verifiedUpdate is the verification completion payload. Pointer fields so
// omitted values never overwrite the original match data.
type verifiedUpdate struct {
	Tuition *struct {
		Amount   *float64 `json:"amount"`
		Currency *string  `json:"currency"`
		InNPR    *float64 `json:"inNPR"`
		Source   *string  `json:"source"`
		Verified *bool    `json:"verified"`
	} `json:"tuition"`
	Requirements *struct {
		MinPercentage *float64 `json:"minPercentage"`
		IELTSMin      *float64 `json:"ieltsMin"`
		GMATRequired  *bool    `json:"gmatRequired"`
		WorkExpYears  *int     `json:"workExpYears"`
		Source        *string  `json:"source"`
		Verified      *bool    `json:"verified"`
	} `json:"requirements"`
	OfficialURL     string                `json:"officialUrl"`
	Deadline        string                `json:"deadline"`
	UpdatedAnalysis *models.MatchAnalysis `json:"updatedAnalysis"`
}

func (s *MatchingService) analyzeSearchResults(ctx context.Context, match models.UniversityMatch, profile *models.StudentProfile, tuitionResults, reqResults []SearchResult) (models.UniversityMatch, error) {
	prompt := buildVerificationPrompt(match, profile, tuitionResults, reqResults)

	content, err := s.completion.Complete(ctx, CompletionRequest{
		SystemPrompt: "You are analyzing search results to verify university data. Extract factual information from official sources only.",
		UserPrompt:   prompt,
		Model:        s.completion.FastModel(),
		Temperature:  0.1,
		MaxTokens:    1024,
		JSONMode:     true,
	})
	if err != nil {
		return match, err
	}

	var update verifiedUpdate
	if err := json.Unmarshal([]byte(content), &update); err != nil {
		return match, fmt.Errorf("failed to parse verification response: %w", err)
	}

	// Merge: original values are kept wherever the verification pass omits a field
	if t := update.Tuition; t != nil {
		if t.Amount != nil {
			match.Tuition.Amount = *t.Amount
		}
		if t.Currency != nil {
			match.Tuition.Currency = *t.Currency
		}
		if t.InNPR != nil {
			match.Tuition.InNPR = *t.InNPR
		}
		if t.Source != nil {
			match.Tuition.Source = *t.Source
		}
		if t.Verified != nil {
			match.Tuition.Verified = *t.Verified
		}
	}
	if r := update.Requirements; r != nil {
		if r.MinPercentage != nil {
			match.Requirements.MinPercentage = r.MinPercentage
		}
		if r.IELTSMin != nil {
			match.Requirements.IELTSMin = r.IELTSMin
		}
		if r.GMATRequired != nil {
			match.Requirements.GMATRequired = *r.GMATRequired
		}
		if r.WorkExpYears != nil {
			match.Requirements.WorkExpYears = *r.WorkExpYears
		}
		if r.Source != nil {
			match.Requirements.Source = *r.Source
		}
		if r.Verified != nil {
			match.Requirements.Verified = *r.Verified
		}
	}
	if update.OfficialURL != "" {
		match.OfficialURL = update.OfficialURL
	}
	if update.Deadline != "" {
		match.Deadline = update.Deadline
	}
	if update.UpdatedAnalysis != nil {
		match.Analysis = update.UpdatedAnalysis
	}
	match.LastVerified = time.Now().UTC().Format("2006-01-02")

	return match, nil
}

func buildVerificationPrompt(match models.UniversityMatch, profile *models.StudentProfile, tuitionResults, reqResults []SearchResult) string {
	var b strings.Builder
	b.WriteString("Analyze these search results to verify/update university information.\n\n")
	b.WriteString("ORIGINAL DATA:\n")
	fmt.Fprintf(&b, "University: %s\nProgram: %s\n", match.University, match.Program)
	fmt.Fprintf(&b, "Tuition: %s %g\n", match.Tuition.Currency, match.Tuition.Amount)
	if match.Requirements.IELTSMin != nil {
		fmt.Fprintf(&b, "IELTS Required: %g\n", *match.Requirements.IELTSMin)
	}
	fmt.Fprintf(&b, "GMAT Required: %t\n", match.Requirements.GMATRequired)

	b.WriteString("\nSEARCH RESULTS FOR TUITION:\n")
	writeSearchResults(&b, tuitionResults)
	b.WriteString("\nSEARCH RESULTS FOR REQUIREMENTS:\n")
	writeSearchResults(&b, reqResults)

	budget := profile.BudgetNPR
	if budget == 0 {
		budget = defaultBudgetNPR
	}
	fmt.Fprintf(&b, "\nSTUDENT BUDGET: NPR %.0f Lakhs\n", float64(budget)/100000)

	b.WriteString(`
Based on the search results:
1. Update tuition if you find more recent/accurate data
2. Update requirements if found
3. Extract official URL if available
4. Update analysis based on verified data

Return JSON with keys: tuition {amount, currency, inNPR, source, verified}, requirements {minPercentage, ieltsMin, gmatRequired, workExpYears, source, verified}, officialUrl, deadline, updatedAnalysis {strengths[], concerns[], budgetFit, recommendation}. Omit anything the results do not support.`)

	return b.String()
}

func writeSearchResults(b *strings.Builder, results []SearchResult) {
	for _, r := range results {
		fmt.Fprintf(b, "- %s\n  URL: %s\n  %s\n\n", r.Title, r.URL, r.Snippet)
	}
}

// extractInsights derives text observations from a match list and profile.
// An empty list short-circuits to a single explanatory insight.
func extractInsights(matches []models.UniversityMatch, profile *models.StudentProfile) []string {
	if len(matches) == 0 {
		return []string{insightNoMatch}
	}

	var insights []string

	safetyCount := 0
	reachCount := 0
	for _, m := range matches {
		switch m.Category {
		case models.CategorySafety:
			safetyCount++
		case models.CategoryReach, models.CategoryDream:
			reachCount++
		}
	}

	if safetyCount >= 2 {
		insights = append(insights, fmt.Sprintf("You have %d SAFETY schools with high admission chances.", safetyCount))
	}
	if reachCount > safetyCount {
		insights = append(insights, "Many competitive matches. Consider improving test scores for better chances.")
	}

	if profile.BudgetNPR > 0 {
		withinBudget := 0
		for _, m := range matches {
			if m.Tuition.InNPR <= float64(profile.BudgetNPR) {
				withinBudget++
			}
		}
		if withinBudget*2 < len(matches) {
			insights = append(insights, "Most programs exceed tuition budget. Education loans are common and have good terms.")
		}
	}

	if profile.CareerGoal == models.CareerGoalPRPathway {
		strongPR := 0
		for _, m := range matches {
			if m.PRPathway.Strength >= 80 {
				strongPR++
			}
		}
		if strongPR >= 2 {
			insights = append(insights, "Good PR pathway options available. Canada and Australia have best outcomes.")
		}
	}

	return insights
}

// SummarizeProfile renders the human-readable recap attached to every match
// result, including degraded empty results built outside the engine.
func SummarizeProfile(profile *models.StudentProfile) models.ProfileSummary {
	return createProfileSummary(profile)
}

func createProfileSummary(profile *models.StudentProfile) models.ProfileSummary {
	academicScore := "Not specified"
	if profile.Percentage != nil {
		academicScore = fmt.Sprintf("%g%%", *profile.Percentage)
	} else if profile.GPA != nil {
		academicScore = fmt.Sprintf("%g GPA", *profile.GPA)
	}

	english := "Not taken"
	if profile.Tests != nil {
		english = fmt.Sprintf("%s %g", profile.Tests.Type, profile.Tests.OverallScore)
	}

	return models.ProfileSummary{
		StudyLevel:     profile.StudyLevel,
		Field:          profile.FieldOfStudy,
		Countries:      profile.PreferredCountries,
		AcademicScore:  academicScore,
		EnglishTest:    english,
		WorkExperience: fmt.Sprintf("%d years", profile.WorkExperienceYears),
		Budget:         fmt.Sprintf("NPR %.1f Lakhs", float64(profile.BudgetNPR)/100000),
		CareerGoal:     profile.CareerGoal,
	}
}

func (s *MatchingService) emptyResult(profile *models.StudentProfile, message string) *models.MatchResult {
	return &models.MatchResult{
		Matches:        []models.UniversityMatch{},
		ProfileSummary: createProfileSummary(profile),
		Insights:       []string{message},
		Disclaimer:     disclaimerEmpty,
		GeneratedAt:    time.Now().UTC(),
	}
}

// Fingerprint derives the deterministic cache key from the matching-relevant
// subset of a profile. Budget is bucketed to the nearest 500,000 NPR, the
// academic score to the nearest 5 points and the test score to the nearest
// 0.5 so near-identical profiles share cached results.
func Fingerprint(profile *models.StudentProfile) string {
	countries := append([]string(nil), profile.PreferredCountries...)
	sort.Strings(countries)
	countryKey := strings.Join(countries, ",")
	if countryKey == "" {
		countryKey = "ALL"
	}

	budget := profile.BudgetNPR
	if budget == 0 {
		budget = defaultBudgetNPR
	}

	// GPA-only profiles map onto the same percentage scale (4.0 -> 100)
	// so they do not all collapse into the default bucket
	score := 60.0
	if profile.Percentage != nil {
		score = *profile.Percentage
	} else if profile.GPA != nil {
		score = *profile.GPA * 25
	}

	testType := "NONE"
	testScore := 6.0
	if profile.Tests != nil {
		testType = profile.Tests.Type
		if profile.Tests.OverallScore > 0 {
			testScore = profile.Tests.OverallScore
		}
	}

	return strings.Join([]string{
		orDefault(profile.StudyLevel, models.StudyLevelMasters),
		orDefault(profile.FieldOfStudy, "ANY"),
		countryKey,
		orDefault(profile.PreferredState, "ANY"),
		fmt.Sprintf("%d", int64(math.Round(float64(budget)/500000))*500000),
		fmt.Sprintf("%d", int(math.Round(score/5))*5),
		testType,
		fmt.Sprintf("%g", math.Round(testScore*2)/2),
		orDefault(profile.CareerGoal, models.CareerGoalFlexible),
	}, "|")
}

func truncateMatches(matches []models.UniversityMatch, n int) []models.UniversityMatch {
	if len(matches) <= n {
		return matches
	}
	return matches[:n]
}

// normalizeRanks enforces the rank contract: dense, unique, starting at 1
func normalizeRanks(matches []models.UniversityMatch) []models.UniversityMatch {
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Rank < matches[j].Rank })
	for i := range matches {
		matches[i].Rank = i + 1
	}
	return matches
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
