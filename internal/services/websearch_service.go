package services

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	cache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"studyyatra/internal/config"
)

// Search providers, in credential priority order
const (
	providerGoogle     = "google"
	providerBrave      = "brave"
	providerDuckDuckGo = "duckduckgo"
)

// UniversityInfoType selects a canned query template for SearchUniversityInfo
type UniversityInfoType string

const (
	InfoTuition      UniversityInfoType = "tuition"
	InfoRequirements UniversityInfoType = "requirements"
	InfoDeadlines    UniversityInfoType = "deadlines"
	InfoScholarships UniversityInfoType = "scholarships"
)

// SearchResult is one normalized web search hit
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// DuckDuckGo result extraction. The rendered page varies, so parsing tries
// the primary pattern first and falls back to the redirect-link pattern.
var (
	ddgPrimaryRe   = regexp.MustCompile(`(?s)<a class="result__a"[^>]*href="([^"]*)"[^>]*>(.*?)</a>.*?<a class="result__snippet"[^>]*>(.*?)</a>`)
	ddgSecondaryRe = regexp.MustCompile(`href="//duckduckgo\.com/l/\?uddg=([^&"]+)[^"]*"[^>]*class="result__a"[^>]*>([^<]+)`)
	ddgUddgRe      = regexp.MustCompile(`uddg=([^&]+)`)
	htmlTagRe      = regexp.MustCompile(`<[^>]*>`)
)

// WebSearchService issues queries against one of several interchangeable
// backends. Exactly one backend is active per process, chosen at startup by
// credential availability; DuckDuckGo needs no credentials and doubles as the
// fallback when the active backend fails or returns nothing.
//
// Search is best-effort: failures never escape this service, they degrade to
// an empty result list.
type WebSearchService struct {
	provider string

	googleAPIKey   string
	googleEngineID string
	braveAPIKey    string

	// Endpoints are fields so tests can point them at fixture servers
	googleEndpoint string
	braveEndpoint  string
	ddgEndpoint    string

	httpClient  *http.Client
	resultCache *cache.Cache
	limiter     *rate.Limiter // pacing for batched queries
}

// NewWebSearchService picks the search backend by credential availability:
// Google Custom Search > Brave > DuckDuckGo.
func NewWebSearchService(cfg *config.Config) *WebSearchService {
	s := &WebSearchService{
		googleAPIKey:   cfg.GoogleSearchAPIKey,
		googleEngineID: cfg.GoogleSearchEngineID,
		braveAPIKey:    cfg.BraveSearchAPIKey,
		googleEndpoint: "https://www.googleapis.com/customsearch/v1",
		braveEndpoint:  "https://api.search.brave.com/res/v1/web/search",
		ddgEndpoint:    "https://html.duckduckgo.com/html/",
		httpClient:     &http.Client{Timeout: cfg.CompletionTimeout},
		resultCache:    cache.New(cfg.SearchCacheTTL, cfg.SearchCacheTTL/2),
		limiter:        rate.NewLimiter(rate.Every(cfg.SearchDelay), 1),
	}

	switch {
	case s.googleAPIKey != "" && s.googleEngineID != "":
		s.provider = providerGoogle
		log.Println("🔍 [SEARCH] Using Google Custom Search")
	case s.braveAPIKey != "":
		s.provider = providerBrave
		log.Println("🔍 [SEARCH] Using Brave Search")
	default:
		s.provider = providerDuckDuckGo
		log.Println("🔍 [SEARCH] Using DuckDuckGo (free, no API key)")
	}

	return s
}

// Provider returns the active backend name
func (s *WebSearchService) Provider() string { return s.provider }

// Search returns up to numResults hits for the query. On backend failure or
// an empty result set it retries once against DuckDuckGo (unless DuckDuckGo
// is already active), then gives up with an empty list.
func (s *WebSearchService) Search(ctx context.Context, query string, numResults int) []SearchResult {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	cacheKey := fmt.Sprintf("%s|%d", strings.ToLower(query), numResults)
	if cached, found := s.resultCache.Get(cacheKey); found {
		return cached.([]SearchResult)
	}

	results, err := s.searchProvider(ctx, s.provider, query, numResults)
	if (err != nil || len(results) == 0) && s.provider != providerDuckDuckGo {
		if err != nil {
			log.Printf("⚠️ [SEARCH] %s failed, falling back to DuckDuckGo: %v", s.provider, err)
		}
		results, err = s.searchProvider(ctx, providerDuckDuckGo, query, numResults)
	}
	if err != nil {
		log.Printf("❌ [SEARCH] Search failed for '%s': %v", query, err)
		return nil
	}

	if len(results) > 0 {
		s.resultCache.Set(cacheKey, results, cache.DefaultExpiration)
	}
	return results
}

// SearchMultiple runs several queries sequentially with pacing between calls
// to avoid burst-rate rejection. Returns a map from query to its results.
func (s *WebSearchService) SearchMultiple(ctx context.Context, queries []string, numResultsEach int) map[string][]SearchResult {
	results := make(map[string][]SearchResult, len(queries))
	for _, q := range queries {
		if err := s.limiter.Wait(ctx); err != nil {
			break
		}
		results[q] = s.Search(ctx, q, numResultsEach)
	}
	return results
}

// SearchUniversityInfo maps an info type to a canned query template and
// requests 3 results.
func (s *WebSearchService) SearchUniversityInfo(ctx context.Context, university, program string, infoType UniversityInfoType) []SearchResult {
	var query string
	switch infoType {
	case InfoTuition:
		query = fmt.Sprintf("%s %s international tuition fees 2025", university, program)
	case InfoRequirements:
		query = fmt.Sprintf("%s %s admission requirements international students", university, program)
	case InfoDeadlines:
		query = fmt.Sprintf("%s %s application deadline 2025", university, program)
	case InfoScholarships:
		query = fmt.Sprintf("%s international student scholarships", university)
	default:
		return nil
	}
	return s.Search(ctx, query, 3)
}

func (s *WebSearchService) searchProvider(ctx context.Context, provider, query string, numResults int) ([]SearchResult, error) {
	if m := GetMetrics(); m != nil {
		m.WebSearches.WithLabelValues(provider).Inc()
	}
	switch provider {
	case providerGoogle:
		return s.searchGoogle(ctx, query, numResults)
	case providerBrave:
		return s.searchBrave(ctx, query, numResults)
	default:
		return s.searchDuckDuckGo(ctx, query, numResults)
	}
}

func (s *WebSearchService) searchGoogle(ctx context.Context, query string, numResults int) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("key", s.googleAPIKey)
	params.Set("cx", s.googleEngineID)
	params.Set("q", query)
	params.Set("num", fmt.Sprintf("%d", min(numResults, 10)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.googleEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google search failed with status %d", resp.StatusCode)
	}

	var payload struct {
		Items []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to parse google response: %w", err)
	}

	results := make([]SearchResult, 0, len(payload.Items))
	for _, item := range payload.Items {
		results = append(results, SearchResult{Title: item.Title, URL: item.Link, Snippet: item.Snippet})
	}
	return results, nil
}

func (s *WebSearchService) searchBrave(ctx context.Context, query string, numResults int) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", fmt.Sprintf("%d", min(numResults, 20)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.braveEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Subscription-Token", s.braveAPIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave search failed with status %d", resp.StatusCode)
	}

	var payload struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to parse brave response: %w", err)
	}

	results := make([]SearchResult, 0, len(payload.Web.Results))
	for _, item := range payload.Web.Results {
		results = append(results, SearchResult{Title: item.Title, URL: item.URL, Snippet: item.Description})
	}
	return results, nil
}

// searchDuckDuckGo scrapes the rendered HTML results page. DuckDuckGo has no
// official API; the locale-qualified request with a browser User-Agent keeps
// the provider from categorically rejecting automated traffic.
func (s *WebSearchService) searchDuckDuckGo(ctx context.Context, query string, numResults int) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("kl", "us-en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.ddgEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo search failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read duckduckgo response: %w", err)
	}

	return parseDuckDuckGoHTML(string(body), numResults), nil
}

// parseDuckDuckGoHTML extracts results from the rendered page, trying the
// primary pattern first and the redirect-link pattern when it yields nothing.
// Results without a resolvable destination URL are dropped.
func parseDuckDuckGoHTML(page string, numResults int) []SearchResult {
	var results []SearchResult

	for _, m := range ddgPrimaryRe.FindAllStringSubmatch(page, -1) {
		if len(results) >= numResults {
			break
		}
		dest := decodeRedirectURL(m[1])
		if dest == "" || strings.Contains(dest, "duckduckgo.com") {
			continue
		}
		results = append(results, SearchResult{
			Title:   decodeHTMLText(m[2]),
			URL:     dest,
			Snippet: decodeHTMLText(m[3]),
		})
	}

	if len(results) == 0 {
		for _, m := range ddgSecondaryRe.FindAllStringSubmatch(page, -1) {
			if len(results) >= numResults {
				break
			}
			dest, err := url.QueryUnescape(m[1])
			if err != nil || dest == "" {
				continue
			}
			results = append(results, SearchResult{
				Title: decodeHTMLText(m[2]),
				URL:   dest,
			})
		}
	}

	return results
}

// decodeRedirectURL unwraps DuckDuckGo's uddg redirect wrapper
func decodeRedirectURL(raw string) string {
	if strings.Contains(raw, "uddg=") {
		if m := ddgUddgRe.FindStringSubmatch(raw); m != nil {
			if decoded, err := url.QueryUnescape(m[1]); err == nil {
				return decoded
			}
		}
	}
	return raw
}

func decodeHTMLText(s string) string {
	return strings.TrimSpace(html.UnescapeString(htmlTagRe.ReplaceAllString(s, "")))
}
