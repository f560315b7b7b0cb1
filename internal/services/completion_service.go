package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"studyyatra/internal/config"
)

// CompletionRequest describes one model completion call
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Model        string
	Temperature  float64
	MaxTokens    int
	JSONMode     bool // request a structured JSON object response
}

// CompletionService is the abstract completion capability over any
// OpenAI-compatible /chat/completions endpoint. The credential is checked
// lazily at first use so the server can boot without it; Validate can be
// called eagerly when a deployment wants to fail fast instead.
type CompletionService struct {
	apiKey     string
	baseURL    string
	fastModel  string
	smartModel string
	maxRetries int
	httpClient *http.Client
}

// NewCompletionService creates the completion client. No credential check
// happens here; see Validate.
func NewCompletionService(cfg *config.Config) *CompletionService {
	return &CompletionService{
		apiKey:     cfg.CompletionAPIKey,
		baseURL:    strings.TrimSuffix(cfg.CompletionBaseURL, "/"),
		fastModel:  cfg.FastModel,
		smartModel: cfg.SmartModel,
		maxRetries: cfg.CompletionRetries,
		httpClient: &http.Client{
			Timeout: cfg.CompletionTimeout,
		},
	}
}

// Validate reports a ConfigurationError if the credential is absent.
// Optional; Complete performs the same check on every call.
func (s *CompletionService) Validate() error {
	if s.apiKey == "" {
		return &ConfigurationError{Missing: "OPENAI_API_KEY"}
	}
	return nil
}

// FastModel returns the cheap tier used for generation and verification
func (s *CompletionService) FastModel() string { return s.fastModel }

// SmartModel returns the stronger tier reserved for high-fidelity analysis
func (s *CompletionService) SmartModel() string { return s.smartModel }

// Complete issues one completion call and returns the assistant text.
// Transport errors, 429s and 5xx responses are retried a small fixed number
// of times with linear backoff; other failures return immediately.
func (s *CompletionService) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}

	messages := []map[string]string{}
	if req.SystemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.SystemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.UserPrompt})

	requestBody := map[string]any{
		"model":       req.Model,
		"messages":    messages,
		"temperature": req.Temperature,
		"stream":      false,
	}
	if req.MaxTokens > 0 {
		requestBody["max_tokens"] = req.MaxTokens
	}
	if req.JSONMode {
		requestBody["response_format"] = map[string]any{"type": "json_object"}
	}

	bodyBytes, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := s.baseURL + "/chat/completions"

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
			log.Printf("🔄 [COMPLETION] Retry %d/%d for model %s", attempt, s.maxRetries, req.Model)
		}

		content, retryable, err := s.doRequest(ctx, endpoint, bodyBytes)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if !retryable {
			return "", err
		}
	}

	return "", fmt.Errorf("completion failed after %d retries: %w", s.maxRetries, lastErr)
}

func (s *CompletionService) doRequest(ctx context.Context, endpoint string, body []byte) (content string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", retryable, fmt.Errorf("completion request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", false, fmt.Errorf("failed to parse completion response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", false, fmt.Errorf("completion response contained no choices")
	}

	return result.Choices[0].Message.Content, false, nil
}
