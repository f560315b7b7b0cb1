package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"studyyatra/internal/config"
	"studyyatra/internal/database"
	"studyyatra/internal/models"
	"studyyatra/internal/services"
)

const matchingDeadline = 30 * time.Second

// MatchingHandler handles university matching HTTP requests
type MatchingHandler struct {
	chatService     *services.ChatService
	matchingService *services.MatchingService
	rates           *config.RateTable
}

// NewMatchingHandler creates a new matching handler
func NewMatchingHandler(chatService *services.ChatService, matchingService *services.MatchingService, rates *config.RateTable) *MatchingHandler {
	return &MatchingHandler{
		chatService:     chatService,
		matchingService: matchingService,
		rates:           rates,
	}
}

type findMatchesRequest struct {
	ConversationID string         `json:"conversationId"`
	Profile        map[string]any `json:"profile"`
}

type matchingConfigRequest struct {
	VerificationEnabled *bool `json:"verificationEnabled"`
}

// Find runs the full matching pipeline for a submitted or stored profile
// POST /api/matching/find
func (h *MatchingHandler) Find(c *fiber.Ctx) error {
	return h.runMatching(c, false)
}

// Quick runs knowledge-only matching, skipping web verification
// POST /api/matching/quick
func (h *MatchingHandler) Quick(c *fiber.Ctx) error {
	return h.runMatching(c, true)
}

func (h *MatchingHandler) runMatching(c *fiber.Ctx, quick bool) error {
	var req findMatchesRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	raw := req.Profile
	if raw == nil && req.ConversationID != "" {
		conv, err := h.chatService.GetConversation(req.ConversationID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"success": false,
					"error":   "Conversation not found",
				})
			}
			log.Printf("❌ [MATCHING] Failed to load conversation %s: %v", req.ConversationID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "Failed to load conversation",
			})
		}
		raw = conv.Profile
	}
	if raw == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "profile or conversationId is required",
		})
	}

	profile := services.NormalizeProfile(raw)
	return h.respondWithMatches(c, profile, quick, false)
}

// GetByConversation runs matching against a stored conversation profile,
// with optional query filters applied on top
// GET /api/matching/:conversationId?maxBudget=&currency=&state=
func (h *MatchingHandler) GetByConversation(c *fiber.Ctx) error {
	conversationID := c.Params("conversationId")
	if conversationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Conversation ID is required",
		})
	}

	conv, err := h.chatService.GetConversation(conversationID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"error":   "Conversation not found",
			})
		}
		log.Printf("❌ [MATCHING] Failed to load conversation %s: %v", conversationID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to load conversation",
		})
	}

	// Filters mutate a normalized copy for this request only; the stored
	// profile is never changed
	profile := services.NormalizeProfile(conv.Profile)
	h.applyQueryFilters(profile, c)

	quick := c.Query("quick") == "true"
	return h.respondWithMatches(c, profile, quick, true)
}

func (h *MatchingHandler) applyQueryFilters(profile *models.StudentProfile, c *fiber.Ctx) {
	if raw := c.Query("maxBudget"); raw != "" {
		if budget, err := strconv.ParseInt(raw, 10, 64); err == nil && budget > 0 {
			currency := strings.ToUpper(c.Query("currency"))
			if currency != "" && currency != "NPR" {
				// Convert into NPR so the cache fingerprint and budget
				// insights see the constraint; the original amount is
				// kept for prompt display
				profile.BudgetAmount = budget
				profile.BudgetCurrency = currency
				profile.BudgetNPR = int64(h.rates.ToNPR(float64(budget), currency))
			} else {
				profile.BudgetNPR = budget
			}
		}
	}
	if state := strings.TrimSpace(c.Query("state")); state != "" {
		profile.PreferredState = state
	}
}

// respondWithMatches runs the engine and writes the response. Failures on
// the direct endpoints surface as 500; the conversation-derived path
// degrades to an empty result instead, because the student has already
// finished a multi-step conversation and should not hit a dead end.
func (h *MatchingHandler) respondWithMatches(c *fiber.Ctx, profile *models.StudentProfile, quick, conversationDerived bool) error {
	ctx, cancel := context.WithTimeout(c.Context(), matchingDeadline)
	defer cancel()

	mode := "full"
	if quick {
		mode = "quick"
	}
	if m := services.GetMetrics(); m != nil {
		m.MatchingRequests.WithLabelValues(mode).Inc()
	}

	start := time.Now()
	var (
		result   *models.MatchResult
		cacheHit bool
		err      error
	)
	if quick {
		result, cacheHit, err = h.matchingService.FindMatchesQuick(ctx, profile)
	} else {
		result, cacheHit, err = h.matchingService.FindMatches(ctx, profile)
	}
	elapsed := time.Since(start)

	if m := services.GetMetrics(); m != nil {
		m.MatchingLatency.Observe(elapsed.Seconds())
	}

	if err != nil {
		if m := services.GetMetrics(); m != nil {
			m.MatchingErrors.Inc()
		}

		var configErr *services.ConfigurationError
		if errors.As(err, &configErr) {
			log.Printf("❌ [MATCHING] Configuration error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "Matching service is not configured",
			})
		}

		log.Printf("❌ [MATCHING] Engine failure: %v", err)
		if !conversationDerived {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "Matching failed. Please try again in a few minutes.",
			})
		}

		// Degrade to an empty payload so clients can render the
		// conversation outcome even when the engine is down
		return c.JSON(fiber.Map{
			"success": true,
			"data": &models.MatchResult{
				Matches:        []models.UniversityMatch{},
				ProfileSummary: services.SummarizeProfile(profile),
				Insights:       []string{fmt.Sprintf("Matching failed: %v. Please try again in a few minutes.", err)},
				Disclaimer:     "No results generated.",
				GeneratedAt:    time.Now().UTC(),
			},
			"meta": fiber.Map{
				"processingTimeMs": elapsed.Milliseconds(),
				"matchCount":       0,
				"cached":           false,
				"degraded":         true,
			},
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    result,
		"meta": fiber.Map{
			"processingTimeMs": elapsed.Milliseconds(),
			"matchCount":       len(result.Matches),
			"searchesUsed":     result.SearchesUsed,
			"cached":           cacheHit,
		},
	})
}

// CacheStats reports match cache occupancy
// GET /api/matching/stats/cache
func (h *MatchingHandler) CacheStats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    h.matchingService.GetCacheStats(),
	})
}

// Configure updates runtime matching settings
// POST /api/matching/config
func (h *MatchingHandler) Configure(c *fiber.Ctx) error {
	var req matchingConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	if req.VerificationEnabled != nil {
		h.matchingService.SetVerificationEnabled(*req.VerificationEnabled)
		log.Printf("⚙️ [MATCHING] Verification enabled set to %t", *req.VerificationEnabled)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"verificationEnabled": h.matchingService.VerificationEnabled(),
		},
	})
}
