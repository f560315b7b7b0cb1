package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"studyyatra/internal/database"
	"studyyatra/internal/services"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	db              *database.DB
	searchService   *services.WebSearchService
	matchingService *services.MatchingService
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *database.DB, searchService *services.WebSearchService, matchingService *services.MatchingService) *HealthHandler {
	return &HealthHandler{
		db:              db,
		searchService:   searchService,
		matchingService: matchingService,
	}
}

// Handle responds with server health status
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	dbStatus := "healthy"
	status := "healthy"
	if err := h.db.Ping(); err != nil {
		dbStatus = "unreachable"
		status = "degraded"
	}

	return c.JSON(fiber.Map{
		"status":         status,
		"database":       dbStatus,
		"searchProvider": h.searchService.Provider(),
		"matchCache":     h.matchingService.GetCacheStats(),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}
