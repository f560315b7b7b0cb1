package handlers

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"studyyatra/internal/database"
	"studyyatra/internal/models"
	"studyyatra/internal/services"
)

const (
	maxMessageLength        = 1000
	minConversationIDLength = 20
)

// validConversationID rejects ids that cannot possibly be a stored
// conversation key, so malformed input surfaces as 400 rather than 404
func validConversationID(id string) bool {
	return len(id) >= minConversationIDLength
}

// ChatHandler handles conversation HTTP requests
type ChatHandler struct {
	chatService *services.ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService *services.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Start begins a new profile-collection conversation
// POST /api/chat/start
func (h *ChatHandler) Start(c *fiber.Ctx) error {
	resp, err := h.chatService.StartConversation()
	if err != nil {
		log.Printf("❌ [CHAT] Failed to start conversation: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to start conversation",
		})
	}

	if m := services.GetMetrics(); m != nil {
		m.ConversationsOpen.Inc()
	}

	log.Printf("💬 [CHAT] Started conversation %s", resp.ConversationID)

	return c.JSON(fiber.Map{
		"success": true,
		"data":    resp,
	})
}

// Message records a user answer and returns the next question
// POST /api/chat/message
func (h *ChatHandler) Message(c *fiber.Ctx) error {
	var req models.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	if req.ConversationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "conversationId is required",
		})
	}
	if !validConversationID(req.ConversationID) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid conversation ID format",
		})
	}
	if strings.TrimSpace(req.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "message is required",
		})
	}
	if len(req.Message) > maxMessageLength {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "message exceeds maximum length of 1000 characters",
		})
	}

	resp, err := h.chatService.SendMessage(req.ConversationID, req.Message)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"error":   "Conversation not found",
			})
		}
		log.Printf("❌ [CHAT] Failed to process message for %s: %v", req.ConversationID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to process message",
		})
	}

	if m := services.GetMetrics(); m != nil {
		m.ChatTurns.Inc()
		if resp.IsComplete {
			m.ConversationsOpen.Dec()
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    resp,
	})
}

// Get returns a conversation with its full message history
// GET /api/chat/:conversationId
func (h *ChatHandler) Get(c *fiber.Ctx) error {
	conversationID := c.Params("conversationId")
	if !validConversationID(conversationID) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid conversation ID format",
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
		log.Printf("❌ [CHAT] Failed to load conversation %s: %v", conversationID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to load conversation",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    conv,
	})
}
