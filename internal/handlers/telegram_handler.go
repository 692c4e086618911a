package handlers

import (
	"log"
	"net/http"

	"merch_shop/internal/services"
	"merch_shop/pkg/telegram"

	"github.com/gin-gonic/gin"
)

// TelegramHandler feeds chat updates into the intake flow.
type TelegramHandler struct {
	intakeService services.IntakeService
	secretToken   string
}

func NewTelegramHandler(intakeService services.IntakeService, secretToken string) *TelegramHandler {
	return &TelegramHandler{intakeService: intakeService, secretToken: secretToken}
}

func (h *TelegramHandler) HandleWebhook(c *gin.Context) {
	if h.secretToken != "" && c.GetHeader("X-Telegram-Bot-Api-Secret-Token") != h.secretToken {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid secret token"})
		return
	}

	var update telegram.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	// Always 200: Telegram re-delivers on non-200 and the failure is ours
	// to log, not theirs to retry.
	switch {
	case update.Message != nil:
		if err := h.intakeService.HandleMessage(update.Message); err != nil {
			log.Printf("failed to handle message in chat %d: %v", update.Message.Chat.ID, err)
		}
	case update.CallbackQuery != nil:
		if err := h.intakeService.HandleCallback(update.CallbackQuery); err != nil {
			log.Printf("failed to handle callback %s: %v", update.CallbackQuery.ID, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
