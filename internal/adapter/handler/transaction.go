package handler

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Bhagath1907/DSK/internal/adapter/storage"
	"github.com/Bhagath1907/DSK/internal/core/domain"
)

type TransactionHandler struct {
	Repo *storage.LedgerRepository
}

func (h *TransactionHandler) GetHistory(c *fiber.Ctx) error {
	// We get the Account ID from the URL (e.g., /accounts/:id/transactions)
	accountUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid Account ID"})
	}

	limit := c.QueryInt("limit", 10)

	history, err := h.Repo.History(c.Context(), accountUUID, limit)
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Could not fetch history"})
	}

	// Amounts cross the API in major units.
	items := make([]fiber.Map, 0, len(history))
	for _, t := range history {
		items = append(items, fiber.Map{
			"id":          t.ID,
			"amount":      domain.ToMajor(t.Amount),
			"direction":   t.Direction,
			"description": t.Description,
			"payment_ref": t.PaymentRef,
			"date":        t.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{"transactions": items})
}
