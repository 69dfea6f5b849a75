package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Bhagath1907/DSK/internal/adapter/storage"
	"github.com/Bhagath1907/DSK/internal/core/domain"
	"github.com/Bhagath1907/DSK/internal/core/security"
)

type AccountHandler struct {
	Repo *storage.AccountRepository
}

// CreateAccountRequest defines what the identity system sends us
type CreateAccountRequest struct {
	OwnerName string `json:"owner_name"`
	Email     string `json:"email"`
}

func (h *AccountHandler) CreateAccount(c *fiber.Ctx) error {
	var req CreateAccountRequest

	// 1. Parse JSON
	if err := c.BodyParser(&req); err != nil {
		slog.Warn("Invalid account body", "error", err)
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	// 2. Validate Input
	if req.OwnerName == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Owner Name is required"})
	}

	// 3. Call Storage
	account, err := h.Repo.CreateAccount(c.Context(), req.OwnerName, req.Email)
	if err != nil {
		slog.Error("Failed to create account", "error", err, "owner", req.OwnerName)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Could not create account"})
	}

	slog.Info("✅ Account Created", "id", account.ID, "owner", req.OwnerName)

	// 4. Return Success
	return c.Status(http.StatusCreated).JSON(account)
}

func (h *AccountHandler) GetBalance(c *fiber.Ctx) error {
	accountUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid Account ID format"})
	}

	account, err := h.Repo.GetAccountByID(c.Context(), accountUUID)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "Account not found"})
	}
	if err != nil {
		slog.Error("Failed to fetch account", "error", err, "account_id", accountUUID)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Could not fetch account"})
	}

	return c.JSON(fiber.Map{
		"account_id": account.ID,
		"balance":    domain.ToMajor(account.Balance),
	})
}

func (h *AccountHandler) GenerateKey(c *fiber.Ctx) error {
	accountIDParam := c.Params("id")

	// 1. Convert string ID to UUID
	accountUUID, err := uuid.Parse(accountIDParam)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid Account ID format"})
	}

	// 2. Generate Secure Key
	realKey, keyHash, err := security.GenerateAPIKey()
	if err != nil {
		slog.Error("Crypto error generating key", "error", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Crypto error"})
	}

	// 3. Save Hash to DB
	err = h.Repo.SaveAPIKey(c.Context(), accountUUID, keyHash, security.KeyPrefix())
	if err != nil {
		slog.Error("Failed to save API key", "error", err, "account_id", accountUUID)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save key"})
	}

	slog.Info("🔑 API Key Generated", "account_id", accountUUID)

	// 4. Show Key to User (ONCE ONLY)
	return c.JSON(fiber.Map{
		"api_key": realKey,
		"warning": "Save this now! We won't show it again.",
	})
}
