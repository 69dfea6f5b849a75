package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/Bhagath1907/DSK/internal/adapter/gateway"
	"github.com/Bhagath1907/DSK/internal/adapter/handler"
	"github.com/Bhagath1907/DSK/internal/adapter/middleware"
	"github.com/Bhagath1907/DSK/internal/adapter/storage"
	"github.com/Bhagath1907/DSK/internal/core/config"
	"github.com/Bhagath1907/DSK/internal/core/wallet"
	"github.com/Bhagath1907/DSK/internal/core/worker"
)

func main() {
	// 1. Load Config
	cfg := config.LoadConfig()

	// 2. Setup Logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 3. Connect to Database
	dbPool, err := storage.ConnectDB(cfg.DatabaseURL)
	if err != nil {
		slog.Error("❌ Database connection failed", "error", err)
		os.Exit(1)
	}
	// Closed manually on shutdown, not deferred.

	// 4. Construct clients and repos explicitly; no package-level state.
	var razorpay *gateway.Client
	if cfg.GatewayConfigured() {
		razorpay = gateway.NewClient(cfg.RazorpayBaseURL, cfg.RazorpayKeyID, cfg.RazorpayKeySecret)
	} else {
		slog.Warn("⚠️ Razorpay credentials missing, payment endpoints will fail closed")
	}

	accountRepo := storage.NewAccountRepository(dbPool)
	ledgerRepo := storage.NewLedgerRepository(dbPool)
	pendingRepo := storage.NewPendingRepository(dbPool)

	// The verifier interfaces take nil cleanly only through typed nils,
	// so keep the gateway wiring explicit.
	var fetcher wallet.PaymentFetcher
	if razorpay != nil {
		fetcher = razorpay
	}
	verifier := wallet.NewVerifier(fetcher, ledgerRepo, accountRepo, pendingRepo)

	accountHandler := &handler.AccountHandler{Repo: accountRepo}
	transactionHandler := &handler.TransactionHandler{Repo: ledgerRepo}
	walletHandler := &handler.WalletHandler{Verifier: verifier, Ledger: ledgerRepo}
	webhookHandler := &handler.WebhookHandler{Verifier: verifier, Secret: cfg.RazorpayWebhookSecret}

	// 5. Setup Fiber
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Use(cors.New())

	// 6. Routes
	api := app.Group("/v1")

	// Public
	api.Post("/accounts", accountHandler.CreateAccount)
	api.Post("/accounts/:id/keys", accountHandler.GenerateKey)
	api.Get("/accounts/:id/balance", accountHandler.GetBalance)
	api.Get("/accounts/:id/transactions", transactionHandler.GetHistory)
	api.Post("/wallet/verify-payment", walletHandler.VerifyPayment)
	api.Post("/webhooks/razorpay", webhookHandler.HandleRazorpay)

	// Protected (trusted callers only)
	private := api.Use(middleware.Protected(dbPool))
	private.Post("/wallet/topup", middleware.Idempotency(dbPool), walletHandler.TopUp)

	// 7. Start the pending-payment reconciler. It gets its own verifier
	// without a Parker (see worker docs for the lock interaction).
	workerCtx, stopWorker := context.WithCancel(context.Background())
	reconVerifier := wallet.NewVerifier(fetcher, ledgerRepo, accountRepo, nil)
	reconciler := worker.NewReconciler(pendingRepo, reconVerifier, cfg.ReconcilePollInterval, cfg.ReconcileMaxAttempts)
	reconciler.Start(workerCtx)

	// Graceful shutdown: stop accepting requests, stop the worker, then
	// close the database.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("🚀 Server starting", "env", cfg.Env, "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("Server forced to shutdown", "error", err)
		}
	}()

	<-stop
	slog.Info("🛑 Shutting down server...")

	if err := app.Shutdown(); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}

	stopWorker()
	dbPool.Close()
	slog.Info("👋 Server exited successfully")
}
