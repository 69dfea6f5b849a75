package worker_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Bhagath1907/DSK/internal/adapter/gateway"
	"github.com/Bhagath1907/DSK/internal/adapter/storage"
	"github.com/Bhagath1907/DSK/internal/core/wallet"
	"github.com/Bhagath1907/DSK/internal/core/worker"
)

func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("db connection: %v", err)
	}
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile(filepath.Join("..", "..", "..", "schema.sql"))
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	if _, err := pool.Exec(ctx,
		`TRUNCATE pending_payments, idempotency_keys, api_keys, transactions, accounts CASCADE`); err != nil {
		t.Fatalf("reset db: %v", err)
	}
	return pool
}

func seedAccount(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := pool.QueryRow(context.Background(), `
		INSERT INTO accounts (owner_name, balance) VALUES ('tester', 0)
		RETURNING id`).Scan(&id)
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return id
}

// capturedGateway answers every payment lookup as captured for Rs 100.
func capturedGateway(t *testing.T) *gateway.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := filepath.Base(r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":%q,"amount":10000,"currency":"INR","status":"captured","captured":true}`, id)
	}))
	t.Cleanup(srv.Close)
	return gateway.NewClient(srv.URL, "key_id", "key_secret")
}

func TestDrainSettlesBacklogInOneTick(t *testing.T) {
	pool := setupPool(t)
	accountID := seedAccount(t, pool)

	accountRepo := storage.NewAccountRepository(pool)
	ledgerRepo := storage.NewLedgerRepository(pool)
	pendingRepo := storage.NewPendingRepository(pool)

	ctx := context.Background()
	backlog := []string{"pay_w1", "pay_w2", "pay_w3"}
	for _, id := range backlog {
		if err := pendingRepo.Park(ctx, id, accountID, "Go"); err != nil {
			t.Fatalf("park %s: %v", id, err)
		}
	}

	// Reconciler verifier has no Parker, same as the wiring in main.
	verifier := wallet.NewVerifier(capturedGateway(t), ledgerRepo, accountRepo, nil)
	rec := worker.NewReconciler(pendingRepo, verifier, time.Second, 5)

	// One drain must clear the whole backlog, not one row per tick.
	if processed := rec.Drain(ctx); processed != len(backlog) {
		t.Fatalf("expected %d processed in one drain, got %d", len(backlog), processed)
	}

	var completed int
	if err := pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM pending_payments WHERE status = $1`,
		storage.PendingStatusCompleted).Scan(&completed); err != nil {
		t.Fatalf("count completed: %v", err)
	}
	if completed != len(backlog) {
		t.Fatalf("expected %d completed rows, got %d", len(backlog), completed)
	}

	var balance int64
	if err := pool.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1`, accountID).Scan(&balance); err != nil {
		t.Fatalf("read balance: %v", err)
	}
	if want := int64(10000 * len(backlog)); balance != want {
		t.Fatalf("expected balance %d, got %d", want, balance)
	}

	// Nothing left: the next drain is a no-op.
	if processed := rec.Drain(ctx); processed != 0 {
		t.Fatalf("expected empty drain, got %d", processed)
	}
}
