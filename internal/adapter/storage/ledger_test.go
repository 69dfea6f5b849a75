package storage_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Bhagath1907/DSK/internal/adapter/storage"
	"github.com/Bhagath1907/DSK/internal/core/domain"
	"github.com/Bhagath1907/DSK/internal/core/wallet"
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

	applySchema(t, pool)
	resetDB(t, pool)
	return pool
}

func applySchema(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	schema, err := os.ReadFile(filepath.Join("..", "..", "..", "schema.sql"))
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if _, err := pool.Exec(context.Background(), string(schema)); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
}

func resetDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(context.Background(),
		`TRUNCATE pending_payments, idempotency_keys, api_keys, transactions, accounts CASCADE`)
	if err != nil {
		t.Fatalf("reset db: %v", err)
	}
}

func seedAccount(t *testing.T, pool *pgxpool.Pool, balance int64) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := pool.QueryRow(context.Background(), `
		INSERT INTO accounts (owner_name, email, balance)
		VALUES ('tester', NULL, $1)
		RETURNING id`, balance).Scan(&id)
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return id
}

// ledgerSum recomputes the balance from the transaction log.
func ledgerSum(t *testing.T, pool *pgxpool.Pool, accountID uuid.UUID) int64 {
	t.Helper()
	var sum int64
	err := pool.QueryRow(context.Background(), `
		SELECT COALESCE(SUM(CASE WHEN direction = 'CREDIT' THEN amount ELSE -amount END), 0)
		FROM transactions WHERE account_id = $1`, accountID).Scan(&sum)
	if err != nil {
		t.Fatalf("sum transactions: %v", err)
	}
	return sum
}

func storedBalance(t *testing.T, pool *pgxpool.Pool, accountID uuid.UUID) int64 {
	t.Helper()
	var balance int64
	err := pool.QueryRow(context.Background(),
		`SELECT balance FROM accounts WHERE id = $1`, accountID).Scan(&balance)
	if err != nil {
		t.Fatalf("read balance: %v", err)
	}
	return balance
}

func TestCreditAppendsTransactionAtomically(t *testing.T) {
	pool := setupPool(t)
	repo := storage.NewLedgerRepository(pool)
	accountID := seedAccount(t, pool, 0)

	newBalance, already, err := repo.Credit(context.Background(), accountID, 10000,
		wallet.Description("pay_1"), "pay_1")
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if already {
		t.Fatal("first credit reported as duplicate")
	}
	if newBalance != 10000 {
		t.Fatalf("expected balance 10000, got %d", newBalance)
	}

	// Balance invariant: stored balance equals the transaction-log sum.
	if got, want := storedBalance(t, pool, accountID), ledgerSum(t, pool, accountID); got != want {
		t.Fatalf("balance %d drifted from ledger sum %d", got, want)
	}
}

func TestCreditSamePaymentRefIsIdempotent(t *testing.T) {
	pool := setupPool(t)
	repo := storage.NewLedgerRepository(pool)
	accountID := seedAccount(t, pool, 0)

	if _, _, err := repo.Credit(context.Background(), accountID, 10000, wallet.Description("pay_dup"), "pay_dup"); err != nil {
		t.Fatalf("first credit: %v", err)
	}
	balance, already, err := repo.Credit(context.Background(), accountID, 10000, wallet.Description("pay_dup"), "pay_dup")
	if err != nil {
		t.Fatalf("second credit: %v", err)
	}
	if !already {
		t.Fatal("duplicate payment ref not detected")
	}
	if balance != 10000 {
		t.Fatalf("duplicate changed the balance: %d", balance)
	}

	var count int
	if err := pool.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM transactions WHERE payment_ref = 'pay_dup'`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 transaction, got %d", count)
	}
}

func TestCreditConcurrentSamePaymentRef(t *testing.T) {
	pool := setupPool(t)
	repo := storage.NewLedgerRepository(pool)
	accountID := seedAccount(t, pool, 0)

	const n = 10
	var wg sync.WaitGroup
	duplicates := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, already, err := repo.Credit(context.Background(), accountID, 10000,
				wallet.Description("pay_race"), "pay_race")
			if err != nil {
				t.Errorf("credit: %v", err)
				return
			}
			duplicates <- already
		}()
	}
	wg.Wait()
	close(duplicates)

	fresh := 0
	for already := range duplicates {
		if !already {
			fresh++
		}
	}
	if fresh != 1 {
		t.Fatalf("expected exactly 1 fresh credit, got %d", fresh)
	}
	if got := storedBalance(t, pool, accountID); got != 10000 {
		t.Fatalf("expected balance 10000, got %d", got)
	}
	if got, want := storedBalance(t, pool, accountID), ledgerSum(t, pool, accountID); got != want {
		t.Fatalf("balance %d drifted from ledger sum %d", got, want)
	}
}

func TestDebitGuardsBalance(t *testing.T) {
	pool := setupPool(t)
	repo := storage.NewLedgerRepository(pool)
	accountID := seedAccount(t, pool, 500)

	if _, err := repo.Debit(context.Background(), accountID, 600, "overdraw attempt"); !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	newBalance, err := repo.Debit(context.Background(), accountID, 200, "service fee")
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if newBalance != 300 {
		t.Fatalf("expected balance 300, got %d", newBalance)
	}
}

func TestCreditUnknownAccount(t *testing.T) {
	pool := setupPool(t)
	repo := storage.NewLedgerRepository(pool)

	_, _, err := repo.Credit(context.Background(), uuid.New(), 100, "nowhere", "")
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestHistoryOrdersNewestFirst(t *testing.T) {
	pool := setupPool(t)
	repo := storage.NewLedgerRepository(pool)
	accountID := seedAccount(t, pool, 0)

	for i, ref := range []string{"pay_a", "pay_b", "pay_c"} {
		if _, _, err := repo.Credit(context.Background(), accountID, int64(100*(i+1)), wallet.Description(ref), ref); err != nil {
			t.Fatalf("credit %s: %v", ref, err)
		}
		time.Sleep(5 * time.Millisecond) // distinct created_at ordering
	}

	history, err := repo.History(context.Background(), accountID, 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(history))
	}
	if history[0].PaymentRef != "pay_c" {
		t.Fatalf("expected newest first, got %s", history[0].PaymentRef)
	}
}
