package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/Bhagath1907/DSK/internal/adapter/storage"
	"github.com/Bhagath1907/DSK/internal/core/wallet"
)

// Reconciler re-polls payments that were reported as not captured (or that
// timed out at the gateway) and credits them once they are captured. One
// row is claimed per tick with FOR UPDATE SKIP LOCKED, so multiple service
// instances can run the loop without stepping on each other.
//
// The verifier passed in must be built WITHOUT a Parker: re-parking the
// claimed payment would block on the row lock this loop already holds.
type Reconciler struct {
	pending      *storage.PendingRepository
	verifier     *wallet.Verifier
	pollInterval time.Duration
	maxAttempts  int
}

func NewReconciler(pending *storage.PendingRepository, verifier *wallet.Verifier, pollInterval time.Duration, maxAttempts int) *Reconciler {
	return &Reconciler{
		pending:      pending,
		verifier:     verifier,
		pollInterval: pollInterval,
		maxAttempts:  maxAttempts,
	}
}

// Start runs the poll loop until ctx is cancelled.
func (r *Reconciler) Start(ctx context.Context) {
	go func() {
		slog.Info("👷 Pending-payment reconciler started", "poll_interval", r.pollInterval)
		ticker := time.NewTicker(r.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("Reconciler stopped")
				return
			case <-ticker.C:
				r.Drain(ctx)
			}
		}
	}()
}

// maxBatchPerTick caps how much of a backlog one tick may drain, so a
// burst of parked payments cannot monopolize the loop past its interval.
const maxBatchPerTick = 25

// Drain claims and processes due pending payments until none remain or
// the per-tick bound is hit. Returns the number of rows processed.
func (r *Reconciler) Drain(ctx context.Context) int {
	processed := 0
	for processed < maxBatchPerTick {
		if !r.processOne(ctx) {
			break
		}
		processed++
	}
	return processed
}

// processOne reports whether it claimed a row (processed or not, the
// caller should keep draining while rows are being claimed).
func (r *Reconciler) processOne(ctx context.Context) bool {
	tx, err := r.pending.Begin(ctx)
	if err != nil {
		slog.Error("Reconciler: failed to begin claim transaction", "error", err)
		return false
	}
	defer tx.Rollback(ctx)

	job, err := r.pending.ClaimNext(ctx, tx)
	if err != nil {
		slog.Error("Reconciler: claim failed", "error", err)
		return false
	}
	if job == nil {
		return false
	}

	slog.Info("Reconciler: re-verifying payment", "payment_id", job.PaymentID, "attempts", job.Attempts)

	result, verr := r.verifier.Verify(ctx, wallet.Request{
		PaymentID: job.PaymentID,
		AccountID: job.AccountID,
		PlanName:  job.PlanName,
	})

	switch {
	case verr == nil && result.Status != wallet.StatusPending:
		// Credited now, or credited earlier by a webhook that beat us.
		if err := r.pending.MarkDone(ctx, tx, job.ID, storage.PendingStatusCompleted); err != nil {
			slog.Error("Reconciler: failed to complete job", "error", err, "payment_id", job.PaymentID)
			return false
		}
		slog.Info("✅ Reconciler: payment settled", "payment_id", job.PaymentID, "status", result.Status)

	case verr == nil:
		// Still pending (the verifier also maps gateway timeouts here).
		// Back off linearly, give up after maxAttempts.
		if job.Attempts+1 >= r.maxAttempts {
			if err := r.pending.MarkDone(ctx, tx, job.ID, storage.PendingStatusExpired); err != nil {
				slog.Error("Reconciler: failed to expire job", "error", err, "payment_id", job.PaymentID)
				return false
			}
			slog.Warn("Reconciler: payment never captured, giving up", "payment_id", job.PaymentID, "attempts", job.Attempts+1)
		} else {
			nextRun := time.Now().Add(time.Duration(job.Attempts+1) * r.pollInterval)
			if err := r.pending.Reschedule(ctx, tx, job.ID, nextRun); err != nil {
				slog.Error("Reconciler: failed to reschedule job", "error", err, "payment_id", job.PaymentID)
				return false
			}
		}

	default:
		// Hard verification error (payment vanished, account gone).
		if err := r.pending.MarkDone(ctx, tx, job.ID, storage.PendingStatusFailed); err != nil {
			slog.Error("Reconciler: failed to fail job", "error", err, "payment_id", job.PaymentID)
			return false
		}
		slog.Error("Reconciler: payment failed verification", "error", verr, "payment_id", job.PaymentID)
	}

	if err := tx.Commit(ctx); err != nil {
		slog.Error("Reconciler: commit failed", "error", err, "payment_id", job.PaymentID)
		return false
	}
	return true
}
