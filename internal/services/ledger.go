package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"pupfi-arcade-backend/internal/models"
	"pupfi-arcade-backend/internal/store"
)

// Ledger exclusively owns balance, xp and level mutation. Every successful
// mutation appends exactly one transaction record; when the record cannot
// be written, the balance change is compensated so neither is observable
// without the other.
type Ledger struct {
	store store.Store
}

func NewLedger(st store.Store) *Ledger {
	return &Ledger{store: st}
}

// Credit adds tokens and the same amount of xp: reward amounts double as
// experience.
func (l *Ledger) Credit(ctx context.Context, userID string, amount int64, reason string) (*models.Account, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: credit amount must be positive", models.ErrInvalidArgument)
	}

	acct, err := l.apply(ctx, userID, store.Deltas{"balance": amount, "xp": amount}, nil,
		amount, models.TransactionEarn, reason)
	if err != nil {
		return nil, err
	}

	// Progression follows xp; a lost race here is corrected by the next
	// credit.
	if level := models.LevelForXP(acct.XP); level != acct.Level {
		var leveled models.Account
		if err := l.store.UpdateAndReturn(ctx, store.Accounts, userID, store.Filter{"rev": acct.Rev}, store.Patch{"level": level}, &leveled); err == nil {
			acct = &leveled
		}
	}

	metricTokensCredited.Add(float64(amount))
	return acct, nil
}

// Debit removes tokens, failing with ErrInsufficientFunds before any
// mutation when the balance cannot cover the amount. Xp is untouched.
func (l *Ledger) Debit(ctx context.Context, userID string, amount int64, reason string) (*models.Account, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: debit amount must be positive", models.ErrInvalidArgument)
	}

	acct, err := l.apply(ctx, userID, store.Deltas{"balance": -amount}, []string{"balance"},
		-amount, models.TransactionSpend, reason)
	if err != nil {
		return nil, err
	}

	metricTokensDebited.Add(float64(amount))
	return acct, nil
}

// Transfer moves tokens between two accounts, recording a transfer_out for
// the sender and a transfer_in for the recipient. A failure crediting the
// recipient refunds the sender.
func (l *Ledger) Transfer(ctx context.Context, fromID, toID string, amount int64, reason string) error {
	if amount <= 0 {
		return fmt.Errorf("%w: transfer amount must be positive", models.ErrInvalidArgument)
	}
	if fromID == toID {
		return fmt.Errorf("%w: cannot transfer to self", models.ErrInvalidArgument)
	}

	if _, err := l.apply(ctx, fromID, store.Deltas{"balance": -amount}, []string{"balance"},
		-amount, models.TransactionTransferOut, reason); err != nil {
		return err
	}

	if _, err := l.apply(ctx, toID, store.Deltas{"balance": amount}, nil,
		amount, models.TransactionTransferIn, reason); err != nil {
		l.apply(ctx, fromID, store.Deltas{"balance": amount}, nil,
			amount, models.TransactionTransferIn, "refund:"+reason)
		return err
	}

	return nil
}

// Transactions returns a user's audit trail, newest first.
func (l *Ledger) Transactions(ctx context.Context, userID string, limit int64) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var txs []models.Transaction
	if err := l.store.FindMany(ctx, store.Transactions, store.Filter{"user_id": userID}, 0, &txs); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %v", err)
	}

	// Stored in insertion order; flip to newest first and cap.
	for i, j := 0, len(txs)-1; i < j; i, j = i+1, j-1 {
		txs[i], txs[j] = txs[j], txs[i]
	}
	if int64(len(txs)) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

// apply performs one atomic balance mutation plus its transaction record.
func (l *Ledger) apply(ctx context.Context, userID string, deltas store.Deltas, floors []string, signedAmount int64, kind models.TransactionKind, reason string) (*models.Account, error) {
	var acct models.Account
	err := l.store.IncrementAndReturn(ctx, store.Accounts, userID, deltas, floors, &acct)
	if errors.Is(err, store.ErrNoDoc) {
		return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, userID)
	}
	if errors.Is(err, store.ErrFloor) {
		return nil, fmt.Errorf("%w: balance below %d", models.ErrInsufficientFunds, -signedAmount)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update balance: %v", err)
	}

	tx := &models.Transaction{
		UserID: userID,
		Amount: signedAmount,
		Kind:   kind,
		Reason: reason,
	}
	if _, err := l.store.Insert(ctx, store.Transactions, tx); err != nil {
		// Compensate: the balance change must not be observable without
		// its audit record. The reversal keeps the non-negative floor; if
		// a concurrent debit already spent a credited amount the reversal
		// loses and the discrepancy is logged rather than overdrawn.
		reverse := store.Deltas{}
		var reverseFloors []string
		for path, delta := range deltas {
			reverse[path] = -delta
			if delta > 0 {
				reverseFloors = append(reverseFloors, path)
			}
		}
		if revErr := l.store.IncrementAndReturn(ctx, store.Accounts, userID, reverse, reverseFloors, nil); revErr != nil {
			log.Printf("Failed to reverse %v for %s after transaction write failure: %v", deltas, userID, revErr)
		}
		return nil, fmt.Errorf("failed to record transaction: %v", err)
	}

	return &acct, nil
}
