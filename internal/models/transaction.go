package models

import "time"

type TransactionKind string

const (
	TransactionEarn        TransactionKind = "earn"
	TransactionSpend       TransactionKind = "spend"
	TransactionTransferIn  TransactionKind = "transfer_in"
	TransactionTransferOut TransactionKind = "transfer_out"
)

// Transaction is the immutable audit record appended once per ledger
// mutation. Amount is signed: positive for earn/transfer_in, negative for
// spend/transfer_out.
type Transaction struct {
	ID     string          `json:"id"`
	UserID string          `json:"user_id"`
	Amount int64           `json:"amount"`
	Kind   TransactionKind `json:"kind"`
	Reason string          `json:"reason"`

	Rev       int64     `json:"rev"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
