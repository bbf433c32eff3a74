package wallet

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Ledger transaction types.
const (
	TypeTopUp       = "topup"
	TypeCharge      = "charge"
	TypeRefund      = "refund"
	TypeFreeSession = "free_session"
	TypeAdjustment  = "adjustment"
)

// ReferenceSignupBonus tags the one ledger row written at wallet creation.
const ReferenceSignupBonus = "initial_signup_bonus"

// Wallet is one per user. Balance only ever changes together with a ledger
// row; NUMERIC(20,4) in the database.
type Wallet struct {
	ID        int             `db:"id" json:"id"`
	UserID    int             `db:"user_id" json:"user_id"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	Reserved  decimal.Decimal `db:"reserved" json:"reserved"`
	Currency  string          `db:"currency" json:"currency"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Transaction is an immutable ledger row. Amount is signed: credits
// positive, debits negative. BalanceAfter snapshots the running balance at
// insertion time.
type Transaction struct {
	ID           int             `db:"id" json:"id"`
	WalletID     int             `db:"wallet_id" json:"wallet_id"`
	UserID       int             `db:"user_id" json:"user_id"`
	Type         string          `db:"type" json:"type"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	BalanceAfter decimal.Decimal `db:"balance_after" json:"balance_after"`
	ReferenceID  string          `db:"reference_id" json:"reference_id"`
	Meta         Meta            `db:"meta" json:"meta"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// Meta is free-form transaction metadata stored as JSONB.
type Meta map[string]interface{}

func (m Meta) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *Meta) Scan(src interface{}) error {
	if src == nil {
		*m = Meta{}
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported meta type %T", src)
	}
}

// VerifyLedger checks that folding txs in creation order reproduces each
// balance_after snapshot and returns the final balance. txs must be ordered
// oldest first.
func VerifyLedger(txs []Transaction) (decimal.Decimal, error) {
	running := decimal.Zero
	for i, tx := range txs {
		running = running.Add(tx.Amount)
		if !running.Equal(tx.BalanceAfter) {
			return decimal.Zero, fmt.Errorf(
				"ledger mismatch at row %d (id=%d): running %s != balance_after %s",
				i, tx.ID, running.String(), tx.BalanceAfter.String(),
			)
		}
	}
	return running, nil
}

// BalanceResponse mirrors what the HTTP layer returns for balance reads.
type BalanceResponse struct {
	Balance  string `json:"balance" example:"200.0000"`
	Reserved string `json:"reserved" example:"0.0000"`
	Currency string `json:"currency" example:"INR"`
}

type CreateWalletResponse struct {
	WalletID int    `json:"wallet_id"`
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
}

var (
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
)
