package wallet

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type Repository interface {
	FindByUserID(ctx context.Context, userID int) (*Wallet, error)
	GetOrCreate(ctx context.Context, userID int) (*Wallet, error)
	CreateWithBonus(ctx context.Context, userID int) (*Wallet, error)
	Debit(ctx context.Context, userID int, amount decimal.Decimal, referenceID string, meta Meta) (*Wallet, *Transaction, error)
	DebitTx(ctx context.Context, tx *sqlx.Tx, userID int, amount decimal.Decimal, referenceID string, meta Meta) (*Wallet, *Transaction, error)
	ListTransactions(ctx context.Context, userID int, limit, offset int) ([]Transaction, error)
}
