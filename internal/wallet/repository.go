package wallet

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/abhisamaya/therapy-bro/internal/db"
)

const walletColumns = "id, user_id, balance, reserved, currency, created_at, updated_at"

const transactionColumns = "id, wallet_id, user_id, type, amount, balance_after, reference_id, meta, created_at"

type SQLRepository struct {
	db             *sqlx.DB
	initialBalance decimal.Decimal
	currency       string
}

func NewRepository(database *sqlx.DB, initialBalance decimal.Decimal, currency string) *SQLRepository {
	return &SQLRepository{
		db:             database,
		initialBalance: initialBalance,
		currency:       currency,
	}
}

func (r *SQLRepository) FindByUserID(ctx context.Context, userID int) (*Wallet, error) {
	w := &Wallet{}
	err := r.db.GetContext(ctx, w, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return w, nil
}

// CreateWithBonus creates the user's wallet carrying the signup bonus and
// writes the matching topup ledger row in the same transaction. Concurrent
// first access is resolved by ON CONFLICT DO NOTHING: the loser of the race
// reuses the winner's wallet and writes no second bonus.
func (r *SQLRepository) CreateWithBonus(ctx context.Context, userID int) (*Wallet, error) {
	w := &Wallet{}
	err := db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx,
			`INSERT INTO wallets (user_id, balance, reserved, currency)
			 VALUES ($1, $2, 0, $3)
			 ON CONFLICT (user_id) DO NOTHING
			 RETURNING `+walletColumns,
			userID, r.initialBalance, r.currency,
		).StructScan(w)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				// lost the creation race, wallet already exists
				return tx.QueryRowxContext(ctx,
					`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID,
				).StructScan(w)
			}
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO wallet_transactions (wallet_id, user_id, type, amount, balance_after, reference_id, meta)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			w.ID, userID, TypeTopUp, r.initialBalance, r.initialBalance,
			ReferenceSignupBonus, Meta{"reason": "New user signup bonus"},
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (r *SQLRepository) GetOrCreate(ctx context.Context, userID int) (*Wallet, error) {
	w, err := r.FindByUserID(ctx, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, ErrWalletNotFound) {
		return nil, err
	}
	return r.CreateWithBonus(ctx, userID)
}

// Debit withdraws amount (positive) and appends the matching charge ledger
// row atomically in its own transaction.
func (r *SQLRepository) Debit(ctx context.Context, userID int, amount decimal.Decimal, referenceID string, meta Meta) (*Wallet, *Transaction, error) {
	var w *Wallet
	var ledgerTx *Transaction

	err := db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var err error
		w, ledgerTx, err = r.DebitTx(ctx, tx, userID, amount, referenceID, meta)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return w, ledgerTx, nil
}

// DebitTx runs the debit inside a caller-owned transaction, so the charge
// commits or rolls back together with whatever the caller pairs it with.
// The funds check and the decrement are a single conditional UPDATE, so two
// concurrent debits can never both spend the same balance. A missing wallet
// is created empty first, which makes the funds check fail the same way as
// an underfunded one.
func (r *SQLRepository) DebitTx(ctx context.Context, tx *sqlx.Tx, userID int, amount decimal.Decimal, referenceID string, meta Meta) (*Wallet, *Transaction, error) {
	w := &Wallet{}
	ledgerTx := &Transaction{}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO wallets (user_id, currency) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING`,
		userID, r.currency,
	)
	if err != nil {
		return nil, nil, err
	}

	err = tx.QueryRowxContext(ctx,
		`UPDATE wallets
		 SET balance = balance - $2, updated_at = NOW()
		 WHERE user_id = $1 AND balance >= $2
		 RETURNING `+walletColumns,
		userID, amount,
	).StructScan(w)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrInsufficientFunds
		}
		return nil, nil, err
	}

	err = tx.QueryRowxContext(ctx,
		`INSERT INTO wallet_transactions (wallet_id, user_id, type, amount, balance_after, reference_id, meta)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+transactionColumns,
		w.ID, userID, TypeCharge, amount.Neg(), w.Balance, referenceID, meta,
	).StructScan(ledgerTx)
	if err != nil {
		return nil, nil, err
	}
	return w, ledgerTx, nil
}

func (r *SQLRepository) ListTransactions(ctx context.Context, userID int, limit, offset int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}

	var walletID int
	err := r.db.GetContext(ctx, &walletID, `SELECT id FROM wallets WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []Transaction{}, nil
		}
		return nil, err
	}

	var txs []Transaction
	err = r.db.SelectContext(ctx, &txs,
		`SELECT `+transactionColumns+`
		 FROM wallet_transactions
		 WHERE wallet_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		walletID, limit, offset,
	)
	if err != nil {
		return nil, err
	}

	return txs, nil
}
