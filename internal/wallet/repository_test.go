package wallet

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	testBonus    = decimal.RequireFromString("200.0000")
	testCurrency = "INR"
)

func setupWalletMock(t *testing.T) (*SQLRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewRepository(sqlxDB, testBonus, testCurrency)

	closer := func() { sqlxDB.Close() }
	return repo, mock, closer
}

func walletRows(id, userID int, balance string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "user_id", "balance", "reserved", "currency", "created_at", "updated_at"}).
		AddRow(id, userID, balance, "0.0000", testCurrency, now, now)
}

func TestFindByUserID_NotFound(t *testing.T) {
	repo, mock, close := setupWalletMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, balance, reserved, currency, created_at, updated_at FROM wallets WHERE user_id = $1")).
		WithArgs(10).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByUserID(context.Background(), 10)
	require.ErrorIs(t, err, ErrWalletNotFound)
}

func TestCreateWithBonus(t *testing.T) {
	repo, mock, close := setupWalletMock(t)
	defer close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO wallets (user_id, balance, reserved, currency)")).
		WithArgs(10, testBonus, testCurrency).
		WillReturnRows(walletRows(5, 10, "200.0000"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO wallet_transactions (wallet_id, user_id, type, amount, balance_after, reference_id, meta)")).
		WithArgs(5, 10, TypeTopUp, testBonus, testBonus, ReferenceSignupBonus, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	w, err := repo.CreateWithBonus(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 5, w.ID)
	require.True(t, w.Balance.Equal(testBonus))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithBonus_LostCreationRace(t *testing.T) {
	repo, mock, close := setupWalletMock(t)
	defer close()

	// ON CONFLICT DO NOTHING returns no row: someone else created the
	// wallet first. No second bonus ledger row may be written.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO wallets (user_id, balance, reserved, currency)")).
		WithArgs(10, testBonus, testCurrency).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, balance, reserved, currency, created_at, updated_at FROM wallets WHERE user_id = $1")).
		WithArgs(10).
		WillReturnRows(walletRows(5, 10, "200.0000"))
	mock.ExpectCommit()

	w, err := repo.CreateWithBonus(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 5, w.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDebit_Success(t *testing.T) {
	repo, mock, close := setupWalletMock(t)
	defer close()

	amount := decimal.RequireFromString("20.00")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO wallets (user_id, currency) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING")).
		WithArgs(20, testCurrency).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE wallets SET balance = balance - $2, updated_at = NOW() WHERE user_id = $1 AND balance >= $2")).
		WithArgs(20, amount).
		WillReturnRows(walletRows(7, 20, "180.0000"))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO wallet_transactions (wallet_id, user_id, type, amount, balance_after, reference_id, meta)")).
		WithArgs(7, 20, TypeCharge, amount.Neg(), sqlmock.AnyArg(), "extend:abc", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "wallet_id", "user_id", "type", "amount", "balance_after", "reference_id", "meta", "created_at"}).
			AddRow(33, 7, 20, TypeCharge, "-20.00", "180.0000", "extend:abc", []byte(`{}`), time.Now()))
	mock.ExpectCommit()

	w, ledger, err := repo.Debit(context.Background(), 20, amount, "extend:abc", Meta{"duration_seconds": 300})
	require.NoError(t, err)
	require.True(t, w.Balance.Equal(decimal.RequireFromString("180.0000")))
	require.True(t, ledger.Amount.Equal(amount.Neg()))
	require.True(t, ledger.BalanceAfter.Equal(w.Balance))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDebit_InsufficientFunds(t *testing.T) {
	repo, mock, close := setupWalletMock(t)
	defer close()

	amount := decimal.RequireFromString("20.00")

	// The conditional UPDATE matches no row when balance < amount, so
	// nothing is written and the transaction rolls back.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO wallets (user_id, currency) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING")).
		WithArgs(20, testCurrency).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE wallets SET balance = balance - $2, updated_at = NOW() WHERE user_id = $1 AND balance >= $2")).
		WithArgs(20, amount).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, _, err := repo.Debit(context.Background(), 20, amount, "extend:abc", nil)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListTransactions_NoWallet(t *testing.T) {
	repo, mock, close := setupWalletMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM wallets WHERE user_id = $1")).
		WithArgs(99).
		WillReturnError(sql.ErrNoRows)

	txs, err := repo.ListTransactions(context.Background(), 99, 50, 0)
	require.NoError(t, err)
	require.Empty(t, txs)
}
