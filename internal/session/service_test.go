package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/abhisamaya/therapy-bro/internal/wallet"
)

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) CreateWithSystemMessage(ctx context.Context, s *ChatSession, systemContent string) (*ChatSession, error) {
	args := m.Called(ctx, s, systemContent)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ChatSession), args.Error(1)
}

func (m *mockSessionRepo) CountByUser(ctx context.Context, userID int) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *mockSessionRepo) FindBySessionAndUser(ctx context.Context, sessionID string, userID int) (*ChatSession, error) {
	args := m.Called(ctx, sessionID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ChatSession), args.Error(1)
}

func (m *mockSessionRepo) ListByUser(ctx context.Context, userID int) ([]ChatSession, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ChatSession), args.Error(1)
}

func (m *mockSessionRepo) ExtendPaid(ctx context.Context, sessionID string, now time.Time, durationSeconds int, charge func(tx *sqlx.Tx) error) (time.Time, error) {
	args := m.Called(ctx, sessionID, now, durationSeconds)
	if err := charge(nil); err != nil {
		return time.Time{}, err
	}
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *mockSessionRepo) UpdateNotes(ctx context.Context, sessionID string, userID int, notes string) error {
	args := m.Called(ctx, sessionID, userID, notes)
	return args.Error(0)
}

func (m *mockSessionRepo) Delete(ctx context.Context, sessionID string, userID int) error {
	args := m.Called(ctx, sessionID, userID)
	return args.Error(0)
}

func (m *mockSessionRepo) AddMessage(ctx context.Context, sessionID, role, content string) error {
	args := m.Called(ctx, sessionID, role, content)
	return args.Error(0)
}

func (m *mockSessionRepo) Touch(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *mockSessionRepo) ListMessages(ctx context.Context, sessionID string) ([]Message, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Message), args.Error(1)
}

type mockWalletRepo struct {
	mock.Mock
}

func (m *mockWalletRepo) FindByUserID(ctx context.Context, userID int) (*wallet.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *mockWalletRepo) GetOrCreate(ctx context.Context, userID int) (*wallet.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *mockWalletRepo) CreateWithBonus(ctx context.Context, userID int) (*wallet.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *mockWalletRepo) Debit(ctx context.Context, userID int, amount decimal.Decimal, referenceID string, meta wallet.Meta) (*wallet.Wallet, *wallet.Transaction, error) {
	args := m.Called(ctx, userID, amount, referenceID, meta)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*wallet.Wallet), args.Get(1).(*wallet.Transaction), args.Error(2)
}

func (m *mockWalletRepo) DebitTx(ctx context.Context, tx *sqlx.Tx, userID int, amount decimal.Decimal, referenceID string, meta wallet.Meta) (*wallet.Wallet, *wallet.Transaction, error) {
	args := m.Called(ctx, userID, amount, referenceID, meta)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*wallet.Wallet), args.Get(1).(*wallet.Transaction), args.Error(2)
}

func (m *mockWalletRepo) ListTransactions(ctx context.Context, userID int, limit, offset int) ([]wallet.Transaction, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]wallet.Transaction), args.Error(1)
}

type mockFinalizer struct {
	mock.Mock
}

func (m *mockFinalizer) Finalize(ctx context.Context, sessionID string, userID int) error {
	args := m.Called(ctx, sessionID, userID)
	return args.Error(0)
}

func newTestService(sessions *mockSessionRepo, wallets *mockWalletRepo, fin *mockFinalizer, now time.Time) *service {
	var finalizer Finalizer
	if fin != nil {
		finalizer = fin
	}
	svc := NewService(sessions, wallets, finalizer, 300, decimal.RequireFromString("4.00")).(*service)
	svc.now = func() time.Time { return now }
	return svc
}

func TestCreate_FirstSessionGetsFreeWindow(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	sessions := new(mockSessionRepo)
	wallets := new(mockWalletRepo)

	sessions.On("CountByUser", mock.Anything, 7).Return(0, nil)
	sessions.On("CreateWithSystemMessage", mock.Anything, mock.MatchedBy(func(s *ChatSession) bool {
		return s.UserID == 7 &&
			s.Status == StatusActive &&
			s.DurationSeconds == 300 &&
			s.EndTime.Sub(*s.StartTime) == 5*time.Minute &&
			len(s.SessionID) == 32
	}), "you are a helper").Return(&ChatSession{
		SessionID:       "abc123",
		UserID:          7,
		StartTime:       &now,
		EndTime:         timePtr(now.Add(5 * time.Minute)),
		DurationSeconds: 300,
		Status:          StatusActive,
	}, nil)
	wallets.On("FindByUserID", mock.Anything, 7).Return(&wallet.Wallet{
		Balance:  decimal.RequireFromString("200.0000"),
		Reserved: decimal.Zero,
	}, nil)

	svc := newTestService(sessions, wallets, nil, now)
	resp, err := svc.Create(context.Background(), 7, "general", "you are a helper")
	require.NoError(t, err)

	assert.Equal(t, StatusActive, resp.Status)
	assert.Equal(t, 300, resp.RemainingSeconds)
	assert.Nil(t, resp.CostCharged)
	assert.Equal(t, "200.0000", resp.WalletBalance)
	assert.Equal(t, "0.0000", resp.WalletReserved)
	sessions.AssertExpectations(t)
}

func TestCreate_SecondSessionStartsInert(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	sessions := new(mockSessionRepo)
	wallets := new(mockWalletRepo)

	sessions.On("CountByUser", mock.Anything, 7).Return(3, nil)
	sessions.On("CreateWithSystemMessage", mock.Anything, mock.MatchedBy(func(s *ChatSession) bool {
		return s.Status == StatusEnded && s.DurationSeconds == 0 && s.EndTime.Equal(*s.StartTime)
	}), mock.Anything).Return(&ChatSession{
		SessionID: "def456",
		UserID:    7,
		StartTime: &now,
		EndTime:   &now,
		Status:    StatusEnded,
	}, nil)
	wallets.On("FindByUserID", mock.Anything, 7).Return(nil, wallet.ErrWalletNotFound)

	svc := newTestService(sessions, wallets, nil, now)
	resp, err := svc.Create(context.Background(), 7, "general", "prompt")
	require.NoError(t, err)

	assert.Equal(t, StatusEnded, resp.Status)
	assert.Equal(t, 0, resp.RemainingSeconds)
	assert.Equal(t, "0.0000", resp.WalletBalance)
}

func TestExtend_InvalidDurationRejectedBeforeAnyLookup(t *testing.T) {
	sessions := new(mockSessionRepo)
	wallets := new(mockWalletRepo)
	svc := newTestService(sessions, wallets, nil, time.Now())

	for _, dur := range []int{0, -60, 90, 61} {
		_, err := svc.Extend(context.Background(), "abc", 7, dur, "")
		assert.ErrorIs(t, err, ErrInvalidDuration, "duration %d", dur)
	}

	sessions.AssertNotCalled(t, "FindBySessionAndUser", mock.Anything, mock.Anything, mock.Anything)
	sessions.AssertNotCalled(t, "ExtendPaid", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExtend_SessionNotFound(t *testing.T) {
	sessions := new(mockSessionRepo)
	wallets := new(mockWalletRepo)
	sessions.On("FindBySessionAndUser", mock.Anything, "missing", 7).Return(nil, ErrSessionNotFound)

	svc := newTestService(sessions, wallets, nil, time.Now())
	_, err := svc.Extend(context.Background(), "missing", 7, 600, "")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestExtend_YesterdaySessionRejected(t *testing.T) {
	now := time.Date(2025, 6, 10, 0, 30, 0, 0, time.UTC)
	started := time.Date(2025, 6, 9, 23, 45, 0, 0, time.UTC)

	sessions := new(mockSessionRepo)
	wallets := new(mockWalletRepo)
	sessions.On("FindBySessionAndUser", mock.Anything, "abc", 7).Return(&ChatSession{
		SessionID: "abc", UserID: 7, StartTime: &started, EndTime: &started,
	}, nil)

	svc := newTestService(sessions, wallets, nil, now)
	_, err := svc.Extend(context.Background(), "abc", 7, 600, "")
	assert.ErrorIs(t, err, ErrNotToday)
	sessions.AssertNotCalled(t, "ExtendPaid", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	wallets.AssertNotCalled(t, "DebitTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExtend_InsufficientFundsAbortsWholeTransaction(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	started := now.Add(-10 * time.Minute)

	sessions := new(mockSessionRepo)
	wallets := new(mockWalletRepo)
	sessions.On("FindBySessionAndUser", mock.Anything, "abc", 7).Return(&ChatSession{
		SessionID: "abc", UserID: 7, StartTime: &started, EndTime: &started,
	}, nil)
	sessions.On("ExtendPaid", mock.Anything, "abc", now, 600).Return(time.Time{}, nil)
	wallets.On("DebitTx", mock.Anything, 7, decimal.RequireFromString("40.00"), "extend:abc", mock.Anything).
		Return(nil, nil, wallet.ErrInsufficientFunds)

	svc := newTestService(sessions, wallets, nil, now)
	_, err := svc.Extend(context.Background(), "abc", 7, 600, "")
	assert.ErrorIs(t, err, wallet.ErrInsufficientFunds)
}

func TestExtend_ChargesAndReturnsNewWindow(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	started := now.Add(-2 * time.Hour)
	ended := now.Add(-time.Hour)

	sessions := new(mockSessionRepo)
	wallets := new(mockWalletRepo)
	sessions.On("FindBySessionAndUser", mock.Anything, "abc", 7).Return(&ChatSession{
		SessionID: "abc", UserID: 7, StartTime: &started, EndTime: &ended, Status: StatusEnded,
	}, nil)
	wallets.On("DebitTx", mock.Anything, 7, decimal.RequireFromString("40.00"), "extend:abc",
		mock.MatchedBy(func(m wallet.Meta) bool {
			return m["duration_seconds"] == 600 && m["request_id"] == "req-1"
		})).Return(&wallet.Wallet{
		Balance:  decimal.RequireFromString("160.0000"),
		Reserved: decimal.Zero,
	}, &wallet.Transaction{}, nil)
	sessions.On("ExtendPaid", mock.Anything, "abc", now, 600).
		Return(now.Add(10*time.Minute), nil)

	svc := newTestService(sessions, wallets, nil, now)
	resp, err := svc.Extend(context.Background(), "abc", 7, 600, "req-1")
	require.NoError(t, err)

	assert.Equal(t, "40.00", resp.CostCharged)
	assert.Equal(t, 600, resp.RemainingSeconds)
	assert.Equal(t, "160.0000", resp.WalletBalance)
	sessions.AssertExpectations(t)
	wallets.AssertExpectations(t)
}

func TestExtend_RemainingComputedFromStackedWindow(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	started := now.Add(-time.Minute)
	ended := now.Add(4 * time.Minute)

	sessions := new(mockSessionRepo)
	wallets := new(mockWalletRepo)
	sessions.On("FindBySessionAndUser", mock.Anything, "abc", 7).Return(&ChatSession{
		SessionID: "abc", UserID: 7, StartTime: &started, EndTime: &ended, Status: StatusActive,
	}, nil)
	wallets.On("DebitTx", mock.Anything, 7, decimal.RequireFromString("4.00"), "extend:abc", mock.Anything).
		Return(&wallet.Wallet{Balance: decimal.RequireFromString("196.0000"), Reserved: decimal.Zero},
			&wallet.Transaction{}, nil)

	// 4 minutes left + 1 bought = window ends 5 minutes from now
	sessions.On("ExtendPaid", mock.Anything, "abc", now, 60).
		Return(ended.Add(time.Minute), nil)

	svc := newTestService(sessions, wallets, nil, now)
	resp, err := svc.Extend(context.Background(), "abc", 7, 60, "")
	require.NoError(t, err)

	assert.Equal(t, 300, resp.RemainingSeconds)
	sessions.AssertExpectations(t)
}

func TestAcceptUserMessage_ExpiredTriggersFinalizeAndRejects(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	started := now.Add(-time.Hour)
	ended := now.Add(-30 * time.Minute)

	sessions := new(mockSessionRepo)
	fin := new(mockFinalizer)
	sessions.On("FindBySessionAndUser", mock.Anything, "abc", 7).Return(&ChatSession{
		SessionID: "abc", UserID: 7, StartTime: &started, EndTime: &ended, Status: StatusActive,
	}, nil)
	fin.On("Finalize", mock.Anything, "abc", 7).Return(nil)

	svc := newTestService(sessions, new(mockWalletRepo), fin, now)
	_, err := svc.AcceptUserMessage(context.Background(), "abc", 7, "hello?")
	assert.ErrorIs(t, err, ErrSessionExpired)

	fin.AssertExpectations(t)
	sessions.AssertNotCalled(t, "AddMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAcceptUserMessage_FinalizeFailureStillRejectsCleanly(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	started := now.Add(-time.Hour)
	ended := now.Add(-30 * time.Minute)

	sessions := new(mockSessionRepo)
	fin := new(mockFinalizer)
	sessions.On("FindBySessionAndUser", mock.Anything, "abc", 7).Return(&ChatSession{
		SessionID: "abc", UserID: 7, StartTime: &started, EndTime: &ended,
	}, nil)
	fin.On("Finalize", mock.Anything, "abc", 7).Return(errors.New("queue down"))

	svc := newTestService(sessions, new(mockWalletRepo), fin, now)
	_, err := svc.AcceptUserMessage(context.Background(), "abc", 7, "hello?")
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestAcceptUserMessage_UsableSessionPersistsAndReturnsHistory(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	started := now.Add(-time.Minute)
	ended := now.Add(4 * time.Minute)

	sessions := new(mockSessionRepo)
	sessions.On("FindBySessionAndUser", mock.Anything, "abc", 7).Return(&ChatSession{
		SessionID: "abc", UserID: 7, StartTime: &started, EndTime: &ended, Status: StatusActive,
	}, nil)
	sessions.On("AddMessage", mock.Anything, "abc", RoleUser, "hello").Return(nil)
	sessions.On("Touch", mock.Anything, "abc").Return(nil)
	sessions.On("ListMessages", mock.Anything, "abc").Return([]Message{
		{Role: RoleSystem, Content: "prompt"},
		{Role: RoleUser, Content: "hello"},
	}, nil)

	svc := newTestService(sessions, new(mockWalletRepo), nil, now)
	history, err := svc.AcceptUserMessage(context.Background(), "abc", 7, "hello")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, RoleUser, history[1].Role)
	sessions.AssertExpectations(t)
}

func TestList_ResolvesStatusAgainstClock(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	live := now.Add(2 * time.Minute)
	dead := now.Add(-2 * time.Minute)

	sessions := new(mockSessionRepo)
	sessions.On("ListByUser", mock.Anything, 7).Return([]ChatSession{
		{SessionID: "live", Status: StatusActive, EndTime: &live, UpdatedAt: now},
		{SessionID: "dead", Status: StatusActive, EndTime: &dead, UpdatedAt: now},
	}, nil)

	svc := newTestService(sessions, new(mockWalletRepo), nil, now)
	items, err := svc.List(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, StatusActive, items[0].Status)
	assert.Equal(t, 120, items[0].RemainingSeconds)
	assert.Equal(t, StatusEnded, items[1].Status)
	assert.Equal(t, 0, items[1].RemainingSeconds)
}

func timePtr(t time.Time) *time.Time { return &t }
