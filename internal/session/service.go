package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/abhisamaya/therapy-bro/internal/logger"
	"github.com/abhisamaya/therapy-bro/internal/metrics"
	"github.com/abhisamaya/therapy-bro/internal/wallet"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidDuration = errors.New("duration must be a positive multiple of 60 seconds")
	ErrNotToday        = errors.New("only sessions started today (UTC) can be extended")
	ErrSessionExpired  = errors.New("session has ended")
)

type Service interface {
	Create(ctx context.Context, userID int, category, systemPrompt string) (*StartSessionResponse, error)
	Extend(ctx context.Context, sessionID string, userID, durationSeconds int, requestID string) (*ExtendSessionResponse, error)
	List(ctx context.Context, userID int) ([]ConversationItem, error)
	History(ctx context.Context, sessionID string, userID int) (*HistoryResponse, error)
	UpdateNotes(ctx context.Context, sessionID string, userID int, notes string) error
	Delete(ctx context.Context, sessionID string, userID int) error
	AcceptUserMessage(ctx context.Context, sessionID string, userID int, content string) ([]Message, error)
	AppendAssistantMessage(ctx context.Context, sessionID, content string) error
}

type service struct {
	sessions       Repository
	wallets        wallet.Repository
	finalizer      Finalizer
	freeSeconds    int
	pricePerMinute decimal.Decimal

	now func() time.Time
}

func NewService(sessions Repository, wallets wallet.Repository, finalizer Finalizer, freeSeconds int, pricePerMinute decimal.Decimal) Service {
	return &service{
		sessions:       sessions,
		wallets:        wallets,
		finalizer:      finalizer,
		freeSeconds:    freeSeconds,
		pricePerMinute: pricePerMinute,
		now:            time.Now,
	}
}

// Create opens a session. The very first session of a user runs on the free
// bonus window; every later one starts inert until paid for. No charge is
// made here.
func (s *service) Create(ctx context.Context, userID int, category, systemPrompt string) (*StartSessionResponse, error) {
	count, err := s.sessions.CountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	isFirst := count == 0

	start := s.now().UTC()
	duration := 0
	end := start
	status := StatusEnded
	kind := "inert"
	if isFirst {
		duration = s.freeSeconds
		end = start.Add(time.Duration(duration) * time.Second)
		status = StatusActive
		kind = "free"
	}

	newSession := &ChatSession{
		SessionID:       strings.ReplaceAll(uuid.New().String(), "-", ""),
		UserID:          userID,
		Category:        category,
		StartTime:       &start,
		EndTime:         &end,
		DurationSeconds: duration,
		Status:          status,
	}

	created, err := s.sessions.CreateWithSystemMessage(ctx, newSession, systemPrompt)
	if err != nil {
		return nil, err
	}

	metrics.RecordSessionStarted(kind)
	logger.Info("session created",
		"session_id", created.SessionID, "user_id", userID, "first_session", isFirst)

	balance, reserved := "0.0000", "0.0000"
	if w, err := s.wallets.FindByUserID(ctx, userID); err == nil {
		balance, reserved = w.Balance.StringFixed(4), w.Reserved.StringFixed(4)
	}

	now := s.now()
	return &StartSessionResponse{
		SessionID:        created.SessionID,
		SessionStartTime: created.StartTime,
		SessionEndTime:   created.EndTime,
		DurationSeconds:  created.DurationSeconds,
		Status:           ResolveStatus(created, now),
		RemainingSeconds: RemainingSeconds(created, now),
		CostCharged:      nil,
		WalletBalance:    balance,
		WalletReserved:   reserved,
	}, nil
}

// Extend sells additional session time against the wallet. Validation and
// the temporal policy run before any write; the debit, its ledger row and
// the timer update share one transaction, so every failure path leaves
// wallet and session untouched.
func (s *service) Extend(ctx context.Context, sessionID string, userID, durationSeconds int, requestID string) (*ExtendSessionResponse, error) {
	if durationSeconds <= 0 || durationSeconds%60 != 0 {
		metrics.RecordExtension("invalid")
		return nil, ErrInvalidDuration
	}

	sess, err := s.sessions.FindBySessionAndUser(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()

	// extension is restricted to sessions started today (UTC); stale
	// sessions must be recreated, not revived
	if sess.StartTime == nil || !SameUTCDay(*sess.StartTime, now) {
		metrics.RecordExtension("not_today")
		return nil, ErrNotToday
	}

	minutes := decimal.NewFromInt(int64(durationSeconds)).Div(decimal.NewFromInt(60))
	amount := s.pricePerMinute.Mul(minutes).Round(2)

	meta := wallet.Meta{
		"duration_seconds": durationSeconds,
		"unit_price":       s.pricePerMinute.String(),
	}
	if requestID != "" {
		meta["request_id"] = requestID
	}

	var w *wallet.Wallet
	newEnd, err := s.sessions.ExtendPaid(ctx, sessionID, now, durationSeconds, func(tx *sqlx.Tx) error {
		var derr error
		w, _, derr = s.wallets.DebitTx(ctx, tx, userID, amount, "extend:"+sessionID, meta)
		return derr
	})
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrInsufficientFunds):
			metrics.RecordExtension("insufficient_funds")
			logger.Info("extension rejected: insufficient funds",
				"session_id", sessionID, "user_id", userID, "amount", amount.String())
		case errors.Is(err, ErrSessionNotFound):
		default:
			metrics.RecordExtension("error")
		}
		return nil, err
	}

	metrics.RecordExtension("success")
	metrics.RecordExtensionRevenue(amount.InexactFloat64())
	logger.Info("session extended",
		"session_id", sessionID, "user_id", userID,
		"duration_seconds", durationSeconds, "cost", amount.String())

	return &ExtendSessionResponse{
		SessionID:        sess.SessionID,
		SessionStartTime: sess.StartTime,
		SessionEndTime:   &newEnd,
		DurationSeconds:  durationSeconds,
		RemainingSeconds: int(newEnd.Sub(now).Seconds()),
		CostCharged:      amount.StringFixed(2),
		WalletBalance:    w.Balance.StringFixed(4),
		WalletReserved:   w.Reserved.StringFixed(4),
	}, nil
}

func (s *service) List(ctx context.Context, userID int) ([]ConversationItem, error) {
	sessions, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	items := make([]ConversationItem, 0, len(sessions))
	for i := range sessions {
		sess := &sessions[i]
		items = append(items, ConversationItem{
			SessionID:        sess.SessionID,
			Category:         sess.Category,
			UpdatedAt:        sess.UpdatedAt.UTC().Format(time.RFC3339),
			Notes:            sess.Notes,
			Status:           ResolveStatus(sess, now),
			RemainingSeconds: RemainingSeconds(sess, now),
		})
	}
	return items, nil
}

func (s *service) History(ctx context.Context, sessionID string, userID int) (*HistoryResponse, error) {
	sess, err := s.sessions.FindBySessionAndUser(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	messages, err := s.sessions.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	out := make([]MessageOut, 0, len(messages))
	for _, m := range messages {
		out = append(out, MessageOut{Role: m.Role, Content: m.Content})
	}

	now := s.now()
	return &HistoryResponse{
		SessionID:        sess.SessionID,
		Category:         sess.Category,
		SessionStartTime: sess.StartTime,
		SessionEndTime:   sess.EndTime,
		DurationSeconds:  sess.DurationSeconds,
		Status:           ResolveStatus(sess, now),
		RemainingSeconds: RemainingSeconds(sess, now),
		Messages:         out,
	}, nil
}

func (s *service) UpdateNotes(ctx context.Context, sessionID string, userID int, notes string) error {
	return s.sessions.UpdateNotes(ctx, sessionID, userID, notes)
}

func (s *service) Delete(ctx context.Context, sessionID string, userID int) error {
	return s.sessions.Delete(ctx, sessionID, userID)
}

// AcceptUserMessage is the usage gate in front of every message send. An
// unusable session triggers finalize-on-expiry (best effort, swallowed on
// failure) and rejects the message without persisting it. A usable one gets
// the message appended and the full conversation returned for the LLM.
func (s *service) AcceptUserMessage(ctx context.Context, sessionID string, userID int, content string) ([]Message, error) {
	sess, err := s.sessions.FindBySessionAndUser(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !Usable(sess, now) {
		metrics.RecordExpiredSend()
		if s.finalizer != nil {
			if err := s.finalizer.Finalize(ctx, sessionID, userID); err != nil {
				logger.Warn("finalize-on-expiry trigger failed",
					"session_id", sessionID, "error", err)
			}
		}
		return nil, ErrSessionExpired
	}

	if err := s.sessions.AddMessage(ctx, sessionID, RoleUser, content); err != nil {
		return nil, err
	}
	if err := s.sessions.Touch(ctx, sessionID); err != nil {
		return nil, err
	}
	metrics.RecordMessage(RoleUser)

	return s.sessions.ListMessages(ctx, sessionID)
}

func (s *service) AppendAssistantMessage(ctx context.Context, sessionID, content string) error {
	if err := s.sessions.AddMessage(ctx, sessionID, RoleAssistant, content); err != nil {
		return err
	}
	metrics.RecordMessage(RoleAssistant)
	return nil
}
