package session

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	CreateWithSystemMessage(ctx context.Context, s *ChatSession, systemContent string) (*ChatSession, error)
	CountByUser(ctx context.Context, userID int) (int, error)
	FindBySessionAndUser(ctx context.Context, sessionID string, userID int) (*ChatSession, error)
	ListByUser(ctx context.Context, userID int) ([]ChatSession, error)
	ExtendPaid(ctx context.Context, sessionID string, now time.Time, durationSeconds int, charge func(tx *sqlx.Tx) error) (time.Time, error)
	UpdateNotes(ctx context.Context, sessionID string, userID int, notes string) error
	Delete(ctx context.Context, sessionID string, userID int) error
	AddMessage(ctx context.Context, sessionID, role, content string) error
	Touch(ctx context.Context, sessionID string) error
	ListMessages(ctx context.Context, sessionID string) ([]Message, error)
}

// Finalizer hands an expired session over to the memory subsystem. The
// trigger must be effectively-once per session and its failure must never
// change the caller-visible outcome.
type Finalizer interface {
	Finalize(ctx context.Context, sessionID string, userID int) error
}
