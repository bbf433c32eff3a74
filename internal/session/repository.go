package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/abhisamaya/therapy-bro/internal/db"
)

const sessionColumns = "id, session_id, user_id, category, notes, session_start_time, session_end_time, duration_seconds, status, created_at, updated_at"

const messageColumns = "id, session_id, role, content, created_at"

type SQLRepository struct {
	db *sqlx.DB
}

func NewRepository(database *sqlx.DB) *SQLRepository {
	return &SQLRepository{db: database}
}

// CreateWithSystemMessage inserts the session row and its opening system
// message in one transaction; neither is visible without the other.
func (r *SQLRepository) CreateWithSystemMessage(ctx context.Context, s *ChatSession, systemContent string) (*ChatSession, error) {
	created := &ChatSession{}
	err := db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx,
			`INSERT INTO chat_sessions (session_id, user_id, category, session_start_time, session_end_time, duration_seconds, status)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING `+sessionColumns,
			s.SessionID, s.UserID, s.Category, s.StartTime, s.EndTime, s.DurationSeconds, s.Status,
		).StructScan(created)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO messages (session_id, role, content) VALUES ($1, $2, $3)`,
			s.SessionID, RoleSystem, systemContent,
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *SQLRepository) CountByUser(ctx context.Context, userID int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM chat_sessions WHERE user_id = $1`, userID)
	return count, err
}

func (r *SQLRepository) FindBySessionAndUser(ctx context.Context, sessionID string, userID int) (*ChatSession, error) {
	s := &ChatSession{}
	err := r.db.GetContext(ctx, s,
		`SELECT `+sessionColumns+` FROM chat_sessions WHERE session_id = $1 AND user_id = $2`,
		sessionID, userID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *SQLRepository) ListByUser(ctx context.Context, userID int) ([]ChatSession, error) {
	var sessions []ChatSession
	err := r.db.SelectContext(ctx, &sessions,
		`SELECT `+sessionColumns+` FROM chat_sessions WHERE user_id = $1 ORDER BY updated_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// ExtendPaid charges and extends in one transaction: charge runs against
// the same tx as the timer update, so a failure in either rolls back both
// and no charge can outlive a failed extension. The new window is computed
// in SQL — GREATEST stacks onto a still-running window and restarts a
// lapsed one from now — which also makes concurrent extends additive
// instead of overwriting each other.
func (r *SQLRepository) ExtendPaid(ctx context.Context, sessionID string, now time.Time, durationSeconds int, charge func(tx *sqlx.Tx) error) (time.Time, error) {
	var newEnd time.Time
	err := db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := charge(tx); err != nil {
			return err
		}

		err := tx.QueryRowxContext(ctx,
			`UPDATE chat_sessions
			 SET session_end_time = GREATEST(session_end_time, $2) + make_interval(secs => $3),
			     duration_seconds = $3, status = $4, updated_at = NOW()
			 WHERE session_id = $1
			 RETURNING session_end_time`,
			sessionID, now, durationSeconds, StatusActive,
		).Scan(&newEnd)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrSessionNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}
	return newEnd, nil
}

func (r *SQLRepository) UpdateNotes(ctx context.Context, sessionID string, userID int, notes string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE chat_sessions SET notes = $3, updated_at = NOW() WHERE session_id = $1 AND user_id = $2`,
		sessionID, userID, notes,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Delete removes the session and all its messages.
func (r *SQLRepository) Delete(ctx context.Context, sessionID string, userID int) error {
	return db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM chat_sessions WHERE session_id = $1 AND user_id = $2`,
			sessionID, userID,
		)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrSessionNotFound
		}

		// messages cascade via FK, but sweep explicitly so the behavior
		// does not depend on the schema being fully migrated
		_, err = tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = $1`, sessionID)
		return err
	})
}

func (r *SQLRepository) AddMessage(ctx context.Context, sessionID, role, content string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (session_id, role, content) VALUES ($1, $2, $3)`,
		sessionID, role, content,
	)
	return err
}

func (r *SQLRepository) Touch(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE chat_sessions SET updated_at = NOW() WHERE session_id = $1`,
		sessionID,
	)
	return err
}

func (r *SQLRepository) ListMessages(ctx context.Context, sessionID string) ([]Message, error) {
	var messages []Message
	err := r.db.SelectContext(ctx, &messages,
		`SELECT `+messageColumns+` FROM messages WHERE session_id = $1 ORDER BY created_at ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	return messages, nil
}
