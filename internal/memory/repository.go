package memory

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/abhisamaya/therapy-bro/internal/db"
)

type SQLRepository struct {
	db *sqlx.DB
}

func NewRepository(database *sqlx.DB) *SQLRepository {
	return &SQLRepository{db: database}
}

// StoreFinalization writes the finalization marker and all chunks of one
// session in a single transaction. The marker insert resolves concurrent
// attempts to exactly one winner via ON CONFLICT DO NOTHING; the loser
// returns claimed=false without writing anything. Any chunk failure rolls
// the marker back too, so a retried job starts from a clean slate instead
// of finding a claim with no chunks behind it.
func (r *SQLRepository) StoreFinalization(ctx context.Context, sessionID string, userID int, contents []string) (bool, error) {
	claimed := false
	err := db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO session_finalizations (session_id, user_id)
			 VALUES ($1, $2)
			 ON CONFLICT (session_id) DO NOTHING`,
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
			return nil
		}
		claimed = true

		for i, content := range contents {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO memory_chunks (session_id, user_id, chunk_index, content)
				 VALUES ($1, $2, $3, $4)`,
				sessionID, userID, i, content,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}

// LoadTranscript pulls a session's conversation in order for chunking.
func (r *SQLRepository) LoadTranscript(ctx context.Context, sessionID string) ([]TranscriptLine, error) {
	var lines []TranscriptLine
	rows, err := r.db.QueryxContext(ctx,
		`SELECT role, content FROM messages WHERE session_id = $1 ORDER BY created_at ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var line TranscriptLine
		if err := rows.Scan(&line.Role, &line.Content); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *SQLRepository) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM memory_chunks WHERE session_id = $1`, sessionID)
	return count, err
}
