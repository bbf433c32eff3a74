package memory

import "context"

type Repository interface {
	StoreFinalization(ctx context.Context, sessionID string, userID int, contents []string) (bool, error)
	LoadTranscript(ctx context.Context, sessionID string) ([]TranscriptLine, error)
	CountBySession(ctx context.Context, sessionID string) (int, error)
}
