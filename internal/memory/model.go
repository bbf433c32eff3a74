package memory

import "time"

// FinalizeJob is the unit of work on the finalize queue. Tries counts
// processing attempts, not enqueues.
type FinalizeJob struct {
	SessionID  string    `json:"session_id"`
	UserID     int       `json:"user_id"`
	Tries      int       `json:"tries"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Chunk is one slice of a finalized session transcript, sized for later
// embedding and retrieval.
type Chunk struct {
	ID         int       `db:"id" json:"id"`
	SessionID  string    `db:"session_id" json:"session_id"`
	UserID     int       `db:"user_id" json:"user_id"`
	ChunkIndex int       `db:"chunk_index" json:"chunk_index"`
	Content    string    `db:"content" json:"content"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// TranscriptLine is a single conversation turn fed to the chunker.
type TranscriptLine struct {
	Role    string
	Content string
}
