package memory

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abhisamaya/therapy-bro/internal/logger"
	"github.com/abhisamaya/therapy-bro/internal/metrics"
)

const (
	queueKey  = "memory:finalize"
	failedKey = "memory:finalize:failed"

	maxTries    = 3
	popInterval = 5 * time.Second
)

// Service closes expired sessions out into long-term memory. Finalize
// enqueues; a background worker drains the queue, claims the session and
// writes its transcript chunks.
type Service struct {
	repo      Repository
	rdb       *redis.Client
	chunkSize int
}

func NewService(repo Repository, rdb *redis.Client) *Service {
	return &Service{repo: repo, rdb: rdb, chunkSize: DefaultChunkSize}
}

// Finalize queues the session for finalization. It never blocks on the
// actual work; the caller only pays for one redis push.
func (s *Service) Finalize(ctx context.Context, sessionID string, userID int) error {
	payload, err := json.Marshal(FinalizeJob{
		SessionID:  sessionID,
		UserID:     userID,
		EnqueuedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	if err := s.rdb.LPush(ctx, queueKey, payload).Err(); err != nil {
		return err
	}

	metrics.RecordFinalizeJob("queued")
	logger.Debug("finalize job queued", "session_id", sessionID)
	return nil
}

// Start runs the worker loop until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	logger.Info("finalize worker started")
	for {
		select {
		case <-ctx.Done():
			logger.Info("finalize worker stopped")
			return
		default:
		}

		res, err := s.rdb.BRPop(ctx, popInterval, queueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			logger.WithError(err).Warn("finalize queue pop failed")
			time.Sleep(time.Second)
			continue
		}
		if len(res) != 2 {
			continue
		}

		var job FinalizeJob
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			logger.WithError(err).Error("dropping malformed finalize job")
			metrics.RecordFinalizeJob("failed")
			continue
		}

		s.handle(ctx, job)
	}
}

func (s *Service) handle(ctx context.Context, job FinalizeJob) {
	if err := s.process(ctx, job); err != nil {
		job.Tries++
		if job.Tries < maxTries {
			logger.WithError(err).Warn("finalize failed, requeueing",
				"session_id", job.SessionID, "tries", job.Tries)
			if payload, merr := json.Marshal(job); merr == nil {
				if perr := s.rdb.LPush(ctx, queueKey, payload).Err(); perr == nil {
					return
				}
			}
		}
		logger.WithError(err).Error("finalize job failed permanently", "session_id", job.SessionID)
		metrics.RecordFinalizeJob("failed")
		if payload, merr := json.Marshal(job); merr == nil {
			_ = s.rdb.LPush(ctx, failedKey, payload).Err()
		}
	}
}

// process does the actual finalization. The claim marker and the chunks
// commit together, so a job that errors leaves no trace and a retry runs
// the whole thing again; the loser of a concurrent claim writes nothing
// and walks away.
func (s *Service) process(ctx context.Context, job FinalizeJob) error {
	lines, err := s.repo.LoadTranscript(ctx, job.SessionID)
	if err != nil {
		return err
	}
	chunks := ChunkTranscript(lines, s.chunkSize)

	claimed, err := s.repo.StoreFinalization(ctx, job.SessionID, job.UserID, chunks)
	if err != nil {
		return err
	}
	if !claimed {
		metrics.RecordFinalizeJob("skipped")
		logger.Debug("session already finalized", "session_id", job.SessionID)
		return nil
	}

	metrics.RecordFinalizeJob("done")
	logger.Info("session finalized",
		"session_id", job.SessionID, "user_id", job.UserID, "chunks", len(chunks))
	return nil
}

// QueueLength reports the number of jobs waiting on the queue.
func (s *Service) QueueLength(ctx context.Context) (int64, error) {
	return s.rdb.LLen(ctx, queueKey).Result()
}

func (s *Service) Close() error {
	return s.rdb.Close()
}
