// Package idempotency implements the IdempotencyRecord store described in
// spec §4.3: a key-scoped gate that lets the orchestrator make POST
// /v1/orders safely retryable.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ordercore/order-platform/internal/redisx"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// dedupService scopes the Redis dedup keyspace this store writes into, per
// redisx.KeyDedup's dedup:{service}:{id} shape.
const dedupService = "orders"

// Outcome classifies what Acquire found.
type Outcome int

const (
	// Created means a new pending record was inserted; the caller owns the
	// request and must eventually Finalize it.
	Created Outcome = iota
	// Replay means a finalized 2xx record exists; its body should be
	// returned verbatim.
	Replay
	// Conflict means a pending record, or a finalized non-2xx record,
	// already exists for this key.
	Conflict
)

// Record mirrors the persisted row.
type Record struct {
	Key            string
	ResourcePath   string
	RequestHash    string
	ResponseStatus *int
	ResponseBody   []byte
	CreatedAt      time.Time
}

// AcquireResult is what Acquire returns to the caller.
type AcquireResult struct {
	Outcome Outcome
	Record  Record
}

// Store persists IdempotencyRecords in Postgres, with Redis as a fast
// dedup pre-check in front of it (spec §4.3's "make retries cheap").
type Store struct {
	DB    *pgxpool.Pool
	Redis *redis.Client
	Log   *zap.Logger
}

func New(db *pgxpool.Pool, rdb *redis.Client, log *zap.Logger) *Store {
	return &Store{DB: db, Redis: rdb, Log: log}
}

// Acquire implements the phase-1 idempotency gate (spec §4.1 step 1). A key
// seen before (per the Redis dedup marker) skips straight to reading the
// existing Postgres record instead of attempting a doomed INSERT, matching
// the teacher's SETNX-then-fallback flow but with Postgres, not Redis, as
// the source of truth.
func (s *Store) Acquire(ctx context.Context, key, resourcePath, requestHash string) (AcquireResult, error) {
	if s.Redis != nil {
		dedupKey := fmt.Sprintf(redisx.KeyDedup, dedupService, key)
		first, err := s.Redis.SetNX(ctx, dedupKey, "1", redisx.TTLDedup).Result()
		if err != nil {
			s.Log.Warn("idempotency: redis dedup check failed, falling through to postgres", zap.Error(err))
		} else if !first {
			return s.resolveExisting(ctx, key)
		}
	}

	tag, err := s.DB.Exec(ctx, `
		INSERT INTO idempotency_records (key, resource_path, request_hash)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO NOTHING
	`, key, resourcePath, requestHash)
	if err != nil {
		return AcquireResult{}, errors.Wrap(err, "idempotency: insert")
	}

	if tag.RowsAffected() == 1 {
		return AcquireResult{
			Outcome: Created,
			Record:  Record{Key: key, ResourcePath: resourcePath, RequestHash: requestHash},
		}, nil
	}

	return s.resolveExisting(ctx, key)
}

// resolveExisting classifies an already-present record as a Replay or a
// Conflict, shared by the INSERT-lost-the-race path and the Redis
// dedup-hit path.
func (s *Store) resolveExisting(ctx context.Context, key string) (AcquireResult, error) {
	rec, err := s.get(ctx, key)
	if err != nil {
		return AcquireResult{}, errors.Wrap(err, "idempotency: read existing")
	}

	if rec.ResponseStatus == nil {
		return AcquireResult{Outcome: Conflict, Record: rec}, nil
	}
	if *rec.ResponseStatus >= 200 && *rec.ResponseStatus < 300 {
		return AcquireResult{Outcome: Replay, Record: rec}, nil
	}
	return AcquireResult{Outcome: Conflict, Record: rec}, nil
}

// Finalize transitions a pending record to finalized exactly once. A second
// finalization attempt on an already-finalized key is logged and swallowed,
// per spec §4.3: finalized records are immutable.
func (s *Store) Finalize(ctx context.Context, key string, status int, body []byte) error {
	tag, err := s.DB.Exec(ctx, `
		UPDATE idempotency_records
		SET response_status = $2, response_body = $3
		WHERE key = $1 AND response_status IS NULL
	`, key, status, body)
	if err != nil {
		return errors.Wrap(err, "idempotency: finalize")
	}
	if tag.RowsAffected() == 0 {
		s.Log.Error("idempotency: finalize on already-finalized record", zap.String("key", key))
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string) (Record, error) {
	var rec Record
	err := s.DB.QueryRow(ctx, `
		SELECT key, resource_path, request_hash, response_status, response_body, created_at
		FROM idempotency_records WHERE key = $1
	`, key).Scan(&rec.Key, &rec.ResourcePath, &rec.RequestHash, &rec.ResponseStatus, &rec.ResponseBody, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, errors.New("idempotency: record vanished after insert race")
	}
	return rec, err
}
