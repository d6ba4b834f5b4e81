package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrIdempotencyConflict = errors.New("idempotency key conflicts with existing request")

// Idempotency replays the stored response for a repeated Idempotency-Key.
type Idempotency interface {
	Check(ctx context.Context, userID, endpoint, key, requestHash string) (json.RawMessage, bool, error)
	Save(ctx context.Context, userID, endpoint, key, requestHash string, response json.RawMessage) error
}

// IdempotencyTTL is how long a stored response is replayed. An expired key
// may be reused for a different request.
const IdempotencyTTL = 24 * time.Hour

type IdempotencyStore struct {
	db  *pgxpool.Pool
	ttl time.Duration
	now func() time.Time
}

func NewIdempotencyStore(db *pgxpool.Pool, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = IdempotencyTTL
	}
	return &IdempotencyStore{db: db, ttl: ttl, now: time.Now}
}

func (s *IdempotencyStore) cutoff() time.Time {
	return s.now().Add(-s.ttl)
}

func RequestHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func (s *IdempotencyStore) Check(ctx context.Context, userID, endpoint, key, requestHash string) (json.RawMessage, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, nil
	}
	var storedHash string
	var stored json.RawMessage
	err := s.db.QueryRow(ctx, `
    SELECT request_hash, response_json
    FROM idempotency_keys
    WHERE user_id = $1 AND key = $2 AND endpoint = $3 AND created_at >= $4
  `, userID, key, endpoint, s.cutoff()).Scan(&storedHash, &stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if storedHash != requestHash {
		return nil, false, ErrIdempotencyConflict
	}
	return stored, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, userID, endpoint, key, requestHash string, response json.RawMessage) error {
	if s == nil || s.db == nil {
		return nil
	}
	tag, err := s.db.Exec(ctx, `
    INSERT INTO idempotency_keys (user_id, key, endpoint, request_hash, response_json)
    VALUES ($1, $2, $3, $4, $5)
    ON CONFLICT (user_id, key, endpoint)
    DO UPDATE SET request_hash = EXCLUDED.request_hash,
                  response_json = EXCLUDED.response_json,
                  created_at = now()
    WHERE idempotency_keys.request_hash = EXCLUDED.request_hash
       OR idempotency_keys.created_at < $6
  `, userID, key, endpoint, requestHash, response, s.cutoff())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrIdempotencyConflict
	}
	return nil
}
