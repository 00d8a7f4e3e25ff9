package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/newsmelody/api/internal/model"
)

// watchRetries bounds the optimistic-locking loop when concurrent writers
// touch the same session record.
const watchRetries = 5

// RedisStore keeps session records as JSON under session:<id> with a sorted
// set index for newest-first listing. Records are never expired: the session
// history is the audit trail.
type RedisStore struct {
	redis *redis.Client
}

func NewRedisStore(redisClient *redis.Client) *RedisStore {
	return &RedisStore{redis: redisClient}
}

func sessionKey(id string) string { return "session:" + id }

const indexKey = "sessions:index"

func (s *RedisStore) Create(ctx context.Context, session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ok, err := s.redis.SetNX(ctx, sessionKey(session.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	if !ok {
		return ErrAlreadyExists
	}

	score := float64(session.CreatedAt.UnixNano())
	return s.redis.ZAdd(ctx, indexKey, redis.Z{Score: score, Member: session.ID}).Err()
}

func (s *RedisStore) Get(ctx context.Context, id string) (*model.Session, error) {
	data, err := s.redis.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", id, err)
	}
	return &session, nil
}

func (s *RedisStore) List(ctx context.Context, status model.SessionStatus, limit int) ([]*model.Session, error) {
	ids, err := s.redis.ZRevRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	sessions := make([]*model.Session, 0, len(ids))
	for _, id := range ids {
		session, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		if status != "" && session.Status != status {
			continue
		}
		sessions = append(sessions, session)
		if limit > 0 && len(sessions) >= limit {
			break
		}
	}
	return sessions, nil
}

// Update runs mutate against the freshest copy of the record under a WATCH
// transaction, so a concurrent writer of the same session forces a re-read
// instead of an interleaved partial write.
func (s *RedisStore) Update(ctx context.Context, id string, mutate func(*model.Session) error) (*model.Session, error) {
	key := sessionKey(id)
	var updated *model.Session

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return err
		}

		var session model.Session
		if err := json.Unmarshal(data, &session); err != nil {
			return fmt.Errorf("unmarshal session %s: %w", id, err)
		}

		if err := mutate(&session); err != nil {
			return err
		}
		session.UpdatedAt = time.Now().UTC()

		out, err := json.Marshal(&session)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		if err != nil {
			return err
		}
		updated = &session
		return nil
	}

	for attempt := 0; attempt < watchRetries; attempt++ {
		err := s.redis.Watch(ctx, txn, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("update session %s: too many concurrent writers", id)
}
