package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisPrefix = "sahara:session:"

// RedisStore keeps each record as a JSON document and indexes sessions per
// user in a sorted set scored by timestamp.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient, prefix string) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) recordKey(id string) string      { return s.prefix + "record:" + id }
func (s *RedisStore) userKey(id string) string        { return s.prefix + "user:" + id }
func (s *RedisStore) interactionKey(id string) string { return s.prefix + "interactions:" + id }

func (s *RedisStore) Save(ctx context.Context, r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", r.SessionID, err)
	}

	// A re-saved record may have moved between users.
	if prev, err := s.Get(ctx, r.SessionID); err == nil && prev.UserID != r.UserID {
		if err := s.client.ZRem(ctx, s.userKey(prev.UserID), r.SessionID).Err(); err != nil {
			return fmt.Errorf("unindex session %s: %w", r.SessionID, err)
		}
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.recordKey(r.SessionID), data, 0)
		pipe.ZAdd(ctx, s.userKey(r.UserID), redis.Z{
			Score:  float64(r.Timestamp.UnixMilli()),
			Member: r.SessionID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session %s: %w", r.SessionID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (Record, error) {
	data, err := s.client.Get(ctx, s.recordKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	return decodeRecord(data)
}

func (s *RedisStore) Recent(ctx context.Context, userID string, limit int) ([]Record, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	ids, err := s.client.ZRevRange(ctx, s.userKey(userID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions for %s: %w", userID, err)
	}
	if len(ids) == 0 {
		return []Record{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.recordKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load sessions for %s: %w", userID, err)
	}

	out := make([]Record, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		r, err := decodeRecord([]byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *RedisStore) SaveInteraction(ctx context.Context, i Interaction) error {
	data, err := json.Marshal(i)
	if err != nil {
		return fmt.Errorf("encode interaction: %w", err)
	}
	if err := s.client.RPush(ctx, s.interactionKey(i.SessionID), data).Err(); err != nil {
		return fmt.Errorf("save interaction for %s: %w", i.SessionID, err)
	}
	return nil
}

func (s *RedisStore) Interactions(ctx context.Context, sessionID string) ([]Interaction, error) {
	values, err := s.client.LRange(ctx, s.interactionKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list interactions for %s: %w", sessionID, err)
	}

	out := make([]Interaction, 0, len(values))
	for _, v := range values {
		var i Interaction
		if err := json.Unmarshal([]byte(v), &i); err != nil {
			return nil, fmt.Errorf("decode interaction: %w", err)
		}
		out = append(out, i)
	}
	return out, nil
}

// Close is a no-op. The client belongs to the caller.
func (s *RedisStore) Close() error { return nil }
