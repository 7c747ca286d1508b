package dal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Billy-Davies-2/lottery-draft-ui/internal/models"
)

const redisJournalKey = "lottery:draft:journal"

// RedisJournal keeps the newest entries in a capped Redis list.
type RedisJournal struct {
	client *redis.Client
	key    string
}

func NewRedisJournal(redisURL string) (*RedisJournal, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisJournalFromClient(client), nil
}

func NewRedisJournalFromClient(client *redis.Client) *RedisJournal {
	return &RedisJournal{client: client, key: redisJournalKey}
}

func (r *RedisJournal) Record(ctx context.Context, entry *models.JournalEntry) error {
	prepare(entry)
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, r.key, data)
		pipe.LTrim(ctx, r.key, 0, MaxRecentLimit-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("push journal entry: %w", err)
	}
	return nil
}

func (r *RedisJournal) Recent(ctx context.Context, limit int) ([]models.JournalEntry, error) {
	raw, err := r.client.LRange(ctx, r.key, 0, int64(clampLimit(limit)-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	out := make([]models.JournalEntry, 0, len(raw))
	for _, s := range raw {
		var e models.JournalEntry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			return nil, fmt.Errorf("decode journal entry: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *RedisJournal) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisJournal) Close() error {
	return r.client.Close()
}
