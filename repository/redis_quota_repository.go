package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"cratedig/models"
)

const (
	quotaKey       = "quota:%s:%s"     // Hash: units_used, search_calls, fetch_calls, daily_limit
	quotaSourceSet = "quota:%s:sources" // Set: sources touched that day
	quotaTTL       = 48 * time.Hour
)

var markExhaustedScript = redis.NewScript(`
local limit = tonumber(redis.call('HGET', KEYS[1], 'daily_limit') or '0')
local used = tonumber(redis.call('HGET', KEYS[1], 'units_used') or '0')
if used < limit then
	redis.call('HSET', KEYS[1], 'units_used', limit)
end
return used
`)

// RedisQuotaRepository keeps day trackers in redis hashes so several processes
// can share one budget. Counters move with HINCRBY.
type RedisQuotaRepository struct {
	client redis.UniversalClient
}

func NewRedisQuotaRepository(client redis.UniversalClient) *RedisQuotaRepository {
	return &RedisQuotaRepository{client: client}
}

// ConnectRedis opens a client and checks it answers
func ConnectRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := client.Ping(pingCtx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func (r *RedisQuotaRepository) GetOrCreate(ctx context.Context, date string, source models.Source, dailyLimit int) (*models.QuotaTracker, error) {
	key := fmt.Sprintf(quotaKey, date, source)
	setKey := fmt.Sprintf(quotaSourceSet, date)

	pipe := r.client.TxPipeline()
	pipe.HSetNX(ctx, key, "daily_limit", dailyLimit)
	pipe.HSetNX(ctx, key, "units_used", 0)
	pipe.HSetNX(ctx, key, "search_calls", 0)
	pipe.HSetNX(ctx, key, "fetch_calls", 0)
	pipe.HSetNX(ctx, key, "created_at", time.Now().UTC().Unix())
	pipe.SAdd(ctx, setKey, string(source))
	pipe.Expire(ctx, key, quotaTTL)
	pipe.Expire(ctx, setKey, quotaTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create quota tracker %s/%s: %w", date, source, err)
	}

	return r.load(ctx, date, source)
}

func (r *RedisQuotaRepository) Increment(ctx context.Context, date string, source models.Source, units, searchCalls, fetchCalls int) error {
	key := fmt.Sprintf(quotaKey, date, source)

	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check quota tracker %s/%s: %w", date, source, err)
	}
	if exists == 0 {
		return ErrNotFound
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, key, "units_used", int64(units))
		pipe.HIncrBy(ctx, key, "search_calls", int64(searchCalls))
		pipe.HIncrBy(ctx, key, "fetch_calls", int64(fetchCalls))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to increment quota %s/%s: %w", date, source, err)
	}
	return nil
}

func (r *RedisQuotaRepository) MarkExhausted(ctx context.Context, date string, source models.Source) error {
	key := fmt.Sprintf(quotaKey, date, source)
	if err := markExhaustedScript.Run(ctx, r.client, []string{key}).Err(); err != nil {
		return fmt.Errorf("failed to mark quota exhausted %s/%s: %w", date, source, err)
	}
	return nil
}

func (r *RedisQuotaRepository) List(ctx context.Context, date string) ([]models.QuotaTracker, error) {
	sources, err := r.client.SMembers(ctx, fmt.Sprintf(quotaSourceSet, date)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list quota sources for %s: %w", date, err)
	}
	sort.Strings(sources)

	trackers := make([]models.QuotaTracker, 0, len(sources))
	for _, s := range sources {
		tracker, err := r.load(ctx, date, models.Source(s))
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		trackers = append(trackers, *tracker)
	}
	return trackers, nil
}

func (r *RedisQuotaRepository) load(ctx context.Context, date string, source models.Source) (*models.QuotaTracker, error) {
	fields, err := r.client.HGetAll(ctx, fmt.Sprintf(quotaKey, date, source)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load quota tracker %s/%s: %w", date, source, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	tracker := &models.QuotaTracker{
		Date:        date,
		Source:      source,
		UnitsUsed:   atoi(fields["units_used"]),
		SearchCalls: atoi(fields["search_calls"]),
		FetchCalls:  atoi(fields["fetch_calls"]),
		DailyLimit:  atoi(fields["daily_limit"]),
	}
	if ts, err := strconv.ParseInt(fields["created_at"], 10, 64); err == nil {
		tracker.CreatedAt = time.Unix(ts, 0).UTC()
		tracker.UpdatedAt = tracker.CreatedAt
	}
	return tracker, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
