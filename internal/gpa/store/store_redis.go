package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"gpavault/internal/gpa/models"
	"gpavault/pkg/platform/sentinel"
)

// DefaultRedisKeyPrefix namespaces every key the store writes.
const DefaultRedisKeyPrefix = "gpa"

// RedisStore keeps one hash per record (semester -> GPA) and a set of known
// registration numbers, which marks existence even for an empty mapping.
// Writes run in MULTI/EXEC so each upsert is applied atomically.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis constructs a store using prefix for key names.
func NewRedis(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) registryKey() string {
	return s.prefix + ":registrations"
}

func (s *RedisStore) recordKey(registrationNumber string) string {
	return s.prefix + ":record:" + registrationNumber
}

func (s *RedisStore) Get(ctx context.Context, registrationNumber string) (*models.Record, error) {
	var (
		exists *redis.BoolCmd
		fields *redis.MapStringStringCmd
	)
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		exists = pipe.SIsMember(ctx, s.registryKey(), registrationNumber)
		fields = pipe.HGetAll(ctx, s.recordKey(registrationNumber))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read gpa record: %w", err)
	}
	if !exists.Val() {
		return nil, sentinel.ErrNotFound
	}

	gpas := make(map[string]float64, len(fields.Val()))
	for semester, raw := range fields.Val() {
		gpa, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("decode gpa for %s: %w", semester, err)
		}
		gpas[semester] = gpa
	}
	return &models.Record{RegistrationNumber: registrationNumber, Gpas: gpas}, nil
}

func (s *RedisStore) MergeGpas(ctx context.Context, registrationNumber string, gpas map[string]float64) error {
	return s.write(ctx, registrationNumber, gpas, false)
}

func (s *RedisStore) ReplaceGpas(ctx context.Context, registrationNumber string, gpas map[string]float64) error {
	return s.write(ctx, registrationNumber, gpas, true)
}

func (s *RedisStore) write(ctx context.Context, registrationNumber string, gpas map[string]float64, replace bool) error {
	key := s.recordKey(registrationNumber)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, s.registryKey(), registrationNumber)
		if replace {
			pipe.Del(ctx, key)
		}
		if len(gpas) > 0 {
			values := make([]any, 0, len(gpas)*2)
			for semester, gpa := range gpas {
				values = append(values, semester, strconv.FormatFloat(gpa, 'g', -1, 64))
			}
			pipe.HSet(ctx, key, values...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write gpa record: %w", err)
	}
	return nil
}

// Ping checks the server is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *RedisStore) Close(context.Context) error {
	return s.client.Close()
}
