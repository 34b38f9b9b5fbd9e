package sidestore

import (
	"context"
	"encoding/json"

	"backend-runpulse/internal/gps"

	"github.com/redis/go-redis/v9"
)

// Store is the durable side channel location fixes land in while the app is
// backgrounded. An OS-level background task writes; the poller drains at 1 Hz
// while the app is foregrounded.
type Store struct {
	redis *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{redis: client}
}

func storeKey(runID string) string {
	return "run:" + runID + ":samples"
}

// Write appends one fix to the run's sample list.
func (s *Store) Write(ctx context.Context, runID string, sample gps.Sample) error {
	payload, err := json.Marshal(sample)
	if err != nil {
		return err
	}
	return s.redis.RPush(ctx, storeKey(runID), payload).Err()
}

// ReadAll returns every buffered fix in arrival order without removing them.
func (s *Store) ReadAll(ctx context.Context, runID string) ([]gps.Sample, error) {
	raw, err := s.redis.LRange(ctx, storeKey(runID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return decodeSamples(raw)
}

// Drain atomically reads and clears the buffered fixes.
func (s *Store) Drain(ctx context.Context, runID string) ([]gps.Sample, error) {
	pipe := s.redis.TxPipeline()
	rangeCmd := pipe.LRange(ctx, storeKey(runID), 0, -1)
	pipe.Del(ctx, storeKey(runID))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return decodeSamples(rangeCmd.Val())
}

// Clear drops any buffered fixes for the run.
func (s *Store) Clear(ctx context.Context, runID string) error {
	return s.redis.Del(ctx, storeKey(runID)).Err()
}

func decodeSamples(raw []string) ([]gps.Sample, error) {
	var samples []gps.Sample
	for _, item := range raw {
		var sample gps.Sample
		if err := json.Unmarshal([]byte(item), &sample); err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, nil
}
