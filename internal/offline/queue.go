package offline

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	queueKey  = "offline:retry"
	failedKey = "offline:failed"

	// maxAttempts before an item moves to the permanently-failed list.
	maxAttempts = 3
)

// Item is one durably queued submission awaiting retry.
type Item struct {
	ID       string          `json:"id"`
	Kind     string          `json:"kind"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// Queue is the redis-backed retry queue failed submissions land in. The run
// engine only enqueues; the sweep runs separately on reconnect.
type Queue struct {
	redis *redis.Client
}

func NewQueue(client *redis.Client) *Queue {
	return &Queue{redis: client}
}

// Enqueue durably stores one failed submission.
func (q *Queue) Enqueue(ctx context.Context, kind string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	item := Item{ID: uuid.NewString(), Kind: kind, Payload: raw}
	encoded, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return q.redis.RPush(ctx, queueKey, encoded).Err()
}

// Len reports how many items await retry.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.redis.LLen(ctx, queueKey).Result()
}

// Failed returns the permanently-failed items.
func (q *Queue) Failed(ctx context.Context) ([]Item, error) {
	raw, err := q.redis.LRange(ctx, failedKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return decodeItems(raw)
}

// Sweep retries every queued item once through handle. Items that fail again
// are re-enqueued until maxAttempts, then moved to the failed list. Returns
// how many items were delivered and how many were parked as failed.
func (q *Queue) Sweep(ctx context.Context, handle func(Item) error) (delivered, parked int, err error) {
	pending, err := q.redis.LLen(ctx, queueKey).Result()
	if err != nil {
		return 0, 0, err
	}

	for i := int64(0); i < pending; i++ {
		raw, err := q.redis.LPop(ctx, queueKey).Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return delivered, parked, err
		}

		var item Item
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			log.Printf("offline queue dropped undecodable item: %v", err)
			continue
		}

		if err := handle(item); err == nil {
			delivered++
			continue
		}

		item.Attempts++
		encoded, _ := json.Marshal(item)
		if item.Attempts >= maxAttempts {
			if err := q.redis.RPush(ctx, failedKey, encoded).Err(); err != nil {
				return delivered, parked, err
			}
			parked++
			continue
		}
		if err := q.redis.RPush(ctx, queueKey, encoded).Err(); err != nil {
			return delivered, parked, err
		}
	}
	return delivered, parked, nil
}

func decodeItems(raw []string) ([]Item, error) {
	var items []Item
	for _, encoded := range raw {
		var item Item
		if err := json.Unmarshal([]byte(encoded), &item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
