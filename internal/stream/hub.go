package stream

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Hub fans live run stats out to websocket subscribers, with redis pub/sub
// bridging instances. Published frames carry the hub's instance id so the
// subscription loop can drop the copies it published itself.
type Hub struct {
	id      string
	redis   *redis.Client
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	RunID string
	Send  chan []byte
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		id:      uuid.NewString(),
		redis:   redisClient,
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		go h.subscribeRedis()
	}
	return h
}

func (h *Hub) Register(runID string) *Client {
	client := &Client{
		RunID: runID,
		Send:  make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[runID] == nil {
		h.clients[runID] = map[*Client]struct{}{}
	}
	h.clients[runID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if runClients, ok := h.clients[client.RunID]; ok {
		delete(runClients, client)
		if len(runClients) == 0 {
			delete(h.clients, client.RunID)
		}
	}
	close(client.Send)
}

func (h *Hub) Broadcast(runID string, payload []byte) {
	h.mu.RLock()
	clients := h.clients[runID]
	h.mu.RUnlock()

	for client := range clients {
		select {
		case client.Send <- payload:
		default:
		}
	}

	if h.redis != nil {
		err := h.redis.Publish(context.Background(), redisChannel(runID), envelope(h.id, payload)).Err()
		if err != nil {
			log.Printf("redis publish error: %v", err)
		}
	}
}

func (h *Hub) subscribeRedis() {
	ctx := context.Background()
	pubsub := h.redis.PSubscribe(ctx, "run:*:stats")
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		origin, payload := openEnvelope(msg.Payload)
		if origin == h.id {
			// Local clients already got this frame in Broadcast.
			continue
		}
		runID := runIDFromChannel(msg.Channel)
		h.mu.RLock()
		clients := h.clients[runID]
		h.mu.RUnlock()
		for client := range clients {
			select {
			case client.Send <- payload:
			default:
			}
		}
	}
}

func redisChannel(runID string) string {
	return "run:" + runID + ":stats"
}

// envelope prefixes a frame with the publishing instance id.
func envelope(origin string, payload []byte) string {
	return origin + "|" + string(payload)
}

// openEnvelope splits a frame into origin and payload. Frames without a
// separator pass through with an empty origin so they are always delivered.
func openEnvelope(raw string) (string, []byte) {
	origin, payload, ok := strings.Cut(raw, "|")
	if !ok {
		return "", []byte(raw)
	}
	return origin, []byte(payload)
}

func runIDFromChannel(ch string) string {
	// run:{id}:stats
	const prefix = "run:"
	const suffix = ":stats"
	if len(ch) <= len(prefix)+len(suffix) {
		return ""
	}
	return ch[len(prefix) : len(ch)-len(suffix)]
}
