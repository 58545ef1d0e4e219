// README: Best-effort payment status broadcasts over Redis pub/sub.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const publishTimeout = 3 * time.Second

// Notifier publishes payment phase transitions to connected clients.
// Channels are keyed by order number and payment phase so a client can
// subscribe to exactly the QR screen it is showing.
type Notifier struct {
	redis *redis.Client
}

func NewNotifier(redis *redis.Client) *Notifier {
	return &Notifier{redis: redis}
}

type statusEvent struct {
	Status string `json:"status"`
}

func channelFor(orderNumber, phase string) string {
	return fmt.Sprintf("payments:%s:%s", orderNumber, phase)
}

// Publish is fire-and-forget: a broken broadcast never unwinds the
// committed transaction that triggered it.
func (n *Notifier) Publish(orderNumber, phase, status string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		payload, err := json.Marshal(statusEvent{Status: status})
		if err != nil {
			log.Printf("notify: marshal event for %s: %v", orderNumber, err)
			return
		}
		if err := n.redis.Publish(ctx, channelFor(orderNumber, phase), payload).Err(); err != nil {
			log.Printf("notify: publish %s/%s: %v", orderNumber, phase, err)
		}
	}()
}
