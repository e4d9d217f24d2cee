package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// cooldownWindow is how long a repeated notification of the same kind for
// the same object stays suppressed.
const cooldownWindow = 4 * time.Hour

// Cooldown rate-limits notifications through Redis. The first caller for a
// key wins the window; repeats inside it are suppressed.
type Cooldown struct {
	rdb *redis.Client
}

func NewCooldown(rdb *redis.Client) *Cooldown {
	return &Cooldown{rdb: rdb}
}

// CooldownKey builds the suppression key. objectID is optional and scopes
// the cooldown to one device or alert type within the farm.
func CooldownKey(farmID int64, kind, objectID string) string {
	if objectID == "" {
		return fmt.Sprintf("notification_cooldown:%d:%s", farmID, kind)
	}
	return fmt.Sprintf("notification_cooldown:%d:%s:%s", farmID, kind, objectID)
}

// Allow reports whether a notification may go out, and claims the window
// when it does. Redis failure counts as allowed: losing a duplicate alert
// is better than losing a real one.
func (c *Cooldown) Allow(ctx context.Context, farmID int64, kind, objectID string) bool {
	key := CooldownKey(farmID, kind, objectID)
	ok, err := c.rdb.SetNX(ctx, key, "1", cooldownWindow).Result()
	if err != nil {
		log.Printf("NOTIFY: Cooldown check for %s failed: %v", key, err)
		return true
	}
	return ok
}
