package redis

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// PresenceStatus is the stored per-user presence record.
type PresenceStatus struct {
	UserID   string    `json:"user_id"`
	IsOnline bool      `json:"is_online"`
	LastSeen time.Time `json:"last_seen"`
}

const (
	presenceKeyPrefix = "presence:"
	presenceOnlineSet = "presence:online"
)

// PresenceStore tracks which users currently hold at least one live
// connection. Keys carry a TTL so a crashed node cannot leave users
// online forever.
type PresenceStore struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewPresenceStore(client *goredis.Client, ttl time.Duration) *PresenceStore {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &PresenceStore{client: client, ttl: ttl}
}

func (p *PresenceStore) SetOnline(ctx context.Context, userID string) error {
	status := PresenceStatus{UserID: userID, IsOnline: true, LastSeen: time.Now()}
	data, _ := json.Marshal(status)

	pipe := p.client.Pipeline()
	pipe.Set(ctx, presenceKeyPrefix+userID, data, p.ttl)
	pipe.SAdd(ctx, presenceOnlineSet, userID)
	_, err := pipe.Exec(ctx)
	return err
}

func (p *PresenceStore) SetOffline(ctx context.Context, userID string) error {
	status := PresenceStatus{UserID: userID, IsOnline: false, LastSeen: time.Now()}
	data, _ := json.Marshal(status)

	pipe := p.client.Pipeline()
	// Offline records stay around longer for last-seen queries.
	pipe.Set(ctx, presenceKeyPrefix+userID, data, 24*time.Hour)
	pipe.SRem(ctx, presenceOnlineSet, userID)
	_, err := pipe.Exec(ctx)
	return err
}

func (p *PresenceStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	return p.client.SIsMember(ctx, presenceOnlineSet, userID).Result()
}

func (p *PresenceStore) OnlineUsers(ctx context.Context) ([]string, error) {
	return p.client.SMembers(ctx, presenceOnlineSet).Result()
}
