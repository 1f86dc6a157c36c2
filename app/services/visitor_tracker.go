package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// VisitorTracker remembers which visitors have already been counted for a campaign
type VisitorTracker interface {
	// MarkVisitor reports true the first time a visitor key is seen for the campaign.
	MarkVisitor(ctx context.Context, campaignID, visitorKey string) (bool, error)
	// UnmarkVisitor forgets a visitor whose view could not be stored.
	UnmarkVisitor(ctx context.Context, campaignID, visitorKey string) error
}

// VisitorKey fingerprints a visitor by IP and User-Agent
func VisitorKey(ip, userAgent string) string {
	sum := sha256.Sum256([]byte(ip + "|" + userAgent))
	return hex.EncodeToString(sum[:])
}

// RedisVisitorTracker keeps one Redis set per campaign
type RedisVisitorTracker struct {
	rc     *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisVisitorTracker(rc *redis.Client, prefix string, ttl time.Duration) *RedisVisitorTracker {
	return &RedisVisitorTracker{rc: rc, prefix: prefix, ttl: ttl}
}

func (t *RedisVisitorTracker) key(campaignID string) string {
	return t.prefix + "visitors:" + campaignID
}

func (t *RedisVisitorTracker) MarkVisitor(ctx context.Context, campaignID, visitorKey string) (bool, error) {
	key := t.key(campaignID)
	added, err := t.rc.SAdd(ctx, key, visitorKey).Result()
	if err != nil {
		return false, err
	}
	if added == 1 && t.ttl > 0 {
		t.rc.Expire(ctx, key, t.ttl)
	}
	return added == 1, nil
}

func (t *RedisVisitorTracker) UnmarkVisitor(ctx context.Context, campaignID, visitorKey string) error {
	return t.rc.SRem(ctx, t.key(campaignID), visitorKey).Err()
}
