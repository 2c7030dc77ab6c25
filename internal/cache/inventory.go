package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix = "user:%d"
	AdKeyPrefix   = "ad:%d"
)

const (
	UserTTL = 5 * time.Minute
	AdTTL   = 10 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func AdKey(adID uint) string {
	return fmt.Sprintf(AdKeyPrefix, adID)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

func InvalidateAd(ctx context.Context, adID uint) {
	Invalidate(ctx, AdKey(adID))
}

// Purge drops every cached user and ad. It is used after bulk deletes that
// bypass the repositories.
func Purge(ctx context.Context) error {
	if client == nil {
		return nil
	}
	for _, pattern := range []string{"user:*", "ad:*"} {
		iter := client.Scan(ctx, 0, pattern, 100).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
	}
	return nil
}
