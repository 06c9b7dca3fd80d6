package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"gridlords/internal/repository"
)

// Key patterns for Redis game data.
func sessionKey(gameID string) string { return "game:" + gameID + ":session" }

const (
	leaderboardKey = "leaderboard:wins"
	recentKey      = "results:recent"
)

// maxRecentResults caps the recent-results list length.
const maxRecentResults = 100

// RecordWin increments a user's win count on the leaderboard.
func (c *Client) RecordWin(ctx context.Context, userID string) error {
	return c.rdb.ZIncrBy(ctx, leaderboardKey, 1, userID).Err()
}

// TopPlayers returns the n highest win counts, best first.
func (c *Client) TopPlayers(ctx context.Context, n int64) ([]repository.PlayerScore, error) {
	entries, err := c.rdb.ZRevRangeWithScores(ctx, leaderboardKey, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("top players: %w", err)
	}
	scores := make([]repository.PlayerScore, 0, len(entries))
	for _, e := range entries {
		userID, ok := e.Member.(string)
		if !ok {
			userID = fmt.Sprint(e.Member)
		}
		scores = append(scores, repository.PlayerScore{UserID: userID, Wins: int64(e.Score)})
	}
	return scores, nil
}

// PushResult prepends a finished-game summary to the recent-results list,
// trimming the list to its cap.
func (c *Client) PushResult(ctx context.Context, result json.RawMessage) error {
	if err := c.rdb.LPush(ctx, recentKey, []byte(result)).Err(); err != nil {
		return fmt.Errorf("push result: %w", err)
	}
	return c.rdb.LTrim(ctx, recentKey, 0, maxRecentResults-1).Err()
}

// RecentResults returns up to n finished-game summaries, newest first.
func (c *Client) RecentResults(ctx context.Context, n int64) ([]json.RawMessage, error) {
	items, err := c.rdb.LRange(ctx, recentKey, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("recent results: %w", err)
	}
	results := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		results = append(results, json.RawMessage(item))
	}
	return results, nil
}

// sessionGracePeriod is the extra time after the displayed idle deadline
// before the session is reaped, giving clients a few seconds of leeway.
const sessionGracePeriod = 5 * time.Second

// SetSessionTimer creates an idle-session key with a TTL. When the key
// expires, Redis keyspace notifications trigger abandonment of the game.
func (c *Client) SetSessionTimer(ctx context.Context, gameID string, deadline time.Time) error {
	ttl := time.Until(deadline) + sessionGracePeriod
	if ttl <= 0 {
		ttl = time.Second
	}
	return c.rdb.Set(ctx, sessionKey(gameID), strconv.FormatInt(deadline.Unix(), 10), ttl).Err()
}

// ClearSessionTimer removes the idle-session key for a game.
func (c *Client) ClearSessionTimer(ctx context.Context, gameID string) error {
	return c.rdb.Del(ctx, sessionKey(gameID)).Err()
}

// SessionDeadline returns the idle deadline for a game, or the zero time
// when no session key is present.
func (c *Client) SessionDeadline(ctx context.Context, gameID string) (time.Time, error) {
	val, err := c.rdb.Get(ctx, sessionKey(gameID)).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("session deadline: %w", err)
	}
	unix, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("session deadline parse: %w", err)
	}
	return time.Unix(unix, 0), nil
}
