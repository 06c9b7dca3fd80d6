package service

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// SessionReaper abandons live games whose idle timer ran out. The fast
// path is Redis keyspace notifications on the expiring session keys; a
// polling fallback over the in-memory sessions catches expirations when
// notifications are not configured.
type SessionReaper struct {
	rdb     *redis.Client
	gameSvc *GameService
}

// NewSessionReaper creates a SessionReaper.
func NewSessionReaper(rdb *redis.Client, gameSvc *GameService) *SessionReaper {
	return &SessionReaper{rdb: rdb, gameSvc: gameSvc}
}

// Start begins listening for expired key events and runs a polling fallback.
func (r *SessionReaper) Start(ctx context.Context) {
	go r.listenKeyspace(ctx)
	r.pollIdleSessions(ctx)
}

// listenKeyspace subscribes to Redis keyspace notifications for expired keys.
func (r *SessionReaper) listenKeyspace(ctx context.Context) {
	pubsub := r.rdb.PSubscribe(ctx, "__keyevent@0__:expired")
	defer pubsub.Close()

	log.Info().Msg("Session reaper started, listening for expired keys")
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.handleExpiry(ctx, msg.Payload)
		}
	}
}

// pollIdleSessions periodically sweeps live sessions past the idle window.
func (r *SessionReaper) pollIdleSessions(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	log.Info().Msg("Idle session poller started (30s interval)")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Idle session poller stopped")
			return
		case <-ticker.C:
			r.sweepIdle(ctx)
		}
	}
}

// sweepIdle abandons every session the service reports idle.
func (r *SessionReaper) sweepIdle(ctx context.Context) {
	idle := r.gameSvc.IdleSessions()
	if len(idle) > 0 {
		log.Info().Int("count", len(idle)).Msg("Poller found idle sessions")
	}
	for _, gameID := range idle {
		if err := r.gameSvc.AbandonGame(ctx, gameID, "idle"); err != nil {
			log.Error().Err(err).Str("gameId", gameID).Msg("Failed to abandon idle game from poller")
		}
	}
}

// handleExpiry processes an expired key. Only acts on session timer keys.
func (r *SessionReaper) handleExpiry(ctx context.Context, key string) {
	if !strings.HasPrefix(key, "game:") || !strings.HasSuffix(key, ":session") {
		return
	}

	parts := strings.SplitN(key, ":", 3)
	if len(parts) != 3 {
		return
	}
	gameID := parts[1]

	log.Info().Str("gameId", gameID).Msg("Session timer expired, abandoning game")
	if err := r.gameSvc.AbandonGame(ctx, gameID, "idle"); err != nil {
		log.Error().Err(err).Str("gameId", gameID).Msg("Failed to abandon game after timer expiry")
	}
}
