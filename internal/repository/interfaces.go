package repository

import (
	"context"
	"encoding/json"
	"time"

	"gridlords/internal/model"
)

// UserRepository defines user data operations.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByProviderID(ctx context.Context, provider, providerID string) (*model.User, error)
	Upsert(ctx context.Context, provider, providerID, displayName, avatarURL string) (*model.User, error)
	UpdateDisplayName(ctx context.Context, id, displayName string) error
}

// GameRepository defines game and seat data operations.
type GameRepository interface {
	Create(ctx context.Context, name, creatorID string, playerCount, boardWidth, boardHeight int) (*model.Game, error)
	FindByID(ctx context.Context, id string) (*model.Game, error)
	ListOpen(ctx context.Context) ([]model.Game, error)
	ListByUser(ctx context.Context, userID string) ([]model.Game, error)
	ListActive(ctx context.Context) ([]model.Game, error)
	ListFinished(ctx context.Context) ([]model.Game, error)
	SearchFinished(ctx context.Context, search string) ([]model.Game, error)
	AddPlayer(ctx context.Context, gameID, userID string, seat int, isBot bool, difficulty string) error
	UpdateBotDifficulty(ctx context.Context, gameID string, seat int, difficulty string) error
	SetStarted(ctx context.Context, gameID, mapBFEN string, seed int64) error
	SetFinished(ctx context.Context, gameID string, winner int) error
	Delete(ctx context.Context, gameID string) error
}

// MoveRepository defines move-log operations. Logs are written once, when a
// game finishes; mid-game state never touches the database.
type MoveRepository interface {
	SaveMoves(ctx context.Context, moves []model.MoveRecord) error
	ListByGame(ctx context.Context, gameID string) ([]model.MoveRecord, error)
}

// MessageRepository defines message data operations.
type MessageRepository interface {
	Create(ctx context.Context, gameID, senderID, recipientID, content string, turn int) (*model.Message, error)
	ListByGame(ctx context.Context, gameID, userID string) ([]model.Message, error)
}

// PlayerScore is one leaderboard row.
type PlayerScore struct {
	UserID string `json:"user_id"`
	Wins   int64  `json:"wins"`
}

// GameCache defines the Redis-backed side channels: the win leaderboard,
// the recent-results feed, and per-session idle timers.
type GameCache interface {
	RecordWin(ctx context.Context, userID string) error
	TopPlayers(ctx context.Context, n int64) ([]PlayerScore, error)
	PushResult(ctx context.Context, result json.RawMessage) error
	RecentResults(ctx context.Context, n int64) ([]json.RawMessage, error)
	SetSessionTimer(ctx context.Context, gameID string, deadline time.Time) error
	ClearSessionTimer(ctx context.Context, gameID string) error
}
