package model

import "time"

// User represents a registered user. Bot seats are backed by users with
// provider "bot" so move logs and leaderboards reference real rows.
type User struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	ProviderID  string    `json:"provider_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Game represents one conquest match.
type Game struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	CreatorID   string       `json:"creator_id"`
	Status      string       `json:"status"` // waiting, active, finished
	PlayerCount int          `json:"player_count"`
	BoardWidth  int          `json:"board_width"`
	BoardHeight int          `json:"board_height"`
	Seed        int64        `json:"seed,omitempty"`
	MapBFEN     string       `json:"map_bfen,omitempty"` // starting board, set when the game starts
	Winner      int          `json:"winner,omitempty"`   // winning seat, 0 = none/draw
	CreatedAt   time.Time    `json:"created_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	FinishedAt  *time.Time   `json:"finished_at,omitempty"`
	Players     []GamePlayer `json:"players,omitempty"`
}

// GamePlayer represents a seat in a game.
type GamePlayer struct {
	GameID        string    `json:"game_id"`
	UserID        string    `json:"user_id"`
	Seat          int       `json:"seat"`
	IsBot         bool      `json:"is_bot"`
	BotDifficulty string    `json:"bot_difficulty,omitempty"`
	JoinedAt      time.Time `json:"joined_at"`
}

// MoveRecord is one applied move in a game's log. Seq orders the log;
// StateAfter holds the board notation after the move resolved, so a
// finished game replays from MapBFEN plus its records.
type MoveRecord struct {
	ID         string    `json:"id,omitempty"`
	GameID     string    `json:"game_id"`
	Seq        int       `json:"seq"`
	Turn       int       `json:"turn"`
	Seat       int       `json:"seat"`
	FromX      int       `json:"from_x"`
	FromY      int       `json:"from_y"`
	ToX        int       `json:"to_x"`
	ToY        int       `json:"to_y"`
	MoveType   string    `json:"move_type"` // half, max
	StateAfter string    `json:"state_after"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// Message represents an in-game chat message.
type Message struct {
	ID          string    `json:"id"`
	GameID      string    `json:"game_id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id,omitempty"` // empty = public broadcast
	Content     string    `json:"content"`
	Turn        int       `json:"turn"`
	CreatedAt   time.Time `json:"created_at"`
}
