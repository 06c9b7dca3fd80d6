package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"gridlords/internal/model"
)

// GameRepo handles game and game_player database operations.
type GameRepo struct {
	db *sql.DB
}

// NewGameRepo creates a GameRepo.
func NewGameRepo(db *sql.DB) *GameRepo {
	return &GameRepo{db: db}
}

// Create inserts a new game in "waiting" status.
func (r *GameRepo) Create(ctx context.Context, name, creatorID string, playerCount, boardWidth, boardHeight int) (*model.Game, error) {
	var g model.Game
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO games (name, creator_id, player_count, board_width, board_height)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, name, creator_id, status, player_count, board_width, board_height, created_at`,
		name, creatorID, playerCount, boardWidth, boardHeight,
	).Scan(&g.ID, &g.Name, &g.CreatorID, &g.Status, &g.PlayerCount, &g.BoardWidth, &g.BoardHeight, &g.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	return &g, nil
}

// FindByID returns a game by ID with its players.
func (r *GameRepo) FindByID(ctx context.Context, id string) (*model.Game, error) {
	var g model.Game
	var winner sql.NullInt64
	var mapBFEN sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, creator_id, status, winner, player_count, board_width, board_height,
		        seed, map_bfen, created_at, started_at, finished_at
		 FROM games WHERE id = $1`, id,
	).Scan(&g.ID, &g.Name, &g.CreatorID, &g.Status, &winner, &g.PlayerCount, &g.BoardWidth, &g.BoardHeight,
		&g.Seed, &mapBFEN, &g.CreatedAt, &g.StartedAt, &g.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find game: %w", err)
	}
	g.Winner = int(winner.Int64)
	g.MapBFEN = mapBFEN.String

	players, err := r.ListPlayers(ctx, id)
	if err != nil {
		return nil, err
	}
	g.Players = players
	return &g, nil
}

// ListOpen returns games in "waiting" status.
func (r *GameRepo) ListOpen(ctx context.Context) ([]model.Game, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, creator_id, status, player_count, board_width, board_height, created_at
		 FROM games WHERE status = 'waiting' ORDER BY created_at DESC LIMIT 50`)
	if err != nil {
		return nil, fmt.Errorf("list open games: %w", err)
	}
	defer rows.Close()

	var games []model.Game
	for rows.Next() {
		var g model.Game
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatorID, &g.Status, &g.PlayerCount, &g.BoardWidth, &g.BoardHeight, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// ListByUser returns all games a user is part of (as player or creator).
func (r *GameRepo) ListByUser(ctx context.Context, userID string) ([]model.Game, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT g.id, g.name, g.creator_id, g.status, g.winner, g.player_count, g.board_width, g.board_height,
		        g.seed, g.map_bfen, g.created_at, g.started_at, g.finished_at
		 FROM games g LEFT JOIN game_players gp ON g.id = gp.game_id AND gp.user_id = $1
		 WHERE gp.user_id = $1 OR g.creator_id = $1
		 ORDER BY g.created_at DESC LIMIT 50`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user games: %w", err)
	}
	defer rows.Close()

	var games []model.Game
	for rows.Next() {
		var g model.Game
		var winner sql.NullInt64
		var mapBFEN sql.NullString
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatorID, &g.Status, &winner, &g.PlayerCount, &g.BoardWidth, &g.BoardHeight,
			&g.Seed, &mapBFEN, &g.CreatedAt, &g.StartedAt, &g.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		g.Winner = int(winner.Int64)
		g.MapBFEN = mapBFEN.String
		games = append(games, g)
	}
	return games, rows.Err()
}

// ListFinished returns all finished games, most recent first.
func (r *GameRepo) ListFinished(ctx context.Context) ([]model.Game, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT g.id, g.name, g.creator_id, g.status, g.winner, g.player_count, g.board_width, g.board_height,
		        g.seed, g.map_bfen, g.created_at, g.started_at, g.finished_at
		 FROM games g
		 WHERE g.status = 'finished'
		 ORDER BY g.finished_at DESC LIMIT 100`)
	if err != nil {
		return nil, fmt.Errorf("list finished games: %w", err)
	}
	defer rows.Close()

	var games []model.Game
	for rows.Next() {
		var g model.Game
		var winner sql.NullInt64
		var mapBFEN sql.NullString
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatorID, &g.Status, &winner, &g.PlayerCount, &g.BoardWidth, &g.BoardHeight,
			&g.Seed, &mapBFEN, &g.CreatedAt, &g.StartedAt, &g.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		g.Winner = int(winner.Int64)
		g.MapBFEN = mapBFEN.String
		games = append(games, g)
	}
	return games, rows.Err()
}

// SearchFinished returns finished games whose name matches the search term (case-insensitive).
func (r *GameRepo) SearchFinished(ctx context.Context, search string) ([]model.Game, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT g.id, g.name, g.creator_id, g.status, g.winner, g.player_count, g.board_width, g.board_height,
		        g.seed, g.map_bfen, g.created_at, g.started_at, g.finished_at
		 FROM games g
		 WHERE g.status = 'finished' AND g.name ILIKE '%' || $1 || '%'
		 ORDER BY g.finished_at DESC LIMIT 100`, search)
	if err != nil {
		return nil, fmt.Errorf("search finished games: %w", err)
	}
	defer rows.Close()

	var games []model.Game
	for rows.Next() {
		var g model.Game
		var winner sql.NullInt64
		var mapBFEN sql.NullString
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatorID, &g.Status, &winner, &g.PlayerCount, &g.BoardWidth, &g.BoardHeight,
			&g.Seed, &mapBFEN, &g.CreatedAt, &g.StartedAt, &g.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		g.Winner = int(winner.Int64)
		g.MapBFEN = mapBFEN.String
		games = append(games, g)
	}
	return games, rows.Err()
}

// AddPlayer seats a user in a game. Bot seats carry a difficulty level.
func (r *GameRepo) AddPlayer(ctx context.Context, gameID, userID string, seat int, isBot bool, difficulty string) error {
	if isBot && difficulty == "" {
		difficulty = "easy"
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO game_players (game_id, user_id, seat, is_bot, bot_difficulty) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT DO NOTHING`,
		gameID, userID, seat, isBot, difficulty,
	)
	if err != nil {
		return fmt.Errorf("add player: %w", err)
	}
	return nil
}

// ListPlayers returns all players in a game in seat order.
func (r *GameRepo) ListPlayers(ctx context.Context, gameID string) ([]model.GamePlayer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT game_id, user_id, seat, is_bot, bot_difficulty, joined_at FROM game_players WHERE game_id = $1 ORDER BY seat`,
		gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var players []model.GamePlayer
	for rows.Next() {
		var p model.GamePlayer
		if err := rows.Scan(&p.GameID, &p.UserID, &p.Seat, &p.IsBot, &p.BotDifficulty, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// UpdateBotDifficulty changes the difficulty level of a bot seat.
func (r *GameRepo) UpdateBotDifficulty(ctx context.Context, gameID string, seat int, difficulty string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE game_players SET bot_difficulty = $1 WHERE game_id = $2 AND seat = $3 AND is_bot = true`,
		difficulty, gameID, seat)
	if err != nil {
		return fmt.Errorf("update bot difficulty: %w", err)
	}
	return nil
}

// SetStarted marks a game as active and records the generated map and seed for later replay.
func (r *GameRepo) SetStarted(ctx context.Context, gameID, mapBFEN string, seed int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE games SET status = 'active', map_bfen = $1, seed = $2, started_at = now() WHERE id = $3`,
		mapBFEN, seed, gameID,
	)
	if err != nil {
		return fmt.Errorf("set started: %w", err)
	}
	return nil
}

// SetFinished marks a game as finished. Winner 0 records a draw.
func (r *GameRepo) SetFinished(ctx context.Context, gameID string, winner int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE games SET status = 'finished', winner = $1, finished_at = now() WHERE id = $2`,
		winner, gameID,
	)
	if err != nil {
		return fmt.Errorf("set finished: %w", err)
	}
	return nil
}

// ListActive returns all games with status 'active', including their players.
func (r *GameRepo) ListActive(ctx context.Context) ([]model.Game, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, creator_id, status, player_count, board_width, board_height, created_at
		 FROM games WHERE status = 'active' ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list active games: %w", err)
	}
	defer rows.Close()

	var games []model.Game
	for rows.Next() {
		var g model.Game
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatorID, &g.Status, &g.PlayerCount, &g.BoardWidth, &g.BoardHeight, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		players, err := r.ListPlayers(ctx, g.ID)
		if err != nil {
			return nil, err
		}
		g.Players = players
		games = append(games, g)
	}
	return games, rows.Err()
}

// Delete removes a game and all associated data (cascades to players, moves, messages).
func (r *GameRepo) Delete(ctx context.Context, gameID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM games WHERE id = $1`, gameID)
	if err != nil {
		return fmt.Errorf("delete game: %w", err)
	}
	return nil
}
