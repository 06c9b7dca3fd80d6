package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"gridlords/internal/model"
	"gridlords/internal/repository"
	"gridlords/pkg/conquest"
)

// ArenaConfig configures a single bot-vs-bot game.
type ArenaConfig struct {
	GameName   string
	Players    int            // seat count (default 4)
	SeatConfig map[int]string // seat -> difficulty level
	Width      int            // board size, 0 = generator default
	Height     int
	MaxTurns   int   // cap on the turn counter before a draw is called (default 500)
	Seed       int64 // 0 = random
	DryRun     bool  // skip DB writes
}

// ArenaResult describes the outcome of a completed arena game.
type ArenaResult struct {
	GameID     string
	Winner     int // seat number, 0 for a draw
	Turns      int
	Rounds     int
	TotalMoves int
	TileCounts map[int]int // seat -> final tile count
	UnitCounts map[int]int // seat -> final unit count
}

// RunGame plays a full game between bot strategies on a freshly generated
// board, saving the result and move log to Postgres. Pass nil repos for
// dry-run mode.
func RunGame(
	ctx context.Context,
	cfg ArenaConfig,
	gameRepo repository.GameRepository,
	moveRepo repository.MoveRepository,
	userRepo repository.UserRepository,
) (*ArenaResult, error) {
	if cfg.Players == 0 {
		cfg.Players = 4
	}
	if cfg.MaxTurns == 0 {
		cfg.MaxTurns = 500
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := newRng(seed)

	// Build strategies per seat
	strategies := make(map[int]Strategy, cfg.Players)
	for seat := 1; seat <= cfg.Players; seat++ {
		diff, ok := cfg.SeatConfig[seat]
		if !ok {
			diff = "easy"
		}
		if !ValidDifficulty(diff) {
			return nil, fmt.Errorf("seat %d: unknown difficulty %q", seat, diff)
		}
		strategies[seat] = StrategyForDifficulty(diff, seed+int64(seat))
	}

	// Generate the board
	genCfg := conquest.DefaultGenerateConfig(cfg.Players)
	if cfg.Width > 0 {
		genCfg.Width = cfg.Width
	}
	if cfg.Height > 0 {
		genCfg.Height = cfg.Height
	}
	m, err := conquest.Generate(genCfg, rng)
	if err != nil {
		return nil, fmt.Errorf("generate map: %w", err)
	}

	engine := conquest.NewEngine(conquest.NewGameState(m, cfg.Players), rng)
	for seat, s := range strategies {
		if err := engine.SetController(seat, s); err != nil {
			return nil, fmt.Errorf("seat %d controller: %w", seat, err)
		}
	}

	// Create game in DB
	gameID := uuid.NewString()
	if !cfg.DryRun {
		gameID, err = createArenaGame(ctx, cfg, gameRepo, userRepo)
		if err != nil {
			return nil, fmt.Errorf("create arena game: %w", err)
		}
		startBFEN := conquest.EncodeBFEN(engine.Snapshot())
		if err := gameRepo.SetStarted(ctx, gameID, startBFEN, seed); err != nil {
			return nil, fmt.Errorf("mark started: %w", err)
		}
	}

	result := &ArenaResult{
		GameID:     gameID,
		TileCounts: make(map[int]int, cfg.Players),
		UnitCounts: make(map[int]int, cfg.Players),
	}

	var moves []model.MoveRecord
	for !engine.GameOver() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		seat := engine.CurrentPlayer()
		turn := engine.Turn()
		mv, ok := engine.AdvanceAI()
		if !ok {
			return nil, fmt.Errorf("seat %d has no controller (turn %d)", seat, turn)
		}
		if mv != nil {
			result.TotalMoves++
			if !cfg.DryRun {
				moves = append(moves, model.MoveRecord{
					GameID:     gameID,
					Seq:        len(moves) + 1,
					Turn:       turn,
					Seat:       seat,
					FromX:      mv.FromX,
					FromY:      mv.FromY,
					ToX:        mv.ToX,
					ToY:        mv.ToY,
					MoveType:   mv.Type.String(),
					StateAfter: conquest.EncodeBFEN(engine.Snapshot()),
				})
			}
		}

		// Check turn limit
		if engine.Turn() > cfg.MaxTurns {
			break
		}
	}

	final := engine.Snapshot()
	result.Winner = final.Winner
	result.Turns = final.Turn
	result.Rounds = final.Round
	for seat := 1; seat <= cfg.Players; seat++ {
		result.TileCounts[seat] = final.TileCount(seat)
		result.UnitCounts[seat] = final.UnitCount(seat)
	}

	if !cfg.DryRun {
		if err := moveRepo.SaveMoves(ctx, moves); err != nil {
			return nil, fmt.Errorf("save move log: %w", err)
		}
		if err := gameRepo.SetFinished(ctx, gameID, final.Winner); err != nil {
			return nil, fmt.Errorf("set finished: %w", err)
		}
	}

	if final.Winner > 0 {
		log.Info().Str("gameId", gameID).Int("winner", final.Winner).Int("turn", final.Turn).Msg("Arena game won")
	} else {
		log.Info().Str("gameId", gameID).Int("turn", final.Turn).Msg("Arena game ended as draw (turn limit)")
	}
	return result, nil
}

// createArenaGame creates a game row and one bot player per seat.
func createArenaGame(
	ctx context.Context,
	cfg ArenaConfig,
	gameRepo repository.GameRepository,
	userRepo repository.UserRepository,
) (string, error) {
	type botInfo struct {
		userID     string
		seat       int
		difficulty string
	}
	var bots []botInfo

	for seat := 1; seat <= cfg.Players; seat++ {
		diff := cfg.SeatConfig[seat]
		if diff == "" {
			diff = "easy"
		}

		providerID := fmt.Sprintf("botmatch-seat%d-%s", seat, diff)
		displayName := fmt.Sprintf("Bot %d (%s)", seat, diff)
		user, err := userRepo.Upsert(ctx, "bot", providerID, displayName, "")
		if err != nil {
			return "", fmt.Errorf("upsert bot user for seat %d: %w", seat, err)
		}
		bots = append(bots, botInfo{userID: user.ID, seat: seat, difficulty: diff})
	}

	gameName := cfg.GameName
	if gameName == "" {
		gameName = "botmatch"
	}

	width, height := cfg.Width, cfg.Height
	if width == 0 || height == 0 {
		def := conquest.DefaultGenerateConfig(cfg.Players)
		if width == 0 {
			width = def.Width
		}
		if height == 0 {
			height = def.Height
		}
	}

	game, err := gameRepo.Create(ctx, gameName, bots[0].userID, cfg.Players, width, height)
	if err != nil {
		return "", fmt.Errorf("create game: %w", err)
	}

	for _, b := range bots {
		if err := gameRepo.AddPlayer(ctx, game.ID, b.userID, b.seat, true, b.difficulty); err != nil {
			return "", fmt.Errorf("add bot for seat %d: %w", b.seat, err)
		}
	}

	return game.ID, nil
}

// ParseSeatConfig parses a seat configuration string like "1=hard,*=easy".
// Seats without an explicit entry get the "*" difficulty, or "easy" when no
// default is given.
func ParseSeatConfig(s string, players int) map[int]string {
	cfg := make(map[int]string, players)

	defaultDiff := "easy"
	for _, part := range strings.Split(s, ",") {
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		if key == "*" {
			defaultDiff = val
			continue
		}
		if seat, err := strconv.Atoi(key); err == nil {
			cfg[seat] = val
		}
	}

	for seat := 1; seat <= players; seat++ {
		if _, ok := cfg[seat]; !ok {
			cfg[seat] = defaultDiff
		}
	}
	return cfg
}
