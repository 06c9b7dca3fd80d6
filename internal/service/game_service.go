package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"gridlords/internal/bot"
	"gridlords/internal/model"
	"gridlords/internal/repository"
	"gridlords/pkg/conquest"
)

var (
	ErrGameNotFound      = errors.New("game not found")
	ErrGameNotWaiting    = errors.New("game has already started")
	ErrGameNotActive     = errors.New("game is not active")
	ErrGameActive        = errors.New("game is still in progress")
	ErrNotCreator        = errors.New("only the game creator can do that")
	ErrNotInGame         = errors.New("user is not in this game")
	ErrNotYourTurn       = errors.New("not your turn")
	ErrInvalidMove       = errors.New("illegal move")
	ErrInvalidDifficulty = errors.New("unknown bot difficulty")
	ErrInvalidSeat       = errors.New("no such seat")
	ErrInvalidPlayers    = errors.New("player count must be between 2 and 8")
	ErrInvalidBoard      = errors.New("board dimensions must be between 4 and 64")
)

// Event types pushed over the game's WebSocket channel.
const (
	EventGameStarted  = "game_started"
	EventMoveApplied  = "move_applied"
	EventTurnAdvanced = "turn_advanced"
	EventGameEnded    = "game_ended"
	EventMessage      = "message"
)

const (
	maxPlayers         = 8
	maxBoardDim        = 64
	defaultIdleTimeout = 30 * time.Minute
)

// session is one live game held entirely in memory. The engine is the
// authority on board state; the database only sees the game again when it
// finishes. All fields behind mu.
type session struct {
	mu sync.Mutex

	gameID      string
	name        string
	engine      *conquest.Engine
	humanSeat   int
	humanUserID string
	seatUsers   map[int]string
	truces      *bot.TruceBook

	moves      []model.MoveRecord
	lastActive time.Time
	chatRound  int
	done       bool
}

// Tuning carries the knobs applied to every session the service creates.
// Zero values fall back to the package defaults.
type Tuning struct {
	IdleTimeout time.Duration
	SearchDepth int
	BranchCap   int
}

// GameService owns the game lifecycle: lobby rows in Postgres, live
// sessions in memory, finished artifacts back to Postgres and Redis.
type GameService struct {
	gameRepo    repository.GameRepository
	moveRepo    repository.MoveRepository
	userRepo    repository.UserRepository
	messageRepo repository.MessageRepository
	cache       repository.GameCache
	broadcaster Broadcaster
	tuning      Tuning

	mu       sync.RWMutex
	sessions map[string]*session
}

func NewGameService(
	gameRepo repository.GameRepository,
	moveRepo repository.MoveRepository,
	userRepo repository.UserRepository,
	messageRepo repository.MessageRepository,
	cache repository.GameCache,
	broadcaster Broadcaster,
	tuning Tuning,
) *GameService {
	if broadcaster == nil {
		broadcaster = NoopBroadcaster{}
	}
	if tuning.IdleTimeout <= 0 {
		tuning.IdleTimeout = defaultIdleTimeout
	}
	return &GameService{
		gameRepo:    gameRepo,
		moveRepo:    moveRepo,
		userRepo:    userRepo,
		messageRepo: messageRepo,
		cache:       cache,
		broadcaster: broadcaster,
		tuning:      tuning,
		sessions:    make(map[string]*session),
	}
}

// strategyFor builds the controller for a difficulty, applying the
// service's search tuning to the hard bot.
func (s *GameService) strategyFor(difficulty string, seed int64) bot.Strategy {
	if difficulty == "hard" && (s.tuning.SearchDepth > 0 || s.tuning.BranchCap > 0) {
		cfg := bot.DefaultSearchConfig()
		if s.tuning.SearchDepth > 0 {
			cfg.Depth = s.tuning.SearchDepth
		}
		if s.tuning.BranchCap > 0 {
			cfg.BranchCap = s.tuning.BranchCap
		}
		return bot.NewSearchStrategy(cfg, seed)
	}
	return bot.StrategyForDifficulty(difficulty, seed)
}

func (s *GameService) session(gameID string) *session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[gameID]
}

// CreateGame creates a waiting game. The creator takes seat 1; every
// remaining seat is filled with a bot at the requested difficulty
// ("easy" when the list runs short). Bot seats are backed by shared
// users with provider "bot" so the move log and leaderboard always
// reference real rows.
func (s *GameService) CreateGame(ctx context.Context, creatorID, name string, playerCount, boardWidth, boardHeight int, botDifficulties []string) (*model.Game, error) {
	if playerCount < 2 || playerCount > maxPlayers {
		return nil, ErrInvalidPlayers
	}
	def := conquest.DefaultGenerateConfig(playerCount)
	if boardWidth == 0 {
		boardWidth = def.Width
	}
	if boardHeight == 0 {
		boardHeight = def.Height
	}
	if boardWidth < 4 || boardWidth > maxBoardDim || boardHeight < 4 || boardHeight > maxBoardDim {
		return nil, ErrInvalidBoard
	}
	for _, d := range botDifficulties {
		if !bot.ValidDifficulty(d) {
			return nil, ErrInvalidDifficulty
		}
	}

	game, err := s.gameRepo.Create(ctx, name, creatorID, playerCount, boardWidth, boardHeight)
	if err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}

	if err := s.gameRepo.AddPlayer(ctx, game.ID, creatorID, 1, false, ""); err != nil {
		return nil, fmt.Errorf("seat creator: %w", err)
	}
	for seat := 2; seat <= playerCount; seat++ {
		difficulty := "easy"
		if idx := seat - 2; idx < len(botDifficulties) {
			difficulty = botDifficulties[idx]
		}
		botUser, err := s.userRepo.Upsert(ctx, "bot", fmt.Sprintf("bot-%d", seat), fmt.Sprintf("Bot %d", seat), "")
		if err != nil {
			return nil, fmt.Errorf("create bot user: %w", err)
		}
		if err := s.gameRepo.AddPlayer(ctx, game.ID, botUser.ID, seat, true, difficulty); err != nil {
			return nil, fmt.Errorf("seat bot %d: %w", seat, err)
		}
	}

	log.Info().
		Str("gameId", game.ID).
		Str("creatorId", creatorID).
		Int("players", playerCount).
		Msg("Game created")

	return s.gameRepo.FindByID(ctx, game.ID)
}

// ListGames lists games for the lobby. Filter "my" scopes to the user's
// games, "finished" to completed ones (optionally searched by name);
// anything else lists joinable waiting games.
func (s *GameService) ListGames(ctx context.Context, userID, filter, search string) ([]model.Game, error) {
	switch filter {
	case "my":
		return s.gameRepo.ListByUser(ctx, userID)
	case "finished":
		if search != "" {
			return s.gameRepo.SearchFinished(ctx, search)
		}
		return s.gameRepo.ListFinished(ctx)
	default:
		return s.gameRepo.ListOpen(ctx)
	}
}

func (s *GameService) GetGame(ctx context.Context, gameID string) (*model.Game, error) {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}
	return game, nil
}

// StartGame generates the board, builds the engine with a bot on every
// non-creator seat, and opens the live session. The creator always holds
// seat 1 and seat 1 always moves first, so a fresh game waits on the
// human.
func (s *GameService) StartGame(ctx context.Context, gameID, userID string) (*model.Game, error) {
	game, err := s.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game.Status != "waiting" {
		return nil, ErrGameNotWaiting
	}
	if game.CreatorID != userID {
		return nil, ErrNotCreator
	}

	seed := time.Now().UnixNano()
	rng := rand.New(rand.NewSource(seed))

	cfg := conquest.DefaultGenerateConfig(game.PlayerCount)
	cfg.Width = game.BoardWidth
	cfg.Height = game.BoardHeight
	m, err := conquest.Generate(cfg, rng)
	if err != nil {
		return nil, fmt.Errorf("generate map: %w", err)
	}
	gs := conquest.NewGameState(m, game.PlayerCount)
	engine := conquest.NewEngine(gs, rng)

	sess := &session{
		gameID:     gameID,
		name:       game.Name,
		engine:     engine,
		seatUsers:  make(map[int]string, len(game.Players)),
		truces:     bot.NewTruceBook(),
		lastActive: time.Now(),
	}
	for _, p := range game.Players {
		sess.seatUsers[p.Seat] = p.UserID
		if p.IsBot {
			strategy := bot.NewTruceStrategy(s.strategyFor(p.BotDifficulty, seed+int64(p.Seat)), sess.truces)
			if err := engine.SetController(p.Seat, strategy); err != nil {
				return nil, fmt.Errorf("seat %d controller: %w", p.Seat, err)
			}
			continue
		}
		sess.humanSeat = p.Seat
		sess.humanUserID = p.UserID
	}

	startBFEN := conquest.EncodeBFEN(engine.Snapshot())
	if err := s.gameRepo.SetStarted(ctx, gameID, startBFEN, seed); err != nil {
		return nil, fmt.Errorf("mark started: %w", err)
	}

	s.mu.Lock()
	s.sessions[gameID] = sess
	s.mu.Unlock()

	if err := s.cache.SetSessionTimer(ctx, gameID, time.Now().Add(s.tuning.IdleTimeout)); err != nil {
		log.Warn().Err(err).Str("gameId", gameID).Msg("Failed to set session timer")
	}

	log.Info().
		Str("gameId", gameID).
		Int64("seed", seed).
		Int("width", cfg.Width).
		Int("height", cfg.Height).
		Msg("Game started")

	s.broadcaster.BroadcastGameEvent(gameID, EventGameStarted, map[string]any{
		"game_id": gameID,
		"state":   engine.Snapshot(),
	})

	return s.gameRepo.FindByID(ctx, gameID)
}

// State returns the current board. Live games snapshot the session
// engine; finished games replay the tail of the persisted move log.
func (s *GameService) State(ctx context.Context, gameID string) (*conquest.GameState, error) {
	if sess := s.session(gameID); sess != nil {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		return sess.engine.Snapshot(), nil
	}

	game, err := s.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game.Status != "finished" || game.MapBFEN == "" {
		return nil, ErrGameNotActive
	}
	moves, err := s.moveRepo.ListByGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	notation := game.MapBFEN
	for i := len(moves) - 1; i >= 0; i-- {
		if moves[i].StateAfter != "" {
			notation = moves[i].StateAfter
			break
		}
	}
	return conquest.DecodeBFEN(notation)
}

// MoveLog returns the applied moves in order. Live games read the
// in-memory log, finished games the persisted one.
func (s *GameService) MoveLog(ctx context.Context, gameID string) ([]model.MoveRecord, error) {
	if sess := s.session(gameID); sess != nil {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		out := make([]model.MoveRecord, len(sess.moves))
		copy(out, sess.moves)
		return out, nil
	}
	if _, err := s.GetGame(ctx, gameID); err != nil {
		return nil, err
	}
	return s.moveRepo.ListByGame(ctx, gameID)
}

// SubmitMove applies one move for the human player. The human may also
// drive any seat whose controller was removed; the engine still enforces
// that the move belongs to the seat on turn.
func (s *GameService) SubmitMove(ctx context.Context, gameID, userID string, fromX, fromY, toX, toY int, moveType string) (*conquest.GameState, error) {
	sess, err := s.liveSession(ctx, gameID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.done || sess.engine.GameOver() {
		return nil, ErrGameNotActive
	}
	if userID != sess.humanUserID {
		return nil, ErrNotInGame
	}
	seat := sess.engine.CurrentPlayer()
	if seat != sess.humanSeat && sess.engine.Controlled() {
		return nil, ErrNotYourTurn
	}

	mt, err := conquest.ParseMoveType(moveType)
	if err != nil {
		return nil, ErrInvalidMove
	}
	mv := conquest.Move{FromX: fromX, FromY: fromY, ToX: toX, ToY: toY, Type: mt}
	turn := sess.engine.Turn()
	if !sess.engine.MakeMove(seat, mv) {
		return nil, ErrInvalidMove
	}

	sess.lastActive = time.Now()
	s.recordMove(sess, seat, turn, &mv)

	if sess.engine.GameOver() {
		s.finishLocked(ctx, sess, sess.engine.Winner(), "conquest")
	} else {
		s.touchTimer(ctx, gameID)
	}
	return sess.engine.Snapshot(), nil
}

// EndTurn advances past the human's seat, then lets every consecutive
// bot seat play out its turn before control returns.
func (s *GameService) EndTurn(ctx context.Context, gameID, userID string) (*conquest.GameState, error) {
	sess, err := s.liveSession(ctx, gameID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.done || sess.engine.GameOver() {
		return nil, ErrGameNotActive
	}
	if userID != sess.humanUserID {
		return nil, ErrNotInGame
	}
	seat := sess.engine.CurrentPlayer()
	if seat != sess.humanSeat && sess.engine.Controlled() {
		return nil, ErrNotYourTurn
	}

	sess.lastActive = time.Now()
	sess.engine.NextTurn()
	s.broadcastTurn(sess)
	s.driveBots(ctx, sess)

	if sess.engine.GameOver() && !sess.done {
		s.finishLocked(ctx, sess, sess.engine.Winner(), "conquest")
	} else if !sess.done {
		s.touchTimer(ctx, gameID)
	}
	return sess.engine.Snapshot(), nil
}

// Decision runs a throwaway strategy on the current position and returns
// the move it would play, without applying anything. A nil move means
// the strategy would pass.
func (s *GameService) Decision(ctx context.Context, gameID, userID, difficulty string) (*conquest.Move, error) {
	sess, err := s.liveSession(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if difficulty == "" {
		difficulty = "medium"
	}
	if !bot.ValidDifficulty(difficulty) {
		return nil, ErrInvalidDifficulty
	}

	sess.mu.Lock()
	if userID != sess.humanUserID {
		sess.mu.Unlock()
		return nil, ErrNotInGame
	}
	snap := sess.engine.Snapshot()
	sess.lastActive = time.Now()
	sess.mu.Unlock()

	strategy := s.strategyFor(difficulty, time.Now().UnixNano())
	return strategy.ChooseMove(snap, snap.CurrentPlayer), nil
}

// SetSeatController attaches a bot to a seat mid-game, or retunes the
// difficulty of a waiting game's bot seat. If the seat is already on
// turn the bot plays immediately.
func (s *GameService) SetSeatController(ctx context.Context, gameID, userID string, seat int, difficulty string) error {
	game, err := s.GetGame(ctx, gameID)
	if err != nil {
		return err
	}
	if game.CreatorID != userID {
		return ErrNotCreator
	}
	if seat < 1 || seat > game.PlayerCount {
		return ErrInvalidSeat
	}
	if !bot.ValidDifficulty(difficulty) {
		return ErrInvalidDifficulty
	}

	if err := s.gameRepo.UpdateBotDifficulty(ctx, gameID, seat, difficulty); err != nil {
		return fmt.Errorf("update difficulty: %w", err)
	}

	sess := s.session(gameID)
	if sess == nil {
		if game.Status == "waiting" {
			return nil
		}
		return ErrGameNotActive
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.done {
		return ErrGameNotActive
	}
	if sess.truces == nil {
		sess.truces = bot.NewTruceBook()
	}
	strategy := bot.NewTruceStrategy(s.strategyFor(difficulty, time.Now().UnixNano()), sess.truces)
	if err := sess.engine.SetController(seat, strategy); err != nil {
		return ErrInvalidSeat
	}
	sess.lastActive = time.Now()

	log.Info().Str("gameId", gameID).Int("seat", seat).Str("difficulty", difficulty).Msg("Controller set")

	s.driveBots(ctx, sess)
	if sess.engine.GameOver() && !sess.done {
		s.finishLocked(ctx, sess, sess.engine.Winner(), "conquest")
	}
	return nil
}

// RemoveSeatController detaches a seat's bot so the human plays that
// seat's turns until a controller is set again.
func (s *GameService) RemoveSeatController(ctx context.Context, gameID, userID string, seat int) error {
	game, err := s.GetGame(ctx, gameID)
	if err != nil {
		return err
	}
	if game.CreatorID != userID {
		return ErrNotCreator
	}
	if seat < 1 || seat > game.PlayerCount {
		return ErrInvalidSeat
	}

	sess := s.session(gameID)
	if sess == nil {
		return ErrGameNotActive
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.done {
		return ErrGameNotActive
	}
	sess.engine.RemoveController(seat)
	sess.lastActive = time.Now()
	log.Info().Str("gameId", gameID).Int("seat", seat).Msg("Controller removed")
	return nil
}

// StopGame ends an active game early as a draw.
func (s *GameService) StopGame(ctx context.Context, gameID, userID string) error {
	game, err := s.GetGame(ctx, gameID)
	if err != nil {
		return err
	}
	if game.CreatorID != userID {
		return ErrNotCreator
	}
	if game.Status != "active" {
		return ErrGameNotActive
	}

	sess := s.session(gameID)
	if sess == nil {
		// Active row with no live session, normally after a crash. Settle
		// the row directly.
		return s.gameRepo.SetFinished(ctx, gameID, 0)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if !sess.done {
		s.finishLocked(ctx, sess, 0, "stopped")
	}
	return nil
}

// DeleteGame removes a waiting or finished game and everything that
// hangs off it. Active games must be stopped first.
func (s *GameService) DeleteGame(ctx context.Context, gameID, userID string) error {
	game, err := s.GetGame(ctx, gameID)
	if err != nil {
		return err
	}
	if game.CreatorID != userID {
		return ErrNotCreator
	}
	if game.Status == "active" {
		return ErrGameActive
	}
	return s.gameRepo.Delete(ctx, gameID)
}

// AbandonGame force-finishes a game whose session went idle. Called by
// the reaper; safe against the game finishing normally in between.
func (s *GameService) AbandonGame(ctx context.Context, gameID, reason string) error {
	sess := s.session(gameID)
	if sess == nil {
		game, err := s.gameRepo.FindByID(ctx, gameID)
		if err != nil || game == nil || game.Status != "active" {
			return err
		}
		return s.gameRepo.SetFinished(ctx, gameID, 0)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.done {
		return nil
	}
	log.Info().Str("gameId", gameID).Str("reason", reason).Msg("Abandoning idle game")
	s.finishLocked(ctx, sess, 0, reason)
	return nil
}

// AbandonActiveGames settles every game the database still marks active.
// Runs once at startup: sessions do not survive a restart, so those rows
// are unrecoverable and close as draws.
func (s *GameService) AbandonActiveGames(ctx context.Context) error {
	games, err := s.gameRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active games: %w", err)
	}
	for _, g := range games {
		if err := s.gameRepo.SetFinished(ctx, g.ID, 0); err != nil {
			log.Error().Err(err).Str("gameId", g.ID).Msg("Failed to abandon game")
			continue
		}
		if err := s.cache.ClearSessionTimer(ctx, g.ID); err != nil {
			log.Warn().Err(err).Str("gameId", g.ID).Msg("Failed to clear session timer")
		}
		log.Info().Str("gameId", g.ID).Msg("Abandoned game from previous run")
	}
	return nil
}

// IdleSessions returns the IDs of live sessions with no human activity
// inside the idle window.
func (s *GameService) IdleSessions() []string {
	s.mu.RLock()
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	var idle []string
	cutoff := time.Now().Add(-s.tuning.IdleTimeout)
	for _, sess := range sessions {
		sess.mu.Lock()
		if !sess.done && sess.lastActive.Before(cutoff) {
			idle = append(idle, sess.gameID)
		}
		sess.mu.Unlock()
	}
	return idle
}

// LeaderboardEntry is one row of the win leaderboard with the display
// name joined in.
type LeaderboardEntry struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Wins        int64  `json:"wins"`
}

// Leaderboard returns the top n players by wins.
func (s *GameService) Leaderboard(ctx context.Context, n int64) ([]LeaderboardEntry, error) {
	scores, err := s.cache.TopPlayers(ctx, n)
	if err != nil {
		return nil, err
	}
	entries := make([]LeaderboardEntry, 0, len(scores))
	for _, sc := range scores {
		entry := LeaderboardEntry{UserID: sc.UserID, Wins: sc.Wins}
		if u, err := s.userRepo.FindByID(ctx, sc.UserID); err == nil && u != nil {
			entry.DisplayName = u.DisplayName
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// RecentResults returns the newest finished-game summaries.
func (s *GameService) RecentResults(ctx context.Context, n int64) ([]json.RawMessage, error) {
	return s.cache.RecentResults(ctx, n)
}

// SendMessage posts a chat message on a game, stamped with the current
// turn when the game is live. Empty recipientID broadcasts to the table.
func (s *GameService) SendMessage(ctx context.Context, gameID, senderID, recipientID, content string) (*model.Message, error) {
	game, err := s.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if !playerInGame(game, senderID) {
		return nil, ErrNotInGame
	}

	turn := 0
	if sess := s.session(gameID); sess != nil {
		sess.mu.Lock()
		turn = sess.engine.Turn()
		sess.mu.Unlock()
	}

	msg, err := s.messageRepo.Create(ctx, gameID, senderID, recipientID, content, turn)
	if err != nil {
		return nil, err
	}
	s.broadcaster.BroadcastGameEvent(gameID, EventMessage, msg)
	s.answerCannedMessage(ctx, gameID, senderID, recipientID, content)
	return msg, nil
}

// answerCannedMessage reacts to a recognized canned line aimed at a live
// bot seat. Truce offers get an accept or reject reply on the spot;
// answers to a bot's own pending offer settle the truce book. Free-form
// chat and lines aimed at humans pass through silently.
func (s *GameService) answerCannedMessage(ctx context.Context, gameID, senderID, recipientID, content string) {
	intent, err := bot.ParseCannedMessage(content)
	if err != nil {
		return
	}
	sess := s.session(gameID)
	if sess == nil {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.done {
		return
	}
	from := seatOf(sess, senderID)
	to := seatOf(sess, recipientID)
	if from == 0 || to == 0 || !sess.engine.Controls(to) {
		return
	}
	if sess.truces == nil {
		sess.truces = bot.NewTruceBook()
	}

	switch intent.Type {
	case bot.IntentTruceOffer:
		reply := bot.ChatIntent{Type: bot.IntentTruceReject, From: to, To: from}
		if bot.ConsiderTruce(sess.engine.Snapshot(), to, from) {
			sess.truces.Declare(from, to)
			reply.Type = bot.IntentTruceAccept
		}
		s.botChat(ctx, sess, reply)
	case bot.IntentTruceAccept:
		if sess.truces.TakeOffer(to, from) {
			sess.truces.Declare(from, to)
		}
	case bot.IntentTruceReject:
		sess.truces.TakeOffer(to, from)
	}
}

// seatOf reverse-maps a user ID to its seat, zero when absent.
func seatOf(sess *session, userID string) int {
	if userID == "" {
		return 0
	}
	for seat, id := range sess.seatUsers {
		if id == userID {
			return seat
		}
	}
	return 0
}

// ListMessages returns the messages visible to the user: public ones
// plus private ones they sent or received.
func (s *GameService) ListMessages(ctx context.Context, gameID, userID string) ([]model.Message, error) {
	game, err := s.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if !playerInGame(game, userID) {
		return nil, ErrNotInGame
	}
	return s.messageRepo.ListByGame(ctx, gameID, userID)
}

func playerInGame(game *model.Game, userID string) bool {
	if game.CreatorID == userID {
		return true
	}
	for _, p := range game.Players {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// liveSession resolves gameID to its running session, distinguishing
// unknown games from known-but-not-live ones.
func (s *GameService) liveSession(ctx context.Context, gameID string) (*session, error) {
	if sess := s.session(gameID); sess != nil {
		return sess, nil
	}
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}
	return nil, ErrGameNotActive
}

// driveBots plays out consecutive controlled seats. Stops when the turn
// reaches an uncontrolled seat, the game ends, or a controller refuses
// to advance. Caller holds sess.mu.
func (s *GameService) driveBots(ctx context.Context, sess *session) {
	for !sess.engine.GameOver() && sess.engine.Controlled() {
		seat := sess.engine.CurrentPlayer()
		turn := sess.engine.Turn()
		aliveBefore := make(map[int]bool, len(sess.seatUsers))
		for p := range sess.seatUsers {
			aliveBefore[p] = sess.engine.Alive(p)
		}
		mv, ok := sess.engine.AdvanceAI()
		if !ok {
			break
		}
		if mv != nil {
			s.recordMove(sess, seat, turn, mv)
			for p, wasAlive := range aliveBefore {
				if wasAlive && !sess.engine.Alive(p) {
					s.botChat(ctx, sess, bot.EliminationTaunt(seat, p))
				}
			}
		}
		s.broadcastTurn(sess)
		s.botTableTalk(ctx, sess)
		if err := ctx.Err(); err != nil {
			return
		}
	}
}

// botTableTalk lets every bot seat speak once per growth round: capital
// threats, truce offers, border warnings, sector claims. Offers between
// two bots are answered inline; offers to the human stay pending in the
// truce book until a canned reply arrives. Caller holds sess.mu.
func (s *GameService) botTableTalk(ctx context.Context, sess *session) {
	round := sess.engine.Round()
	if sess.chatRound == 0 {
		sess.chatRound = round
	}
	if round <= sess.chatRound {
		return
	}
	sess.chatRound = round

	if sess.truces == nil {
		sess.truces = bot.NewTruceBook()
	}
	snap := sess.engine.Snapshot()
	for seat := 1; seat <= snap.PlayerCount; seat++ {
		if !sess.engine.Controls(seat) {
			continue
		}
		for _, intent := range bot.TableTalk(snap, seat) {
			s.botChat(ctx, sess, intent)
			if intent.Type != bot.IntentTruceOffer {
				continue
			}
			sess.truces.Offer(intent.From, intent.To)
			if !sess.engine.Controls(intent.To) {
				continue
			}
			sess.truces.TakeOffer(intent.From, intent.To)
			reply := bot.ChatIntent{Type: bot.IntentTruceReject, From: intent.To, To: intent.From}
			if bot.ConsiderTruce(snap, intent.To, intent.From) {
				sess.truces.Declare(intent.From, intent.To)
				reply.Type = bot.IntentTruceAccept
			}
			s.botChat(ctx, sess, reply)
		}
	}
}

// botChat persists one bot line and pushes it to the table. Chat
// failures are logged and never interrupt play. Caller holds sess.mu.
func (s *GameService) botChat(ctx context.Context, sess *session, intent bot.ChatIntent) {
	senderID := sess.seatUsers[intent.From]
	if senderID == "" {
		return
	}
	recipientID := ""
	if intent.To > 0 {
		recipientID = sess.seatUsers[intent.To]
	}
	msg, err := s.messageRepo.Create(ctx, sess.gameID, senderID, recipientID, bot.FormatCannedMessage(intent), sess.engine.Turn())
	if err != nil {
		log.Warn().Err(err).Str("gameId", sess.gameID).Msg("Failed to persist bot chat")
		return
	}
	s.broadcaster.BroadcastGameEvent(sess.gameID, EventMessage, msg)
}

// recordMove appends to the in-memory log and announces the move. Caller
// holds sess.mu.
func (s *GameService) recordMove(sess *session, seat, turn int, mv *conquest.Move) {
	rec := model.MoveRecord{
		GameID:     sess.gameID,
		Seq:        len(sess.moves) + 1,
		Turn:       turn,
		Seat:       seat,
		FromX:      mv.FromX,
		FromY:      mv.FromY,
		ToX:        mv.ToX,
		ToY:        mv.ToY,
		MoveType:   mv.Type.String(),
		StateAfter: conquest.EncodeBFEN(sess.engine.Snapshot()),
	}
	sess.moves = append(sess.moves, rec)

	s.broadcaster.BroadcastGameEvent(sess.gameID, EventMoveApplied, map[string]any{
		"game_id": sess.gameID,
		"seat":    seat,
		"turn":    turn,
		"move":    mv,
		"state":   sess.engine.Snapshot(),
	})
}

func (s *GameService) broadcastTurn(sess *session) {
	s.broadcaster.BroadcastGameEvent(sess.gameID, EventTurnAdvanced, map[string]any{
		"game_id":        sess.gameID,
		"current_player": sess.engine.CurrentPlayer(),
		"turn":           sess.engine.Turn(),
		"round":          sess.engine.Round(),
	})
}

func (s *GameService) touchTimer(ctx context.Context, gameID string) {
	if err := s.cache.SetSessionTimer(ctx, gameID, time.Now().Add(s.tuning.IdleTimeout)); err != nil {
		log.Warn().Err(err).Str("gameId", gameID).Msg("Failed to refresh session timer")
	}
}

// finishLocked settles a finished or abandoned game: move log and result
// row to Postgres, winner and summary to Redis, session torn down.
// Winner 0 is a draw. Caller holds sess.mu.
func (s *GameService) finishLocked(ctx context.Context, sess *session, winner int, reason string) {
	sess.done = true

	if err := s.moveRepo.SaveMoves(ctx, sess.moves); err != nil {
		log.Error().Err(err).Str("gameId", sess.gameID).Msg("Failed to persist move log")
	}
	if err := s.gameRepo.SetFinished(ctx, sess.gameID, winner); err != nil {
		log.Error().Err(err).Str("gameId", sess.gameID).Msg("Failed to mark game finished")
	}

	winnerID := ""
	winnerName := ""
	if winner > 0 {
		winnerID = sess.seatUsers[winner]
		if winnerID != "" {
			if err := s.cache.RecordWin(ctx, winnerID); err != nil {
				log.Warn().Err(err).Str("gameId", sess.gameID).Msg("Failed to record win")
			}
			if u, err := s.userRepo.FindByID(ctx, winnerID); err == nil && u != nil {
				winnerName = u.DisplayName
			}
		}
	}

	summary, err := json.Marshal(map[string]any{
		"game_id":     sess.gameID,
		"name":        sess.name,
		"winner":      winner,
		"winner_id":   winnerID,
		"winner_name": winnerName,
		"turns":       sess.engine.Turn(),
		"reason":      reason,
		"finished_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err == nil {
		if err := s.cache.PushResult(ctx, summary); err != nil {
			log.Warn().Err(err).Str("gameId", sess.gameID).Msg("Failed to push result")
		}
	}
	if err := s.cache.ClearSessionTimer(ctx, sess.gameID); err != nil {
		log.Warn().Err(err).Str("gameId", sess.gameID).Msg("Failed to clear session timer")
	}

	s.broadcaster.BroadcastGameEvent(sess.gameID, EventGameEnded, map[string]any{
		"game_id": sess.gameID,
		"winner":  winner,
		"reason":  reason,
	})

	log.Info().
		Str("gameId", sess.gameID).
		Int("winner", winner).
		Str("reason", reason).
		Int("moves", len(sess.moves)).
		Msg("Game finished")

	s.mu.Lock()
	delete(s.sessions, sess.gameID)
	s.mu.Unlock()
}
