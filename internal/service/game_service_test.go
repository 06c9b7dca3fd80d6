package service

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"gridlords/internal/bot"
	"gridlords/internal/model"
	"gridlords/pkg/conquest"
)

type testEnv struct {
	svc      *GameService
	games    *mockGameRepo
	moves    *mockMoveRepo
	users    *mockUserRepo
	messages *mockMessageRepo
	cache    *mockCache
	bcast    *mockBroadcaster
}

func newTestEnv() *testEnv {
	env := &testEnv{
		games:    newMockGameRepo(),
		moves:    newMockMoveRepo(),
		users:    newMockUserRepo(),
		messages: newMockMessageRepo(),
		cache:    newMockCache(),
		bcast:    &mockBroadcaster{},
	}
	env.svc = NewGameService(env.games, env.moves, env.users, env.messages, env.cache, env.bcast, Tuning{})
	return env
}

// fixtureGame creates an active 2-player game whose session runs on a
// hand-built board instead of a generated one. Seat 1 is the human
// "user-1"; botSeats get controllers at the given difficulty.
func fixtureGame(t *testing.T, env *testEnv, bfen string, botSeats map[int]string) (string, *session) {
	t.Helper()
	game, err := env.svc.CreateGame(context.Background(), "user-1", "Fixture", 2, 0, 0, nil)
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	env.games.games[game.ID].Status = "active"
	env.games.games[game.ID].MapBFEN = bfen

	gs, err := conquest.DecodeBFEN(bfen)
	if err != nil {
		t.Fatalf("DecodeBFEN: %v", err)
	}
	engine := conquest.NewEngine(gs, rand.New(rand.NewSource(7)))
	for seat, difficulty := range botSeats {
		if err := engine.SetController(seat, env.svc.strategyFor(difficulty, 7)); err != nil {
			t.Fatalf("SetController: %v", err)
		}
	}

	sess := &session{
		gameID:      game.ID,
		name:        game.Name,
		engine:      engine,
		humanSeat:   1,
		humanUserID: "user-1",
		seatUsers:   make(map[int]string),
		lastActive:  time.Now(),
	}
	for _, p := range env.games.players[game.ID] {
		sess.seatUsers[p.Seat] = p.UserID
	}
	env.svc.mu.Lock()
	env.svc.sessions[game.ID] = sess
	env.svc.mu.Unlock()
	return game.ID, sess
}

func TestCreateGame(t *testing.T) {
	env := newTestEnv()

	game, err := env.svc.CreateGame(context.Background(), "user-1", "Test Game", 3, 0, 0, []string{"hard"})
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if game.Name != "Test Game" {
		t.Errorf("expected name 'Test Game', got %s", game.Name)
	}
	if game.Status != "waiting" {
		t.Errorf("expected status 'waiting', got %s", game.Status)
	}

	players := env.games.players[game.ID]
	if len(players) != 3 {
		t.Fatalf("expected 3 players (1 creator + 2 bots), got %d", len(players))
	}
	if players[0].UserID != "user-1" || players[0].Seat != 1 || players[0].IsBot {
		t.Errorf("expected seat 1 to be the human creator, got %+v", players[0])
	}
	if !players[1].IsBot || players[1].BotDifficulty != "hard" {
		t.Errorf("expected seat 2 to be a hard bot, got %+v", players[1])
	}
	if !players[2].IsBot || players[2].BotDifficulty != "easy" {
		t.Errorf("expected seat 3 to default to an easy bot, got %+v", players[2])
	}
}

func TestCreateGameBoardDefaults(t *testing.T) {
	env := newTestEnv()

	game, err := env.svc.CreateGame(context.Background(), "user-1", "Defaults", 2, 0, 0, nil)
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	def := conquest.DefaultGenerateConfig(2)
	if game.BoardWidth != def.Width || game.BoardHeight != def.Height {
		t.Errorf("expected default board %dx%d, got %dx%d", def.Width, def.Height, game.BoardWidth, game.BoardHeight)
	}
}

func TestCreateGameInvalidPlayerCount(t *testing.T) {
	env := newTestEnv()

	if _, err := env.svc.CreateGame(context.Background(), "user-1", "Solo", 1, 0, 0, nil); err != ErrInvalidPlayers {
		t.Errorf("expected ErrInvalidPlayers for 1 player, got %v", err)
	}
	if _, err := env.svc.CreateGame(context.Background(), "user-1", "Horde", 9, 0, 0, nil); err != ErrInvalidPlayers {
		t.Errorf("expected ErrInvalidPlayers for 9 players, got %v", err)
	}
}

func TestCreateGameInvalidBoard(t *testing.T) {
	env := newTestEnv()

	if _, err := env.svc.CreateGame(context.Background(), "user-1", "Tiny", 2, 3, 10, nil); err != ErrInvalidBoard {
		t.Errorf("expected ErrInvalidBoard, got %v", err)
	}
}

func TestCreateGameInvalidDifficulty(t *testing.T) {
	env := newTestEnv()

	if _, err := env.svc.CreateGame(context.Background(), "user-1", "Test", 2, 0, 0, []string{"nightmare"}); err != ErrInvalidDifficulty {
		t.Errorf("expected ErrInvalidDifficulty, got %v", err)
	}
}

func TestGetGameNotFound(t *testing.T) {
	env := newTestEnv()

	if _, err := env.svc.GetGame(context.Background(), "nonexistent"); err != ErrGameNotFound {
		t.Errorf("expected ErrGameNotFound, got %v", err)
	}
}

func TestListGames(t *testing.T) {
	env := newTestEnv()

	env.svc.CreateGame(context.Background(), "user-1", "Open One", 2, 0, 0, nil)
	env.svc.CreateGame(context.Background(), "user-2", "Open Two", 2, 0, 0, nil)
	g3, _ := env.svc.CreateGame(context.Background(), "user-1", "Old Battle", 2, 0, 0, nil)
	env.games.games[g3.ID].Status = "finished"

	open, err := env.svc.ListGames(context.Background(), "user-1", "", "")
	if err != nil {
		t.Fatalf("ListGames: %v", err)
	}
	if len(open) != 2 {
		t.Errorf("expected 2 open games, got %d", len(open))
	}

	mine, err := env.svc.ListGames(context.Background(), "user-1", "my", "")
	if err != nil {
		t.Fatalf("ListGames my: %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("expected 2 games for user-1, got %d", len(mine))
	}

	finished, err := env.svc.ListGames(context.Background(), "user-1", "finished", "battle")
	if err != nil {
		t.Fatalf("ListGames finished: %v", err)
	}
	if len(finished) != 1 || finished[0].Name != "Old Battle" {
		t.Errorf("expected the finished game by search, got %+v", finished)
	}
}

func TestStartGame(t *testing.T) {
	env := newTestEnv()

	game, _ := env.svc.CreateGame(context.Background(), "user-1", "Test", 2, 0, 0, nil)
	started, err := env.svc.StartGame(context.Background(), game.ID, "user-1")
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if started.Status != "active" {
		t.Errorf("expected status 'active', got %s", started.Status)
	}
	if started.MapBFEN == "" {
		t.Error("expected starting board notation to be recorded")
	}
	if started.Seed == 0 {
		t.Error("expected a nonzero seed")
	}

	sess := env.svc.session(game.ID)
	if sess == nil {
		t.Fatal("expected a live session after start")
	}
	if sess.humanSeat != 1 || sess.humanUserID != "user-1" {
		t.Errorf("expected the creator on seat 1, got seat %d user %s", sess.humanSeat, sess.humanUserID)
	}
	if got := sess.engine.CurrentPlayer(); got != 1 {
		t.Errorf("expected the human to open the game, current player %d", got)
	}
	if !env.bcast.has(EventGameStarted) {
		t.Error("expected a game_started event")
	}
	if _, ok := env.cache.timers[game.ID]; !ok {
		t.Error("expected a session timer to be set")
	}
}

func TestStartGameNotCreator(t *testing.T) {
	env := newTestEnv()

	game, _ := env.svc.CreateGame(context.Background(), "user-1", "Test", 2, 0, 0, nil)
	if _, err := env.svc.StartGame(context.Background(), game.ID, "user-2"); err != ErrNotCreator {
		t.Errorf("expected ErrNotCreator, got %v", err)
	}
}

func TestStartGameTwice(t *testing.T) {
	env := newTestEnv()

	game, _ := env.svc.CreateGame(context.Background(), "user-1", "Test", 2, 0, 0, nil)
	if _, err := env.svc.StartGame(context.Background(), game.ID, "user-1"); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if _, err := env.svc.StartGame(context.Background(), game.ID, "user-1"); err != ErrGameNotWaiting {
		t.Errorf("expected ErrGameNotWaiting, got %v", err)
	}
}

func TestSubmitMove(t *testing.T) {
	env := newTestEnv()
	gameID, _ := fixtureGame(t, env, "2x2/1c5,.|.,2c5/1@0.0,2@1.1/1.1.1", nil)

	state, err := env.svc.SubmitMove(context.Background(), gameID, "user-1", 0, 0, 1, 0, "half")
	if err != nil {
		t.Fatalf("SubmitMove: %v", err)
	}
	if got := state.Map.At(1, 0).Units; got != 2 {
		t.Errorf("expected 2 units on the target tile, got %d", got)
	}
	if got := state.Map.At(0, 0).Units; got != 3 {
		t.Errorf("expected 3 units left on the source tile, got %d", got)
	}

	log, err := env.svc.MoveLog(context.Background(), gameID)
	if err != nil {
		t.Fatalf("MoveLog: %v", err)
	}
	if len(log) != 1 {
		t.Fatalf("expected 1 logged move, got %d", len(log))
	}
	if log[0].Seq != 1 || log[0].Seat != 1 || log[0].MoveType != "half" {
		t.Errorf("unexpected move record %+v", log[0])
	}
	if log[0].StateAfter == "" {
		t.Error("expected the record to carry the board after the move")
	}
	if len(env.moves.saved[gameID]) != 0 {
		t.Error("expected nothing persisted while the game is live")
	}
	if !env.bcast.has(EventMoveApplied) {
		t.Error("expected a move_applied event")
	}
}

func TestSubmitMoveCapturesAndFinishes(t *testing.T) {
	env := newTestEnv()
	gameID, _ := fixtureGame(t, env, "2x1/1c9,2c2/1@0.0,2@1.0/1.1.1", nil)

	state, err := env.svc.SubmitMove(context.Background(), gameID, "user-1", 0, 0, 1, 0, "max")
	if err != nil {
		t.Fatalf("SubmitMove: %v", err)
	}
	if !state.GameOver || state.Winner != 1 {
		t.Fatalf("expected player 1 to win, got over=%v winner=%d", state.GameOver, state.Winner)
	}

	g := env.games.games[gameID]
	if g.Status != "finished" || g.Winner != 1 {
		t.Errorf("expected the game row finished with winner 1, got status=%s winner=%d", g.Status, g.Winner)
	}
	if len(env.moves.saved[gameID]) != 1 {
		t.Errorf("expected the move log persisted on finish, got %d records", len(env.moves.saved[gameID]))
	}
	if env.cache.wins["user-1"] != 1 {
		t.Errorf("expected a recorded win for user-1, got %d", env.cache.wins["user-1"])
	}
	if len(env.cache.results) != 1 {
		t.Errorf("expected 1 result pushed, got %d", len(env.cache.results))
	}
	if _, ok := env.cache.timers[gameID]; ok {
		t.Error("expected the session timer cleared")
	}
	if env.svc.session(gameID) != nil {
		t.Error("expected the session torn down")
	}
	if !env.bcast.has(EventGameEnded) {
		t.Error("expected a game_ended event")
	}
}

func TestSubmitMoveWrongUser(t *testing.T) {
	env := newTestEnv()
	gameID, _ := fixtureGame(t, env, "2x2/1c5,.|.,2c5/1@0.0,2@1.1/1.1.1", nil)

	if _, err := env.svc.SubmitMove(context.Background(), gameID, "user-2", 0, 0, 1, 0, "half"); err != ErrNotInGame {
		t.Errorf("expected ErrNotInGame, got %v", err)
	}
}

func TestSubmitMoveNotYourTurn(t *testing.T) {
	env := newTestEnv()
	gameID, sess := fixtureGame(t, env, "2x2/1c5,.|.,2c5/1@0.0,2@1.1/1.1.1", map[int]string{2: "random"})

	sess.engine.NextTurn()
	if _, err := env.svc.SubmitMove(context.Background(), gameID, "user-1", 1, 1, 1, 0, "half"); err != ErrNotYourTurn {
		t.Errorf("expected ErrNotYourTurn, got %v", err)
	}
}

func TestSubmitMoveIllegal(t *testing.T) {
	env := newTestEnv()
	gameID, _ := fixtureGame(t, env, "2x2/1c5,.|.,2c5/1@0.0,2@1.1/1.1.1", nil)

	// Source tile is empty.
	if _, err := env.svc.SubmitMove(context.Background(), gameID, "user-1", 1, 0, 0, 0, "half"); err != ErrInvalidMove {
		t.Errorf("expected ErrInvalidMove for empty source, got %v", err)
	}
	// Unknown move type.
	if _, err := env.svc.SubmitMove(context.Background(), gameID, "user-1", 0, 0, 1, 0, "all"); err != ErrInvalidMove {
		t.Errorf("expected ErrInvalidMove for bad type, got %v", err)
	}
}

func TestSubmitMoveUncontrolledSeat(t *testing.T) {
	env := newTestEnv()
	gameID, sess := fixtureGame(t, env, "2x2/1c5,.|.,2c5/1@0.0,2@1.1/1.1.1", nil)

	// Seat 2 has no controller, so the human plays its turn too.
	sess.engine.NextTurn()
	if _, err := env.svc.SubmitMove(context.Background(), gameID, "user-1", 1, 1, 1, 0, "half"); err != nil {
		t.Fatalf("SubmitMove for uncontrolled seat: %v", err)
	}

	log, _ := env.svc.MoveLog(context.Background(), gameID)
	if len(log) != 1 || log[0].Seat != 2 {
		t.Errorf("expected a seat 2 record, got %+v", log)
	}
}

func TestSubmitMoveNoSession(t *testing.T) {
	env := newTestEnv()

	if _, err := env.svc.SubmitMove(context.Background(), "nonexistent", "user-1", 0, 0, 1, 0, "half"); err != ErrGameNotFound {
		t.Errorf("expected ErrGameNotFound, got %v", err)
	}

	game, _ := env.svc.CreateGame(context.Background(), "user-1", "Waiting", 2, 0, 0, nil)
	if _, err := env.svc.SubmitMove(context.Background(), game.ID, "user-1", 0, 0, 1, 0, "half"); err != ErrGameNotActive {
		t.Errorf("expected ErrGameNotActive, got %v", err)
	}
}

func TestEndTurnDrivesBots(t *testing.T) {
	env := newTestEnv()
	gameID, _ := fixtureGame(t, env, "2x2/1c5,.|.,2c5/1@0.0,2@1.1/1.1.1", map[int]string{2: "random"})

	state, err := env.svc.EndTurn(context.Background(), gameID, "user-1")
	if err != nil {
		t.Fatalf("EndTurn: %v", err)
	}
	if state.CurrentPlayer != 1 {
		t.Errorf("expected play back with the human, current player %d", state.CurrentPlayer)
	}
	if state.Turn != 2 {
		t.Errorf("expected turn 2 after a full rotation, got %d", state.Turn)
	}

	log, _ := env.svc.MoveLog(context.Background(), gameID)
	if len(log) != 1 || log[0].Seat != 2 {
		t.Errorf("expected the bot's move in the log, got %+v", log)
	}
	if !env.bcast.has(EventTurnAdvanced) {
		t.Error("expected a turn_advanced event")
	}
}

func TestEndTurnWrongUser(t *testing.T) {
	env := newTestEnv()
	gameID, _ := fixtureGame(t, env, "2x2/1c5,.|.,2c5/1@0.0,2@1.1/1.1.1", nil)

	if _, err := env.svc.EndTurn(context.Background(), gameID, "user-2"); err != ErrNotInGame {
		t.Errorf("expected ErrNotInGame, got %v", err)
	}
}

func TestDecision(t *testing.T) {
	env := newTestEnv()
	gameID, _ := fixtureGame(t, env, "2x1/1c9,2c2/1@0.0,2@1.0/1.1.1", nil)

	mv, err := env.svc.Decision(context.Background(), gameID, "user-1", "random")
	if err != nil {
		t.Fatalf("Decision: %v", err)
	}
	if mv == nil {
		t.Fatal("expected a suggested move")
	}
	gs, _ := conquest.DecodeBFEN("2x1/1c9,2c2/1@0.0,2@1.0/1.1.1")
	if !gs.ValidMove(1, *mv) {
		t.Errorf("expected a legal suggestion, got %+v", mv)
	}
	// The suggestion must not have touched the live board.
	sess := env.svc.session(gameID)
	if got := sess.engine.Snapshot().Map.At(0, 0).Units; got != 9 {
		t.Errorf("expected the board untouched, source has %d units", got)
	}
}

func TestDecisionInvalidDifficulty(t *testing.T) {
	env := newTestEnv()
	gameID, _ := fixtureGame(t, env, "2x1/1c9,2c2/1@0.0,2@1.0/1.1.1", nil)

	if _, err := env.svc.Decision(context.Background(), gameID, "user-1", "nightmare"); err != ErrInvalidDifficulty {
		t.Errorf("expected ErrInvalidDifficulty, got %v", err)
	}
}

func TestSetSeatControllerPlaysOut(t *testing.T) {
	env := newTestEnv()
	// Seat 2 is on turn with no controller.
	gameID, _ := fixtureGame(t, env, "2x2/1c5,.|.,2c5/1@0.0,2@1.1/2.1.1", nil)

	if err := env.svc.SetSeatController(context.Background(), gameID, "user-1", 2, "random"); err != nil {
		t.Fatalf("SetSeatController: %v", err)
	}

	sess := env.svc.session(gameID)
	if got := sess.engine.CurrentPlayer(); got != 1 {
		t.Errorf("expected the new bot to play out its turn, current player %d", got)
	}
	log, _ := env.svc.MoveLog(context.Background(), gameID)
	if len(log) != 1 || log[0].Seat != 2 {
		t.Errorf("expected the bot's move logged, got %+v", log)
	}

	for _, p := range env.games.players[gameID] {
		if p.Seat == 2 && p.BotDifficulty != "random" {
			t.Errorf("expected seat 2 difficulty persisted, got %s", p.BotDifficulty)
		}
	}
}

func TestSetSeatControllerNotCreator(t *testing.T) {
	env := newTestEnv()
	gameID, _ := fixtureGame(t, env, "2x2/1c5,.|.,2c5/1@0.0,2@1.1/1.1.1", nil)

	if err := env.svc.SetSeatController(context.Background(), gameID, "user-2", 2, "easy"); err != ErrNotCreator {
		t.Errorf("expected ErrNotCreator, got %v", err)
	}
}

func TestSetSeatControllerInvalidSeat(t *testing.T) {
	env := newTestEnv()
	gameID, _ := fixtureGame(t, env, "2x2/1c5,.|.,2c5/1@0.0,2@1.1/1.1.1", nil)

	if err := env.svc.SetSeatController(context.Background(), gameID, "user-1", 5, "easy"); err != ErrInvalidSeat {
		t.Errorf("expected ErrInvalidSeat, got %v", err)
	}
}

func TestRemoveSeatControllerHumanDrives(t *testing.T) {
	env := newTestEnv()
	gameID, sess := fixtureGame(t, env, "2x2/1c5,.|.,2c5/1@0.0,2@1.1/1.1.1", map[int]string{2: "random"})

	if err := env.svc.RemoveSeatController(context.Background(), gameID, "user-1", 2); err != nil {
		t.Fatalf("RemoveSeatController: %v", err)
	}

	sess.engine.NextTurn()
	if sess.engine.Controlled() {
		t.Fatal("expected seat 2 uncontrolled after removal")
	}
	if _, err := env.svc.SubmitMove(context.Background(), gameID, "user-1", 1, 1, 1, 0, "half"); err != nil {
		t.Errorf("expected the human to drive seat 2, got %v", err)
	}
}

func TestStopGame(t *testing.T) {
	env := newTestEnv()

	game, _ := env.svc.CreateGame(context.Background(), "user-1", "Test", 2, 0, 0, nil)
	if _, err := env.svc.StartGame(context.Background(), game.ID, "user-1"); err != nil {
		t.Fatalf("StartGame: %v", err)
	}

	if err := env.svc.StopGame(context.Background(), game.ID, "user-1"); err != nil {
		t.Fatalf("StopGame: %v", err)
	}
	g := env.games.games[game.ID]
	if g.Status != "finished" || g.Winner != 0 {
		t.Errorf("expected a finished draw, got status=%s winner=%d", g.Status, g.Winner)
	}
	if env.svc.session(game.ID) != nil {
		t.Error("expected the session torn down")
	}
	if len(env.cache.wins) != 0 {
		t.Error("expected no win recorded for a draw")
	}
}

func TestStopGameNotCreator(t *testing.T) {
	env := newTestEnv()

	game, _ := env.svc.CreateGame(context.Background(), "user-1", "Test", 2, 0, 0, nil)
	env.svc.StartGame(context.Background(), game.ID, "user-1")

	if err := env.svc.StopGame(context.Background(), game.ID, "user-2"); err != ErrNotCreator {
		t.Errorf("expected ErrNotCreator, got %v", err)
	}
}

func TestStopGameNotActive(t *testing.T) {
	env := newTestEnv()

	game, _ := env.svc.CreateGame(context.Background(), "user-1", "Test", 2, 0, 0, nil)
	if err := env.svc.StopGame(context.Background(), game.ID, "user-1"); err != ErrGameNotActive {
		t.Errorf("expected ErrGameNotActive, got %v", err)
	}
}

func TestDeleteGame(t *testing.T) {
	env := newTestEnv()

	game, _ := env.svc.CreateGame(context.Background(), "user-1", "Test", 2, 0, 0, nil)
	if err := env.svc.DeleteGame(context.Background(), game.ID, "user-1"); err != nil {
		t.Fatalf("DeleteGame: %v", err)
	}
	if _, err := env.svc.GetGame(context.Background(), game.ID); err != ErrGameNotFound {
		t.Errorf("expected ErrGameNotFound after delete, got %v", err)
	}
}

func TestDeleteGameActive(t *testing.T) {
	env := newTestEnv()

	game, _ := env.svc.CreateGame(context.Background(), "user-1", "Test", 2, 0, 0, nil)
	env.svc.StartGame(context.Background(), game.ID, "user-1")

	if err := env.svc.DeleteGame(context.Background(), game.ID, "user-1"); err != ErrGameActive {
		t.Errorf("expected ErrGameActive, got %v", err)
	}
}

func TestDeleteGameNotCreator(t *testing.T) {
	env := newTestEnv()

	game, _ := env.svc.CreateGame(context.Background(), "user-1", "Test", 2, 0, 0, nil)
	if err := env.svc.DeleteGame(context.Background(), game.ID, "user-2"); err != ErrNotCreator {
		t.Errorf("expected ErrNotCreator, got %v", err)
	}
}

func TestAbandonGame(t *testing.T) {
	env := newTestEnv()
	gameID, _ := fixtureGame(t, env, "2x2/1c5,.|.,2c5/1@0.0,2@1.1/1.1.1", map[int]string{2: "random"})

	if err := env.svc.AbandonGame(context.Background(), gameID, "idle"); err != nil {
		t.Fatalf("AbandonGame: %v", err)
	}
	g := env.games.games[gameID]
	if g.Status != "finished" || g.Winner != 0 {
		t.Errorf("expected an abandoned draw, got status=%s winner=%d", g.Status, g.Winner)
	}
	if env.svc.session(gameID) != nil {
		t.Error("expected the session torn down")
	}

	// A second abandon is a no-op.
	if err := env.svc.AbandonGame(context.Background(), gameID, "idle"); err != nil {
		t.Errorf("expected repeat abandon to be harmless, got %v", err)
	}
}

func TestAbandonActiveGames(t *testing.T) {
	env := newTestEnv()

	g1, _ := env.svc.CreateGame(context.Background(), "user-1", "One", 2, 0, 0, nil)
	g2, _ := env.svc.CreateGame(context.Background(), "user-2", "Two", 2, 0, 0, nil)
	env.games.games[g1.ID].Status = "active"
	env.games.games[g2.ID].Status = "active"
	env.cache.timers[g1.ID] = time.Now().Add(time.Hour)

	if err := env.svc.AbandonActiveGames(context.Background()); err != nil {
		t.Fatalf("AbandonActiveGames: %v", err)
	}
	for _, id := range []string{g1.ID, g2.ID} {
		if env.games.games[id].Status != "finished" {
			t.Errorf("expected %s finished, got %s", id, env.games.games[id].Status)
		}
	}
	if _, ok := env.cache.timers[g1.ID]; ok {
		t.Error("expected the stale timer cleared")
	}
}

func TestIdleSessions(t *testing.T) {
	env := newTestEnv()
	staleID, stale := fixtureGame(t, env, "2x2/1c5,.|.,2c5/1@0.0,2@1.1/1.1.1", nil)
	fixtureGame(t, env, "2x2/1c5,.|.,2c5/1@0.0,2@1.1/1.1.1", nil)

	stale.mu.Lock()
	stale.lastActive = time.Now().Add(-time.Hour)
	stale.mu.Unlock()

	idle := env.svc.IdleSessions()
	if len(idle) != 1 || idle[0] != staleID {
		t.Errorf("expected only the stale session, got %v", idle)
	}
}

func TestLeaderboard(t *testing.T) {
	env := newTestEnv()
	env.users.users["user-1"] = &model.User{ID: "user-1", DisplayName: "Alice"}
	env.users.users["user-2"] = &model.User{ID: "user-2", DisplayName: "Bob"}

	ctx := context.Background()
	env.cache.RecordWin(ctx, "user-1")
	env.cache.RecordWin(ctx, "user-1")
	env.cache.RecordWin(ctx, "user-2")

	entries, err := env.svc.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].UserID != "user-1" || entries[0].Wins != 2 || entries[0].DisplayName != "Alice" {
		t.Errorf("unexpected top entry %+v", entries[0])
	}
	if entries[1].DisplayName != "Bob" {
		t.Errorf("expected Bob second, got %+v", entries[1])
	}
}

func TestRecentResults(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.cache.PushResult(ctx, []byte(`{"game_id":"g1"}`))
	env.cache.PushResult(ctx, []byte(`{"game_id":"g2"}`))

	results, err := env.svc.RecentResults(ctx, 10)
	if err != nil {
		t.Fatalf("RecentResults: %v", err)
	}
	if len(results) != 2 || string(results[0]) != `{"game_id":"g2"}` {
		t.Errorf("expected newest first, got %v", results)
	}
}

func TestSendMessageStampsTurn(t *testing.T) {
	env := newTestEnv()
	gameID, _ := fixtureGame(t, env, "2x1/1c9,2c2/1@0.0,2@1.0/1.5.1", nil)

	msg, err := env.svc.SendMessage(context.Background(), gameID, "user-1", "", "formation up")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if msg.Turn != 5 {
		t.Errorf("expected the live turn stamped, got %d", msg.Turn)
	}
	if !env.bcast.has(EventMessage) {
		t.Error("expected a message event")
	}
}

func TestSendMessageNotInGame(t *testing.T) {
	env := newTestEnv()
	gameID, _ := fixtureGame(t, env, "2x1/1c9,2c2/1@0.0,2@1.0/1.1.1", nil)

	if _, err := env.svc.SendMessage(context.Background(), gameID, "user-9", "", "hi"); err != ErrNotInGame {
		t.Errorf("expected ErrNotInGame, got %v", err)
	}
}

func TestStateLive(t *testing.T) {
	env := newTestEnv()
	gameID, _ := fixtureGame(t, env, "2x1/1c9,2c2/1@0.0,2@1.0/1.1.1", nil)

	state, err := env.svc.State(context.Background(), gameID)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state.Map.At(0, 0).Units != 9 {
		t.Errorf("expected the fixture board, got %d units at origin", state.Map.At(0, 0).Units)
	}
}

func TestStateFinishedReplay(t *testing.T) {
	env := newTestEnv()
	env.games.games["game-9"] = &model.Game{
		ID:      "game-9",
		Name:    "Done",
		Status:  "finished",
		MapBFEN: "2x1/1c9,2c2/1@0.0,2@1.0/1.1.1",
		Winner:  1,
	}
	env.moves.saved["game-9"] = []model.MoveRecord{{
		GameID:     "game-9",
		Seq:        1,
		Seat:       1,
		MoveType:   "max",
		StateAfter: "2x1/1s1,1s6/1@1.0,2@1.0/1.1.1.w1",
	}}

	state, err := env.svc.State(context.Background(), "game-9")
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if !state.GameOver || state.Winner != 1 {
		t.Errorf("expected the final position, got over=%v winner=%d", state.GameOver, state.Winner)
	}
}

func TestStateWaiting(t *testing.T) {
	env := newTestEnv()

	game, _ := env.svc.CreateGame(context.Background(), "user-1", "Waiting", 2, 0, 0, nil)
	if _, err := env.svc.State(context.Background(), game.ID); err != ErrGameNotActive {
		t.Errorf("expected ErrGameNotActive, got %v", err)
	}
}

func findMessage(env *testEnv, content string) *model.Message {
	for i := range env.messages.messages {
		if env.messages.messages[i].Content == content {
			return &env.messages.messages[i]
		}
	}
	return nil
}

func TestBotTauntsOnElimination(t *testing.T) {
	env := newTestEnv()
	gameID, sess := fixtureGame(t, env, "2x1/1c2,2c9/1@0.0,2@1.0/1.1.1", map[int]string{2: "medium"})

	// The human passes; the bot's only moves all take the human capital.
	if _, err := env.svc.EndTurn(context.Background(), gameID, "user-1"); err != nil {
		t.Fatalf("EndTurn: %v", err)
	}

	taunt := findMessage(env, "Seat 1 is gone. Who's next?")
	if taunt == nil {
		t.Fatal("expected the conqueror's taunt in the message log")
	}
	if taunt.RecipientID != "" {
		t.Errorf("taunt should be public, got recipient %q", taunt.RecipientID)
	}
	if taunt.SenderID != sess.seatUsers[2] {
		t.Errorf("taunt sender = %q, want the seat 2 bot", taunt.SenderID)
	}
	if env.games.games[gameID].Winner != 2 {
		t.Errorf("winner = %d, want 2", env.games.games[gameID].Winner)
	}
}

func TestBotTableTalkOnNewRound(t *testing.T) {
	env := newTestEnv()
	_, sess := fixtureGame(t, env, "2x1/1c9,2c2/1@0.0,2@1.0/1.1.2", map[int]string{2: "easy"})

	sess.mu.Lock()
	sess.chatRound = 1
	env.svc.botTableTalk(context.Background(), sess)
	sess.mu.Unlock()

	offer := findMessage(env, "Truce? I stay off your tiles, you stay off mine")
	if offer == nil {
		t.Fatal("expected the outgunned bot to sue for peace")
	}
	if offer.RecipientID != "user-1" {
		t.Errorf("offer recipient = %q, want the human", offer.RecipientID)
	}
	if sess.chatRound != 2 {
		t.Errorf("chatRound = %d, want 2", sess.chatRound)
	}
	if !sess.truces.TakeOffer(2, 1) {
		t.Error("expected the offer pending in the truce book")
	}

	// Same round again: nothing new to say.
	before := len(env.messages.messages)
	sess.mu.Lock()
	env.svc.botTableTalk(context.Background(), sess)
	sess.mu.Unlock()
	if len(env.messages.messages) != before {
		t.Errorf("expected no repeat chatter, got %d new messages", len(env.messages.messages)-before)
	}
}

func TestSendMessageTruceOfferAnswered(t *testing.T) {
	env := newTestEnv()
	gameID, sess := fixtureGame(t, env, "5x1/1c8,.,.,.,2c5/1@0.0,2@4.0/1.1.1", map[int]string{2: "easy"})
	botUser := sess.seatUsers[2]

	_, err := env.svc.SendMessage(context.Background(), gameID, "user-1", botUser, "Truce? I stay off your tiles, you stay off mine")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	reply := findMessage(env, "Truce accepted")
	if reply == nil {
		t.Fatal("expected the bot to accept the truce")
	}
	if reply.SenderID != botUser || reply.RecipientID != "user-1" {
		t.Errorf("reply routed %q -> %q, want bot -> human", reply.SenderID, reply.RecipientID)
	}
	if !sess.truces.Truced(1, 2) {
		t.Error("expected the truce recorded for both seats")
	}
}

func TestSendMessageTruceOfferRefusedUnderPressure(t *testing.T) {
	env := newTestEnv()
	gameID, sess := fixtureGame(t, env, "2x1/1c9,2c2/1@0.0,2@1.0/1.1.1", map[int]string{2: "easy"})

	_, err := env.svc.SendMessage(context.Background(), gameID, "user-1", sess.seatUsers[2], "Truce?")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if findMessage(env, "No truce") == nil {
		t.Fatal("expected the pressed bot to refuse")
	}
	if sess.truces.Truced(1, 2) {
		t.Error("a refused offer should not create a truce")
	}
}

func TestSendMessageAcceptsPendingBotOffer(t *testing.T) {
	env := newTestEnv()
	gameID, sess := fixtureGame(t, env, "5x1/1c8,.,.,.,2c5/1@0.0,2@4.0/1.1.1", map[int]string{2: "easy"})

	sess.mu.Lock()
	sess.truces = bot.NewTruceBook()
	sess.truces.Offer(2, 1)
	sess.mu.Unlock()

	_, err := env.svc.SendMessage(context.Background(), gameID, "user-1", sess.seatUsers[2], "Truce accepted")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if !sess.truces.Truced(1, 2) {
		t.Error("expected the human's acceptance to seal the bot's offer")
	}
}

func TestSendMessageFreeFormNoBotReply(t *testing.T) {
	env := newTestEnv()
	gameID, sess := fixtureGame(t, env, "2x1/1c9,2c2/1@0.0,2@1.0/1.1.1", map[int]string{2: "easy"})

	if _, err := env.svc.SendMessage(context.Background(), gameID, "user-1", sess.seatUsers[2], "press forward"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(env.messages.messages) != 1 {
		t.Errorf("free-form chat should draw no bot reply, got %d messages", len(env.messages.messages))
	}
}
