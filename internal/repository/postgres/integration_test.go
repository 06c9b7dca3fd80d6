//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"testing"

	"gridlords/internal/model"
	"gridlords/internal/testutil"
)

var testDB *sql.DB

func TestMain(m *testing.M) {
	m.Run()
}

func setup(t *testing.T) {
	t.Helper()
	if testDB == nil {
		testDB = testutil.SetupDB(t)
	}
	testutil.CleanupDB(t, testDB)
}

// createTestUser is a helper that inserts a user and returns it.
func createTestUser(t *testing.T, repo *UserRepo, suffix string) *model.User {
	t.Helper()
	u, err := repo.Upsert(context.Background(), "google", "provider-"+suffix, "User "+suffix, "https://avatar/"+suffix)
	if err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return u
}

// --- UserRepo Tests ---

func TestUserUpsertCreates(t *testing.T) {
	setup(t)
	repo := NewUserRepo(testDB)

	u, err := repo.Upsert(context.Background(), "google", "goog-123", "Alice", "https://avatar/alice")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if u.ID == "" {
		t.Fatal("expected non-empty ID")
	}
	if u.Provider != "google" || u.ProviderID != "goog-123" {
		t.Fatalf("unexpected provider data: %s / %s", u.Provider, u.ProviderID)
	}
	if u.DisplayName != "Alice" {
		t.Fatalf("expected display name Alice, got %s", u.DisplayName)
	}
	if u.AvatarURL != "https://avatar/alice" {
		t.Fatalf("expected avatar URL, got %s", u.AvatarURL)
	}
}

func TestUserUpsertUpdates(t *testing.T) {
	setup(t)
	repo := NewUserRepo(testDB)

	u1, err := repo.Upsert(context.Background(), "google", "goog-456", "Bob", "https://old")
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	u2, err := repo.Upsert(context.Background(), "google", "goog-456", "Bobby", "https://new")
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if u1.ID != u2.ID {
		t.Fatalf("upsert should return same ID: %s vs %s", u1.ID, u2.ID)
	}
	if u2.DisplayName != "Bobby" {
		t.Fatalf("expected updated name Bobby, got %s", u2.DisplayName)
	}
	if u2.AvatarURL != "https://new" {
		t.Fatalf("expected updated avatar, got %s", u2.AvatarURL)
	}
}

func TestUserFindByID(t *testing.T) {
	setup(t)
	repo := NewUserRepo(testDB)

	created, _ := repo.Upsert(context.Background(), "google", "goog-find", "FindMe", "")
	found, err := repo.FindByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if found == nil || found.ID != created.ID {
		t.Fatal("expected to find user by ID")
	}

	// Not found
	notFound, err := repo.FindByID(context.Background(), "00000000-0000-0000-0000-000000000000")
	if err != nil {
		t.Fatalf("find missing: %v", err)
	}
	if notFound != nil {
		t.Fatal("expected nil for missing user")
	}
}

func TestUserFindByProviderID(t *testing.T) {
	setup(t)
	repo := NewUserRepo(testDB)

	repo.Upsert(context.Background(), "bot", "bot-easy", "Easy Bot", "")

	found, err := repo.FindByProviderID(context.Background(), "bot", "bot-easy")
	if err != nil {
		t.Fatalf("find by provider: %v", err)
	}
	if found == nil || found.DisplayName != "Easy Bot" {
		t.Fatal("expected to find user by provider")
	}

	notFound, err := repo.FindByProviderID(context.Background(), "bot", "no-such-id")
	if err != nil {
		t.Fatalf("find missing provider: %v", err)
	}
	if notFound != nil {
		t.Fatal("expected nil for missing provider ID")
	}
}

func TestUserUpdateDisplayName(t *testing.T) {
	setup(t)
	repo := NewUserRepo(testDB)

	u, _ := repo.Upsert(context.Background(), "google", "goog-upd", "OldName", "")
	if err := repo.UpdateDisplayName(context.Background(), u.ID, "NewName"); err != nil {
		t.Fatalf("update display name: %v", err)
	}

	found, _ := repo.FindByID(context.Background(), u.ID)
	if found.DisplayName != "NewName" {
		t.Fatalf("expected NewName, got %s", found.DisplayName)
	}
}

// --- GameRepo Tests ---

func TestGameCreate(t *testing.T) {
	setup(t)
	userRepo := NewUserRepo(testDB)
	gameRepo := NewGameRepo(testDB)

	creator := createTestUser(t, userRepo, "creator")

	g, err := gameRepo.Create(context.Background(), "Test Game", creator.ID, 4, 25, 25)
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	if g.ID == "" {
		t.Fatal("expected non-empty game ID")
	}
	if g.Name != "Test Game" {
		t.Fatalf("expected game name 'Test Game', got '%s'", g.Name)
	}
	if g.Status != "waiting" {
		t.Fatalf("expected waiting status, got %s", g.Status)
	}
	if g.PlayerCount != 4 || g.BoardWidth != 25 || g.BoardHeight != 25 {
		t.Fatalf("unexpected dimensions: %d players, %dx%d", g.PlayerCount, g.BoardWidth, g.BoardHeight)
	}
}

func TestGameFindByIDWithPlayers(t *testing.T) {
	setup(t)
	userRepo := NewUserRepo(testDB)
	gameRepo := NewGameRepo(testDB)

	creator := createTestUser(t, userRepo, "owner")
	bot := createTestUser(t, userRepo, "bot-seat")
	g, _ := gameRepo.Create(context.Background(), "With Players", creator.ID, 2, 20, 20)
	gameRepo.AddPlayer(context.Background(), g.ID, creator.ID, 1, false, "")
	gameRepo.AddPlayer(context.Background(), g.ID, bot.ID, 2, true, "hard")

	found, err := gameRepo.FindByID(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if found == nil {
		t.Fatal("expected to find game")
	}
	if len(found.Players) != 2 {
		t.Fatalf("expected 2 players, got %d", len(found.Players))
	}
	if found.Players[0].Seat != 1 || found.Players[1].Seat != 2 {
		t.Fatalf("expected seat order 1,2, got %d,%d", found.Players[0].Seat, found.Players[1].Seat)
	}
	if !found.Players[1].IsBot || found.Players[1].BotDifficulty != "hard" {
		t.Fatalf("expected seat 2 to be a hard bot, got %+v", found.Players[1])
	}
}

func TestGameListOpen(t *testing.T) {
	setup(t)
	userRepo := NewUserRepo(testDB)
	gameRepo := NewGameRepo(testDB)

	creator := createTestUser(t, userRepo, "lister")
	gameRepo.Create(context.Background(), "Open1", creator.ID, 2, 20, 20)
	gameRepo.Create(context.Background(), "Open2", creator.ID, 4, 30, 30)

	games, err := gameRepo.ListOpen(context.Background())
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("expected 2 open games, got %d", len(games))
	}
}

func TestGameListByUser(t *testing.T) {
	setup(t)
	userRepo := NewUserRepo(testDB)
	gameRepo := NewGameRepo(testDB)

	u1 := createTestUser(t, userRepo, "u1")
	u2 := createTestUser(t, userRepo, "u2")

	g1, _ := gameRepo.Create(context.Background(), "G1", u1.ID, 2, 20, 20)
	gameRepo.AddPlayer(context.Background(), g1.ID, u1.ID, 1, false, "")

	g2, _ := gameRepo.Create(context.Background(), "G2", u2.ID, 2, 20, 20)
	gameRepo.AddPlayer(context.Background(), g2.ID, u2.ID, 1, false, "")
	gameRepo.AddPlayer(context.Background(), g2.ID, u1.ID, 2, false, "")

	games, err := gameRepo.ListByUser(context.Background(), u1.ID)
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("expected 2 games for u1, got %d", len(games))
	}

	u2Games, _ := gameRepo.ListByUser(context.Background(), u2.ID)
	if len(u2Games) != 1 {
		t.Fatalf("expected 1 game for u2, got %d", len(u2Games))
	}
}

func TestGameAddPlayerIdempotent(t *testing.T) {
	setup(t)
	userRepo := NewUserRepo(testDB)
	gameRepo := NewGameRepo(testDB)

	creator := createTestUser(t, userRepo, "joiner")
	g, _ := gameRepo.Create(context.Background(), "Join Test", creator.ID, 2, 20, 20)

	// Seat twice - second should be a no-op (ON CONFLICT DO NOTHING)
	if err := gameRepo.AddPlayer(context.Background(), g.ID, creator.ID, 1, false, ""); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := gameRepo.AddPlayer(context.Background(), g.ID, creator.ID, 1, false, ""); err != nil {
		t.Fatalf("second add should not error: %v", err)
	}

	players, _ := gameRepo.ListPlayers(context.Background(), g.ID)
	if len(players) != 1 {
		t.Fatalf("expected 1 player after duplicate add, got %d", len(players))
	}
}

func TestGameBotDifficultyDefaults(t *testing.T) {
	setup(t)
	userRepo := NewUserRepo(testDB)
	gameRepo := NewGameRepo(testDB)

	creator := createTestUser(t, userRepo, "diff-c")
	bot := createTestUser(t, userRepo, "diff-bot")
	g, _ := gameRepo.Create(context.Background(), "Difficulty Test", creator.ID, 2, 20, 20)
	gameRepo.AddPlayer(context.Background(), g.ID, bot.ID, 2, true, "")

	players, _ := gameRepo.ListPlayers(context.Background(), g.ID)
	if len(players) != 1 || players[0].BotDifficulty != "easy" {
		t.Fatalf("expected default difficulty easy, got %+v", players)
	}

	if err := gameRepo.UpdateBotDifficulty(context.Background(), g.ID, 2, "hard"); err != nil {
		t.Fatalf("update bot difficulty: %v", err)
	}
	players, _ = gameRepo.ListPlayers(context.Background(), g.ID)
	if players[0].BotDifficulty != "hard" {
		t.Fatalf("expected hard after update, got %s", players[0].BotDifficulty)
	}
}

func TestGameSetStarted(t *testing.T) {
	setup(t)
	userRepo := NewUserRepo(testDB)
	gameRepo := NewGameRepo(testDB)

	creator := createTestUser(t, userRepo, "starter")
	g, _ := gameRepo.Create(context.Background(), "Start Test", creator.ID, 2, 20, 20)

	bfen := "2x2/1c3,.|.,2c3/1@0.0,2@1.1/1.1.1"
	if err := gameRepo.SetStarted(context.Background(), g.ID, bfen, 42); err != nil {
		t.Fatalf("set started: %v", err)
	}

	found, _ := gameRepo.FindByID(context.Background(), g.ID)
	if found.Status != "active" {
		t.Fatalf("expected active status, got %s", found.Status)
	}
	if found.MapBFEN != bfen {
		t.Fatalf("expected stored map, got %q", found.MapBFEN)
	}
	if found.Seed != 42 {
		t.Fatalf("expected seed 42, got %d", found.Seed)
	}
	if found.StartedAt == nil {
		t.Fatal("expected started_at to be set")
	}
}

func TestGameSetFinished(t *testing.T) {
	setup(t)
	userRepo := NewUserRepo(testDB)
	gameRepo := NewGameRepo(testDB)

	creator := createTestUser(t, userRepo, "finisher")
	g, _ := gameRepo.Create(context.Background(), "Finish Test", creator.ID, 2, 20, 20)

	if err := gameRepo.SetFinished(context.Background(), g.ID, 2); err != nil {
		t.Fatalf("set finished: %v", err)
	}

	found, _ := gameRepo.FindByID(context.Background(), g.ID)
	if found.Status != "finished" {
		t.Fatalf("expected finished, got %s", found.Status)
	}
	if found.Winner != 2 {
		t.Fatalf("expected winner 2, got %d", found.Winner)
	}
	if found.FinishedAt == nil {
		t.Fatal("expected finished_at to be set")
	}
}

func TestGameSearchFinished(t *testing.T) {
	setup(t)
	userRepo := NewUserRepo(testDB)
	gameRepo := NewGameRepo(testDB)

	creator := createTestUser(t, userRepo, "searcher")
	g1, _ := gameRepo.Create(context.Background(), "Border Skirmish", creator.ID, 2, 20, 20)
	g2, _ := gameRepo.Create(context.Background(), "Mountain Pass", creator.ID, 2, 20, 20)
	gameRepo.SetFinished(context.Background(), g1.ID, 1)
	gameRepo.SetFinished(context.Background(), g2.ID, 2)

	all, err := gameRepo.ListFinished(context.Background())
	if err != nil {
		t.Fatalf("list finished: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 finished games, got %d", len(all))
	}

	matches, err := gameRepo.SearchFinished(context.Background(), "mountain")
	if err != nil {
		t.Fatalf("search finished: %v", err)
	}
	if len(matches) != 1 || matches[0].Name != "Mountain Pass" {
		t.Fatalf("expected Mountain Pass, got %+v", matches)
	}
}

func TestGameDeleteCascades(t *testing.T) {
	setup(t)
	userRepo := NewUserRepo(testDB)
	gameRepo := NewGameRepo(testDB)
	moveRepo := NewMoveRepo(testDB)

	creator := createTestUser(t, userRepo, "deleter")
	g, _ := gameRepo.Create(context.Background(), "Delete Test", creator.ID, 2, 20, 20)
	gameRepo.AddPlayer(context.Background(), g.ID, creator.ID, 1, false, "")
	moveRepo.SaveMoves(context.Background(), []model.MoveRecord{
		{GameID: g.ID, Seq: 1, Turn: 1, Seat: 1, FromX: 0, FromY: 0, ToX: 1, ToY: 0, MoveType: "max"},
	})

	if err := gameRepo.Delete(context.Background(), g.ID); err != nil {
		t.Fatalf("delete game: %v", err)
	}

	found, _ := gameRepo.FindByID(context.Background(), g.ID)
	if found != nil {
		t.Fatal("expected game to be gone")
	}
	moves, _ := moveRepo.ListByGame(context.Background(), g.ID)
	if len(moves) != 0 {
		t.Fatalf("expected moves to cascade, got %d", len(moves))
	}
}

// --- MoveRepo Tests ---

func TestMoveSaveAndList(t *testing.T) {
	setup(t)
	userRepo := NewUserRepo(testDB)
	gameRepo := NewGameRepo(testDB)
	moveRepo := NewMoveRepo(testDB)

	creator := createTestUser(t, userRepo, "moves-c")
	g, _ := gameRepo.Create(context.Background(), "Moves Test", creator.ID, 2, 20, 20)

	moves := []model.MoveRecord{
		{GameID: g.ID, Seq: 1, Turn: 1, Seat: 1, FromX: 0, FromY: 0, ToX: 1, ToY: 0, MoveType: "max", StateAfter: "2x2/1b1,1c2|.,2c3/1@0.0,2@1.1/2.1.1"},
		{GameID: g.ID, Seq: 2, Turn: 1, Seat: 2, FromX: 1, FromY: 1, ToX: 0, ToY: 1, MoveType: "half", StateAfter: "2x2/1b1,1c2|2b2,2c1/1@0.0,2@1.1/1.2.1"},
		{GameID: g.ID, Seq: 3, Turn: 2, Seat: 1, FromX: 1, FromY: 0, ToX: 1, ToY: 1, MoveType: "max"},
	}

	if err := moveRepo.SaveMoves(context.Background(), moves); err != nil {
		t.Fatalf("save moves: %v", err)
	}

	fetched, err := moveRepo.ListByGame(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("moves by game: %v", err)
	}
	if len(fetched) != 3 {
		t.Fatalf("expected 3 moves, got %d", len(fetched))
	}
	for i, m := range fetched {
		if m.Seq != i+1 {
			t.Fatalf("expected seq order, got seq %d at index %d", m.Seq, i)
		}
	}
	if fetched[1].MoveType != "half" || fetched[1].Seat != 2 {
		t.Fatalf("move fields incorrect: %+v", fetched[1])
	}
	if fetched[1].StateAfter == "" {
		t.Fatal("expected state_after to round-trip")
	}
	if fetched[2].StateAfter != "" {
		t.Fatalf("expected empty state_after, got %q", fetched[2].StateAfter)
	}
}

func TestMoveSaveEmptyIsNoop(t *testing.T) {
	setup(t)
	moveRepo := NewMoveRepo(testDB)

	if err := moveRepo.SaveMoves(context.Background(), nil); err != nil {
		t.Fatalf("empty save should not error: %v", err)
	}
}

// --- MessageRepo Tests ---

func TestMessageCreatePublic(t *testing.T) {
	setup(t)
	userRepo := NewUserRepo(testDB)
	gameRepo := NewGameRepo(testDB)
	msgRepo := NewMessageRepo(testDB)

	sender := createTestUser(t, userRepo, "msg-sender")
	g, _ := gameRepo.Create(context.Background(), "Msg Test", sender.ID, 2, 20, 20)
	gameRepo.AddPlayer(context.Background(), g.ID, sender.ID, 1, false, "")

	msg, err := msgRepo.Create(context.Background(), g.ID, sender.ID, "", "Hello everyone!", 3)
	if err != nil {
		t.Fatalf("create public message: %v", err)
	}
	if msg.ID == "" {
		t.Fatal("expected non-empty message ID")
	}
	if msg.RecipientID != "" {
		t.Fatalf("expected empty recipient for public, got %s", msg.RecipientID)
	}
	if msg.Content != "Hello everyone!" {
		t.Fatalf("expected content 'Hello everyone!', got '%s'", msg.Content)
	}
	if msg.Turn != 3 {
		t.Fatalf("expected turn 3, got %d", msg.Turn)
	}
}

func TestMessageCreatePrivate(t *testing.T) {
	setup(t)
	userRepo := NewUserRepo(testDB)
	gameRepo := NewGameRepo(testDB)
	msgRepo := NewMessageRepo(testDB)

	sender := createTestUser(t, userRepo, "priv-sender")
	recipient := createTestUser(t, userRepo, "priv-recip")
	g, _ := gameRepo.Create(context.Background(), "Priv Msg", sender.ID, 2, 20, 20)
	gameRepo.AddPlayer(context.Background(), g.ID, sender.ID, 1, false, "")
	gameRepo.AddPlayer(context.Background(), g.ID, recipient.ID, 2, false, "")

	msg, err := msgRepo.Create(context.Background(), g.ID, sender.ID, recipient.ID, "Truce until turn 50?", 10)
	if err != nil {
		t.Fatalf("create private message: %v", err)
	}
	if msg.RecipientID != recipient.ID {
		t.Fatalf("expected recipient %s, got %s", recipient.ID, msg.RecipientID)
	}
}

func TestMessageListByGameVisibility(t *testing.T) {
	setup(t)
	userRepo := NewUserRepo(testDB)
	gameRepo := NewGameRepo(testDB)
	msgRepo := NewMessageRepo(testDB)

	alice := createTestUser(t, userRepo, "vis-alice")
	bob := createTestUser(t, userRepo, "vis-bob")
	charlie := createTestUser(t, userRepo, "vis-charlie")
	g, _ := gameRepo.Create(context.Background(), "Vis Test", alice.ID, 3, 20, 20)
	gameRepo.AddPlayer(context.Background(), g.ID, alice.ID, 1, false, "")
	gameRepo.AddPlayer(context.Background(), g.ID, bob.ID, 2, false, "")
	gameRepo.AddPlayer(context.Background(), g.ID, charlie.ID, 3, false, "")

	// Public message
	msgRepo.Create(context.Background(), g.ID, alice.ID, "", "Public hello", 1)
	// Private: Alice -> Bob
	msgRepo.Create(context.Background(), g.ID, alice.ID, bob.ID, "Secret to Bob", 1)
	// Private: Bob -> Charlie
	msgRepo.Create(context.Background(), g.ID, bob.ID, charlie.ID, "Secret to Charlie", 2)

	// Alice sees: public + her private to Bob (as sender) = 2
	aliceMsgs, err := msgRepo.ListByGame(context.Background(), g.ID, alice.ID)
	if err != nil {
		t.Fatalf("list alice: %v", err)
	}
	if len(aliceMsgs) != 2 {
		t.Fatalf("alice expected 2 messages, got %d", len(aliceMsgs))
	}

	// Bob sees: public + Alice->Bob (as recipient) + Bob->Charlie (as sender) = 3
	bobMsgs, _ := msgRepo.ListByGame(context.Background(), g.ID, bob.ID)
	if len(bobMsgs) != 3 {
		t.Fatalf("bob expected 3 messages, got %d", len(bobMsgs))
	}

	// Charlie sees: public + Bob->Charlie (as recipient) = 2
	charlieMsgs, _ := msgRepo.ListByGame(context.Background(), g.ID, charlie.ID)
	if len(charlieMsgs) != 2 {
		t.Fatalf("charlie expected 2 messages, got %d", len(charlieMsgs))
	}
}
