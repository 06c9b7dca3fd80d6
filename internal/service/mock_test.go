package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gridlords/internal/model"
	"gridlords/internal/repository"
)

type mockGameRepo struct {
	games   map[string]*model.Game
	players map[string][]model.GamePlayer
}

func newMockGameRepo() *mockGameRepo {
	return &mockGameRepo{
		games:   make(map[string]*model.Game),
		players: make(map[string][]model.GamePlayer),
	}
}

func (m *mockGameRepo) Create(_ context.Context, name, creatorID string, playerCount, boardWidth, boardHeight int) (*model.Game, error) {
	g := &model.Game{
		ID:          fmt.Sprintf("game-%d", len(m.games)+1),
		Name:        name,
		CreatorID:   creatorID,
		Status:      "waiting",
		PlayerCount: playerCount,
		BoardWidth:  boardWidth,
		BoardHeight: boardHeight,
		CreatedAt:   time.Now(),
	}
	m.games[g.ID] = g
	return g, nil
}

func (m *mockGameRepo) FindByID(_ context.Context, id string) (*model.Game, error) {
	g, ok := m.games[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	cp.Players = m.players[id]
	return &cp, nil
}

func (m *mockGameRepo) ListOpen(_ context.Context) ([]model.Game, error) {
	var result []model.Game
	for _, g := range m.games {
		if g.Status == "waiting" {
			result = append(result, *g)
		}
	}
	return result, nil
}

func (m *mockGameRepo) ListByUser(_ context.Context, userID string) ([]model.Game, error) {
	seen := make(map[string]bool)
	var result []model.Game
	for gameID, players := range m.players {
		for _, p := range players {
			if p.UserID == userID && !seen[gameID] {
				if g, ok := m.games[gameID]; ok {
					result = append(result, *g)
					seen[gameID] = true
				}
			}
		}
	}
	return result, nil
}

func (m *mockGameRepo) ListActive(_ context.Context) ([]model.Game, error) {
	var result []model.Game
	for _, g := range m.games {
		if g.Status == "active" {
			cp := *g
			cp.Players = m.players[g.ID]
			result = append(result, cp)
		}
	}
	return result, nil
}

func (m *mockGameRepo) ListFinished(_ context.Context) ([]model.Game, error) {
	var result []model.Game
	for _, g := range m.games {
		if g.Status == "finished" {
			cp := *g
			cp.Players = m.players[g.ID]
			result = append(result, cp)
		}
	}
	return result, nil
}

func (m *mockGameRepo) SearchFinished(_ context.Context, search string) ([]model.Game, error) {
	lower := strings.ToLower(search)
	var result []model.Game
	for _, g := range m.games {
		if g.Status == "finished" && strings.Contains(strings.ToLower(g.Name), lower) {
			cp := *g
			cp.Players = m.players[g.ID]
			result = append(result, cp)
		}
	}
	return result, nil
}

func (m *mockGameRepo) AddPlayer(_ context.Context, gameID, userID string, seat int, isBot bool, difficulty string) error {
	for _, p := range m.players[gameID] {
		if p.Seat == seat {
			return nil
		}
	}
	if isBot && difficulty == "" {
		difficulty = "easy"
	}
	m.players[gameID] = append(m.players[gameID], model.GamePlayer{
		GameID:        gameID,
		UserID:        userID,
		Seat:          seat,
		IsBot:         isBot,
		BotDifficulty: difficulty,
		JoinedAt:      time.Now(),
	})
	return nil
}

func (m *mockGameRepo) UpdateBotDifficulty(_ context.Context, gameID string, seat int, difficulty string) error {
	players := m.players[gameID]
	for i, p := range players {
		if p.Seat == seat && p.IsBot {
			players[i].BotDifficulty = difficulty
		}
	}
	return nil
}

func (m *mockGameRepo) SetStarted(_ context.Context, gameID, mapBFEN string, seed int64) error {
	if g, ok := m.games[gameID]; ok {
		g.Status = "active"
		g.MapBFEN = mapBFEN
		g.Seed = seed
		now := time.Now()
		g.StartedAt = &now
	}
	return nil
}

func (m *mockGameRepo) SetFinished(_ context.Context, gameID string, winner int) error {
	if g, ok := m.games[gameID]; ok {
		g.Status = "finished"
		g.Winner = winner
		now := time.Now()
		g.FinishedAt = &now
	}
	return nil
}

func (m *mockGameRepo) Delete(_ context.Context, gameID string) error {
	delete(m.games, gameID)
	delete(m.players, gameID)
	return nil
}

// mockUserRepo implements repository.UserRepository for testing.
type mockUserRepo struct {
	users map[string]*model.User
	seq   int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return u, nil
}

func (m *mockUserRepo) FindByProviderID(_ context.Context, provider, providerID string) (*model.User, error) {
	for _, u := range m.users {
		if u.Provider == provider && u.ProviderID == providerID {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) Upsert(_ context.Context, provider, providerID, displayName, avatarURL string) (*model.User, error) {
	for _, u := range m.users {
		if u.Provider == provider && u.ProviderID == providerID {
			u.DisplayName = displayName
			return u, nil
		}
	}
	m.seq++
	u := &model.User{
		ID:          fmt.Sprintf("%s-user-%d", provider, m.seq),
		Provider:    provider,
		ProviderID:  providerID,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *mockUserRepo) UpdateDisplayName(_ context.Context, id, displayName string) error {
	if u, ok := m.users[id]; ok {
		u.DisplayName = displayName
	}
	return nil
}

type mockMoveRepo struct {
	saved map[string][]model.MoveRecord
}

func newMockMoveRepo() *mockMoveRepo {
	return &mockMoveRepo{saved: make(map[string][]model.MoveRecord)}
}

func (m *mockMoveRepo) SaveMoves(_ context.Context, moves []model.MoveRecord) error {
	for _, mv := range moves {
		m.saved[mv.GameID] = append(m.saved[mv.GameID], mv)
	}
	return nil
}

func (m *mockMoveRepo) ListByGame(_ context.Context, gameID string) ([]model.MoveRecord, error) {
	out := make([]model.MoveRecord, len(m.saved[gameID]))
	copy(out, m.saved[gameID])
	return out, nil
}

type mockMessageRepo struct {
	messages []model.Message
	seq      int
}

func newMockMessageRepo() *mockMessageRepo {
	return &mockMessageRepo{}
}

func (m *mockMessageRepo) Create(_ context.Context, gameID, senderID, recipientID, content string, turn int) (*model.Message, error) {
	m.seq++
	msg := model.Message{
		ID:          fmt.Sprintf("msg-%d", m.seq),
		GameID:      gameID,
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     content,
		Turn:        turn,
		CreatedAt:   time.Now(),
	}
	m.messages = append(m.messages, msg)
	return &msg, nil
}

func (m *mockMessageRepo) ListByGame(_ context.Context, gameID, userID string) ([]model.Message, error) {
	var result []model.Message
	for _, msg := range m.messages {
		if msg.GameID != gameID {
			continue
		}
		if msg.RecipientID == "" || msg.SenderID == userID || msg.RecipientID == userID {
			result = append(result, msg)
		}
	}
	return result, nil
}

// mockCache implements repository.GameCache for testing.
type mockCache struct {
	wins    map[string]int64
	results []json.RawMessage
	timers  map[string]time.Time
}

func newMockCache() *mockCache {
	return &mockCache{
		wins:   make(map[string]int64),
		timers: make(map[string]time.Time),
	}
}

func (c *mockCache) RecordWin(_ context.Context, userID string) error {
	c.wins[userID]++
	return nil
}

func (c *mockCache) TopPlayers(_ context.Context, n int64) ([]repository.PlayerScore, error) {
	var scores []repository.PlayerScore
	for id, wins := range c.wins {
		scores = append(scores, repository.PlayerScore{UserID: id, Wins: wins})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Wins != scores[j].Wins {
			return scores[i].Wins > scores[j].Wins
		}
		return scores[i].UserID < scores[j].UserID
	})
	if int64(len(scores)) > n {
		scores = scores[:n]
	}
	return scores, nil
}

func (c *mockCache) PushResult(_ context.Context, result json.RawMessage) error {
	c.results = append([]json.RawMessage{result}, c.results...)
	return nil
}

func (c *mockCache) RecentResults(_ context.Context, n int64) ([]json.RawMessage, error) {
	if int64(len(c.results)) > n {
		return c.results[:n], nil
	}
	return c.results, nil
}

func (c *mockCache) SetSessionTimer(_ context.Context, gameID string, deadline time.Time) error {
	c.timers[gameID] = deadline
	return nil
}

func (c *mockCache) ClearSessionTimer(_ context.Context, gameID string) error {
	delete(c.timers, gameID)
	return nil
}

// mockBroadcaster records every event for assertion.
type mockBroadcaster struct {
	mu     sync.Mutex
	events []broadcastEvent
}

type broadcastEvent struct {
	gameID    string
	eventType string
	data      any
}

func (b *mockBroadcaster) BroadcastGameEvent(gameID, eventType string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcastEvent{gameID: gameID, eventType: eventType, data: data})
}

func (b *mockBroadcaster) eventTypes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	types := make([]string, len(b.events))
	for i, e := range b.events {
		types[i] = e.eventType
	}
	return types
}

func (b *mockBroadcaster) has(eventType string) bool {
	for _, t := range b.eventTypes() {
		if t == eventType {
			return true
		}
	}
	return false
}
