// Package local implements pass-and-play sessions: one shared device, roles
// revealed in turn, and elimination voting until one side wins.
package local

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"impostor/internal/game"
)

// Phase is a pass-and-play phase
type Phase string

const (
	PhaseSetup        Phase = "setup"
	PhaseCategory     Phase = "category"
	PhasePassDevice   Phase = "pass_device"
	PhaseReveal       Phase = "local_reveal"
	PhaseHint         Phase = "local_hint"
	PhaseDiscussion   Phase = "discussion"
	PhasePassVote     Phase = "pass_vote"
	PhaseVote         Phase = "local_vote"
	PhaseHostDecision Phase = "host_decision"
	PhaseRoundResult  Phase = "round_result"
	PhaseGameResult   Phase = "game_result"
)

// Winner names the side that won a finished session.
type Winner string

const (
	WinnerNone      Winner = ""
	WinnerPlayers   Winner = "players"
	WinnerImpostors Winner = "impostors"
)

const (
	MinPlayersToStart = 3
	MaxPlayers        = 10
	maxImpostors      = 3
	maxDiscussionTime = 900
	maxHintTime       = 300
)

// RandomCategory is what everyone sees in random mode.
var RandomCategory = game.CategorySummary{ID: "random", Name: "Random", Icon: "🎲"}

// Player is a named seat at the shared device.
type Player struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	IsImpostor   bool   `json:"isImpostor"`
	IsEliminated bool   `json:"isEliminated"`
	HasRevealed  bool   `json:"hasRevealed"`
	HasVoted     bool   `json:"hasVoted"`
}

// Settings configure a session. Times are in seconds; zero disables.
type Settings struct {
	ImpostorCount      int      `json:"impostorCount"`
	DiscussionTime     int      `json:"discussionTime"`
	HintTime           int      `json:"hintTime"`
	HideCategory       bool     `json:"hideCategory"`
	RandomMode         bool     `json:"randomMode"`
	ManualVoting       bool     `json:"manualVoting"`
	SelectedCategories []string `json:"selectedCategories"`
}

// DefaultSettings is applied to every new session.
func DefaultSettings() Settings {
	return Settings{
		ImpostorCount:      1,
		DiscussionTime:     180,
		SelectedCategories: []string{},
	}
}

// SettingsPatch is a partial settings update.
type SettingsPatch struct {
	ImpostorCount      *int      `json:"impostorCount,omitempty"`
	DiscussionTime     *int      `json:"discussionTime,omitempty"`
	HintTime           *int      `json:"hintTime,omitempty"`
	HideCategory       *bool     `json:"hideCategory,omitempty"`
	RandomMode         *bool     `json:"randomMode,omitempty"`
	ManualVoting       *bool     `json:"manualVoting,omitempty"`
	SelectedCategories *[]string `json:"selectedCategories,omitempty"`
}

// Deps are the collaborators a session draws on.
type Deps struct {
	Catalog  *game.Catalog
	Selector *game.Selector
	Clock    func() time.Time
	NewID    func() string
}

// Session is one pass-and-play game. All methods are safe for concurrent use.
type Session struct {
	ID       string
	Phase    Phase
	Players  []*Player
	Settings Settings

	Category    *game.Category
	Word        string
	ImpostorIDs []string

	CurrentPlayerIndex  int
	CurrentVoterIndex   int
	Votes               map[string]string
	EliminatedThisRound string
	RoundNumber         int
	Winner              Winner
	TimerEndsAt         time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	lastCategoryID string
	lastWord       string
	words          game.WordMemory
	deps           Deps

	mu sync.Mutex
}

// NewSession creates an empty session in setup.
func NewSession(id string, deps Deps) *Session {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Selector == nil {
		deps.Selector = game.NewSelector(nil)
	}
	if deps.NewID == nil {
		deps.NewID = func() string { return uuid.NewString()[:8] }
	}
	now := deps.Clock()
	return &Session{
		ID:          id,
		Phase:       PhaseSetup,
		Settings:    DefaultSettings(),
		Votes:       make(map[string]string),
		RoundNumber: 1,
		CreatedAt:   now,
		UpdatedAt:   now,
		words:       make(game.WordMemory),
		deps:        deps,
	}
}

func (s *Session) now() time.Time {
	return s.deps.Clock()
}

func (s *Session) touch() {
	s.UpdatedAt = s.now()
}

// IdleSince reports the last time the session changed.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.UpdatedAt
}

func (s *Session) require(p Phase) error {
	if s.Phase != p {
		return game.ErrInvalidPhase
	}
	return nil
}

func (s *Session) player(id string) *Player {
	for _, p := range s.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// AddPlayer seats a new player. Names are trimmed and must be unique
// regardless of case.
func (s *Session) AddPlayer(name string) (Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(PhaseSetup); err != nil {
		return Player{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Player{}, game.ErrInvalidName
	}
	if len(s.Players) >= MaxPlayers {
		return Player{}, game.ErrTooManyPlayers
	}
	for _, p := range s.Players {
		if strings.EqualFold(p.Name, name) {
			return Player{}, game.ErrDuplicateName
		}
	}

	p := &Player{ID: s.deps.NewID(), Name: name}
	s.Players = append(s.Players, p)
	s.touch()
	return *p, nil
}

// RemovePlayer unseats a player during setup.
func (s *Session) RemovePlayer(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(PhaseSetup); err != nil {
		return err
	}
	for i, p := range s.Players {
		if p.ID == id {
			s.Players = append(s.Players[:i], s.Players[i+1:]...)
			s.touch()
			return nil
		}
	}
	return game.ErrNotFound
}

// Shuffle randomises the seating order.
func (s *Session) Shuffle() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(PhaseSetup); err != nil {
		return err
	}
	s.shufflePlayers()
	s.touch()
	return nil
}

func (s *Session) shufflePlayers() {
	byID := make(map[string]*Player, len(s.Players))
	ids := make([]string, len(s.Players))
	for i, p := range s.Players {
		byID[p.ID] = p
		ids[i] = p.ID
	}
	for i, id := range s.deps.Selector.Shuffle(ids) {
		s.Players[i] = byID[id]
	}
}

// UpdateSettings applies a validated partial update during setup.
func (s *Session) UpdateSettings(patch SettingsPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(PhaseSetup); err != nil {
		return err
	}

	next := s.Settings
	if patch.ImpostorCount != nil {
		next.ImpostorCount = *patch.ImpostorCount
	}
	if patch.DiscussionTime != nil {
		next.DiscussionTime = *patch.DiscussionTime
	}
	if patch.HintTime != nil {
		next.HintTime = *patch.HintTime
	}
	if patch.HideCategory != nil {
		next.HideCategory = *patch.HideCategory
	}
	if patch.RandomMode != nil {
		next.RandomMode = *patch.RandomMode
	}
	if patch.ManualVoting != nil {
		next.ManualVoting = *patch.ManualVoting
	}
	if patch.SelectedCategories != nil {
		next.SelectedCategories = append([]string{}, (*patch.SelectedCategories)...)
	}

	switch {
	case next.ImpostorCount < 1 || next.ImpostorCount > maxImpostors:
		return game.ErrInvalidSettings
	case next.DiscussionTime < 0 || next.DiscussionTime > maxDiscussionTime:
		return game.ErrInvalidSettings
	case next.HintTime < 0 || next.HintTime > maxHintTime:
		return game.ErrInvalidSettings
	}
	for _, id := range next.SelectedCategories {
		if _, ok := s.deps.Catalog.Get(id); !ok {
			return game.ErrInvalidSettings
		}
	}

	s.Settings = next
	s.touch()
	return nil
}

// Start deals roles and moves to the category screen.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(PhaseSetup); err != nil {
		return err
	}
	if len(s.Players) < MinPlayersToStart {
		return game.ErrNotEnoughPlayers
	}

	pool := s.deps.Catalog.Categories()
	if !s.Settings.RandomMode {
		pool = s.deps.Catalog.Filter(s.Settings.SelectedCategories)
	}
	cat, ok := s.deps.Selector.SelectCategory(pool, s.lastCategoryID)
	if !ok {
		return game.ErrInvalidSettings
	}
	word := s.deps.Selector.SelectWord(cat, s.lastWord, s.words)

	for _, p := range s.Players {
		p.IsImpostor = false
		p.IsEliminated = false
		p.HasRevealed = false
		p.HasVoted = false
	}

	ids := make([]string, len(s.Players))
	for i, p := range s.Players {
		ids[i] = p.ID
	}
	count := game.ImpostorCount(s.Settings.ImpostorCount, len(s.Players))
	s.ImpostorIDs = s.deps.Selector.SelectImpostors(ids, count)
	for _, id := range s.ImpostorIDs {
		s.player(id).IsImpostor = true
	}

	s.Category = &cat
	s.Word = word
	s.lastCategoryID = cat.ID
	s.lastWord = word
	s.shufflePlayers()
	s.CurrentPlayerIndex = 0
	s.CurrentVoterIndex = 0
	s.Votes = make(map[string]string)
	s.EliminatedThisRound = ""
	s.RoundNumber = 1
	s.Winner = WinnerNone
	s.TimerEndsAt = time.Time{}
	s.Phase = PhaseCategory
	s.touch()

	log.Info().Str("session", s.ID).Int("players", len(s.Players)).Int("impostors", len(s.ImpostorIDs)).Msg("local game started")
	return nil
}

// PlayAgain clears roles and eliminations but keeps the roster.
func (s *Session) PlayAgain() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.Players {
		p.IsImpostor = false
		p.IsEliminated = false
		p.HasRevealed = false
		p.HasVoted = false
	}
	s.Phase = PhaseSetup
	s.Category = nil
	s.Word = ""
	s.ImpostorIDs = nil
	s.CurrentPlayerIndex = 0
	s.CurrentVoterIndex = 0
	s.Votes = make(map[string]string)
	s.EliminatedThisRound = ""
	s.RoundNumber = 1
	s.Winner = WinnerNone
	s.TimerEndsAt = time.Time{}
	s.touch()
	return nil
}
