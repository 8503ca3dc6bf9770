package store

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"impostor/internal/game"
	"impostor/internal/local"
)

// CodeAlphabet leaves out characters that are easy to misread (I, O, 0, 1).
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const maxCodeAttempts = 100

var (
	ErrAlreadyInRoom  = fmt.Errorf("%w: player is already in a room", game.ErrInvalidInput)
	errCodesExhausted = errors.New("could not generate a unique room code")
)

// Options tune the registry.
type Options struct {
	CodeLength      int
	StaleRoomAge    time.Duration
	DisconnectGrace time.Duration
	LocalSessionTTL time.Duration
	RoomSettings    game.RoomSettings
}

// DefaultOptions mirrors the shipped server.yaml.
func DefaultOptions() Options {
	return Options{
		CodeLength:      6,
		StaleRoomAge:    30 * time.Minute,
		DisconnectGrace: 2 * time.Minute,
		LocalSessionTTL: 2 * time.Hour,
		RoomSettings:    game.DefaultRoomSettings(),
	}
}

// MemoryStore holds every room and local session in memory. Rooms are indexed
// by code and by member id.
type MemoryStore struct {
	mu       sync.RWMutex
	rooms    map[string]*game.Room
	players  map[string]string
	sessions map[string]*local.Session

	deps    game.RoomDeps
	opts    Options
	genCode func() string
}

// NewMemoryStore creates a new in-memory registry
func NewMemoryStore(deps game.RoomDeps, opts Options) *MemoryStore {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Selector == nil {
		deps.Selector = game.NewSelector(nil)
	}
	if opts.CodeLength <= 0 {
		opts.CodeLength = DefaultOptions().CodeLength
	}
	s := &MemoryStore{
		rooms:    make(map[string]*game.Room),
		players:  make(map[string]string),
		sessions: make(map[string]*local.Session),
		deps:     deps,
		opts:     opts,
	}
	s.genCode = func() string { return generateRoomCode(s.opts.CodeLength) }
	return s
}

// CreateRoom opens a room with the creator as its only member and host.
func (s *MemoryStore) CreateRoom(playerID, name string) (*game.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, game.ErrInvalidName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, in := s.players[playerID]; in {
		return nil, ErrAlreadyInRoom
	}
	code, err := s.uniqueCode()
	if err != nil {
		return nil, err
	}

	host := game.NewPlayer(playerID, name, s.deps.Clock())
	room := game.NewRoom(uuid.NewString(), code, host, s.opts.RoomSettings, s.deps)
	s.rooms[code] = room
	s.players[playerID] = code

	log.Info().Str("room", code).Str("host", name).Msg("room created")
	return room, nil
}

func (s *MemoryStore) uniqueCode() (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code := s.genCode()
		if _, exists := s.rooms[code]; !exists {
			return code, nil
		}
	}
	return "", errCodesExhausted
}

// JoinRoom adds a player to the room with the given code. Codes match case
// insensitively. A player already in that room is reconnected instead.
func (s *MemoryStore) JoinRoom(code, playerID, name string) (room *game.Room, reconnected bool, err error) {
	code = game.NormalizeCode(code)
	name = strings.TrimSpace(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[code]
	if !ok {
		return nil, false, game.ErrNotFound
	}
	if current, in := s.players[playerID]; in && current != code {
		return nil, false, ErrAlreadyInRoom
	}
	if _, member := room.GetPlayer(playerID); !member && name == "" {
		return nil, false, game.ErrInvalidName
	}

	reconnected, err = room.AddPlayer(game.NewPlayer(playerID, name, s.deps.Clock()))
	if err != nil {
		return nil, false, err
	}
	s.players[playerID] = code

	if reconnected {
		log.Info().Str("room", code).Str("player", playerID).Msg("player rejoined")
	} else {
		log.Info().Str("room", code).Str("player", name).Msg("player joined")
	}
	return room, reconnected, nil
}

// LeaveResult describes the effect of a leave.
type LeaveResult struct {
	Room    *game.Room
	Code    string
	WasHost bool
	Deleted bool
}

// LeaveRoom removes a player. The room is deleted once empty; otherwise the
// host role passes to the earliest remaining member.
func (s *MemoryStore) LeaveRoom(playerID string) (LeaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, ok := s.players[playerID]
	if !ok {
		return LeaveResult{}, game.ErrNotInRoom
	}
	delete(s.players, playerID)

	room, ok := s.rooms[code]
	if !ok {
		return LeaveResult{Code: code}, nil
	}

	wasHost, empty := room.RemovePlayer(playerID)
	res := LeaveResult{Room: room, Code: code, WasHost: wasHost, Deleted: empty}
	if empty {
		delete(s.rooms, code)
		log.Info().Str("room", code).Msg("deleted empty room")
	} else if wasHost {
		log.Info().Str("room", code).Str("host", room.Snapshot().HostID).Msg("host transferred")
	}
	return res, nil
}

// DisconnectPlayer marks a member as gone without freeing their seat.
func (s *MemoryStore) DisconnectPlayer(playerID string) (*game.Room, bool) {
	room, err := s.GetRoomByPlayer(playerID)
	if err != nil {
		return nil, false
	}
	return room, room.SetConnected(playerID, false)
}

// ReconnectPlayer marks a known member as connected again.
func (s *MemoryStore) ReconnectPlayer(playerID string) (*game.Room, bool) {
	room, err := s.GetRoomByPlayer(playerID)
	if err != nil {
		return nil, false
	}
	return room, room.SetConnected(playerID, true)
}

// GetRoom retrieves a room by code
func (s *MemoryStore) GetRoom(code string) (*game.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[game.NormalizeCode(code)]
	if !ok {
		return nil, game.ErrNotFound
	}
	return room, nil
}

// GetRoomByPlayer retrieves the room a player belongs to.
func (s *MemoryStore) GetRoomByPlayer(playerID string) (*game.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	code, ok := s.players[playerID]
	if !ok {
		return nil, game.ErrNotFound
	}
	room, ok := s.rooms[code]
	if !ok {
		return nil, game.ErrNotFound
	}
	return room, nil
}

// RoomCount returns the number of live rooms.
func (s *MemoryStore) RoomCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// ConnectedPlayerCount counts connected members across all rooms.
func (s *MemoryStore) ConnectedPlayerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, room := range s.rooms {
		n += room.ConnectedCount()
	}
	return n
}

// CreateSession opens a new pass-and-play session.
func (s *MemoryStore) CreateSession() *local.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id string
	for {
		id = strings.ToUpper(uuid.NewString()[:8])
		if _, exists := s.sessions[id]; !exists {
			break
		}
	}
	sess := local.NewSession(id, local.Deps{
		Catalog:  s.deps.Catalog,
		Selector: s.deps.Selector,
		Clock:    s.deps.Clock,
	})
	s.sessions[id] = sess

	log.Info().Str("session", id).Msg("local session created")
	return sess
}

// GetSession retrieves a local session by id.
func (s *MemoryStore) GetSession(id string) (*local.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[strings.ToUpper(strings.TrimSpace(id))]
	if !ok {
		return nil, game.ErrNotFound
	}
	return sess, nil
}

// DeleteSession removes a local session. Unknown ids are ignored.
func (s *MemoryStore) DeleteSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, strings.ToUpper(strings.TrimSpace(id)))
}

// SessionCount returns the number of live local sessions.
func (s *MemoryStore) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// PrunedPlayer is a member removed by the sweep.
type PrunedPlayer struct {
	Code     string
	PlayerID string
	WasHost  bool
}

// CleanupReport is what a sweep did.
type CleanupReport struct {
	PrunedPlayers   []PrunedPlayer
	RemovedRooms    []*game.Room
	RemovedSessions []string
	// Affected are surviving rooms that lost members and need reconciling.
	Affected []*game.Room
}

// Empty reports whether the sweep changed nothing.
func (r CleanupReport) Empty() bool {
	return len(r.PrunedPlayers) == 0 && len(r.RemovedRooms) == 0 && len(r.RemovedSessions) == 0
}

// CleanupStaleRooms prunes long-disconnected players, then deletes rooms with
// nobody connected and lobbies older than the stale age, then idle sessions.
func (s *MemoryStore) CleanupStaleRooms() CleanupReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.deps.Clock()
	var report CleanupReport

	for code, room := range s.rooms {
		lost := false
		if s.opts.DisconnectGrace > 0 {
			for _, id := range room.ExpiredPlayers(now, s.opts.DisconnectGrace) {
				wasHost, _ := room.RemovePlayer(id)
				delete(s.players, id)
				report.PrunedPlayers = append(report.PrunedPlayers, PrunedPlayer{Code: code, PlayerID: id, WasHost: wasHost})
				lost = true
			}
		}

		if room.PlayerCount() == 0 || room.IsStale(now, s.opts.StaleRoomAge) {
			for _, id := range room.PlayerIDs() {
				delete(s.players, id)
			}
			delete(s.rooms, code)
			report.RemovedRooms = append(report.RemovedRooms, room)
			log.Info().Str("room", code).Msg("cleaned up stale room")
			continue
		}
		if lost {
			report.Affected = append(report.Affected, room)
		}
	}

	if s.opts.LocalSessionTTL > 0 {
		for id, sess := range s.sessions {
			if now.Sub(sess.IdleSince()) > s.opts.LocalSessionTTL {
				delete(s.sessions, id)
				report.RemovedSessions = append(report.RemovedSessions, id)
				log.Info().Str("session", id).Msg("cleaned up idle local session")
			}
		}
	}

	return report
}

// Run sweeps on every tick until ctx is done. onSweep, if set, receives each
// non-empty report.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration, onSweep func(CleanupReport)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report := s.CleanupStaleRooms()
			if report.Empty() {
				continue
			}
			log.Debug().
				Int("prunedPlayers", len(report.PrunedPlayers)).
				Int("removedRooms", len(report.RemovedRooms)).
				Int("removedSessions", len(report.RemovedSessions)).
				Msg("sweep finished")
			if onSweep != nil {
				onSweep(report)
			}
		}
	}
}

// generateRoomCode draws n characters from CodeAlphabet
func generateRoomCode(n int) string {
	b := make([]byte, n)
	rand.Read(b)

	for i := range b {
		b[i] = CodeAlphabet[int(b[i])%len(CodeAlphabet)]
	}
	return string(b)
}
