package game

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// StartGame leaves the lobby and begins round one. Host only.
func (r *Room) StartGame(playerID string) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var o Outcome
	if err := r.requireHost(playerID); err != nil {
		return o, err
	}
	if r.Game != nil {
		return o, ErrGameAlreadyStarted
	}
	if len(r.Players) < r.deps.Rules.MinPlayers {
		return o, ErrNotEnoughPlayers
	}

	g := &GameState{
		CurrentRound: 1,
		TotalRounds:  r.Settings.RoundsPerGame,
		TotalScores:  make(map[string]int, len(r.Players)),
		TurnOrder:    r.deps.Selector.Shuffle(r.playerIDs()),
	}
	g.resetRound()
	for _, p := range r.Players {
		g.TotalScores[p.ID] = 0
		g.RoundScores[p.ID] = 0
	}
	r.Game = g

	log.Info().Str("room", r.Code).Int("players", len(r.Players)).Int("rounds", g.TotalRounds).Msg("game started")

	r.startSpinningCategory(&o)
	o.broadcast(EventRoomUpdated, r.view())
	return o, nil
}

// enter moves to phase p and opens a new epoch.
func (r *Room) enter(p Phase) {
	r.Game.Phase = p
	r.Game.Epoch++
	r.Game.TimerEndsAt = time.Time{}
}

func (r *Room) timer(after time.Duration, countdown bool) Timer {
	return Timer{Phase: r.Game.Phase, Epoch: r.Game.Epoch, After: after, Countdown: countdown}
}

func (r *Room) startSpinningCategory(o *Outcome) {
	r.enter(PhaseSpinningCategory)
	o.broadcast(EventPhaseChanged, phaseChanged(SpinningCategoryData{
		Round:       r.Game.CurrentRound,
		TotalRounds: r.Game.TotalRounds,
		Categories:  r.deps.Catalog.Summaries(),
	}))
	o.schedule(r.timer(r.deps.Rules.CategorySpin, false))
}

func (r *Room) startSpinningWord(o *Outcome) {
	g := r.Game
	cat, _ := r.deps.Selector.SelectCategory(r.deps.Catalog.Categories(), g.LastCategoryID)
	g.Category = &cat
	g.LastCategoryID = cat.ID

	r.enter(PhaseSpinningWord)
	o.broadcast(EventPhaseChanged, phaseChanged(SpinningWordData{Category: cat.Summary()}))
	o.schedule(r.timer(r.deps.Rules.WordSpin, false))
}

// startRoleReveal draws the word and impostor and deals roles privately.
func (r *Room) startRoleReveal(o *Outcome) {
	g := r.Game
	g.Word = r.deps.Selector.SelectWord(*g.Category, g.LastWord, r.words)
	g.LastWord = g.Word

	candidates := r.connectedIDs()
	if len(candidates) == 0 {
		candidates = r.playerIDs()
	}
	g.ImpostorID = r.deps.Selector.SelectImpostor(candidates)

	log.Debug().Str("room", r.Code).Str("word", g.Word).Str("impostor", g.ImpostorID).Msg("roles dealt")

	r.enter(PhaseRoleReveal)
	g.TimerEndsAt = r.now().Add(r.deps.Rules.RoleReveal)

	for _, p := range r.Players {
		o.send(p.ID, EventRoleAssigned, g.roleFor(p.ID))
	}
	o.broadcast(EventPhaseChanged, phaseChanged(RoleRevealData{
		Category:    g.Category.Summary(),
		TimerEndsAt: g.TimerEndsAt,
	}))
	o.schedule(r.timer(r.deps.Rules.RoleReveal, false))
}

// startHintRound reshuffles the turn order on every entry.
func (r *Room) startHintRound(o *Outcome) {
	g := r.Game
	r.enter(PhaseHintRound)
	g.HintRound++
	g.CurrentTurnIndex = 0
	g.TurnOrder = r.deps.Selector.Shuffle(r.playerIDs())
	g.DecisionVotes = make(map[string]Decision)

	r.skipUnavailableTurns()
	if g.CurrentTurnIndex >= len(g.TurnOrder) {
		r.startVoteDecision(o)
		return
	}

	r.armTurnTimer(o)
	data := HintRoundData{
		HintRound:           g.HintRound,
		Hints:               append([]HintEntry(nil), g.Hints...),
		TurnOrder:           append([]string(nil), g.TurnOrder...),
		CurrentTurnPlayerID: g.CurrentTurnPlayerID(),
	}
	if !g.TimerEndsAt.IsZero() {
		t := g.TimerEndsAt
		data.TimerEndsAt = &t
	}
	o.broadcast(EventPhaseChanged, phaseChanged(data))
	r.announceTurn(o)
}

// skipUnavailableTurns moves past departed or disconnected players.
func (r *Room) skipUnavailableTurns() {
	g := r.Game
	for g.CurrentTurnIndex < len(g.TurnOrder) && !r.isConnected(g.TurnOrder[g.CurrentTurnIndex]) {
		g.CurrentTurnIndex++
	}
}

func (r *Room) armTurnTimer(o *Outcome) {
	if !r.Settings.TimerEnabled || r.Settings.TimerDuration <= 0 {
		return
	}
	d := time.Duration(r.Settings.TimerDuration) * time.Second
	r.Game.TimerEndsAt = r.now().Add(d)
	o.schedule(r.timer(d, true))
}

func (r *Room) announceTurn(o *Outcome) {
	tc := TurnChange{PlayerID: r.Game.CurrentTurnPlayerID()}
	if !r.Game.TimerEndsAt.IsZero() {
		t := r.Game.TimerEndsAt
		tc.TimerEndsAt = &t
	}
	o.broadcast(EventTurnChanged, tc)
}

// advanceTurn passes the turn on, ending the hint round after the last player.
func (r *Room) advanceTurn(o *Outcome) {
	g := r.Game
	g.CurrentTurnIndex++
	r.skipUnavailableTurns()
	if g.CurrentTurnIndex >= len(g.TurnOrder) {
		r.startVoteDecision(o)
		return
	}
	g.Epoch++
	g.TimerEndsAt = time.Time{}
	r.armTurnTimer(o)
	r.announceTurn(o)
}

// SubmitHint records the current-turn player's clue with the word masked.
func (r *Room) SubmitHint(playerID, text string) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var o Outcome
	p, err := r.requireMember(playerID)
	if err != nil {
		return o, err
	}
	g := r.Game
	if g == nil || g.Phase != PhaseHintRound {
		return o, ErrInvalidPhase
	}
	if g.CurrentTurnPlayerID() != playerID {
		return o, ErrNotYourTurn
	}
	hint := cleanText(text, g.mask(), r.deps.Rules.HintMaxLength)
	if hint == "" {
		return o, ErrInvalidInput
	}

	entry := HintEntry{
		PlayerID:   playerID,
		PlayerName: p.Name,
		Hint:       hint,
		Round:      g.HintRound,
	}
	g.Hints = append(g.Hints, entry)
	o.broadcast(EventHintReceived, entry)
	r.advanceTurn(&o)
	return o, nil
}

func (r *Room) startVoteDecision(o *Outcome) {
	g := r.Game
	r.enter(PhaseVoteDecision)
	g.DecisionVotes = make(map[string]Decision)
	g.TimerEndsAt = r.now().Add(r.deps.Rules.VoteDecision)

	o.broadcast(EventPhaseChanged, phaseChanged(VoteDecisionData{
		HintRound:   g.HintRound,
		TimerEndsAt: g.TimerEndsAt,
	}))
	o.schedule(r.timer(r.deps.Rules.VoteDecision, true))
}

// SubmitDecision records a vote/continue ballot. Once every connected
// player has cast one the decision resolves by tally.
func (r *Room) SubmitDecision(playerID string, choice Decision) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var o Outcome
	if _, err := r.requireMember(playerID); err != nil {
		return o, err
	}
	g := r.Game
	if g == nil || g.Phase != PhaseVoteDecision {
		return o, ErrInvalidPhase
	}
	if !choice.Valid() {
		return o, ErrInvalidInput
	}

	g.DecisionVotes[playerID] = choice
	o.broadcast(EventDecisionReceived, map[string]string{"playerId": playerID, "choice": string(choice)})

	if r.allConnectedCast(len(g.DecisionVotes), func(id string) bool { _, ok := g.DecisionVotes[id]; return ok }) {
		r.resolveDecision(&o, true)
	}
	return o, nil
}

// allConnectedCast reports whether every connected player appears in the
// ballot set. A room with nobody connected never completes this way.
func (r *Room) allConnectedCast(cast int, has func(id string) bool) bool {
	connected := r.connectedIDs()
	if len(connected) == 0 || cast < len(connected) {
		return false
	}
	for _, id := range connected {
		if !has(id) {
			return false
		}
	}
	return true
}

// resolveDecision goes to voting on a strict "vote" majority, otherwise back
// to hints. Without tally it always continues.
func (r *Room) resolveDecision(o *Outcome, tally bool) {
	if tally {
		vote, cont := 0, 0
		for _, d := range r.Game.DecisionVotes {
			if d == DecisionVote {
				vote++
			} else {
				cont++
			}
		}
		if vote > cont {
			r.startVoting(o)
			return
		}
	}
	r.startHintRound(o)
}

func (r *Room) startVoting(o *Outcome) {
	g := r.Game
	r.enter(PhaseVoting)
	g.Votes = make(map[string]string)
	g.TimerEndsAt = r.now().Add(r.deps.Rules.Voting)

	o.broadcast(EventPhaseChanged, phaseChanged(VotingData{
		TimerEndsAt: g.TimerEndsAt,
		ChatEnabled: r.Settings.ChatEnabled,
	}))
	o.schedule(r.timer(r.deps.Rules.Voting, true))
}

// CastVote records an accusation. Only the fact of voting is broadcast.
func (r *Room) CastVote(voterID, targetID string) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var o Outcome
	if _, err := r.requireMember(voterID); err != nil {
		return o, err
	}
	g := r.Game
	if g == nil || g.Phase != PhaseVoting {
		return o, ErrInvalidPhase
	}
	if voterID == targetID || r.player(targetID) == nil {
		return o, ErrInvalidVote
	}
	if _, voted := g.Votes[voterID]; voted {
		return o, ErrAlreadyVoted
	}

	g.Votes[voterID] = targetID
	o.broadcast(EventVoteReceived, map[string]string{"voterId": voterID})

	if r.allConnectedCast(len(g.Votes), func(id string) bool { _, ok := g.Votes[id]; return ok }) {
		r.finishVoting(&o)
	}
	return o, nil
}

// finishVoting scores the round and moves to the matching results phase.
func (r *Room) finishVoting(o *Outcome) {
	g := r.Game
	res := r.calculateResults()
	g.Results = &res

	if res.IsGameOver {
		r.enter(PhaseGameResults)
	} else {
		r.enter(PhaseVoteResults)
	}

	log.Info().Str("room", r.Code).Int("round", g.CurrentRound).Bool("caught", res.ImpostorCaught).Bool("gameOver", res.IsGameOver).Msg("round resolved")

	o.broadcast(EventResults, res)
	o.broadcast(EventPhaseChanged, phaseChanged(ResultsData{Results: res}))
	o.broadcast(EventRoomUpdated, r.view())
}

// Chat posts a redacted message. Voting phase only, and only when enabled.
func (r *Room) Chat(playerID, text string) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var o Outcome
	p, err := r.requireMember(playerID)
	if err != nil {
		return o, err
	}
	g := r.Game
	if g == nil || g.Phase != PhaseVoting {
		return o, ErrInvalidPhase
	}
	if !r.Settings.ChatEnabled {
		return o, ErrChatDisabled
	}
	content := cleanText(text, g.mask(), r.deps.Rules.ChatMaxLength)
	if content == "" {
		return o, ErrInvalidInput
	}

	id := uuid.NewString()
	if r.deps.NewID != nil {
		id = r.deps.NewID()
	}
	msg := ChatMessage{
		ID:         id,
		PlayerID:   playerID,
		PlayerName: p.Name,
		Content:    content,
		Timestamp:  r.now(),
	}
	g.ChatMessages = append(g.ChatMessages, msg)
	if limit := r.deps.Rules.ChatHistory; limit > 0 && len(g.ChatMessages) > limit {
		g.ChatMessages = append([]ChatMessage(nil), g.ChatMessages[len(g.ChatMessages)-limit:]...)
	}
	o.broadcast(EventChatMessage, msg)
	return o, nil
}

func (r *Room) startNextRound(o *Outcome) {
	g := r.Game
	g.CurrentRound++
	g.resetRound()
	g.TurnOrder = r.deps.Selector.Shuffle(r.playerIDs())
	r.startSpinningCategory(o)
	o.broadcast(EventRoomUpdated, r.view())
}

func (r *Room) returnToLobby(o *Outcome) {
	r.Game = nil
	for _, p := range r.Players {
		p.IsReady = false
	}
	log.Info().Str("room", r.Code).Msg("returned to lobby")
	o.broadcast(EventPhaseChanged, phaseChanged(LobbyData{}))
	o.broadcast(EventRoomUpdated, r.view())
}

// Advance is the host's manual override: it performs whatever exit the
// current phase would otherwise wait for.
func (r *Room) Advance(playerID string) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var o Outcome
	if err := r.requireHost(playerID); err != nil {
		return o, err
	}
	if r.Game == nil {
		return o, ErrNoGame
	}

	switch r.Game.Phase {
	case PhaseSpinningCategory:
		r.startSpinningWord(&o)
	case PhaseSpinningWord:
		r.startRoleReveal(&o)
	case PhaseRoleReveal:
		r.startHintRound(&o)
	case PhaseHintRound:
		r.startVoteDecision(&o)
	case PhaseVoteDecision:
		r.startVoting(&o)
	case PhaseVoting:
		r.finishVoting(&o)
	case PhaseVoteResults:
		r.startNextRound(&o)
	case PhaseGameResults:
		r.returnToLobby(&o)
	default:
		return o, ErrInvalidPhase
	}
	return o, nil
}

// HandleTimer runs a scheduled callback. A timer whose phase or epoch no
// longer matches is stale and produces nothing.
func (r *Room) HandleTimer(t Timer) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	var o Outcome
	g := r.Game
	if g == nil || g.Phase != t.Phase || g.Epoch != t.Epoch {
		return o
	}

	switch g.Phase {
	case PhaseSpinningCategory:
		r.startSpinningWord(&o)
	case PhaseSpinningWord:
		r.startRoleReveal(&o)
	case PhaseRoleReveal:
		r.startHintRound(&o)
	case PhaseHintRound:
		log.Debug().Str("room", r.Code).Str("player", g.CurrentTurnPlayerID()).Msg("hint turn timed out")
		r.advanceTurn(&o)
	case PhaseVoteDecision:
		r.resolveDecision(&o, r.deps.Rules.DecisionTimeoutPolicy == DecisionPolicyTally)
	case PhaseVoting:
		r.finishVoting(&o)
	}
	return o
}

// Countdown reports the whole seconds left for a still-current timer.
func (r *Room) Countdown(t Timer) (TimerUpdate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g := r.Game
	if g == nil || g.Phase != t.Phase || g.Epoch != t.Epoch || g.TimerEndsAt.IsZero() {
		return TimerUpdate{}, false
	}
	left := int(g.TimerEndsAt.Sub(r.now()) / time.Second)
	if left < 0 {
		left = 0
	}
	return TimerUpdate{Phase: g.Phase, SecondsLeft: left}, true
}

// Reconcile brings a running game back in line with membership after a
// leave, disconnect or reconnect.
func (r *Room) Reconcile() Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	var o Outcome
	g := r.Game
	if g == nil {
		return o
	}

	if len(r.Players) < 2 {
		r.returnToLobby(&o)
		return o
	}

	for voter := range g.Votes {
		if r.player(voter) == nil {
			delete(g.Votes, voter)
		}
	}
	for id := range g.DecisionVotes {
		if r.player(id) == nil {
			delete(g.DecisionVotes, id)
		}
	}

	if g.ImpostorID != "" && r.player(g.ImpostorID) == nil && g.Phase.roundInProgress() {
		log.Info().Str("room", r.Code).Msg("impostor left, round forfeited")
		g.ImpostorForfeited = true
		r.finishVoting(&o)
		return o
	}

	switch g.Phase {
	case PhaseHintRound:
		current := g.CurrentTurnPlayerID()
		kept := g.TurnOrder[:0]
		idx := g.CurrentTurnIndex
		for i, id := range g.TurnOrder {
			if r.player(id) == nil {
				if i < g.CurrentTurnIndex {
					idx--
				}
				continue
			}
			kept = append(kept, id)
		}
		g.TurnOrder = kept
		g.CurrentTurnIndex = idx
		r.skipUnavailableTurns()

		if g.CurrentTurnIndex >= len(g.TurnOrder) {
			r.startVoteDecision(&o)
		} else if g.CurrentTurnPlayerID() != current {
			g.Epoch++
			g.TimerEndsAt = time.Time{}
			r.armTurnTimer(&o)
			r.announceTurn(&o)
		}
	case PhaseVoteDecision:
		if r.allConnectedCast(len(g.DecisionVotes), func(id string) bool { _, ok := g.DecisionVotes[id]; return ok }) {
			r.resolveDecision(&o, true)
		}
	case PhaseVoting:
		if r.allConnectedCast(len(g.Votes), func(id string) bool { _, ok := g.Votes[id]; return ok }) {
			r.finishVoting(&o)
		}
	}
	return o
}
