package local

import (
	"time"

	"github.com/rs/zerolog/log"

	"impostor/internal/game"
)

// StartReveal hands the device to the first player.
func (s *Session) StartReveal() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(PhaseCategory); err != nil {
		return err
	}
	s.CurrentPlayerIndex = 0
	s.Phase = PhasePassDevice
	s.touch()
	return nil
}

// PlayerReady shows the current holder their role.
func (s *Session) PlayerReady() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(PhasePassDevice); err != nil {
		return err
	}
	s.Phase = PhaseReveal
	s.touch()
	return nil
}

// ConfirmReveal marks the current holder as having seen their role and
// passes the device on. After the last player the hint round or discussion
// begins.
func (s *Session) ConfirmReveal() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(PhaseReveal); err != nil {
		return err
	}
	if s.CurrentPlayerIndex < len(s.Players) {
		s.Players[s.CurrentPlayerIndex].HasRevealed = true
	}
	s.CurrentPlayerIndex++

	switch {
	case s.CurrentPlayerIndex < len(s.Players):
		s.Phase = PhasePassDevice
	case s.Settings.HintTime > 0:
		s.startHints()
	default:
		s.startDiscussion()
	}
	s.touch()
	return nil
}

func (s *Session) startHints() {
	s.Phase = PhaseHint
	s.CurrentPlayerIndex = s.nextAlive(0)
	s.armTimer(s.Settings.HintTime)
	if s.CurrentPlayerIndex >= len(s.Players) {
		s.startDiscussion()
	}
}

// NextTurn passes the verbal hint to the next alive player.
func (s *Session) NextTurn() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(PhaseHint); err != nil {
		return err
	}
	s.CurrentPlayerIndex = s.nextAlive(s.CurrentPlayerIndex + 1)
	if s.CurrentPlayerIndex >= len(s.Players) {
		s.startDiscussion()
	} else {
		s.armTimer(s.Settings.HintTime)
	}
	s.touch()
	return nil
}

func (s *Session) startDiscussion() {
	s.Phase = PhaseDiscussion
	s.armTimer(s.Settings.DiscussionTime)
}

// armTimer sets an informational deadline; the session never acts on it.
func (s *Session) armTimer(seconds int) {
	if seconds <= 0 {
		s.TimerEndsAt = time.Time{}
		return
	}
	s.TimerEndsAt = s.now().Add(time.Duration(seconds) * time.Second)
}

// nextAlive returns the first index at or after i whose player is still in.
func (s *Session) nextAlive(i int) int {
	for i < len(s.Players) && s.Players[i].IsEliminated {
		i++
	}
	return i
}

// StartVoting ends discussion, either into a passed-around ballot or into a
// single host decision when manual voting is on.
func (s *Session) StartVoting() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(PhaseDiscussion); err != nil {
		return err
	}
	s.TimerEndsAt = time.Time{}
	s.touch()

	if s.Settings.ManualVoting {
		s.Phase = PhaseHostDecision
		return nil
	}
	s.Votes = make(map[string]string)
	s.CurrentVoterIndex = s.nextAlive(0)
	s.Phase = PhasePassVote
	return nil
}

// VoterReady opens the ballot for the current voter.
func (s *Session) VoterReady() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(PhasePassVote); err != nil {
		return err
	}
	s.Phase = PhaseVote
	s.touch()
	return nil
}

// SubmitVote records the current voter's ballot. After the last alive voter
// the round resolves.
func (s *Session) SubmitVote(targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(PhaseVote); err != nil {
		return err
	}
	if s.CurrentVoterIndex >= len(s.Players) {
		return game.ErrInvalidPhase
	}
	voter := s.Players[s.CurrentVoterIndex]
	target := s.player(targetID)
	if target == nil || target.IsEliminated || target.ID == voter.ID {
		return game.ErrInvalidVote
	}

	s.Votes[voter.ID] = targetID
	voter.HasVoted = true
	s.CurrentVoterIndex = s.nextAlive(s.CurrentVoterIndex + 1)
	s.touch()

	if s.CurrentVoterIndex < len(s.Players) {
		s.Phase = PhasePassVote
		return nil
	}

	leader, ok := game.PluralityLeader(game.TallyVotes(s.Votes))
	if !ok {
		leader = ""
	}
	s.eliminate(leader)
	return nil
}

// HostEliminate applies the host's in-person verdict. An empty target means
// nobody is eliminated.
func (s *Session) HostEliminate(targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(PhaseHostDecision); err != nil {
		return err
	}
	if targetID != "" {
		p := s.player(targetID)
		if p == nil || p.IsEliminated {
			return game.ErrInvalidVote
		}
	}
	s.eliminate(targetID)
	s.touch()
	return nil
}

func (s *Session) eliminate(targetID string) {
	s.EliminatedThisRound = ""
	if p := s.player(targetID); p != nil {
		p.IsEliminated = true
		s.EliminatedThisRound = p.ID
	}
	s.Phase = PhaseRoundResult
	s.checkWinCondition()

	log.Debug().Str("session", s.ID).Str("eliminated", s.EliminatedThisRound).Str("winner", string(s.Winner)).Msg("local round resolved")
}

// checkWinCondition ends the game when no impostor is left or impostors are
// no longer outnumbered.
func (s *Session) checkWinCondition() {
	impostors, innocents := 0, 0
	for _, p := range s.Players {
		if p.IsEliminated {
			continue
		}
		if p.IsImpostor {
			impostors++
		} else {
			innocents++
		}
	}

	switch {
	case impostors == 0:
		s.Winner = WinnerPlayers
	case impostors >= innocents:
		s.Winner = WinnerImpostors
	default:
		return
	}
	s.Phase = PhaseGameResult
}

// ContinueGame starts the next discussion round after a result without a
// winner.
func (s *Session) ContinueGame() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(PhaseRoundResult); err != nil {
		return err
	}
	s.touch()
	if s.Winner != WinnerNone {
		s.Phase = PhaseGameResult
		return nil
	}

	s.RoundNumber++
	s.EliminatedThisRound = ""
	s.Votes = make(map[string]string)
	s.CurrentVoterIndex = 0
	for _, p := range s.Players {
		p.HasVoted = false
	}
	s.startDiscussion()
	return nil
}
