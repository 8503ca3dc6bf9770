package game

// Scoring constants, applied once per resolved round.
const (
	ScoreCorrectVote      = 100
	ScoreSurvivedInnocent = 50
	ScoreImpostorSurvived = 200
	ScoreImpostorCaught   = 25
	ScoreGameCompleted    = 10
)

// TallyVotes counts ballots per target.
func TallyVotes(votes map[string]string) map[string]int {
	counts := make(map[string]int)
	for _, target := range votes {
		counts[target]++
	}
	return counts
}

// PluralityLeader returns the unique top vote-getter. A tie for the maximum,
// or no votes at all, yields ok=false.
func PluralityLeader(counts map[string]int) (leader string, ok bool) {
	top := 0
	for id, n := range counts {
		switch {
		case n > top:
			top, leader, ok = n, id, true
		case n == top:
			ok = false
		}
	}
	if !ok {
		return "", false
	}
	return leader, true
}

// calculateResults scores the current round for every member still in the
// room and accumulates into TotalScores.
func (r *Room) calculateResults() RoundResults {
	g := r.Game
	counts := TallyVotes(g.Votes)
	accused, decisive := PluralityLeader(counts)

	caught := g.ImpostorForfeited || (decisive && accused == g.ImpostorID)

	received := make(map[string]bool, len(counts))
	for target := range counts {
		received[target] = true
	}

	roundScores := make(map[string]int, len(r.Players))
	for _, p := range r.Players {
		points := ScoreGameCompleted
		if p.ID == g.ImpostorID {
			if caught {
				points += ScoreImpostorCaught
			} else {
				points += ScoreImpostorSurvived
			}
		} else {
			if g.Votes[p.ID] == g.ImpostorID {
				points += ScoreCorrectVote
			}
			if !received[p.ID] {
				points += ScoreSurvivedInnocent
			}
		}
		roundScores[p.ID] = points
		g.TotalScores[p.ID] += points
	}
	g.RoundScores = roundScores

	res := RoundResults{
		Round:          g.CurrentRound,
		ImpostorID:     g.ImpostorID,
		ImpostorCaught: caught,
		Forfeited:      g.ImpostorForfeited,
		Word:           g.Word,
		Votes:          make(map[string]string, len(g.Votes)),
		VoteCounts:     counts,
		RoundScores:    copyScores(roundScores),
		TotalScores:    copyScores(g.TotalScores),
		IsGameOver:     g.CurrentRound >= g.TotalRounds,
	}
	if decisive {
		res.AccusedID = accused
	}
	if imp := r.player(g.ImpostorID); imp != nil {
		res.ImpostorName = imp.Name
	}
	for voter, target := range g.Votes {
		res.Votes[voter] = target
	}
	return res
}
