package game

import (
	"math/rand"
	"sync"
	"time"
)

// wordBuffer is the minimum number of unused words a category must still
// offer before its used-word memory is reset.
const wordBuffer = 5

// WordMemory remembers, per category id, which words were already drawn in a
// room or session.
type WordMemory map[string]map[string]bool

// Selector draws categories, words and impostors. It owns its random source
// so tests can make every draw deterministic.
type Selector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector creates a selector over the given source. A nil source seeds
// from the clock.
func NewSelector(src rand.Source) *Selector {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Selector{rng: rand.New(src)}
}

func (s *Selector) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// Shuffle returns a shuffled copy of ids.
func (s *Selector) Shuffle(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// SelectCategory picks uniformly among categories other than excludeID.
// With a single candidate the exclusion is dropped.
func (s *Selector) SelectCategory(categories []Category, excludeID string) (Category, bool) {
	if len(categories) == 0 {
		return Category{}, false
	}

	available := make([]Category, 0, len(categories))
	for _, c := range categories {
		if c.ID != excludeID {
			available = append(available, c)
		}
	}
	if len(available) == 0 {
		available = categories
	}

	return available[s.intn(len(available))], true
}

// SelectWord picks uniformly among the category's words, skipping excludeWord
// and any word already in memory for that category. Once fewer than
// wordBuffer fresh words remain the category's memory is cleared.
func (s *Selector) SelectWord(category Category, excludeWord string, memory WordMemory) string {
	if len(category.Words) == 0 {
		return ""
	}

	used := memory[category.ID]
	available := make([]string, 0, len(category.Words))
	for _, w := range category.Words {
		if w != excludeWord && !used[w] {
			available = append(available, w)
		}
	}

	if len(available) < wordBuffer {
		used = make(map[string]bool)
		available = available[:0]
		for _, w := range category.Words {
			if w != excludeWord {
				available = append(available, w)
			}
		}
	}
	// single-word categories cannot avoid the repeat
	if len(available) == 0 {
		available = category.Words
	}

	word := available[s.intn(len(available))]

	if used == nil {
		used = make(map[string]bool)
	}
	used[word] = true
	if memory != nil {
		memory[category.ID] = used
	}
	return word
}

// SelectImpostor picks exactly one id.
func (s *Selector) SelectImpostor(playerIDs []string) string {
	if len(playerIDs) == 0 {
		return ""
	}
	return playerIDs[s.intn(len(playerIDs))]
}

// SelectImpostors picks count distinct ids.
func (s *Selector) SelectImpostors(playerIDs []string, count int) []string {
	if count > len(playerIDs) {
		count = len(playerIDs)
	}
	if count <= 0 {
		return nil
	}
	return s.Shuffle(playerIDs)[:count]
}

// ImpostorCount caps the configured impostor count so innocents are never
// outnumbered at the start: min(configured, players/3).
func ImpostorCount(configured, players int) int {
	limit := players / 3
	if configured < limit {
		return configured
	}
	return limit
}
