package game

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedact(t *testing.T) {
	tests := []struct {
		name string
		text string
		word string
		want string
	}{
		{"no word", "hello there", "", "hello there"},
		{"exact", "Apple", "Apple", "***"},
		{"case insensitive", "an APPLE a day, apple pie", "Apple", "an *** a day, *** pie"},
		{"inside other words", "pineapples", "apple", "pine***s"},
		{"regex metacharacters", "price is $5.00 (c++)", "c++", "price is $5.00 (***)"},
		{"no match", "banana", "apple", "banana"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Redact(tt.text, tt.word))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "日本", Truncate("日本語", 2))
	assert.Equal(t, "abc", Truncate("abc", 0))
}

func TestCleanText(t *testing.T) {
	long := strings.Repeat("x", 150)
	assert.Len(t, cleanText("  "+long+"  ", NewRedactor(""), 100), 100)
	assert.Equal(t, "*** time", cleanText("  tiger time ", NewRedactor("Tiger"), 100))
	assert.Equal(t, "tiger", cleanText(" tiger ", nil, 100))
}

func TestMaskFollowsTheWord(t *testing.T) {
	g := &GameState{Word: "Tiger"}
	first := g.mask()
	assert.Same(t, first, g.mask(), "the matcher is compiled once per word")
	assert.Equal(t, "a *** roars", first.Redact("a TIGER roars"))

	g.Word = "Otter"
	next := g.mask()
	assert.NotSame(t, first, next)
	assert.Equal(t, "an *** and a tiger", next.Redact("an otter and a tiger"))
}
