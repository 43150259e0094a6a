package deck

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	cards := Generate()
	require.Len(t, cards, Size)

	ids := make(map[string]struct{}, Size)
	names := make(map[string]struct{}, Size)
	perSuit := make(map[string]int)
	for _, c := range cards {
		ids[c.ID] = struct{}{}
		names[c.FullName] = struct{}{}
		perSuit[c.Suit]++
	}

	assert.Len(t, ids, Size, "card ids must be unique")
	assert.Len(t, names, Size, "every suit/rank pair appears once")
	for _, suit := range Suits {
		assert.Equal(t, 10, perSuit[suit], suit)
	}
}

func TestGenerateNaming(t *testing.T) {
	cards := Generate()

	tests := []struct {
		index    int
		fullName string
		value    string
	}{
		{0, "1 di Coppe", "1"},
		{7, "J di Coppe", "Fante"},
		{18, "Q di Denari", "Regina"},
		{39, "K di Bastoni", "Re"},
	}
	for _, tt := range tests {
		t.Run(tt.fullName, func(t *testing.T) {
			assert.Equal(t, tt.fullName, cards[tt.index].FullName)
			assert.Equal(t, tt.value, cards[tt.index].Value)
		})
	}
}

func TestShuffleIsPermutation(t *testing.T) {
	s := NewSeededShuffler(42)
	cards := Generate()
	before := idsOf(cards)

	s.Shuffle(cards)
	after := idsOf(cards)

	sort.Strings(before)
	sort.Strings(after)
	assert.Equal(t, before, after)
}

func TestSeededShuffleIsDeterministic(t *testing.T) {
	a := Generate()
	b := make([]Card, len(a))
	copy(b, a)

	NewSeededShuffler(7).Shuffle(a)
	NewSeededShuffler(7).Shuffle(b)

	assert.Equal(t, idsOf(a), idsOf(b))
}

func TestBuildFreshIDs(t *testing.T) {
	s := NewSeededShuffler(1)
	first := idsOf(Build(s))
	second := idsOf(Build(s))

	seen := make(map[string]struct{})
	for _, id := range first {
		seen[id] = struct{}{}
	}
	for _, id := range second {
		_, dup := seen[id]
		assert.False(t, dup, "decks must not share card ids")
	}
}

func TestShufflerConcurrentUse(t *testing.T) {
	s := NewShuffler()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				cards := Build(s)
				if len(cards) != Size {
					t.Errorf("Expected %d cards, got %d", Size, len(cards))
				}
				_ = s.Intn(36)
			}
		}()
	}
	wg.Wait()
}

func idsOf(cards []Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.ID
	}
	return out
}
