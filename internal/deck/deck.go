package deck

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Size 一副意大利纸牌的张数
const Size = 40

// Suits 四种花色
var Suits = []string{"Coppe", "Denari", "Spade", "Bastoni"}

// Rank 牌面值和显示值
type Rank struct {
	Value   string
	Display string
}

// Ranks 每种花色十张牌，1-7 加 Fante / Regina / Re
var Ranks = []Rank{
	{"1", "1"},
	{"2", "2"},
	{"3", "3"},
	{"4", "4"},
	{"5", "5"},
	{"6", "6"},
	{"7", "7"},
	{"Fante", "J"},
	{"Regina", "Q"},
	{"Re", "K"},
}

// Card 一张牌，创建后不可变
type Card struct {
	ID       string `json:"id"`
	Suit     string `json:"suit"`
	Value    string `json:"value"`
	Display  string `json:"display"`
	FullName string `json:"fullName"`
}

// Shuffler 洗牌器，多个房间共享同一个随机源
type Shuffler struct {
	mu   sync.Mutex
	rand *rand.Rand
}

// NewShuffler 创建以当前时间为种子的洗牌器
func NewShuffler() *Shuffler {
	return NewSeededShuffler(time.Now().UnixNano())
}

// NewSeededShuffler 创建固定种子的洗牌器，用于测试复现
func NewSeededShuffler(seed int64) *Shuffler {
	return &Shuffler{
		rand: rand.New(rand.NewSource(seed)),
	}
}

// Shuffle 原地 Fisher-Yates 洗牌
func (s *Shuffler) Shuffle(cards []Card) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rand.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
}

// Intn 返回 [0,n) 的随机数，房间号生成复用同一个随机源
func (s *Shuffler) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.Intn(n)
}

// Generate 生成 40 张按花色排序的新牌，每张牌有新的 ID
func Generate() []Card {
	cards := make([]Card, 0, Size)
	for _, suit := range Suits {
		for _, rank := range Ranks {
			cards = append(cards, Card{
				ID:       uuid.NewString(),
				Suit:     suit,
				Value:    rank.Value,
				Display:  rank.Display,
				FullName: rank.Display + " di " + suit,
			})
		}
	}
	return cards
}

// Build 生成并洗好一副新牌
func Build(s *Shuffler) []Card {
	cards := Generate()
	s.Shuffle(cards)
	return cards
}
