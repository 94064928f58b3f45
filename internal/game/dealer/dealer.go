package dealer

import (
	"fmt"
	"math/rand"
	"time"

	"SnapPoker/internal/game/gameerr"
	"SnapPoker/internal/game/table"
)

// ErrInsufficientCards 牌堆剩余不足
var ErrInsufficientCards = gameerr.ErrInsufficientCards

// Fresh 按固定顺序返回 52 张牌（花色 ♣♦♥♠，点数 2-14）
func Fresh() []table.Card {
	deck := make([]table.Card, 0, 52)
	for s := table.Clubs; s <= table.Spades; s++ {
		for r := 2; r <= table.Ace; r++ {
			deck = append(deck, table.Card{Suit: s, Rank: r})
		}
	}
	return deck
}

// Shuffle 返回一份洗好的副本；相同 seed 得到相同顺序
func Shuffle(deck []table.Card, seed int64) []table.Card {
	out := make([]table.Card, len(deck))
	copy(out, deck)
	rnd := rand.New(rand.NewSource(seed))
	rnd.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Draw 从牌堆顶取 n 张，返回取出的牌和剩余牌堆
func Draw(deck []table.Card, n int) ([]table.Card, []table.Card, error) {
	if n < 0 || n > len(deck) {
		return nil, deck, fmt.Errorf("draw %d of %d: %w", n, len(deck), ErrInsufficientCards)
	}
	drawn := make([]table.Card, n)
	copy(drawn, deck[:n])
	rest := make([]table.Card, len(deck)-n)
	copy(rest, deck[n:])
	return drawn, rest, nil
}

// Dealer 只负责洗牌与发牌（无规则判断）
type Dealer struct {
	rnd *rand.Rand
}

func NewDealer(seed int64) *Dealer {
	return &Dealer{rnd: rand.New(rand.NewSource(seed))}
}

// NewRandomDealer 生产环境使用，按当前时间取种子
func NewRandomDealer() *Dealer {
	return NewDealer(time.Now().UnixNano())
}

// NewDeck 初始化一副牌并洗牌
func (d *Dealer) NewDeck() []table.Card {
	return Shuffle(Fresh(), d.rnd.Int63())
}

// Hand 一轮开局发出的牌
type Hand struct {
	Holes [2][]table.Card
	Flop  []table.Card
	Deck  []table.Card
}

// DealRound 新牌堆：两名玩家各 2 张底牌，再发 3 张翻牌
func (d *Dealer) DealRound() (Hand, error) {
	var h Hand
	deck := d.NewDeck()
	var err error
	for i := range h.Holes {
		if h.Holes[i], deck, err = Draw(deck, 2); err != nil {
			return Hand{}, err
		}
	}
	if h.Flop, deck, err = Draw(deck, 3); err != nil {
		return Hand{}, err
	}
	h.Deck = deck
	return h, nil
}
