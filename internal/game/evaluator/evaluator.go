// Package evaluator ranks 5 to 7 card poker hands.
//
// A HandRank is a category plus kickers in descending significance; Compare orders two ranks by
// category, then kicker by kicker with missing kickers counting as 0. BestHand enumerates every
// 5-card subset of its input and reports which indices formed the winning hand.
package evaluator

import (
	"fmt"
	"sort"

	"SnapPoker/internal/game/gameerr"
	"SnapPoker/internal/game/table"
)

type Category int

const (
	HighCard Category = iota
	Pair
	TwoPair
	Trips
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
	RoyalFlush
)

var categoryNames = [...]string{
	"High Card", "Pair", "Two Pair", "Trips", "Straight",
	"Flush", "Full House", "Four of a Kind", "Straight Flush", "Royal Flush",
}

func (c Category) String() string {
	if c < HighCard || c > RoyalFlush {
		return "Hand"
	}
	return categoryNames[c]
}

type HandRank struct {
	Category Category `json:"category"`
	Kickers  []int    `json:"kickers"`
}

func (h HandRank) String() string {
	return fmt.Sprintf("%s %v", h.Category, h.Kickers)
}

// Best 最佳五张牌及其在输入中的下标（升序）
type Best struct {
	Rank    HandRank `json:"rank"`
	Indices []int    `json:"indices"`
}

// Compare returns >0 if a beats b, <0 if b beats a and 0 on a tie.
func Compare(a, b HandRank) int {
	if a.Category != b.Category {
		return int(a.Category) - int(b.Category)
	}
	n := max(len(a.Kickers), len(b.Kickers))
	for i := 0; i < n; i++ {
		av, bv := kicker(a.Kickers, i), kicker(b.Kickers, i)
		if av != bv {
			return av - bv
		}
	}
	return 0
}

func kicker(k []int, i int) int {
	if i < len(k) {
		return k[i]
	}
	return 0
}

func Label(h HandRank) string {
	return h.Category.String()
}

// BestHand evaluates 5, 6 or 7 cards. Ties between equal 5-card subsets keep the first one found in
// lexicographic index order.
func BestHand(cards []table.Card) (Best, error) {
	n := len(cards)
	if n < 5 {
		return Best{}, fmt.Errorf("evaluate %d cards: %w", n, gameerr.ErrInsufficientCards)
	}
	if n > 7 {
		return Best{}, fmt.Errorf("evaluate %d cards: %w", n, gameerr.ErrTooManyCards)
	}

	var best Best
	found := false
	var hand [5]table.Card
	for a := 0; a < n-4; a++ {
		for b := a + 1; b < n-3; b++ {
			for c := b + 1; c < n-2; c++ {
				for d := c + 1; d < n-1; d++ {
					for e := d + 1; e < n; e++ {
						hand = [5]table.Card{cards[a], cards[b], cards[c], cards[d], cards[e]}
						rank := Rank5(hand)
						if !found || Compare(rank, best.Rank) > 0 {
							best = Best{Rank: rank, Indices: []int{a, b, c, d, e}}
							found = true
						}
					}
				}
			}
		}
	}
	return best, nil
}

// Rank5 ranks exactly five cards.
func Rank5(hand [5]table.Card) HandRank {
	ranks := make([]int, 0, 5)
	counts := make(map[int]int, 5)
	suits := make(map[int]int, 4)
	for _, c := range hand {
		ranks = append(ranks, c.Rank)
		counts[c.Rank]++
		suits[c.Suit]++
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ranks)))

	flush := false
	for _, n := range suits {
		if n >= 5 {
			flush = true
		}
	}
	high := straightHigh(counts)

	if flush && high > 0 {
		if high == table.Ace {
			return HandRank{Category: RoyalFlush, Kickers: []int{table.Ace}}
		}
		return HandRank{Category: StraightFlush, Kickers: []int{high}}
	}

	if four := ofAKind(counts, 4, 0); four > 0 {
		return HandRank{Category: FourOfAKind, Kickers: []int{four, firstExcept(ranks, four)}}
	}

	three := ofAKind(counts, 3, 0)
	if pair := ofAKind(counts, 2, three); three > 0 && pair > 0 {
		return HandRank{Category: FullHouse, Kickers: []int{three, pair}}
	}

	if flush {
		return HandRank{Category: Flush, Kickers: ranks}
	}

	if high > 0 {
		return HandRank{Category: Straight, Kickers: []int{high}}
	}

	if three > 0 {
		return HandRank{Category: Trips, Kickers: append([]int{three}, without(ranks, three)[:2]...)}
	}

	pairs := pairsDescending(counts)
	if len(pairs) >= 2 {
		rest := without(without(ranks, pairs[0]), pairs[1])
		return HandRank{Category: TwoPair, Kickers: []int{pairs[0], pairs[1], rest[0]}}
	}
	if len(pairs) == 1 {
		return HandRank{Category: Pair, Kickers: append([]int{pairs[0]}, without(ranks, pairs[0])[:3]...)}
	}

	return HandRank{Category: HighCard, Kickers: ranks}
}

// straightHigh 返回顺子最大牌，A-2-3-4-5 记为 5；没有顺子返回 0
func straightHigh(counts map[int]int) int {
	for hi := table.Ace; hi >= 5; hi-- {
		ok := true
		for r := hi; r > hi-5; r-- {
			if counts[r] == 0 {
				ok = false
				break
			}
		}
		if ok {
			return hi
		}
	}
	if counts[table.Ace] > 0 && counts[2] > 0 && counts[3] > 0 && counts[4] > 0 && counts[5] > 0 {
		return 5
	}
	return 0
}

func ofAKind(counts map[int]int, n, exclude int) int {
	for r := table.Ace; r >= 2; r-- {
		if r != exclude && counts[r] == n {
			return r
		}
	}
	return 0
}

func pairsDescending(counts map[int]int) []int {
	var out []int
	for r := table.Ace; r >= 2; r-- {
		if counts[r] == 2 {
			out = append(out, r)
		}
	}
	return out
}

func without(ranks []int, r int) []int {
	out := make([]int, 0, len(ranks))
	for _, v := range ranks {
		if v != r {
			out = append(out, v)
		}
	}
	return out
}

func firstExcept(ranks []int, r int) int {
	rest := without(ranks, r)
	if len(rest) == 0 {
		return 0
	}
	return rest[0]
}
