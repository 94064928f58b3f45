package table

import (
	"fmt"
	"strconv"
	"strings"
)

// Card 定义 (suit 0-3 ♣♦♥♠, rank 2-14, 14 = Ace)
type Card struct {
	Suit int `json:"suit"`
	Rank int `json:"rank"`
}

const (
	Clubs = iota
	Diamonds
	Hearts
	Spades
)

const (
	Jack  = 11
	Queen = 12
	King  = 13
	Ace   = 14
)

var (
	suitSymbols = []string{"♣", "♦", "♥", "♠"}
	suitLetters = "cdhs"
	rankLetters = map[int]string{10: "T", Jack: "J", Queen: "Q", King: "K", Ace: "A"}
)

func (c Card) String() string {
	return fmtCard(c)
}

// Valid reports whether the card is one of the 52 real cards.
func (c Card) Valid() bool {
	return c.Suit >= Clubs && c.Suit <= Spades && c.Rank >= 2 && c.Rank <= Ace
}

func fmtCard(c Card) string {
	rankStr, ok := rankLetters[c.Rank]
	if !ok || c.Rank == 10 {
		rankStr = fmt.Sprintf("%d", c.Rank)
	}
	suitStr := "?"
	if c.Suit >= 0 && c.Suit < len(suitSymbols) {
		suitStr = suitSymbols[c.Suit]
	}
	return rankStr + suitStr
}

// ParseCard 解析 "As"、"Td"、"10h"、"2c" 形式的牌
func ParseCard(s string) (Card, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return Card{}, fmt.Errorf("invalid card %q", s)
	}
	rankPart, suitPart := strings.ToUpper(s[:len(s)-1]), strings.ToLower(s[len(s)-1:])

	suit := strings.Index(suitLetters, suitPart)
	if suit < 0 {
		return Card{}, fmt.Errorf("invalid suit in card %q", s)
	}

	rank := 0
	for r, letter := range rankLetters {
		if rankPart == letter {
			rank = r
		}
	}
	if rank == 0 {
		// 只接受纯数字 2..10，"+9"、"007"、"2x" 都不算
		n, err := strconv.Atoi(rankPart)
		if err != nil || !isDigits(rankPart) || rankPart[0] == '0' || n < 2 || n > 10 {
			return Card{}, fmt.Errorf("invalid rank in card %q", s)
		}
		rank = n
	}

	c := Card{Suit: suit, Rank: rank}
	if !c.Valid() {
		return Card{}, fmt.Errorf("invalid card %q", s)
	}
	return c, nil
}

// ParseCards 解析以空白分隔的多张牌，同一张牌出现两次视为错误
func ParseCards(s string) ([]Card, error) {
	fields := strings.Fields(s)
	out := make([]Card, 0, len(fields))
	seen := make(map[Card]bool, len(fields))
	for _, f := range fields {
		c, err := ParseCard(f)
		if err != nil {
			return nil, err
		}
		if seen[c] {
			return nil, fmt.Errorf("duplicate card %s", c)
		}
		seen[c] = true
		out = append(out, c)
	}
	return out, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// MustParseCards 用于测试
func MustParseCards(s string) []Card {
	cards, err := ParseCards(s)
	if err != nil {
		panic(err)
	}
	return cards
}
