package dealer

import (
	"errors"
	"testing"

	"SnapPoker/internal/game/table"
)

// 工具：检查是否有重复牌
func hasDuplicates(cards []table.Card) bool {
	seen := make(map[table.Card]bool)
	for _, c := range cards {
		if seen[c] {
			return true
		}
		seen[c] = true
	}
	return false
}

// ✅ 测试牌组初始化
func TestFresh(t *testing.T) {
	deck := Fresh()

	if len(deck) != 52 {
		t.Fatalf("expected 52 cards, got %d", len(deck))
	}
	if hasDuplicates(deck) {
		t.Fatalf("deck should not contain duplicates")
	}
	if deck[0] != (table.Card{Suit: table.Clubs, Rank: 2}) {
		t.Fatalf("canonical order should start with 2♣, got %s", deck[0])
	}
	if deck[51] != (table.Card{Suit: table.Spades, Rank: table.Ace}) {
		t.Fatalf("canonical order should end with A♠, got %s", deck[51])
	}
	for _, c := range deck {
		if !c.Valid() {
			t.Fatalf("invalid card %v", c)
		}
	}
}

// ✅ 测试洗牌效果
func TestShuffleDeterministic(t *testing.T) {
	d1 := Shuffle(Fresh(), 42)
	d2 := Shuffle(Fresh(), 42)

	// 因为种子相同，所以序列应相同
	for i := range d1 {
		if d1[i] != d2[i] {
			t.Fatalf("expected identical decks for same seed")
		}
	}

	// 新种子应生成不同序列
	d3 := Shuffle(Fresh(), 99)
	diff := false
	for i := range d1 {
		if d1[i] != d3[i] {
			diff = true
			break
		}
	}
	if !diff {
		t.Fatalf("expected deck with different seed to differ")
	}

	if hasDuplicates(d1) || len(d1) != 52 {
		t.Fatalf("shuffle must be a permutation")
	}
}

func TestShuffleDoesNotModifyInput(t *testing.T) {
	in := Fresh()
	_ = Shuffle(in, 7)
	if in[0] != (table.Card{Suit: table.Clubs, Rank: 2}) {
		t.Fatalf("input deck modified")
	}
}

func TestDraw(t *testing.T) {
	deck := Fresh()
	drawn, rest, err := Draw(deck, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(drawn) != 3 || len(rest) != 49 {
		t.Fatalf("expected 3 + 49, got %d + %d", len(drawn), len(rest))
	}
	if drawn[0] != deck[0] || rest[0] != deck[3] {
		t.Fatalf("draw must consume front to back")
	}
}

// 不允许静默截断
func TestDrawInsufficient(t *testing.T) {
	deck := Fresh()[:2]
	_, rest, err := Draw(deck, 3)
	if !errors.Is(err, ErrInsufficientCards) {
		t.Fatalf("expected ErrInsufficientCards, got %v", err)
	}
	if len(rest) != 2 {
		t.Fatalf("deck should be untouched on failure")
	}
}

// ✅ 测试开局发牌
func TestDealRound(t *testing.T) {
	d := NewDealer(1)
	h, err := d.DealRound()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.Holes[0]) != 2 || len(h.Holes[1]) != 2 || len(h.Flop) != 3 {
		t.Fatalf("expected 2+2+3 cards")
	}
	all := append(append(append([]table.Card{}, h.Holes[0]...), h.Holes[1]...), h.Flop...)
	all = append(all, h.Deck...)
	if len(all) != 52 || hasDuplicates(all) {
		t.Fatalf("dealt cards plus deck must be the full 52")
	}
	if len(h.Deck) != 52-7 {
		t.Fatalf("expected remaining deck 45, got %d", len(h.Deck))
	}
}

func TestDealRoundSameSeed(t *testing.T) {
	h1, _ := NewDealer(5).DealRound()
	h2, _ := NewDealer(5).DealRound()
	for i := range h1.Flop {
		if h1.Flop[i] != h2.Flop[i] {
			t.Fatalf("same seed should deal same flop")
		}
	}
}
