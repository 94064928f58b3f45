package engine

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SnapPoker/internal/game/evaluator"
	"SnapPoker/internal/game/table"
)

func playerView(v View, id string) PlayerView {
	for _, p := range v.Players {
		if p.ID == id {
			return p
		}
	}
	return PlayerView{}
}

func TestViewHidesOpponentHole(t *testing.T) {
	tb, _ := newMatch(t)
	v := ViewFor(tb, "A", t0)

	assert.Equal(t, tb.Player("A").Hole, playerView(v, "A").Hole)
	assert.Nil(t, playerView(v, "B").Hole)
	assert.Equal(t, 10, v.StakesCap)

	raw, err := json.Marshal(v)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "deck")
}

func TestViewHandLabel(t *testing.T) {
	tb, _ := newMatch(t)
	rig(tb, "As Ks", "Qd Qc", "Ah Kd 2c 2d 7s")

	v := ViewFor(tb, "A", t0)
	require.NotNil(t, v.Hand)
	assert.Equal(t, "Two Pair", v.Hand.Label)
	assert.Equal(t, evaluator.TwoPair, v.Hand.Rank.Category)
	assert.Len(t, v.Hand.Indices, 5)
}

func TestViewShowdownRevealWaitsForDelay(t *testing.T) {
	tb, env := newMatch(t)
	rig(tb, "As Ks", "Qd Qc", "Ah Kd 2c 2d 7s")
	checkThrough(t, tb, env)

	// 赢家 A 的牌在 RevealAt 之前对 B 不可见
	assert.Nil(t, playerView(ViewFor(tb, "B", t0.Add(time.Second)), "A").Hole)

	v := ViewFor(tb, "B", t0.Add(2*time.Second))
	assert.Equal(t, tb.Player("A").Hole, playerView(v, "A").Hole)
	assert.True(t, playerView(v, "A").Revealed)

	// 输家未选择前不可见
	assert.Nil(t, playerView(ViewFor(tb, "A", t0.Add(3*time.Second)), "B").Hole)
}

func TestViewVoluntaryShowIsImmediate(t *testing.T) {
	tb, env := newMatch(t)
	rig(tb, "As Ks", "Qd Qc", "Ah Kd 2c 2d 7s")
	checkThrough(t, tb, env)

	act(t, tb, env, "B", IntentShow)
	assert.Equal(t, tb.Player("B").Hole, playerView(ViewFor(tb, "A", t0), "B").Hole)
}

func TestViewMuckedStaysHidden(t *testing.T) {
	tb, env := newMatch(t)
	act(t, tb, env, "B", IntentFold)
	act(t, tb, env, "B", IntentMuck)
	act(t, tb, env, "A", IntentShow)

	assert.Nil(t, playerView(ViewFor(tb, "A", t0.Add(5*time.Second)), "B").Hole)
	assert.Equal(t, tb.Player("A").Hole, playerView(ViewFor(tb, "B", t0), "A").Hole)
}

func TestViewTieRevealsBoth(t *testing.T) {
	tb, env := newMatch(t)
	rig(tb, "2c 3d", "2d 3c", "As Ks Qs Js Ts")
	checkThrough(t, tb, env)

	v := ViewFor(tb, "A", t0.Add(2*time.Second))
	assert.Equal(t, tb.Player("B").Hole, playerView(v, "B").Hole)
}

func TestViewIsACopy(t *testing.T) {
	tb, env := newMatch(t)
	act(t, tb, env, "B", IntentFold)

	v := ViewFor(tb, "A", t0)
	v.PostRound.Reveal["A"] = table.RevealMucked
	v.Community[0] = table.Card{}
	assert.Equal(t, table.RevealUndecided, tb.PostRound.Reveal["A"])
	assert.True(t, tb.Community[0].Valid())
}
