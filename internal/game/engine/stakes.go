package engine

import "SnapPoker/internal/game/table"

// StakesCap = max(1, min(livesA, livesB))，每次改变筹码时按当前生命值重新计算
func StakesCap(t *table.Table) int {
	if len(t.Players) < 2 {
		return 1
	}
	return max(1, min(t.Players[0].Lives, t.Players[1].Lives))
}

// clampStakes 超过上限时截断而不是报错
func clampStakes(t *table.Table, candidate int) int {
	return min(candidate, StakesCap(t))
}

// loseLives 扣除生命值，最低为 0
func loseLives(p *table.Player, n int) {
	p.Lives = max(0, p.Lives-n)
}
