package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"SnapPoker/internal/game/evaluator"
	"SnapPoker/internal/game/table"
)

type EvalCmd struct {
	Cards []string `arg:"" help:"Cards such as As Td 9c (5 to 7 of them)"`
}

var (
	categoryStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	usedStyle     = lipgloss.NewStyle().Bold(true)
	unusedStyle   = lipgloss.NewStyle().Faint(true)
)

func (e *EvalCmd) Run() error {
	cards, err := table.ParseCards(strings.Join(e.Cards, " "))
	if err != nil {
		return err
	}
	best, err := evaluator.BestHand(cards)
	if err != nil {
		return err
	}
	fmt.Println(renderBest(cards, best))
	return nil
}

func renderBest(cards []table.Card, best evaluator.Best) string {
	used := make(map[int]bool, len(best.Indices))
	for _, i := range best.Indices {
		used[i] = true
	}
	parts := make([]string, len(cards))
	for i, c := range cards {
		if used[i] {
			parts[i] = usedStyle.Render(c.String())
		} else {
			parts[i] = unusedStyle.Render(c.String())
		}
	}
	return fmt.Sprintf("%s  %s  kickers=%v",
		categoryStyle.Render(evaluator.Label(best.Rank)),
		strings.Join(parts, " "),
		best.Rank.Kickers)
}
