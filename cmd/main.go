package main

import (
	"github.com/alecthomas/kong"
)

type CLI struct {
	Serve ServeCmd `cmd:"" default:"1" help:"Run the Snap Poker server"`
	Eval  EvalCmd  `cmd:"" help:"Evaluate 5 to 7 cards, e.g. 'As Kd Qh Jc Ts 2d 3c'"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("snappoker"),
		kong.Description("Heads-up Snap Poker server"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
