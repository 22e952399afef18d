package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

var (
	configPath string
	logLevel   string
)

func main() {
	app := cli.NewApp()
	app.Name = "backtester"
	app.Usage = "simulate buy/sell/hold signals against daily bars and report performance"
	app.EnableBashCompletion = true
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "path to a yaml/json/toml/env config file; BACKTEST_* environment variables override it",
			Destination: &configPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "override the configured log level (debug, info, warn, error)",
			Destination: &logLevel,
		},
	}
	app.Commands = []*cli.Command{
		runCommand,
		sweepCommand,
		strategiesCommand,
		configCommand,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
