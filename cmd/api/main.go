// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:   "kdlab-server",
		Usage:  "Session based login server for KDLab",
		Action: serveAction,
		Flags:  serveFlags(),
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP server (default)",
				Flags:  serveFlags(),
				Action: serveAction,
			},
			{
				Name:      "check-users",
				Usage:     "Validate a users file and print the number of records",
				ArgsUsage: "FILE",
				Action:    checkUsersAction,
			},
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Error().Err(err).Msg("Application failed")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
