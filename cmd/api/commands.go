package main

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"

	"github.com/kdlab/kdlab-server/internal/config"
	"github.com/kdlab/kdlab-server/internal/logutil"
	"github.com/kdlab/kdlab-server/internal/metrics"
	"github.com/kdlab/kdlab-server/internal/server"
	"github.com/kdlab/kdlab-server/internal/users"
)

func serveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "users",
			Usage: "path to the users file (overrides USERS_FILE)",
		},
	}
}

func serveAction(c *cli.Context) error {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if path := c.String("users"); path != "" {
		cfg.UsersFile = path
	}

	logger := logutil.New(cfg.LogLevel, cfg.LogFormat)
	ctx := logutil.WithLogger(c.Context, logger)

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	if cfg.UsesDefaultSecret() {
		logger.Warn().Msg("SESSION_SECRET is the development placeholder; set a random value before deploying")
	}

	// 読み込みに失敗しても起動は継続する（全ログインが 401 になる）
	verifier := users.Load(cfg.UsersFile, logger)

	backend, err := setupSessions(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to set up session backend: %w", err)
	}
	defer backend.Close()

	router, err := server.NewRouter(cfg, server.Deps{
		Logger:   logger,
		Verifier: verifier,
		Sessions: backend,
		Metrics:  metrics.NewAuth(),
	})
	if err != nil {
		return err
	}

	logger.Info().
		Str("mode", cfg.GinMode).
		Str("session_backend", cfg.SessionBackend).
		Msgf("KDLab Server is running at %s:%s", cfg.URL, cfg.Port)
	return server.Serve(ctx, ":"+cfg.Port, router)
}

func checkUsersAction(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return cli.Exit("usage: kdlab-server check-users FILE", 2)
	}
	list, err := users.LoadStrict(path)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Fprintf(c.App.Writer, "%s: %d users\n", path, len(list))
	return nil
}
