// Command chatbot serves the Telegram webhook of a single bot instance.
package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-chat-bot/internal/app"
	"github.com/tbourn/go-chat-bot/internal/config"
	"github.com/tbourn/go-chat-bot/internal/sysutil"
)

var version = "dev"

func main() {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("read .env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	sysutil.ConfigureLogger(cfg.LogPretty, nil)
	sysutil.SetLogLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg)
	stop()
	if err != nil {
		log.Fatal().Err(err).Msg("chatbot")
	}
	log.Info().Msg("bye")
}

func run(ctx context.Context, cfg config.Config) error {
	a, err := app.New(ctx, cfg, version)
	if err != nil {
		return err
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Close(cctx); err != nil {
			log.Error().Err(err).Msg("close")
		}
	}()
	return a.Run(ctx)
}
