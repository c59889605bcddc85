// Package app assembles the bot from configuration and runs it: database,
// schema catalog, settings store, command registry and dispatcher, the update
// service and the HTTP server, plus a background pruner for remembered
// update ids.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-chat-bot/internal/bot"
	"github.com/tbourn/go-chat-bot/internal/commands"
	"github.com/tbourn/go-chat-bot/internal/config"
	"github.com/tbourn/go-chat-bot/internal/domain"
	httpapi "github.com/tbourn/go-chat-bot/internal/http"
	"github.com/tbourn/go-chat-bot/internal/observability"
	"github.com/tbourn/go-chat-bot/internal/repo"
	"github.com/tbourn/go-chat-bot/internal/services"
	"github.com/tbourn/go-chat-bot/internal/target"
)

const (
	pruneEvery      = 10 * time.Minute
	shutdownTimeout = 10 * time.Second
)

// App is a fully wired bot instance.
type App struct {
	cfg        config.Config
	db         *gorm.DB
	engine     *gin.Engine
	dispatcher *bot.Dispatcher
	stopOTel   observability.ShutdownFunc
	now        func() time.Time
}

// New opens storage and wires every component. Call Close when done.
func New(ctx context.Context, cfg config.Config, version string) (*App, error) {
	stopOTel, err := observability.Setup(ctx, cfg.OTEL, observability.Build{Version: version, Instance: cfg.Bot.Alias})
	if err != nil {
		return nil, fmt.Errorf("otel: %w", err)
	}

	opts := []repo.OpenOption{repo.WithLogger(logger.Default.LogMode(logger.Silent))}
	if cfg.OTEL.Enabled {
		opts = append(opts, repo.WithTracing())
	}
	db, err := repo.OpenSQLite(cfg.DBPath, opts...)
	if err != nil {
		_ = stopOTel(ctx)
		return nil, fmt.Errorf("open database: %w", err)
	}
	a := &App{cfg: cfg, db: db, stopOTel: stopOTel, now: time.Now}
	if err := a.wire(ctx, version); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context, version string) error {
	cfg := a.cfg
	if err := repo.AutoMigrate(a.db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	global, err := repo.LoadSetting(ctx, a.db, domain.Setting{
		Alias:                      cfg.Bot.Alias,
		TelegramBotAPIKey:          cfg.Bot.APIKey,
		TelegramDefaultAdminUserID: cfg.Bot.DefaultAdminUserID,
	})
	if err != nil {
		return fmt.Errorf("load settings %q: %w", cfg.Bot.Alias, err)
	}

	catalog := repo.NewSchemaCatalog(a.db)
	settings := repo.NewSettingsStore(a.db, catalog)

	reg := bot.NewRegistry()
	if err := commands.RegisterAll(reg); err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	var limiter *bot.Limiter
	if cfg.Bot.CommandRPS > 0 {
		limiter = bot.NewLimiter(cfg.Bot.CommandRPS, cfg.Bot.CommandBurst)
	}
	a.dispatcher = bot.NewDispatcher(reg, bot.Deps{
		DB:       a.db,
		Settings: settings,
		Targets:  target.NewResolver(a.db),
		Global:   global,
	}, bot.Options{
		BotUsername:        cfg.Bot.Username,
		DeveloperIDs:       cfg.Bot.DeveloperIDs,
		RejectUnauthorized: cfg.Bot.RejectUnauthorized,
		RejectionText:      cfg.Bot.RejectionText,
		Limiter:            limiter,
	})

	gin.SetMode(cfg.GinMode)
	a.engine = gin.New()
	updates := services.NewUpdateService(a.db, a.dispatcher, settings, cfg.Bot.UpdateDedupTTL)
	httpapi.RegisterRoutes(a.engine, a.db, updates, cfg)

	log.Info().
		Str("alias", cfg.Bot.Alias).
		Str("bot", cfg.Bot.Username).
		Str("version", version).
		Int("commands", len(reg.Descriptors())).
		Bool("flood_control", limiter != nil).
		Msg("bot ready")
	return nil
}

// Handler returns the HTTP handler serving the webhook.
func (a *App) Handler() http.Handler { return a.engine }

// Dispatcher returns the command dispatcher.
func (a *App) Dispatcher() *bot.Dispatcher { return a.dispatcher }

// Run serves HTTP and prunes remembered updates until ctx is done, then
// shuts the server down gracefully.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           a.engine,
		ReadTimeout:       a.cfg.ReadTimeout,
		ReadHeaderTimeout: a.cfg.ReadHeaderTimeout,
		WriteTimeout:      a.cfg.WriteTimeout,
		IdleTimeout:       a.cfg.IdleTimeout,
		MaxHeaderBytes:    a.cfg.MaxHeaderBytes,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("webhook", a.cfg.APIBasePath+httpapi.WebhookPath).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down")
		return srv.Shutdown(sctx)
	})
	g.Go(func() error {
		a.pruneLoop(ctx, pruneEvery)
		return nil
	})
	return g.Wait()
}

// pruneLoop deletes expired update records every interval until ctx is done.
func (a *App) pruneLoop(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.prune(ctx)
		}
	}
}

func (a *App) prune(ctx context.Context) {
	n, err := repo.PruneUpdates(ctx, a.db, a.now().UTC())
	if err != nil {
		log.Error().Err(err).Msg("prune processed updates")
		return
	}
	if n > 0 {
		log.Debug().Int64("removed", n).Msg("pruned processed updates")
	}
}

// Close flushes traces and closes the database.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.stopOTel != nil {
		errs = append(errs, a.stopOTel(ctx))
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
