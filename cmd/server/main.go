// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/typerace/internal/auth"
	"github.com/jason-s-yu/typerace/internal/cache"
	"github.com/jason-s-yu/typerace/internal/config"
	"github.com/jason-s-yu/typerace/internal/database"
	"github.com/jason-s-yu/typerace/internal/game"
	"github.com/jason-s-yu/typerace/internal/handlers"
	"github.com/jason-s-yu/typerace/internal/lobby"
	"github.com/jason-s-yu/typerace/internal/race"
	"github.com/jason-s-yu/typerace/internal/registry"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("server exited")
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	pool, err := database.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		return err
	}

	issuer, err := auth.NewIssuer(cfg.TokenExpiry())
	if err != nil {
		return err
	}

	var sink race.ResultSink
	if cfg.RedisAddr != "" {
		rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		sink = cache.NewResultPublisher(rdb, cfg.ResultsQueue)
		logger.Infof("publishing race results to redis list %s", cfg.ResultsQueue)
	} else {
		logger.Info("REDIS_ADDR not set, race results will not be published")
	}

	lobbies := lobby.NewManager(database.NewRosterStore(pool), cfg.CollaboratorTimeout, logger.WithField("component", "lobby"))
	coord := race.NewCoordinator(race.Config{
		Countdown:    cfg.CountdownDuration,
		RaceDuration: cfg.RaceDuration,
		EndOnAbandon: cfg.EndOnAbandon,
		AbandonGrace: cfg.AbandonGrace,
	},
		lobbies,
		game.NewGameStore(cfg.WordCount, logger.WithField("component", "game")),
		registry.New(logger.WithField("component", "registry")),
		sink,
		logger.WithField("component", "race"),
	)

	srv := &handlers.Server{
		Coordinator:    coord,
		Lobbies:        lobbies,
		Users:          database.NewUsers(pool),
		Issuer:         issuer,
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
		SendBuffer:     cfg.SendBuffer,
	}
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Running on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := coord.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("race shutdown incomplete")
		}
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
