package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/manaforge/manaforge-client-go/internal/config"
	"github.com/manaforge/manaforge-client-go/internal/session"
	"github.com/manaforge/manaforge-client-go/internal/sign"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath = flag.String("config", "", "path to configuration file")
	player     = flag.String("player", "", "player account name")
	matchType  = flag.String("match-type", "ranked", "match type to queue for")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *player == "" {
		logger.Fatal("a player name is required (-player)")
	}

	logger.Info("starting Manaforge demo client",
		zap.String("version", version),
		zap.String("api_url", cfg.API.URL),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	// The static signer stands in for a real key holder in the demo.
	signer := sign.NewStaticSigner(*player, "demo-signature")

	sess, err := session.New(cfg, signer, nil, version, logger)
	if err != nil {
		logger.Fatal("failed to create session", zap.Error(err))
	}
	defer sess.Close()

	if err := sess.Start(ctx); err != nil {
		logger.Fatal("failed to start session", zap.Error(err))
	}

	p, err := sess.Login(ctx, *player)
	if err != nil {
		logger.Fatal("login failed", zap.Error(err))
	}
	logger.Info("logged in", zap.String("player", p.Name))

	m, err := sess.StartMatchmaking(ctx, *matchType)
	if err != nil {
		logger.Fatal("matchmaking failed", zap.Error(err))
	}
	logger.Info("queued for match", zap.String("match_id", m.ID))

	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Minute)
	defer waitCancel()

	matched, err := sess.WaitForMatch(waitCtx)
	if err != nil {
		logger.Fatal("no match found", zap.Error(err))
	}
	logger.Info("matched",
		zap.String("match_id", matched.ID),
		zap.String("opponent", matched.Opponent),
	)

	if err := sess.SubmitTeam(ctx, []string{"emberfang", "tidecaller", "stoneward"}, "demo-secret"); err != nil {
		logger.Fatal("team submission failed", zap.Error(err))
	}
	logger.Info("team submitted")

	result, err := sess.WaitForResult(waitCtx)
	if err != nil {
		logger.Fatal("no battle result", zap.Error(err))
	}
	logger.Info("battle resolved",
		zap.String("match_id", result.ID),
		zap.Stringer("status", result.Status),
	)

	sess.Logout()
	logger.Info("demo finished")
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
