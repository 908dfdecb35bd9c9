package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-vault-go/pkg/config"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/logger"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/node"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/persistence/badger"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/persistence/memory"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/persistence/redis"
)

const shutdownTimeout = 30 * time.Second

func main() {
	app := &cli.App{
		Name:  "vault-server",
		Usage: "Tamper-evident encrypted file store server",
		Description: `Stores signed, encrypted uploads and answers every read with a Merkle
inclusion proof against the current top hash.

The server never sees plaintext or passwords. Clients keep the top hash
they last accepted and use it to detect storage that was altered behind
their back.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   config.DefaultPort,
				Usage:   "HTTP server port",
				EnvVars: []string{config.EnvVaultPort},
			},
			&cli.StringFlag{
				Name:    "persistence-type",
				Value:   config.PersistenceTypeBadger.String(),
				Usage:   fmt.Sprintf("Blob store backend: %s", strings.Join(config.SupportedPersistenceTypes(), ", ")),
				EnvVars: []string{config.EnvVaultPersistenceType},
			},
			&cli.StringFlag{
				Name:    "data-path",
				Value:   "./vault-data",
				Usage:   "Directory for the badger blob store",
				EnvVars: []string{config.EnvVaultDataPath},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Value:   "localhost:6379",
				Usage:   "Redis address (host:port) for the redis blob store",
				EnvVars: []string{config.EnvVaultRedisAddress},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				EnvVars: []string{config.EnvVaultRedisPassword},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Usage:   "Redis database number (0-15)",
				EnvVars: []string{config.EnvVaultRedisDB},
			},
			&cli.Float64Flag{
				Name:    "rate-limit",
				Usage:   "Requests per second accepted across all clients (0 disables)",
				EnvVars: []string{config.EnvVaultRateLimit},
			},
			&cli.Int64Flag{
				Name:    "max-upload-bytes",
				Value:   config.DefaultMaxUploadBytes,
				Usage:   "Largest accepted upload body in bytes",
				EnvVars: []string{config.EnvVaultMaxUploadBytes},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvVaultVerbose},
			},
		},
		Action: runVaultServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runVaultServer(c *cli.Context) error {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	cfg := parseServerConfig(c)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := newPersistence(cfg, l)
	if err != nil {
		return fmt.Errorf("failed to open persistence: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			l.Sugar().Warnw("Failed to close persistence", "error", err)
		}
	}()

	n, err := node.NewNode(node.Config{
		Port:           cfg.Port,
		MaxUploadBytes: cfg.MaxUploadBytes,
		RateLimit:      cfg.RateLimit,
		Logger:         l,
	}, store)
	if err != nil {
		return fmt.Errorf("failed to create node: %w", err)
	}

	if cfg.Verbose {
		l.Sugar().Infow("Vault Server Configuration",
			"port", cfg.Port,
			"persistence_type", cfg.PersistenceType,
			"data_path", cfg.DataPath,
			"redis_address", cfg.RedisAddress,
			"rate_limit", cfg.RateLimit,
			"max_upload_bytes", cfg.MaxUploadBytes,
		)
	}

	if err := n.Start(); err != nil {
		return fmt.Errorf("failed to start node: %w", err)
	}

	l.Sugar().Infow("Vault Server running", "port", cfg.Port)
	l.Sugar().Infow("Available endpoints",
		"upload", "POST /upload/{name}",
		"read", "GET /read/{name}",
		"verify", "GET /verify",
		"health", "GET /healthz")

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	l.Sugar().Infow("Shutting down Vault Server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return n.Stop(shutdownCtx)
}

func parseServerConfig(c *cli.Context) *config.VaultServerConfig {
	return &config.VaultServerConfig{
		Port:            c.Int("port"),
		PersistenceType: config.PersistenceType(c.String("persistence-type")),
		DataPath:        c.String("data-path"),
		RedisAddress:    c.String("redis-address"),
		RedisPassword:   c.String("redis-password"),
		RedisDB:         c.Int("redis-db"),
		RateLimit:       c.Float64("rate-limit"),
		MaxUploadBytes:  c.Int64("max-upload-bytes"),
		Verbose:         c.Bool("verbose"),
	}
}

func newPersistence(cfg *config.VaultServerConfig, l *zap.Logger) (persistence.IBlobPersistence, error) {
	switch cfg.PersistenceType {
	case config.PersistenceTypeMemory:
		return memory.NewMemoryPersistence(), nil
	case config.PersistenceTypeBadger:
		store, err := badger.NewBadgerPersistence(cfg.DataPath, l)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.PersistenceTypeRedis:
		store, err := redis.NewRedisPersistence(&redis.RedisConfig{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, l)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s", cfg.PersistenceType)
	}
}
