// Package preview parses preview service flags and launches the service.
package preview

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	entrypoint "github.com/louisbranch/livepreview/internal/platform/cmd"
	server "github.com/louisbranch/livepreview/internal/services/preview/app"
	"github.com/louisbranch/livepreview/internal/services/preview/storage"
	"github.com/louisbranch/livepreview/internal/services/preview/storage/sqlite"
)

// Config holds preview command configuration.
type Config struct {
	HTTPAddr     string `env:"HTTP_ADDR" envDefault:"localhost:8095"`
	RootID       string `env:"ROOT_ID" envDefault:"root"`
	DBPath       string `env:"DB_PATH"`
	MaxBodyBytes int64  `env:"MAX_BODY_BYTES" envDefault:"4194304"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.RootID, "root-id", cfg.RootID, "Id of the element that receives patched markup")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite snapshot database path (empty disables persistence)")
	fs.Int64Var(&cfg.MaxBodyBytes, "max-body-bytes", cfg.MaxBodyBytes, "Largest accepted markup upload in bytes")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.RootID) == "" {
		return Config{}, fmt.Errorf("root id is required")
	}
	if cfg.MaxBodyBytes <= 0 {
		return Config{}, fmt.Errorf("max body bytes must be positive, got %d", cfg.MaxBodyBytes)
	}
	return cfg, nil
}

// Run starts the preview HTTP service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServicePreview, func(ctx context.Context) error {
		store, closeStore, err := openStore(cfg.DBPath)
		if err != nil {
			return err
		}
		defer closeStore()

		return server.Run(ctx, server.Config{
			HTTPAddr:     cfg.HTTPAddr,
			RootID:       cfg.RootID,
			MaxBodyBytes: cfg.MaxBodyBytes,
			Store:        store,
		})
	})
}

func openStore(path string) (storage.SnapshotStore, func(), error) {
	if strings.TrimSpace(path) == "" {
		return nil, func() {}, nil
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open snapshot store: %w", err)
	}
	return store, func() {
		if err := store.Close(); err != nil {
			log.Printf("close snapshot store: %v", err)
		}
	}, nil
}
