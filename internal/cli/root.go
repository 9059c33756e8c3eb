// Package cli implements flexctl, the operator command line for the
// eligibility scoring service.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/Flexing/internal/archive"
	"github.com/MikeSquared-Agency/Flexing/internal/config"
	"github.com/MikeSquared-Agency/Flexing/internal/events"
	"github.com/MikeSquared-Agency/Flexing/internal/store"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

// NewRootCommand builds the flexctl command tree. Output goes to the
// command's configured writers so callers can capture it.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "flexctl",
		Short:         "Operate the Flexing eligibility scoring service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		newScoreCommand(),
		newRecalculateCommand(opts),
		newAuditCommand(opts),
		newMigrateCommand(opts),
		newTokenCommand(opts),
		newArchiveCommand(opts),
	)
	return root
}

func (o *rootOptions) load() (*config.Config, error) {
	return config.Load(o.configPath)
}

func (o *rootOptions) logger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	level := cfg.LogLevel()
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// backends holds the connections a batch command needs. Close releases them.
type backends struct {
	store   *store.PostgresStore
	events  events.Client
	archive archive.Archiver
}

func openBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backends, error) {
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database.url is required")
	}
	db, err := store.NewPostgresStore(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	b := &backends{store: db, events: events.Noop{}}

	if cfg.Events.URL != "" {
		nc, err := events.NewNATSClient(ctx, cfg.Events.URL, logger)
		if err != nil {
			logger.Warn("failed to connect to events, continuing without", "error", err)
		} else {
			b.events = nc
		}
	}

	if cfg.Archive.Bucket != "" {
		ar, err := archive.NewS3(ctx, archiveOptions(cfg))
		if err != nil {
			logger.Warn("failed to configure archive, continuing without", "error", err)
		} else {
			b.archive = ar
		}
	}
	return b, nil
}

func archiveOptions(cfg *config.Config) archive.Options {
	return archive.Options{
		Bucket:    cfg.Archive.Bucket,
		Endpoint:  cfg.Archive.Endpoint,
		Region:    cfg.Archive.Region,
		AccessKey: cfg.Archive.AccessKey,
		SecretKey: cfg.Archive.SecretKey,
	}
}

func (b *backends) Close() {
	b.events.Close()
	b.store.Close()
}
