package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/Flexing/internal/archive"
	"github.com/MikeSquared-Agency/Flexing/internal/audit"
	"github.com/MikeSquared-Agency/Flexing/internal/auth"
	"github.com/MikeSquared-Agency/Flexing/internal/migrations"
	"github.com/MikeSquared-Agency/Flexing/internal/recalc"
	"github.com/MikeSquared-Agency/Flexing/internal/report"
	"github.com/MikeSquared-Agency/Flexing/internal/scoring"
)

func newScoreCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score records offline",
		Long: `Reads one record or a JSON array of records from --file (or stdin)
and prints the score result for each. No config or database is needed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return scoreRecords(in, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with a record or an array of records (default stdin)")
	return cmd
}

func scoreRecords(in io.Reader, out io.Writer) error {
	data, err := io.ReadAll(bufio.NewReader(in))
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errors.New("no input")
	}

	if data[0] == '[' {
		var records []scoring.RecordInput
		if err := json.Unmarshal(data, &records); err != nil {
			return fmt.Errorf("parse records: %w", err)
		}
		results := make([]scoring.ScoreResult, 0, len(records))
		for _, r := range records {
			results = append(results, scoring.ScoreRecord(r))
		}
		return writeIndented(out, results)
	}

	var record scoring.RecordInput
	if err := json.Unmarshal(data, &record); err != nil {
		return fmt.Errorf("parse record: %w", err)
	}
	return writeIndented(out, scoring.ScoreRecord(record))
}

func newRecalculateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recalculate",
		Short: "Run one recalculation pass against the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger := opts.logger(cmd, cfg)
			ctx := cmd.Context()

			b, err := openBackends(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer b.Close()

			r := recalc.New(b.store, b.events, b.archive, nil, recalc.Options{
				Tolerance: cfg.Recalculation.Tolerance,
				BatchSize: cfg.Recalculation.BatchSize,
				Throttle:  cfg.RecalcThrottle(),
			}, logger)

			sum, runErr := r.RunTriggered(ctx, recalc.TriggerManual)
			if sum != nil {
				if err := writeIndented(cmd.OutOrStdout(), sum); err != nil {
					return err
				}
			}
			return runErr
		},
	}
}

func newAuditCommand(opts *rootOptions) *cobra.Command {
	var pdfPath string
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List high scorers whose stored score breaks a cap rule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger := opts.logger(cmd, cfg)
			ctx := cmd.Context()

			b, err := openBackends(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer b.Close()

			sum, err := audit.New(b.store, b.events, nil, cfg.Audit.Threshold, logger).Audit(ctx)
			if err != nil {
				return err
			}

			if pdfPath != "" {
				f, err := os.Create(pdfPath)
				if err != nil {
					return err
				}
				if err := report.WriteAuditPDF(f, sum); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d flagged of %d)\n", pdfPath, len(sum.Flagged), sum.Examined)
				return nil
			}
			return writeIndented(cmd.OutOrStdout(), sum)
		},
	}
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "write the audit as a PDF to this path")
	return cmd
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if err := migrations.Run(cfg.Database.URL); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newTokenCommand(opts *rootOptions) *cobra.Command {
	var (
		evaluator string
		name      string
		unit      string
		ttl       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an evaluator bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if cfg.Server.JWTSecret == "" {
				return errors.New("server.jwt_secret is not configured")
			}
			token, err := auth.GenerateToken(cfg.Server.JWTSecret, auth.Claims{
				EvaluatorID: evaluator,
				Name:        name,
				Unit:        unit,
			}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&evaluator, "evaluator", "", "evaluator id (required)")
	cmd.Flags().StringVar(&name, "name", "", "evaluator display name")
	cmd.Flags().StringVar(&unit, "unit", "", "evaluator work unit")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("evaluator")
	return cmd
}

func newArchiveCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect archived recalculation summaries",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show <s3-ref>",
		Short: "Print an archived summary, e.g. the archive_key of a recalculation run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if cfg.Archive.Bucket == "" {
				return errors.New("archive.bucket is not configured")
			}
			ar, err := archive.NewS3(cmd.Context(), archiveOptions(cfg))
			if err != nil {
				return err
			}
			var doc json.RawMessage
			if err := ar.GetJSON(cmd.Context(), args[0], &doc); err != nil {
				return err
			}
			return writeIndented(cmd.OutOrStdout(), doc)
		},
	})
	return cmd
}

func writeIndented(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
