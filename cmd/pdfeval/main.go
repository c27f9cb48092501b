package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"PDFLibraryBot/internal/app"
	"PDFLibraryBot/internal/config"
	"PDFLibraryBot/internal/eval"
	"PDFLibraryBot/internal/logging"
)

// errSomeFailed makes the process exit with status 2.
var errSomeFailed = errors.New("some documents failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	logger := logging.NewWithWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	rootCmd := &cobra.Command{
		Use:           "pdfeval",
		Short:         "Batch evaluation of PDF analysis providers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(runCmd(cfg, logger))
	rootCmd.AddCommand(consistencyCmd(cfg, logger))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, errSomeFailed) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runCmd(cfg config.Config, logger *slog.Logger) *cobra.Command {
	var (
		inputs      []string
		outDir      string
		concurrency int
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Analyze every PDF found in the inputs and write one JSON record per file",
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs = append(inputs, args...)
			if len(inputs) == 0 {
				return errors.New("no inputs: pass --input or file arguments")
			}

			files, err := eval.CollectPDFs(inputs)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return errors.New("no pdf files found")
			}

			runner := eval.NewRunner(eval.RunnerDeps{
				Extractor:   app.NewExtractor(cfg, logger),
				Analyzer:    app.NewRouter(cfg, logger),
				Concurrency: concurrency,
				Timeout:     timeout,
				OutputDir:   outDir,
				Logger:      logger.With("component", "eval"),
			})

			records, err := runner.Run(cmd.Context(), files)
			_, failed := eval.WriteSummary(cmd.OutOrStdout(), records)
			if err != nil {
				return err
			}
			if failed > 0 {
				return errSomeFailed
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&inputs, "input", nil, "PDF file or directory (repeatable)")
	cmd.Flags().StringVar(&outDir, "out", cfg.Eval.OutputDir, "directory for JSON records")
	cmd.Flags().IntVar(&concurrency, "concurrency", cfg.Eval.Concurrency, "documents analyzed in parallel")
	cmd.Flags().DurationVar(&timeout, "timeout", cfg.Eval.DocumentTimeout, "per-document timeout")
	return cmd
}

func consistencyCmd(cfg config.Config, logger *slog.Logger) *cobra.Command {
	var runs int

	cmd := &cobra.Command{
		Use:   "consistency <file>",
		Short: "Repeat the analysis of one PDF and report agreement between runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			router := app.NewRouter(cfg, logger)
			runner := eval.NewRunner(eval.RunnerDeps{
				Extractor: app.NewExtractor(cfg, logger),
				Analyzer:  router,
			})

			in, err := runner.Input(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			report, err := router.Consistency(cmd.Context(), in, runs)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}

	cmd.Flags().IntVar(&runs, "runs", cfg.Analysis.ConsistencyRuns, "number of repeated analyses")
	return cmd
}
