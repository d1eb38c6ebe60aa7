// Command strokesbuild produces the stroke dictionary artifact embedded by the API. It resolves a
// character list through kanjiapi.dev, resumes from a cache file between runs, and merges the
// hiragana table plus local overrides.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Seezoo1225/naming-story/internal/platform/kanjiapi"
	"github.com/Seezoo1225/naming-story/internal/platform/observability"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(logger.Named("strokesbuild")).ExecuteContext(ctx); err != nil {
		logger.Error("build failed", zap.Error(err))
		os.Exit(1)
	}
}

type buildFlags struct {
	chars       string
	cache       string
	out         string
	overrides   string
	baseURL     string
	concurrency int
	batch       int
}

func newRootCommand(logger *zap.Logger) *cobra.Command {
	var flags buildFlags

	cmd := &cobra.Command{
		Use:   "strokesbuild",
		Short: "Build the stroke dictionary artifact",
		Long: `Resolves stroke counts for every character in --chars through kanjiapi.dev,
resuming from --cache, then merges the hiragana table and --overrides into --out.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := kanjiapi.New(
				kanjiapi.WithBaseURL(flags.baseURL),
				kanjiapi.WithConcurrency(flags.concurrency),
				kanjiapi.WithLogger(logger.Named("kanjiapi")),
			)
			b := &builder{
				lookup:    client,
				logger:    logger,
				batchSize: flags.batch,
			}
			return b.Run(cmd.Context(), buildPaths{
				Chars:     flags.chars,
				Cache:     flags.cache,
				Out:       flags.out,
				Overrides: flags.overrides,
			})
		},
	}

	cmd.Flags().StringVar(&flags.chars, "chars", "", "character list file (one or more characters per line, # comments)")
	cmd.Flags().StringVar(&flags.cache, "cache", "data/strokes.kanjiapi.cache.json", "resume cache file")
	cmd.Flags().StringVar(&flags.out, "out", "internal/strokes/data/strokes.json", "artifact output path")
	cmd.Flags().StringVar(&flags.overrides, "overrides", "", "YAML file with an overrides map of character to stroke count")
	cmd.Flags().StringVar(&flags.baseURL, "base-url", "https://kanjiapi.dev", "kanjiapi base URL")
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", 4, "parallel lookups per batch")
	cmd.Flags().IntVar(&flags.batch, "batch", 50, "characters resolved between cache saves")
	_ = cmd.MarkFlagRequired("chars")

	return cmd
}
