package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"news-archive-parser/internal/app"
	"news-archive-parser/internal/config"
)

const defaultConfigPath = "configs/config.yaml"

type cliOptions struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "news-archive",
		Short:         "Harvests news archive listings into a database",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath, "path to the YAML config file")

	root.AddCommand(
		newRunCommand(opts),
		newCrawlCommand(opts),
		newSourcesCommand(opts),
	)
	return root
}

// run: все включённые источники по расписанию из scheduler.*
func newRunCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Crawl every enabled source on the configured schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newServices(opts.configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, cancel := app.GracefulShutdown(rt.logger)
			defer cancel()

			orch := app.NewOrchestrator(rt.cfg, rt.logger, rt.transport, rt.repo)
			scheduler := app.NewScheduler(rt.cfg, rt.logger)

			return scheduler.Run(ctx, func(ctx context.Context) error {
				results, err := orch.RunAll(ctx)
				renderResults(cmd.OutOrStdout(), results)
				return err
			})
		},
	}
}

// crawl: один прогон, без расписания; можно указать источники
func newCrawlCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "crawl [source...]",
		Short: "Crawl the named sources once (all enabled sources when none are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newServices(opts.configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, cancel := app.GracefulShutdown(rt.logger)
			defer cancel()

			orch := app.NewOrchestrator(rt.cfg, rt.logger, rt.transport, rt.repo)
			results, err := orch.RunAll(ctx, args...)
			renderResults(cmd.OutOrStdout(), results)
			return err
		},
	}
}

func newSourcesCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List configured sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(opts.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			renderSources(cmd.OutOrStdout(), cfg.Sources)
			return nil
		},
	}
}

func renderSources(w io.Writer, sources []config.SourceConfig) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Strategy", "Enabled", "Start URL", "Fields"})

	for _, src := range sources {
		start := src.OffsetAJAX.StartURL
		if src.Strategy == config.StrategySequential {
			start = src.Sequential.BaseURL + src.Sequential.PagePath
		}
		t.AppendRow(table.Row{src.Name, src.Strategy, src.Enabled, start, len(src.Fields)})
	}
	t.Render()
}

func renderResults(w io.Writer, results []app.ChainResult) {
	if len(results) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Source", "Requests", "Records", "Saved", "Stored", "Stopped", "Error"})

	for _, res := range results {
		requests, records, reason := 0, 0, ""
		if res.Stats != nil {
			requests, records, reason = res.Stats.Requests, res.Stats.Records, res.Stats.StoppedReason
		}
		errText := ""
		if res.Err != nil {
			errText = res.Err.Error()
		}
		stored := "-"
		if res.Stored >= 0 {
			stored = strconv.Itoa(res.Stored)
		}
		t.AppendRow(table.Row{res.Source, requests, records, res.Saved, stored, reason, errText})
	}
	t.Render()
}
