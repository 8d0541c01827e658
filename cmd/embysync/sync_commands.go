// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tomtom215/embysync/internal/catalog"
	"github.com/tomtom215/embysync/internal/config"
	"github.com/tomtom215/embysync/internal/media"
	intsync "github.com/tomtom215/embysync/internal/sync"
)

type listFlags struct {
	differences bool
	issues      bool
	providers   []string
	search      string
	limit       int
}

func (f *listFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.differences, "differences", false, "Only list records whose servers disagree")
	cmd.Flags().BoolVar(&f.issues, "issues", false, "Only list records with issues (missing on a server or lacking a provider id)")
	cmd.Flags().StringSliceVar(&f.providers, "missing-provider", nil, "Provider ids required by --issues (imdb, tvdb, tmdb, tvrage)")
	cmd.Flags().StringVar(&f.search, "search", "", "Only list records whose name contains this text")
	cmd.Flags().IntVar(&f.limit, "limit", 50, "Maximum rows to print (0 for all)")
}

// filter merges flags over the sync settings; flags only ever narrow.
func (f *listFlags) filter(cmd *cobra.Command, cfg *config.Config) (catalog.Filter, error) {
	s := cfg.SyncSettings()
	providers := s.MissingProvider
	if cmd.Flags().Changed("missing-provider") {
		providers = f.providers
	}
	mask, err := media.ParseProviderKinds(providers)
	if err != nil {
		return catalog.Filter{}, err
	}
	return catalog.Filter{
		OnlyDifferences: f.differences || s.OnlyShowDifferences,
		ShowIssues:      f.issues || s.ShowIssues,
		MissingProvider: mask,
		Servers:         serverKeys(cfg),
		Search:          f.search,
	}, nil
}

func serverKeys(cfg *config.Config) []string {
	servers := cfg.EnabledServers()
	keys := make([]string, len(servers))
	for i, s := range servers {
		keys[i] = s.Key
	}
	return keys
}

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var lf listFlags
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "List every server, merge the results and print the catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			filter, err := lf.filter(cmd, cfg)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, appOptions{progress: newProgress(cmd.Context(), *ctx.quietFlag), noAudit: true})
			if err != nil {
				return err
			}
			a.start(cmd.Context())
			defer a.close()

			rep, err := a.syncPass(cmd.Context())
			if err != nil {
				return err
			}
			entries := filter.Apply(a.orch.Engine().Snapshot())
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{"report": rep, "stats": a.orch.Engine().Stats(), "records": len(entries)})
			}
			printPassSummary(cmd, rep, a.orch.Engine().Stats())
			printRecords(cmd, entries, filter.Servers, lf.limit)
			return nil
		},
	}
	lf.register(cmd)
	return cmd
}

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var (
		selected string
		dryRun   bool
	)
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run a sync pass, then push the winning state to every out-of-date server",
		Long: `process runs a sync pass and pushes user data for every record that needs
updating. By default the most recently played state wins; with --server the
state on that server is copied to the others.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, appOptions{progress: newProgress(cmd.Context(), *ctx.quietFlag), noAudit: dryRun})
			if err != nil {
				return err
			}
			a.start(cmd.Context())
			defer a.close()

			passRep, err := a.syncPass(cmd.Context())
			if err != nil {
				return err
			}
			stats := a.orch.Engine().Stats()
			if dryRun {
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"report": passRep, "stats": stats})
				}
				printPassSummary(cmd, passRep, stats)
				entries := catalog.Filter{OnlyDifferences: true}.Apply(a.orch.Engine().Snapshot())
				printRecords(cmd, entries, serverKeys(cfg), 0)
				return nil
			}

			ch, err := a.orch.Process(cmd.Context(), selected)
			rep, err := wait(cmd.Context(), ch, err)
			if ctx.jsonOutput() {
				if jerr := writeJSON(cmd, rep); jerr != nil {
					return jerr
				}
				return err
			}
			if rep.Kind != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Pushed %d update(s), %d failed, in %s\n",
					rep.Pushed, rep.Failed, rep.Duration().Round(1e6))
				for _, e := range rep.Errors {
					fmt.Fprintln(cmd.OutOrStdout(), "  -", e)
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&selected, "server", "", "Copy this server's state instead of the newest")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only list the records that would be pushed")
	return cmd
}

func printPassSummary(cmd *cobra.Command, rep intsync.Report, stats catalog.Stats) {
	out := cmd.OutOrStdout()
	rows := make([][]string, 0, len(rep.Servers))
	for _, s := range rep.Servers {
		rows = append(rows, []string{s.Server, strconv.Itoa(s.Items), strconv.Itoa(s.Skipped), s.Error})
	}
	printTable(cmd, []string{"Server", "Items", "Skipped", "Error"}, rows, []columnAlignment{alignLeft, alignRight, alignRight, alignLeft})
	fmt.Fprintf(out, "%d records, %d on two or more servers, %d need updating, %d missing somewhere (%s)\n",
		stats.Records, stats.Syncable, stats.NeedsUpdating, stats.Missing, rep.Duration().Round(1e6))
}

func printRecords(cmd *cobra.Command, entries []catalog.Entry, servers []string, limit int) {
	if len(entries) == 0 {
		return
	}
	headers := append([]string{"#", "Name", "Type", "Status"}, servers...)
	aligns := []columnAlignment{alignRight}
	shown := entries
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	rows := make([][]string, 0, len(shown))
	for _, e := range shown {
		r := e.Record
		row := []string{strconv.FormatUint(uint64(e.Handle), 10), r.Name, r.Type, statusCell(r)}
		for _, s := range servers {
			row = append(row, stateCell(r.State(s)))
		}
		rows = append(rows, row)
	}
	printTable(cmd, headers, rows, aligns)
	if len(shown) < len(entries) {
		fmt.Fprintf(cmd.OutOrStdout(), "... %d more (use --limit 0 for all)\n", len(entries)-len(shown))
	}
}

func statusCell(r *media.Record) string {
	st := r.SyncStatus()
	if st != media.NeedsUpdating {
		return st.String()
	}
	return st.String() + " (" + r.DivergentFields().String() + ")"
}

func stateCell(s *media.ServerUserState) string {
	if !s.Valid() {
		return "-"
	}
	var parts []string
	if s.Played {
		parts = append(parts, "played")
	}
	if s.PlayCount > 0 {
		parts = append(parts, strconv.FormatUint(s.PlayCount, 10)+"x")
	}
	if s.PositionTicks > 0 {
		parts = append(parts, "@"+s.PositionString(media.FormatClock))
	}
	if s.IsFavorite {
		parts = append(parts, "fav")
	}
	if s.LastPlayed != nil {
		parts = append(parts, s.LastPlayed.Local().Format("2006-01-02"))
	}
	if len(parts) == 0 {
		return "unplayed"
	}
	return strings.Join(parts, " ")
}
