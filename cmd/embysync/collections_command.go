// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tomtom215/embysync/internal/collections"
	"github.com/tomtom215/embysync/internal/config"
	"github.com/tomtom215/embysync/internal/media"
)

func newCollectionsCommand(ctx *commandContext) *cobra.Command {
	var onlyMissing bool
	cmd := &cobra.Command{
		Use:   "collections FILE",
		Short: "Match a collection document against the merged catalog",
		Long: `collections reads a JSON document holding either {"collections": [...]}
or a bare {"movies": [...]} list, runs a sync pass and reports which movies
of each collection exist on the servers.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := collections.Load(args[0])
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, appOptions{progress: newProgress(cmd.Context(), *ctx.quietFlag), noAudit: true})
			if err != nil {
				return err
			}
			a.start(cmd.Context())
			defer a.close()

			if _, err := a.syncPass(cmd.Context()); err != nil {
				return err
			}
			results := doc.Match(a.orch.Engine().Snapshot())
			if ctx.jsonOutput() {
				return writeJSON(cmd, results)
			}
			printCollections(cmd, results, cfg.Search, onlyMissing)
			return nil
		},
	}
	cmd.Flags().BoolVar(&onlyMissing, "missing", false, "Only list movies that were not found")
	return cmd
}

func printCollections(cmd *cobra.Command, results []collections.MatchResult, engines []config.SearchEngine, onlyMissing bool) {
	out := cmd.OutOrStdout()
	for i := range results {
		res := &results[i]
		fmt.Fprintf(out, "%s: %d of %d found\n", res.Name, res.Found(), len(res.Movies))

		var rows [][]string
		for _, m := range res.Movies {
			if onlyMissing && m.Found {
				continue
			}
			year := ""
			if m.Movie.Year > 0 {
				year = strconv.Itoa(m.Movie.Year)
			}
			where := "missing"
			if m.Found {
				where = "#" + strconv.FormatUint(uint64(m.Handle), 10)
			} else if len(engines) > 0 {
				where = media.SearchURL(engines[0].URL, &media.Record{Name: m.Movie.Name, Type: "Movie", Kind: media.KindMovie, ProductionYear: m.Movie.Year})
			}
			rows = append(rows, []string{strconv.Itoa(m.Movie.Rank), m.Movie.Name, year, where})
		}
		printTable(cmd, []string{"Rank", "Name", "Year", "Record"}, rows,
			[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft})
	}
}
