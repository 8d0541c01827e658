// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/embysync/internal/audit"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		server  string
		mediaID string
		outcome string
		since   time.Duration
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show pushed user-data updates from the audit journal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			switch audit.Outcome(outcome) {
			case "", audit.OutcomeSuccess, audit.OutcomeFailure:
			default:
				return fmt.Errorf("--outcome must be %s or %s", audit.OutcomeSuccess, audit.OutcomeFailure)
			}
			j, err := openJournal(cfg.Audit)
			if err != nil {
				return err
			}
			if j == nil {
				return errors.New("the audit journal is disabled (audit.enabled)")
			}
			defer j.Close()

			filter := audit.QueryFilter{
				Server:  server,
				MediaID: mediaID,
				Outcome: audit.Outcome(outcome),
				Limit:   limit,
			}
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}
			entries, err := j.Query(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, entries)
			}
			printTable(cmd, []string{"Time", "Server", "Item", "Name", "Kind", "Outcome", "Change"}, historyRows(entries), nil)
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "Only entries for this server key")
	cmd.Flags().StringVar(&mediaID, "media-id", "", "Only entries for this item id")
	cmd.Flags().StringVar(&outcome, "outcome", "", "Only success or failure entries")
	cmd.Flags().DurationVar(&since, "since", 0, "Only entries newer than this (e.g. 24h)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum entries to show")
	return cmd
}

func historyRows(entries []audit.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		change := describeState(e.Before) + " -> " + describeState(e.After)
		if e.Error != "" {
			change = e.Error
		}
		rows = append(rows, []string{
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.Server, e.MediaID, e.Name, string(e.Kind), string(e.Outcome), change,
		})
	}
	return rows
}

func describeState(s audit.State) string {
	out := "unplayed"
	if s.Played {
		out = "played"
	}
	out += " x" + strconv.FormatUint(s.PlayCount, 10)
	if s.IsFavorite {
		out += " fav"
	}
	return out
}
