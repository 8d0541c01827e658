// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tomtom215/embysync/internal/models"
	intsync "github.com/tomtom215/embysync/internal/sync"
)

func newTestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Check that every enabled server answers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, appOptions{noAudit: true})
			if err != nil {
				return err
			}
			a.start(cmd.Context())
			defer a.close()

			ch, err := a.orch.TestServers(cmd.Context())
			rep, err := wait(cmd.Context(), ch, err)
			if ctx.jsonOutput() {
				if jerr := writeJSON(cmd, rep.Tests); jerr != nil {
					return jerr
				}
				return err
			}
			rows := make([][]string, 0, len(rep.Tests))
			for _, t := range rep.Tests {
				rows = append(rows, []string{t.Server, yesNo(t.OK), t.Message})
			}
			printTable(cmd, []string{"Server", "OK", "Result"}, rows, nil)
			return err
		},
	}
}

func newUsersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List the users of every server and which one is synced",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, appOptions{noAudit: true})
			if err != nil {
				return err
			}
			a.start(cmd.Context())
			defer a.close()

			ch, err := a.orch.LoadUsers(cmd.Context())
			rep, err := wait(cmd.Context(), ch, err)
			if ctx.jsonOutput() {
				if jerr := writeJSON(cmd, rep.Users); jerr != nil {
					return jerr
				}
				return err
			}
			st, serr := a.orch.Status(cmd.Context())
			if serr != nil {
				return serr
			}
			printTable(cmd, []string{"Server", "User", "ID", "Admin", "Disabled", "Synced"},
				userRows(rep.Users, st.Users), nil)
			return err
		},
	}
}

func userRows(users map[string][]models.User, synced map[string]string) [][]string {
	servers := make([]string, 0, len(users))
	for s := range users {
		servers = append(servers, s)
	}
	sort.Strings(servers)

	var rows [][]string
	for _, s := range servers {
		for _, u := range users[s] {
			name := u.Name
			if u.ConnectUserName != "" {
				name += " (" + u.ConnectUserName + ")"
			}
			rows = append(rows, []string{
				s, name, u.ID,
				yesNo(u.Policy.IsAdministrator),
				yesNo(u.Policy.IsDisabled),
				yesNo(synced[s] == u.ID),
			})
		}
	}
	return rows
}

func printStatus(cmd *cobra.Command, st intsync.Status) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "State:    %s\n", st.State)
	fmt.Fprintf(out, "Pending:  %d\n", st.Pending)
	fmt.Fprintf(out, "Catalog:  %d records, %d syncable, %d need updating, %d missing\n",
		st.Catalog.Records, st.Catalog.Syncable, st.Catalog.NeedsUpdating, st.Catalog.Missing)
	if st.LastMerge != nil {
		fmt.Fprintf(out, "Merged:   %s\n", st.LastMerge.Local().Format("2006-01-02 15:04:05"))
	}
	if st.LastReport != nil {
		fmt.Fprintf(out, "Last job: %s ok=%s pushed=%d failed=%d\n",
			st.LastReport.Kind, yesNo(st.LastReport.OK), st.LastReport.Pushed, st.LastReport.Failed)
	}
	if len(st.InFlight) > 0 {
		var rows [][]string
		for typ, hosts := range st.InFlight {
			for host, n := range hosts {
				rows = append(rows, []string{typ, host, fmt.Sprint(n)})
			}
		}
		sort.Slice(rows, func(i, j int) bool { return strings.Join(rows[i], "\x00") < strings.Join(rows[j], "\x00") })
		printTable(cmd, []string{"Request", "Server", "In flight"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight})
	}
	for _, s := range st.Stuck {
		fmt.Fprintf(out, "Stuck:    %d %s request(s) on %s since %s\n", s.Count, s.Type, s.Server, s.Since.Local().Format("15:04:05"))
	}
}
