// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/tomtom215/embysync/internal/config"
	"github.com/tomtom215/embysync/internal/logging"
	intsync "github.com/tomtom215/embysync/internal/sync"
)

// Exit codes.
const (
	exitFailure  = 1
	exitConfig   = 2
	exitCanceled = 130
)

var errConfig = errors.New("configuration error")

func exitCode(err error) int {
	switch {
	case errors.Is(err, errConfig), errors.Is(err, config.ErrNotEnoughServers):
		return exitConfig
	case errors.Is(err, context.Canceled), errors.Is(err, errCanceled):
		return exitCanceled
	default:
		return exitFailure
	}
}

type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	jsonFlag     *bool
	quietFlag    *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	// load overrides config.LoadWithKoanf in tests.
	load func(path string) (*config.Config, error)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		load := c.load
		if load == nil {
			load = config.LoadWithKoanf
		}
		cfg, err := load(strings.TrimSpace(*c.configFlag))
		if err != nil {
			c.configErr = fmt.Errorf("%w: %w", errConfig, err)
			return
		}
		level := cfg.Logging.Level
		if *c.logLevelFlag != "" {
			level = *c.logLevelFlag
		}
		logging.Init(logging.Config{
			Level:     level,
			Format:    cfg.Logging.Format,
			Caller:    cfg.Logging.Caller,
			Timestamp: true,
		})
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool { return c.jsonFlag != nil && *c.jsonFlag }

func newRootCommand() *cobra.Command {
	return newRootCommandWith(nil)
}

func newRootCommandWith(load func(string) (*config.Config, error)) *cobra.Command {
	var (
		configFlag   string
		logLevelFlag string
		jsonFlag     bool
		quietFlag    bool
	)
	ctx := &commandContext{
		configFlag:   &configFlag,
		logLevelFlag: &logLevelFlag,
		jsonFlag:     &jsonFlag,
		quietFlag:    &quietFlag,
		load:         load,
	}

	rootCmd := &cobra.Command{
		Use:           "embysync",
		Short:         "Synchronize user data across Emby and Jellyfin servers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if logLevelFlag != "" && !logging.ValidLevel(logLevelFlag) {
				return fmt.Errorf("%w: unknown log level %q", errConfig, logLevelFlag)
			}
			if skipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	flags.StringVar(&logLevelFlag, "log-level", "", "Log level (trace, debug, info, warn, error)")
	flags.BoolVar(&jsonFlag, "json", false, "Print results as JSON")
	flags.BoolVarP(&quietFlag, "quiet", "q", false, "Disable progress bars")

	rootCmd.AddCommand(
		newSyncCommand(ctx),
		newProcessCommand(ctx),
		newStatusCommand(ctx),
		newTestCommand(ctx),
		newUsersCommand(ctx),
		newServeCommand(ctx),
		newCollectionsCommand(ctx),
		newHistoryCommand(ctx),
		newVersionCommand(),
	)
	return rootCmd
}

func skipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

// reportError turns a failed report into an error.
func reportError(rep intsync.Report) error {
	switch {
	case rep.Canceled:
		return errCanceled
	case !rep.OK && len(rep.Errors) > 0:
		return fmt.Errorf("%s failed: %s", rep.Kind, strings.Join(rep.Errors, "; "))
	case !rep.OK:
		return fmt.Errorf("%s failed", rep.Kind)
	}
	return nil
}

var errCanceled = errors.New("canceled")

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
