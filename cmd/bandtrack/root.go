// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Pradervand/USA-BAND-TRACK/internal/config"
	"github.com/Pradervand/USA-BAND-TRACK/internal/database"
	"github.com/Pradervand/USA-BAND-TRACK/internal/logging"
	"github.com/Pradervand/USA-BAND-TRACK/internal/sync"
)

// app carries state shared by every subcommand.
type app struct {
	configPath string
	cfg        *config.Config
	out        io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{out: os.Stdout}

	root := &cobra.Command{
		Use:   "bandtrack",
		Short: "Aggregate heavy-music concerts across the western US",
		Long: `bandtrack pulls upcoming metal, punk, goth and industrial shows from
Ticketmaster, SeatGeek and concerts-metal.com, classifies their genre, and
keeps them in a local event store limited to the configured date window.`,
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file path (default: config.yaml, then /etc/bandtrack/config.yaml)")

	root.AddCommand(
		newServeCmd(a),
		newRunCmd(a),
		newPreviewCmd(a),
		newListCmd(a),
		newPurgeCmd(a),
		newResetCmd(a),
		newMigrateCmd(a),
	)
	return root
}

// load reads configuration and initializes logging.
func (a *app) load(cmd *cobra.Command) error {
	if a.configPath != "" {
		if _, err := os.Stat(a.configPath); err != nil {
			return fmt.Errorf("config file: %w", err)
		}
		if err := os.Setenv(config.ConfigPathEnvVar, a.configPath); err != nil {
			return fmt.Errorf("set %s: %w", config.ConfigPathEnvVar, err)
		}
	}

	cfg, err := config.LoadWithKoanf()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.cfg = cfg

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})
	a.out = cmd.OutOrStdout()
	return nil
}

// openStore opens the database and builds a manager over it. The caller
// closes the returned database.
func (a *app) openStore() (*database.DB, *sync.Manager, error) {
	db, err := database.New(&a.cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, sync.NewManager(db, a.cfg), nil
}

func closeDB(db *database.DB) {
	if err := db.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing database")
	}
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
