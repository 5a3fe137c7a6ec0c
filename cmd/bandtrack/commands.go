// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Pradervand/USA-BAND-TRACK/internal/logging"
	"github.com/Pradervand/USA-BAND-TRACK/internal/models"
	"github.com/Pradervand/USA-BAND-TRACK/internal/validation"
)

// errRunFailed signals a non-zero exit after the report has been printed.
var errRunFailed = errors.New("aggregation run failed")

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run [source]",
		Short: "Run every enabled source, or only the named one",
		Long: `Run fetches new events from every enabled source in order (Ticketmaster,
SeatGeek, Concerts-Metal), then purges events outside the retention window.
A failing source is reported and the next one still runs.

With a source argument (ticketmaster, seatgeek, concertsmetal or tm, sg, cm)
only that source runs and no purge happens.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			db, manager, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeDB(db)

			if len(args) == 1 {
				src, err := models.ParseSource(args[0])
				if err != nil {
					return err
				}
				res, err := manager.RunOne(ctx, src)
				if perr := printResult(a.out, res); perr != nil {
					return perr
				}
				if err != nil {
					return err
				}
				if res != nil && res.Failed() {
					return errRunFailed
				}
				return nil
			}

			report, err := manager.RunAll(ctx)
			if perr := printReport(a.out, report); perr != nil {
				return perr
			}
			if err != nil {
				return err
			}
			if report.Outcome() == "failed" {
				return errRunFailed
			}
			return nil
		},
	}
}

func newPreviewCmd(a *app) *cobra.Command {
	var summaryOnly bool
	cmd := &cobra.Command{
		Use:   "preview <source>",
		Short: "Fetch one source without writing to the store",
		Long: `Preview runs one source exactly as a real run would, but against an
in-memory overlay of the store. Events already stored are skipped; nothing new
is persisted. The events that would be added are printed, followed by a count
per state and genre.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := models.ParseSource(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			db, manager, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeDB(db)

			events, runErr := manager.Preview(ctx, src)
			if runErr != nil {
				logging.Warn().Err(runErr).Str("source", string(src)).Msg("Preview stopped early, showing partial results")
			}
			if !summaryOnly {
				if err := printEvents(a.out, events); err != nil {
					return err
				}
				fmt.Fprintln(a.out)
			}
			if err := printSummary(a.out, events); err != nil {
				return err
			}
			return runErr
		},
	}
	cmd.Flags().BoolVar(&summaryOnly, "summary", false, "print only the state and genre counts")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var state, source, genre string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print stored events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := buildFilter(state, source, genre)
			if err != nil {
				return err
			}

			db, _, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeDB(db)

			events, err := db.ListEvents(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printEvents(a.out, events)
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "two-letter state code")
	cmd.Flags().StringVar(&source, "source", "", "ticketmaster, seatgeek or concertsmetal")
	cmd.Flags().StringVar(&genre, "genre", "", "genre substring, case-insensitive")
	return cmd
}

// buildFilter normalizes and validates list flags.
func buildFilter(state, source, genre string) (models.EventFilter, error) {
	filter := models.EventFilter{
		State: strings.ToUpper(strings.TrimSpace(state)),
		Genre: strings.TrimSpace(genre),
	}
	if source != "" {
		src, err := models.ParseSource(source)
		if err != nil {
			return filter, err
		}
		filter.Source = src
	}
	if verr := validation.ValidateStruct(&filter); verr != nil {
		return filter, verr
	}
	return filter, nil
}

func newPurgeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete events dated outside the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, manager, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeDB(db)

			removed, err := manager.Purge(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "purged %d events outside %s\n", removed, manager.Window())
			return nil
		},
	}
}

// errResetUnconfirmed guards reset against a stray invocation.
var errResetUnconfirmed = errors.New("reset deletes every stored event; pass --yes to confirm")

func newResetCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every stored event, keeping the schema",
		Long: `Reset empties the event store so the next run fetches everything again.
The schema and migration history are kept. Requires --yes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errResetUnconfirmed
			}

			db, _, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeDB(db)

			removed, err := db.ResetEvents(cmd.Context())
			if err != nil {
				return err
			}
			logging.Info().Int64("removed", removed).Str("db_path", db.Path()).Msg("Event store reset")
			fmt.Fprintf(a.out, "removed %d events\n", removed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting every stored event")
	return cmd
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and print the migration history",
		Long: `Migrate opens the store, which creates missing tables and applies any
pending versioned migrations, then prints the schema version and history.
Migrations are additive; existing rows are never rewritten.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, _, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeDB(db)

			version, err := db.GetCurrentSchemaVersion(cmd.Context())
			if err != nil {
				return err
			}
			history, err := db.GetMigrationHistory(cmd.Context())
			if err != nil {
				return err
			}
			return printMigrations(a.out, version, history)
		},
	}
}
