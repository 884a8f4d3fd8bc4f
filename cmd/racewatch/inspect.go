package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/albapepper/racewatch/internal/config"
	"github.com/albapepper/racewatch/internal/notifications"
	"github.com/albapepper/racewatch/internal/race"
)

// --------------------------------------------------------------------------
// Inspection commands
// --------------------------------------------------------------------------

func venuesCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "venues",
		Short: "List active venues for a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config) error {
				d, err := today(cfg, date)
				if err != nil {
					return err
				}
				a, err := newApp(ctx, cfg, false)
				if err != nil {
					return err
				}
				venues, err := a.acq.Venues(ctx, d)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME")
				for _, v := range venues {
					fmt.Fprintf(w, "%s\t%s\n", v.ID, v.Name)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Date as YYYYMMDD (default today)")
	return cmd
}

func racesCmd() *cobra.Command {
	var date, venue string
	cmd := &cobra.Command{
		Use:   "races",
		Short: "Print the parsed race schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config) error {
				d, err := today(cfg, date)
				if err != nil {
					return err
				}
				a, err := newApp(ctx, cfg, false)
				if err != nil {
					return err
				}

				var events []race.Event
				if venue != "" {
					events, err = a.acq.VenueSchedule(ctx, race.Venue{ID: venue, Name: race.UnknownVenueName}, d)
					if err != nil {
						return err
					}
				} else {
					result := a.acq.FetchAll(ctx, d)
					events = result.Events
					logger.Info("Schedule acquired", "summary", result.Summary())
				}
				return printEvents(cmd.OutOrStdout(), events)
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Date as YYYYMMDD (default today)")
	cmd.Flags().StringVar(&venue, "venue", "", "Venue code, e.g. 01 (default all venues)")
	return cmd
}

func printEvents(out io.Writer, events []race.Event) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VENUE\tNAME\tRACE\tDEADLINE")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%dR\t%s\n", e.VenueID, e.VenueName, e.Number, e.DeadlineTime)
	}
	return w.Flush()
}

func favoriteCmd() *cobra.Command {
	var (
		date   string
		venue  string
		number int
	)
	cmd := &cobra.Command{
		Use:   "favorite",
		Short: "Report whether entrant 1 is the win favorite",
		RunE: func(cmd *cobra.Command, args []string) error {
			if venue == "" || number < 1 {
				return fmt.Errorf("--venue and --race are required")
			}
			return run(func(ctx context.Context, cfg *config.Config) error {
				d, err := today(cfg, date)
				if err != nil {
					return err
				}
				a, err := newApp(ctx, cfg, false)
				if err != nil {
					return err
				}

				obs, err := a.odds.Observe(ctx, venue, number, d)
				if err != nil {
					logger.Warn("Odds unavailable", "venue_id", venue, "race", number, "error", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %dR %s entrants=%d entrant1_favorite=%s\n",
					venue, number, d, len(obs), obs.Entrant1Favorite())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Date as YYYYMMDD (default today)")
	cmd.Flags().StringVar(&venue, "venue", "", "Venue code, e.g. 01")
	cmd.Flags().IntVar(&number, "race", 0, "Race number")
	return cmd
}

func notifyTestCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "notify-test",
		Short: "Send a test notification through the configured channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config) error {
				sender := notifications.NewSender(cfg.DiscordWebhookURL, dryRun, logger)
				if !sender.Send(ctx, "racewatch test notification", notifications.DefaultTitle) {
					return fmt.Errorf("test notification via %s failed", sender.Name())
				}
				logger.Info("Test notification sent", "sender", sender.Name())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log the notification instead of sending it")
	return cmd
}
