package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var sessionsLimit int

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recorded tracking sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions, err := st.Sessions().List(sessionsLimit)
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}

		w := cmd.OutOrStdout()
		if len(sessions) == 0 {
			fmt.Fprintln(w, "No sessions recorded.")
			return nil
		}

		tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
		fmt.Fprintln(tw, "ID\tSOURCE\tSTARTED\tDURATION\tFRAMES\tTOUCHES")
		fmt.Fprintln(tw, "--\t------\t-------\t--------\t------\t-------")
		for _, s := range sessions {
			duration := "running"
			if s.EndedAt != nil {
				duration = s.EndedAt.Sub(s.StartedAt).Round(time.Second).String()
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n",
				s.ID, s.Source, s.StartedAt.Local().Format("2006-01-02 15:04"), duration, s.Frames, s.Touches)
		}
		return tw.Flush()
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events <session-id>",
	Short: "List the touch events of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := st.Sessions().Get(args[0])
		if err != nil {
			return fmt.Errorf("session %s: %w", args[0], err)
		}
		events, err := st.Events().ListBySession(session.ID)
		if err != nil {
			return fmt.Errorf("failed to list events: %w", err)
		}

		w := cmd.OutOrStdout()
		if len(events) == 0 {
			fmt.Fprintln(w, "No touches in this session.")
			return nil
		}

		tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
		fmt.Fprintln(tw, "STARTED\tDURATION\tFRAMES\tMIN DEPTH\tMAX DROP")
		for _, e := range events {
			duration := "open"
			if e.EndedAt != nil {
				duration = e.Duration().Round(time.Millisecond).String()
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f cm\t%.3f\n",
				e.StartedAt.Local().Format("15:04:05.000"), duration, e.Frames, e.MinDepthCM, e.MaxIntensityDrop)
		}
		return tw.Flush()
	},
}

func init() {
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", 20, "Maximum number of sessions (newest first)")
	sessionsCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(sessionsCmd)
}
