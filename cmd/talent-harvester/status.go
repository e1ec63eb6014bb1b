// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/talent-harvester/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show topic checkpoints and recent runs",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().Int("runs", 5, "number of recent runs to show")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, err := store.Open(viper.GetString("database_path"))
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	total, err := st.CountProfiles(ctx)
	if err != nil {
		return err
	}
	topics, err := st.ListTopics(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TOPIC\tID\tADMITTED\tCURSOR\tLAST SYNC")
	fmt.Fprintln(w, "-----\t--\t--------\t------\t---------")
	for _, t := range topics {
		last := "never"
		if t.SyncStatus.LastSyncedAt != nil {
			last = t.SyncStatus.LastSyncedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", t.DisplayName, t.ExternalID,
			t.SyncStatus.AdmittedCount, shorten(t.SyncStatus.Cursor, 16), last)
	}
	w.Flush()
	fmt.Printf("\nResearchers: %d, topics: %d\n", total, len(topics))

	limit, _ := cmd.Flags().GetInt("runs")
	runs, err := st.RecentRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return nil
	}

	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tSTATUS\tADMITTED")
	fmt.Fprintln(w, "---\t-------\t------\t--------")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", shorten(r.ID, 8), r.StartedAt.Local().Format(time.DateTime), r.Status, r.Admitted)
	}
	return w.Flush()
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
