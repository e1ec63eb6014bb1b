// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var walkCmd = &cobra.Command{
	Use:   "walk <topic-id>",
	Short: "Resume the author walk of one known topic",
	Long: `Walk resumes pagination of a single topic from its last checkpoint. The
topic must already be stored, either from an earlier harvest or because a
harvested researcher referenced it. Topic ids are short catalog ids such as
T10028.`,
	Args: cobra.ExactArgs(1),
	RunE: runWalk,
}

func init() {
	rootCmd.AddCommand(walkCmd)
}

func runWalk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	h, err := newHarvester(cfg, os.Stdout)
	if err != nil {
		return err
	}
	defer h.Close()

	res, err := h.orchestrator.WalkTopic(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "\npages: %d, fetched: %d, rejected: %d, admitted: %d, dropped: %d\n",
		res.Pages, res.Fetched, res.Rejected, res.Admitted, res.Dropped)
	fmt.Fprintf(os.Stdout, "stopped: %s (session total %d)\n", res.Stop, h.admission.Session())
	if res.Err != nil {
		return fmt.Errorf("topic %s: %w", args[0], res.Err)
	}
	return nil
}
