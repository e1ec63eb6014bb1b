// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/talent-harvester/internal/harvest"
	"github.com/pdiddy/talent-harvester/pkg/types"
)

var harvestCmd = &cobra.Command{
	Use:   "harvest [keywords...]",
	Short: "Discover topics from keywords and harvest their researchers",
	Long: `Harvest searches the catalog for topics matching each keyword, then walks
the authors of every matching topic until a cap is reached or the topic is
exhausted. Keywords come from the arguments or from --keywords, a YAML or
JSON list.

Topics already at the partition cap are skipped. Once the global or
session cap is reached no new topics are created and the run stops.`,
	RunE: runHarvest,
}

func init() {
	harvestCmd.Flags().String("keywords", "", "YAML or JSON file listing discovery keywords")
	harvestCmd.Flags().Int("workers", 1, "number of topics walked concurrently")
	harvestCmd.Flags().Duration("partition-delay", types.DefaultPartitionDelay, "pause between topics")

	bindFlags(harvestCmd.Flags(), map[string]string{
		"keywords_file":   "keywords",
		"workers":         "workers",
		"partition_delay": "partition-delay",
	})

	rootCmd.AddCommand(harvestCmd)
}

func runHarvest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	keywords := args
	if len(keywords) == 0 {
		if cfg.KeywordsFile == "" {
			return fmt.Errorf("provide keywords as arguments or with --keywords")
		}
		keywords, err = harvest.LoadKeywords(cfg.KeywordsFile)
		if err != nil {
			return err
		}
	}
	if len(keywords) == 0 {
		return fmt.Errorf("no keywords to harvest")
	}

	h, err := newHarvester(cfg, os.Stdout)
	if err != nil {
		return err
	}
	defer h.Close()

	fmt.Fprintf(os.Stdout, "caps: global %d, session %d, partition %d (0 = unlimited)\n",
		cfg.Caps.MaxGlobal, cfg.Caps.MaxSession, cfg.Caps.MaxPartition)

	summary, err := h.orchestrator.Run(cmd.Context(), keywords)
	if err != nil {
		return err
	}
	if summary.Stop != "" {
		fmt.Fprintf(os.Stdout, "stopped: %s\n", summary.Stop)
	}
	return nil
}
