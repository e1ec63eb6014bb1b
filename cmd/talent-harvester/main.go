// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the talent-harvester CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/talent-harvester/internal/secrets"
	"github.com/pdiddy/talent-harvester/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from .secrets/ and .env at startup.
var loadedSecrets map[string]string

// secretDefault returns fallback when set, else the loaded secret for key.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	return loadedSecrets[key]
}

var rootCmd = &cobra.Command{
	Use:   "talent-harvester",
	Short: "Harvest researcher profiles from OpenAlex into a local store",
	Long: `talent-harvester discovers OpenAlex topics from keywords, walks the authors
tagged with each topic page by page, and stores normalized researcher
profiles in SQLite. Progress is checkpointed per topic so an interrupted
run resumes where it stopped.

Admissions are bounded by a global cap on stored researchers, a per-run
session cap, and a per-topic partition cap.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.LoadAll(".secrets/", ".env")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default: ./talent-harvester.yaml or ~/.config/talent-harvester/config.yaml)")
	flags.String("db", types.DefaultDatabasePath, "SQLite database path")
	flags.Int("max-global", types.DefaultMaxGlobal, "cap on stored researchers across all runs (0 = unlimited)")
	flags.Int("max-session", types.DefaultMaxSession, "cap on researchers admitted in this run (0 = unlimited)")
	flags.Int("max-partition", types.DefaultMaxPartition, "cap on researchers credited to one topic (0 = unlimited)")
	flags.Duration("page-delay", types.DefaultPageDelay, "pause after each committed page")
	flags.Int("per-page", types.DefaultPerPage, "authors requested per page (max 200)")
	flags.Float64("rate", types.DefaultRequestRate, "maximum catalog requests per second")

	bindFlags(flags, map[string]string{
		"database_path":               "db",
		"caps.max_global":             "max-global",
		"caps.max_session":            "max-session",
		"caps.max_partition":          "max-partition",
		"page_delay":                  "page-delay",
		"catalog.per_page":            "per-page",
		"catalog.requests_per_second": "rate",
	})
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("talent-harvester")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "talent-harvester"))
		}
	}

	viper.SetEnvPrefix("TALENT_HARVESTER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
