// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/talent-harvester/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored researcher profiles as YAML or JSON",
	Long: `Export writes stored researcher profiles ordered by slug. Use --tag to
select profiles carrying a search tag, for example "country:US" or
"topic:<id>".`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().String("format", "yaml", "output format: yaml or json")
	exportCmd.Flags().String("tag", "", "only export profiles with this search tag")
	exportCmd.Flags().Int("limit", 0, "maximum number of profiles (0 = all)")
	exportCmd.Flags().StringP("output", "o", "", "output file (default stdout)")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	tag, _ := cmd.Flags().GetString("tag")
	limit, _ := cmd.Flags().GetInt("limit")
	output, _ := cmd.Flags().GetString("output")
	if format != "yaml" && format != "json" {
		return fmt.Errorf("unknown format %q (want yaml or json)", format)
	}

	st, err := store.Open(viper.GetString("database_path"))
	if err != nil {
		return err
	}
	defer st.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", output, err)
		}
		defer f.Close()
		w = f
	}

	q := store.ProfileQuery{Tag: tag, Limit: limit}
	var n int
	if format == "json" {
		n, err = st.ExportJSON(cmd.Context(), w, q)
	} else {
		n, err = st.ExportYAML(cmd.Context(), w, q)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "exported %d profile(s)\n", n)
	return nil
}
