// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/litwatch/internal/archive"
	"github.com/pdiddy/litwatch/internal/fetch"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Inspect and export the local paper archive",
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived papers",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := listOptionsFromFlags(cmd)
		if err != nil {
			return err
		}

		store, err := archive.NewStore(archiveConfigFromViper())
		if err != nil {
			return err
		}
		defer store.Close()

		papers, err := store.List(cmd.Context(), opts)
		if err != nil {
			return err
		}
		fetch.FormatTable(fetch.Output{Papers: papers}, os.Stdout)
		return nil
	},
}

var archiveExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the archive as JSON, CSV, or BibTeX",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := listOptionsFromFlags(cmd)
		if err != nil {
			return err
		}

		store, err := archive.NewStore(archiveConfigFromViper())
		if err != nil {
			return err
		}
		defer store.Close()

		format, _ := cmd.Flags().GetString("format")
		var path string
		switch format {
		case "json":
			path, err = store.ExportJSON(cmd.Context(), opts)
		case "csv":
			path, err = store.ExportCSV(cmd.Context(), opts)
		case "bibtex":
			path, err = store.ExportBibTeX(cmd.Context(), opts)
		default:
			return fmt.Errorf("unknown format %q: use json, csv, or bibtex", format)
		}
		if err != nil {
			return err
		}
		fmt.Println("Exported to", path)
		return nil
	},
}

func listOptionsFromFlags(cmd *cobra.Command) (archive.ListOptions, error) {
	var opts archive.ListOptions
	opts.Source, _ = cmd.Flags().GetString("source")
	opts.Limit, _ = cmd.Flags().GetInt("limit")
	if since, _ := cmd.Flags().GetString("since"); since != "" {
		t, err := time.Parse("2006-01-02", since)
		if err != nil {
			return opts, fmt.Errorf("invalid --since %q: %w", since, err)
		}
		opts.Since = t
	}
	return opts, nil
}

func init() {
	for _, c := range []*cobra.Command{archiveListCmd, archiveExportCmd} {
		c.Flags().String("source", "", "filter by source (pubmed, arxiv, biorxiv, medrxiv)")
		c.Flags().String("since", "", "only papers published on or after this date (YYYY-MM-DD)")
		c.Flags().Int("limit", 0, "maximum rows (0 = all)")
	}
	archiveExportCmd.Flags().String("format", "json", "export format: json, csv, or bibtex")

	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archiveExportCmd)
	rootCmd.AddCommand(archiveCmd)
}
