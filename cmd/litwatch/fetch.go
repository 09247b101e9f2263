// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/litwatch/internal/archive"
	"github.com/pdiddy/litwatch/internal/fetch"
	"github.com/pdiddy/litwatch/internal/score"
	"github.com/pdiddy/litwatch/internal/sources"
	"github.com/pdiddy/litwatch/pkg/types"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch, score, and rank recent papers",
	Long: `Fetch queries the active bibliographic sources (PubMed, arXiv, bioRxiv,
medRxiv) for papers in the date window, scores each against the keyword
interest profile, and prints them ranked by relevance. A source that fails
contributes a warning, not a failure; the remaining sources' results are
still ranked and shown.`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().String("keywords", "", "interest keywords (comma-separated)")
	fetchCmd.Flags().Int("days-back", 7, "how many days back to search")
	fetchCmd.Flags().String("sources", "", "sources to query (comma-separated; default: all enabled in config)")
	fetchCmd.Flags().String("mode", "Standard", "search depth: Brief, Standard, or Extended")
	fetchCmd.Flags().Int("min-matches", 2, "minimum matched keywords to display a paper")
	fetchCmd.Flags().String("require", "", "only show papers matching one of these keywords (comma-separated)")
	fetchCmd.Flags().Int("limit", 50, "maximum papers to display (0 = all)")
	fetchCmd.Flags().Bool("json", false, "output results as JSON")
	fetchCmd.Flags().String("save", "", "save the run to a YAML result file")
	fetchCmd.Flags().String("profile", "", "scoring profile YAML file (default: built-in profile)")
	fetchCmd.Flags().Bool("archive", false, "add results to the local archive")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	keywords := splitList(mustString(flags.GetString("keywords")))
	if len(keywords) == 0 {
		return fmt.Errorf("no keywords: provide --keywords or set them in the scoring profile")
	}

	daysBack, _ := flags.GetInt("days-back")
	if daysBack <= 0 {
		daysBack = 7
	}
	now := time.Now().UTC()
	query := sources.Query{
		Keywords: keywords,
		From:     now.AddDate(0, 0, -daysBack),
		To:       now,
		Mode:     types.ParseSearchMode(mustString(flags.GetString("mode"))),
	}

	cfg := fetchConfigFromViper()
	if requested := splitList(mustString(flags.GetString("sources"))); len(requested) > 0 {
		cfg.Sources = map[string]bool{}
		for _, name := range requested {
			cfg.Sources[strings.ToLower(name)] = true
		}
	}

	profilePath, _ := flags.GetString("profile")
	scoring, err := score.LoadProfile(profilePath)
	if err != nil {
		return err
	}

	srcs, err := buildSources(cfg)
	if err != nil {
		return err
	}

	scorer := score.NewScorer()
	out := fetch.Run(cmd.Context(), query, srcs, scorer, scoring, cfg.ScoreWorkers, os.Stderr)

	if savePath, _ := flags.GetString("save"); savePath != "" {
		if err := fetch.WriteResultFile(savePath, query, activeNames(cfg.Sources), out); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Saved run to %s\n", savePath)
	}

	if doArchive, _ := flags.GetBool("archive"); doArchive {
		store, err := archive.NewStore(archiveConfigFromViper())
		if err != nil {
			return err
		}
		defer store.Close()
		summary, err := store.Add(cmd.Context(), out.Papers)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Archived %d new papers (%d already known)\n", summary.Added, summary.Skipped)
	}

	// Presentation-layer filtering, separate from scoring.
	minMatches, _ := flags.GetInt("min-matches")
	out.Papers = fetch.FilterMinMatched(out.Papers, minMatches)
	out.Papers = fetch.FilterMustHave(out.Papers, splitList(mustString(flags.GetString("require"))))
	if limit, _ := flags.GetInt("limit"); limit > 0 && len(out.Papers) > limit {
		out.Papers = out.Papers[:limit]
	}

	if asJSON, _ := flags.GetBool("json"); asJSON {
		return fetch.FormatJSON(out, os.Stdout)
	}
	fetch.FormatTable(out, os.Stdout)
	return nil
}

// fetchConfigFromViper assembles the fetch configuration from the config
// file, environment, and loaded secrets.
func fetchConfigFromViper() types.FetchConfig {
	cfg := types.FetchConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   viper.GetDuration("fetch.timeout"),
			UserAgent: viper.GetString("fetch.user_agent"),
		},
		Sources:      cast.ToStringMapBool(viper.Get("fetch.sources")),
		NCBIAPIKey:   secretDefault("ncbi-api-key", viper.GetString("fetch.ncbi_api_key")),
		ContactEmail: secretDefault("contact-email", viper.GetString("fetch.contact_email")),
		ScoreWorkers: viper.GetInt("fetch.score_workers"),
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "litwatch/" + version
	}
	if len(cfg.Sources) == 0 {
		cfg.Sources = map[string]bool{}
		for _, name := range types.SourceNames {
			cfg.Sources[name] = true
		}
	}
	return cfg
}

func archiveConfigFromViper() types.ArchiveConfig {
	cfg := types.ArchiveConfig{Dir: viper.GetString("archive.dir")}
	if cfg.Dir == "" {
		cfg.Dir = "archive"
	}
	return cfg
}

// buildSources instantiates one adapter per active source family.
func buildSources(cfg types.FetchConfig) ([]sources.Source, error) {
	client := &http.Client{Timeout: cfg.Timeout}
	var srcs []sources.Source

	if cfg.Sources[types.SourcePubMed] {
		s := sources.NewPubMed(client, cfg)
		s.Log = os.Stderr
		srcs = append(srcs, s)
	}
	if cfg.Sources[types.SourceArxiv] {
		s := sources.NewArxiv(client, cfg)
		s.Log = os.Stderr
		srcs = append(srcs, s)
	}
	var servers []string
	for _, server := range []string{types.SourceBiorxiv, types.SourceMedrxiv} {
		if cfg.Sources[server] {
			servers = append(servers, server)
		}
	}
	if len(servers) > 0 {
		s := sources.NewRxiv(client, cfg, servers...)
		s.Log = os.Stderr
		srcs = append(srcs, s)
	}

	if len(srcs) == 0 {
		return nil, fmt.Errorf("no active sources: enable at least one of %s", strings.Join(types.SourceNames, ", "))
	}
	return srcs, nil
}

func activeNames(enabled map[string]bool) []string {
	var names []string
	for _, name := range types.SourceNames {
		if enabled[name] {
			names = append(names, name)
		}
	}
	return names
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func mustString(s string, _ error) string { return s }
