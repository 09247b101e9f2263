// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package score

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/litwatch/pkg/types"
)

// DefaultProfile returns the built-in scoring profile: neutral keyword
// tiers, journal boosting enabled with the standard ladders, and a small
// high-impact target list.
func DefaultProfile() types.ScoringConfig {
	return types.ScoringConfig{
		KeywordTiers: map[string]types.KeywordTier{},
		Journal: types.JournalScoring{
			Enabled: true,
			MatchTypeBoost: map[string]float64{
				string(MatchExact):    3.0,
				string(MatchFamily):   2.0,
				string(MatchSpecific): 1.0,
			},
			KeywordCountBoost: map[string]float64{
				"5": 5.1, "4": 3.7, "3": 2.8, "2": 1.3, "1": 0.5,
			},
		},
		Targets: types.TargetJournals{
			ExactMatches: []string{
				"nature",
				"science",
				"cell",
				"the lancet",
				"new england journal of medicine",
				"jama",
			},
			FamilyMatches: []string{
				"nature ",
				"lancet ",
				"jama ",
			},
			SpecificJournals: []string{
				"neurology",
				"neuroimage",
				"brain",
				"alzheimer",
			},
		},
		JournalExclusions: []string{
			"case reports",
			"retracted",
		},
	}
}

// LoadProfile reads a scoring profile from a YAML file. Missing journal
// ladders are filled from the default profile so a partial file stays
// usable. An empty path returns the default profile.
func LoadProfile(path string) (types.ScoringConfig, error) {
	if path == "" {
		return DefaultProfile(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return types.ScoringConfig{}, fmt.Errorf("reading scoring profile: %w", err)
	}

	var cfg types.ScoringConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return types.ScoringConfig{}, fmt.Errorf("parsing scoring profile %s: %w", path, err)
	}

	def := DefaultProfile()
	if cfg.KeywordTiers == nil {
		cfg.KeywordTiers = map[string]types.KeywordTier{}
	}
	if len(cfg.Journal.MatchTypeBoost) == 0 {
		cfg.Journal.MatchTypeBoost = def.Journal.MatchTypeBoost
	}
	if len(cfg.Journal.KeywordCountBoost) == 0 {
		cfg.Journal.KeywordCountBoost = def.Journal.KeywordCountBoost
	}
	return cfg, nil
}
