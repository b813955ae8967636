package titles

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Strategy holds the provider specific rules. A nil function is a no-op.
type Strategy struct {
	// CleanTitle strips provider noise before duplicate detection.
	CleanTitle func(title string) string
	// Season is consulted when the generic season patterns find nothing.
	Season func(title string) string
}

// Registry maps provider tags to strategies.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry returns a registry with the built-in provider rules.
func NewRegistry() *Registry {
	r := &Registry{strategies: make(map[string]Strategy)}
	r.Register("[Erai-raws]", Rule{CutAfter: "[Multiple Subtitle]", SeasonKeyword: "season"}.Strategy())
	return r
}

// Register adds or replaces the strategy of a provider.
func (r *Registry) Register(provider string, s Strategy) {
	r.strategies[provider] = s
}

// Lookup returns the strategy of provider, or the no-op strategy.
func (r *Registry) Lookup(provider string) Strategy {
	if r == nil {
		return Strategy{}
	}
	return r.strategies[provider]
}

// CleanTitle removes the quality tag, the torrent sequence, HEVC markers and
// provider noise from a release title.
func (r *Registry) CleanTitle(title, provider string) string {
	if q := Quality(title); q != "" {
		title = strings.ReplaceAll(title, q, "")
	}
	if s := Sequence(title); s != "" {
		title = strings.ReplaceAll(title, s, "")
	}
	title = strings.ReplaceAll(title, "[HEVC]", "")
	title = strings.ReplaceAll(title, " HEVC", "")

	if clean := r.Lookup(provider).CleanTitle; clean != nil {
		title = clean(title)
	}
	return title
}

// Season extracts the season of title using the strategy of provider.
func (r *Registry) Season(title, provider string) string {
	return Season(title, r.Lookup(provider))
}

// Rule is the declarative form of a Strategy.
type Rule struct {
	// CutAfter drops everything from this marker onwards.
	CutAfter string `yaml:"cut_after"`
	// SeasonKeyword is a word followed by the season value, e.g. "season 2".
	SeasonKeyword string `yaml:"season_keyword"`
}

// Strategy converts the rule into a Strategy.
func (rule Rule) Strategy() Strategy {
	var s Strategy

	if rule.CutAfter != "" {
		marker := rule.CutAfter
		s.CleanTitle = func(title string) string {
			return strings.SplitN(title, marker, 2)[0]
		}
	}

	if rule.SeasonKeyword != "" {
		keyword := strings.ToLower(rule.SeasonKeyword)
		s.Season = func(title string) string {
			words := strings.Split(strings.ToLower(title), " ")
			for i, w := range words {
				if w == keyword && i+1 < len(words) {
					return words[i+1]
				}
			}
			return ""
		}
	}

	return s
}

// RulesFile is the YAML layout of a provider rules file.
type RulesFile struct {
	Providers map[string]Rule `yaml:"providers"`
}

// LoadRules registers every rule found in the YAML file at path.
func (r *Registry) LoadRules(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to read provider rules %s", path)
	}

	var rf RulesFile
	if err := yaml.Unmarshal(b, &rf); err != nil {
		return 0, errors.Wrapf(err, "failed to unmarshal provider rules %s", path)
	}

	for provider, rule := range rf.Providers {
		r.Register(provider, rule.Strategy())
	}

	return len(rf.Providers), nil
}
