package scraper

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/maltedev/price-comparison-scraper/internal/models"
)

// Family selects the crawl strategy for a competitor.
type Family int

const (
	// FamilyGeneric sites render one page and load more on scroll.
	FamilyGeneric Family = iota
	// FamilyPaginated sites need explicit page numbers and may serve bot
	// challenges between pages.
	FamilyPaginated
)

func (f Family) String() string {
	switch f {
	case FamilyPaginated:
		return "paginated"
	default:
		return "generic"
	}
}

const defaultPageParam = "page"

// FamilyRule binds a set of hosts to the paginated strategy.
type FamilyRule struct {
	Name          string   `yaml:"name"`
	Hosts         []string `yaml:"hosts"`
	PageParam     string   `yaml:"page_param"`
	MaxPages      int      `yaml:"max_pages"`
	ResponseMatch []string `yaml:"response_match"`
}

// MatchesResponse reports whether an intercepted response URL may carry
// product JSON for this family.
func (r *FamilyRule) MatchesResponse(u string) bool {
	for _, m := range r.ResponseMatch {
		if strings.Contains(u, m) {
			return true
		}
	}
	return false
}

func (r *FamilyRule) matchesHost(host string) bool {
	host = strings.ToLower(host)
	for _, h := range r.Hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// SiteFamilies is the rule set consulted once per competitor.
type SiteFamilies struct {
	Rules           []FamilyRule `yaml:"families"`
	ChallengeTitles []string     `yaml:"challenge_titles"`
}

func DefaultSiteFamilies() *SiteFamilies {
	return &SiteFamilies{
		Rules: []FamilyRule{
			{
				Name:          "ikea",
				Hosts:         []string{"ikea.com"},
				PageParam:     "page",
				MaxPages:      20,
				ResponseMatch: []string{"search", "/api/"},
			},
			{
				Name:          "pepperfry",
				Hosts:         []string{"pepperfry.com"},
				PageParam:     "p",
				MaxPages:      20,
				ResponseMatch: []string{"/api/", "search"},
			},
		},
	}
}

// LoadSiteFamilies reads rules from a YAML file. Rules from the file come
// before the built-in ones so they win on overlapping hosts.
func LoadSiteFamilies(path string) (*SiteFamilies, error) {
	families := DefaultSiteFamilies()
	if path == "" {
		return families, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read site families file: %w", err)
	}

	var file SiteFamilies
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse site families file: %w", err)
	}

	for i, r := range file.Rules {
		if len(r.Hosts) == 0 {
			return nil, fmt.Errorf("site family %d (%s) has no hosts", i, r.Name)
		}
	}

	families.Rules = append(file.Rules, families.Rules...)
	families.ChallengeTitles = file.ChallengeTitles
	return families, nil
}

// Classify picks the strategy for cfg by the host of its base or search
// URL. It is the only place where site-specific behaviour is chosen.
func (s *SiteFamilies) Classify(cfg models.CompetitorConfig) (Family, *FamilyRule) {
	if s == nil {
		return FamilyGeneric, nil
	}

	for _, raw := range []string{cfg.BaseURL, cfg.SearchURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			continue
		}
		for i := range s.Rules {
			if s.Rules[i].matchesHost(u.Hostname()) {
				return FamilyPaginated, &s.Rules[i]
			}
		}
	}
	return FamilyGeneric, nil
}
