package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SourcesFile is the YAML document declaring adapters and source trust lists.
type SourcesFile struct {
	Adapters []AdapterConfig `yaml:"adapters"`
	Trust    TrustConfig     `yaml:"trust"`
}

// AdapterConfig declares one source adapter.
type AdapterConfig struct {
	Name               string        `yaml:"name"`
	Kind               string        `yaml:"kind"` // rss | html
	Tier               int           `yaml:"tier"`
	Timeout            time.Duration `yaml:"timeout"`
	Source             string        `yaml:"source"`
	MinRelevance       float64       `yaml:"min_relevance"`
	RequireEventSignal bool          `yaml:"require_event_signal"`
	Feeds              []FeedConfig  `yaml:"feeds"`
	Pages              []PageConfig  `yaml:"pages"`
	CacheTTL           time.Duration `yaml:"cache_ttl"`
}

// FeedConfig describes a single RSS or Atom feed.
type FeedConfig struct {
	URL       string   `yaml:"url"`
	Organizer string   `yaml:"organizer"`
	Location  string   `yaml:"location"`
	Tags      []string `yaml:"tags"`
}

// PageConfig describes a listing page scraped with CSS selectors.
type PageConfig struct {
	URL         string   `yaml:"url"`
	Organizer   string   `yaml:"organizer"`
	Item        string   `yaml:"item"`
	Title       string   `yaml:"title"`
	Link        string   `yaml:"link"`
	Date        string   `yaml:"date"`
	Location    string   `yaml:"location"`
	Description string   `yaml:"description"`
	Price       string   `yaml:"price"`
	Image       string   `yaml:"image"`
	Tags        []string `yaml:"tags"`
	MaxItems    int      `yaml:"max_items"`
}

// TrustConfig lists source names per trust tier.
type TrustConfig struct {
	Trusted      []string `yaml:"trusted"`
	ManualReview []string `yaml:"manual_review"`
	AutoReject   []string `yaml:"auto_reject"`
}

// DefaultTrust returns the built-in source trust lists.
func DefaultTrust() TrustConfig {
	return TrustConfig{
		Trusted: []string{
			"DIVA Magazine Events",
			"Eventbrite UK - LGBTQ+",
			"qxmagazine.com",
			"ukblackpride.org.uk",
			"QX Magazine Events",
			"stonewall.org.uk",
			"Consortium LGBT+",
			"community-submission",
		},
		ManualReview: []string{"n8n_automation", "research_agent"},
		AutoReject:   []string{"Web Search", "chrome-extension", "chrome_extension"},
	}
}

// LoadSources reads the sources file at path. A missing file yields no
// adapters and the default trust lists.
func LoadSources(path string) (SourcesFile, error) {
	out := SourcesFile{Trust: DefaultTrust()}
	if path == "" {
		return out, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return out, nil
		}
		return SourcesFile{}, fmt.Errorf("read sources file %s: %w", path, err)
	}

	return ParseSources(raw)
}

// ParseSources decodes and validates a sources document.
func ParseSources(raw []byte) (SourcesFile, error) {
	var file SourcesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return SourcesFile{}, fmt.Errorf("parse sources file: %w", err)
	}

	if isEmptyTrust(file.Trust) {
		file.Trust = DefaultTrust()
	}

	seen := make(map[string]struct{}, len(file.Adapters))
	for i := range file.Adapters {
		a := &file.Adapters[i]
		if a.Name == "" {
			return SourcesFile{}, fmt.Errorf("adapter %d: name is required", i)
		}
		if _, dup := seen[a.Name]; dup {
			return SourcesFile{}, fmt.Errorf("adapter %s: duplicate name", a.Name)
		}
		seen[a.Name] = struct{}{}

		switch a.Kind {
		case "rss":
			if len(a.Feeds) == 0 {
				return SourcesFile{}, fmt.Errorf("adapter %s: rss adapter needs at least one feed", a.Name)
			}
		case "html":
			if len(a.Pages) == 0 {
				return SourcesFile{}, fmt.Errorf("adapter %s: html adapter needs at least one page", a.Name)
			}
			for _, p := range a.Pages {
				if p.Item == "" || p.Title == "" {
					return SourcesFile{}, fmt.Errorf("adapter %s: page %s needs item and title selectors", a.Name, p.URL)
				}
			}
		default:
			return SourcesFile{}, fmt.Errorf("adapter %s: unsupported kind %q", a.Name, a.Kind)
		}

		if a.Tier < 1 {
			a.Tier = 1
		}
		if a.Timeout <= 0 {
			a.Timeout = 60 * time.Second
		}
		if a.Source == "" {
			a.Source = a.Name
		}
	}

	return file, nil
}

func isEmptyTrust(t TrustConfig) bool {
	return len(t.Trusted) == 0 && len(t.ManualReview) == 0 && len(t.AutoReject) == 0
}
