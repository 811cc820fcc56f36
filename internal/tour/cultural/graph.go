// Package cultural holds the region, sub-region, culture and country taxonomy used to
// relate artworks from different cultures.
package cultural

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	apperrors "museum-tour-workers/internal/common/errors"
)

//go:embed taxonomy.yaml
var taxonomyYAML []byte

// Relationship strengths returned by Graph.Relationship.
const (
	Unrelated        = 0.0
	Minimal          = 0.1
	SameRegion       = 0.5
	SameSubRegion    = 0.7
	SharedCountry    = 0.8
	IdenticalCulture = 1.0
)

type taxonomyFile struct {
	Regions []struct {
		Name       string `yaml:"name"`
		SubRegions []struct {
			Name     string              `yaml:"name"`
			Cultures map[string][]string `yaml:"cultures"`
		} `yaml:"subregions"`
	} `yaml:"regions"`
}

// Context locates a culture in the taxonomy.
type Context struct {
	Region    string `json:"region"`
	SubRegion string `json:"subRegion"`
}

type cultureEntry struct {
	context   Context
	countries map[string]struct{}
}

// Graph is an immutable, indexed view of the taxonomy. It is safe for concurrent use.
type Graph struct {
	cultures        map[string]cultureEntry
	regionCultures  map[string][]string
	regionCountries map[string][]string
	countryToRegion map[string]string
	regionNames     []string
}

// Load parses a taxonomy document. Culture names must be unique and every country must
// belong to exactly one region.
func Load(data []byte) (*Graph, error) {
	var f taxonomyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse cultural taxonomy: %w", err)
	}

	g := &Graph{
		cultures:        make(map[string]cultureEntry),
		regionCultures:  make(map[string][]string),
		regionCountries: make(map[string][]string),
		countryToRegion: make(map[string]string),
	}

	for _, region := range f.Regions {
		if region.Name == "" {
			return nil, fmt.Errorf("cultural taxonomy: region without a name")
		}
		if _, dup := g.regionCultures[region.Name]; dup {
			return nil, fmt.Errorf("cultural taxonomy: duplicate region %q", region.Name)
		}
		g.regionNames = append(g.regionNames, region.Name)
		g.regionCultures[region.Name] = nil

		countries := make(map[string]struct{})
		for _, sub := range region.SubRegions {
			for culture, list := range sub.Cultures {
				if _, dup := g.cultures[culture]; dup {
					return nil, fmt.Errorf("cultural taxonomy: culture %q listed twice", culture)
				}
				entry := cultureEntry{
					context:   Context{Region: region.Name, SubRegion: sub.Name},
					countries: make(map[string]struct{}, len(list)),
				}
				for _, country := range list {
					if owner, ok := g.countryToRegion[country]; ok && owner != region.Name {
						return nil, fmt.Errorf("cultural taxonomy: country %q in regions %q and %q",
							country, owner, region.Name)
					}
					g.countryToRegion[country] = region.Name
					entry.countries[country] = struct{}{}
					countries[country] = struct{}{}
				}
				g.cultures[culture] = entry
				g.regionCultures[region.Name] = append(g.regionCultures[region.Name], culture)
			}
		}
		sort.Strings(g.regionCultures[region.Name])
		g.regionCountries[region.Name] = sortedKeys(countries)
	}
	sort.Strings(g.regionNames)

	return g, nil
}

var defaultGraph = sync.OnceValues(func() (*Graph, error) {
	return Load(taxonomyYAML)
})

// Default returns the built-in taxonomy. It panics if the embedded document is invalid.
func Default() *Graph {
	g, err := defaultGraph()
	if err != nil {
		panic(err)
	}
	return g
}

func (g *Graph) lookup(culture string) (cultureEntry, bool) {
	if strings.TrimSpace(culture) == "" {
		return cultureEntry{}, false
	}
	entry, ok := g.cultures[culture]
	return entry, ok
}

// IsKnown reports whether the culture appears in the taxonomy. Names are case-sensitive.
func (g *Graph) IsKnown(culture string) bool {
	_, ok := g.lookup(culture)
	return ok
}

// Relationship scores how closely two cultures are related. It is symmetric and returns
// 0 when either culture is blank or unknown.
func (g *Graph) Relationship(a, b string) float64 {
	ea, okA := g.lookup(a)
	eb, okB := g.lookup(b)
	if !okA || !okB {
		return Unrelated
	}
	if a == b {
		return IdenticalCulture
	}
	for country := range ea.countries {
		if _, ok := eb.countries[country]; ok {
			return SharedCountry
		}
	}
	if ea.context.Region == eb.context.Region {
		if ea.context.SubRegion == eb.context.SubRegion {
			return SameSubRegion
		}
		return SameRegion
	}
	return Minimal
}

// CountriesForCulture returns the culture's countries, sorted. With includeRegional the
// result also holds every country of the culture's region.
func (g *Graph) CountriesForCulture(culture string, includeRegional bool) []string {
	entry, ok := g.lookup(culture)
	if !ok {
		return []string{}
	}
	if !includeRegional {
		return sortedKeys(entry.countries)
	}

	all := make(map[string]struct{}, len(entry.countries))
	for country := range entry.countries {
		all[country] = struct{}{}
		for _, c := range g.regionCountries[g.countryToRegion[country]] {
			all[c] = struct{}{}
		}
	}
	return sortedKeys(all)
}

// RegionForCountry returns the region a country belongs to.
func (g *Graph) RegionForCountry(country string) (string, bool) {
	region, ok := g.countryToRegion[country]
	return region, ok
}

func (g *Graph) CultureContext(culture string) (Context, bool) {
	entry, ok := g.lookup(culture)
	return entry.context, ok
}

// Regions returns the top-level region names, sorted.
func (g *Graph) Regions() []string {
	out := make([]string, len(g.regionNames))
	copy(out, g.regionNames)
	return out
}

// CulturesForRegion returns the sorted cultures of a region, or INVALID_REGION.
func (g *Graph) CulturesForRegion(region string) ([]string, error) {
	cultures, ok := g.regionCultures[region]
	if !ok {
		return nil, apperrors.NewInvalidRegionError(region)
	}
	out := make([]string, len(cultures))
	copy(out, cultures)
	return out, nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
