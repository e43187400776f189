package pricing

import (
	"errors"
	"fmt"
	"math"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Region identifies a pricing region.
type Region string

const (
	AsiaHigh                 Region = "asia_high"
	AsiaLow                  Region = "asia_low"
	WestEuropeOceania        Region = "west_europe_oceania"
	EastEuropeMiddleEast     Region = "east_europe_middle_east"
	UK                       Region = "uk"
	America                  Region = "america"
	MiddleEastAfricaMongolia Region = "middle_east_africa_mongolia"
	TaiwanHKRussia           Region = "taiwan_hk_russia"
)

// Tier is one pax band of a region. Amounts are per person per day except
// GuideFee, which is per group per day.
type Tier struct {
	MinPax          int     `yaml:"min_pax"`
	MaxPax          int     `yaml:"max_pax"`
	BaseRate        Money   `yaml:"base_rate"`
	LongDiscountPct float64 `yaml:"long_discount_pct"`
	LongDays        int     `yaml:"long_days"`
	NoMealDelta     Money   `yaml:"no_meal_delta"`
	GuideFee        Money   `yaml:"guide_fee"`
	UpgradeHotelFee Money   `yaml:"upgrade_hotel_fee"`
	Note            string  `yaml:"note"`
}

func (t Tier) discountBasisPoints() int64 {
	return int64(math.Round(t.LongDiscountPct * 100))
}

func (t Tier) contains(pax int) bool {
	return pax >= t.MinPax && pax <= t.MaxPax
}

// Destination is a named place with its aliases. Ambiguous destinations
// have an alias that is also an ordinary word and need context to match.
type Destination struct {
	Name      string   `yaml:"name"`
	Aliases   []string `yaml:"aliases"`
	Ambiguous []string `yaml:"ambiguous,omitempty"`
}

type RegionTable struct {
	ID           Region        `yaml:"id"`
	Label        string        `yaml:"label"`
	Destinations []Destination `yaml:"destinations"`
	Tiers        []Tier        `yaml:"tiers"`
}

// Catalog is the immutable pricing reference data.
type Catalog struct {
	DefaultRegion Region        `yaml:"default_region"`
	Services      []string      `yaml:"services"`
	Regions       []RegionTable `yaml:"regions"`

	byID    map[Region]*RegionTable
	aliases []Alias
}

// Alias is one searchable name of a destination.
type Alias struct {
	Text        string
	Destination string
	Region      Region
	Ambiguous   bool
}

// LoadCatalog reads a YAML catalog from path.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pricing catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse pricing catalog: %w", err)
	}
	if err := c.init(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Marshal encodes the catalog as YAML.
func (c *Catalog) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func (c *Catalog) init() error {
	if len(c.Regions) == 0 {
		return errors.New("pricing catalog: no regions")
	}

	c.byID = make(map[Region]*RegionTable, len(c.Regions))
	c.aliases = c.aliases[:0]
	for i := range c.Regions {
		r := &c.Regions[i]
		if r.ID == "" {
			return fmt.Errorf("pricing catalog: region %d has no id", i)
		}
		if _, dup := c.byID[r.ID]; dup {
			return fmt.Errorf("pricing catalog: duplicate region %q", r.ID)
		}
		if len(r.Tiers) == 0 {
			return fmt.Errorf("pricing catalog: region %q has no tiers", r.ID)
		}
		for j, t := range r.Tiers {
			if t.MinPax <= 0 || t.MaxPax < t.MinPax {
				return fmt.Errorf("pricing catalog: region %q tier %d has invalid pax range %d-%d", r.ID, j, t.MinPax, t.MaxPax)
			}
			if t.BaseRate <= 0 {
				return fmt.Errorf("pricing catalog: region %q tier %d has non-positive base rate", r.ID, j)
			}
			if t.LongDays <= 0 {
				return fmt.Errorf("pricing catalog: region %q tier %d has no long_days threshold", r.ID, j)
			}
		}
		slices.SortFunc(r.Tiers, func(a, b Tier) int { return a.MinPax - b.MinPax })
		c.byID[r.ID] = r

		for _, d := range r.Destinations {
			for _, a := range d.Aliases {
				c.aliases = append(c.aliases, Alias{Text: Normalize(a), Destination: d.Name, Region: r.ID})
			}
			for _, a := range d.Ambiguous {
				c.aliases = append(c.aliases, Alias{Text: Normalize(a), Destination: d.Name, Region: r.ID, Ambiguous: true})
			}
		}
	}

	if c.DefaultRegion == "" {
		c.DefaultRegion = AsiaHigh
	}
	if _, ok := c.byID[c.DefaultRegion]; !ok {
		return fmt.Errorf("pricing catalog: default region %q not defined", c.DefaultRegion)
	}

	// Longest alias first so "hàn quốc" wins over "hàn".
	slices.SortStableFunc(c.aliases, func(a, b Alias) int {
		return len([]rune(b.Text)) - len([]rune(a.Text))
	})
	return nil
}

// Aliases returns every destination alias, longest first.
func (c *Catalog) Aliases() []Alias {
	return slices.Clone(c.aliases)
}

// Table returns the region table for id.
func (c *Catalog) Table(id Region) (*RegionTable, bool) {
	r, ok := c.byID[id]
	return r, ok
}

// Label returns the human label for a region, falling back to its id.
func (c *Catalog) Label(id Region) string {
	if r, ok := c.byID[id]; ok && r.Label != "" {
		return r.Label
	}
	return string(id)
}

// Resolve maps destination text to a region. Unknown or empty text resolves
// to the default region with known=false.
func (c *Catalog) Resolve(destination string) (region Region, known bool) {
	text := Normalize(destination)
	if text == "" {
		return c.DefaultRegion, false
	}

	if r, ok := c.byID[Region(strings.ReplaceAll(text, " ", "_"))]; ok {
		return r.ID, true
	}

	for _, a := range c.aliases {
		if containsPhrase(text, a.Text) {
			return a.Region, true
		}
	}
	return c.DefaultRegion, false
}

// selectTier picks the narrowest band containing pax. Above every band the
// highest band applies, below every band the lowest.
func selectTier(tiers []Tier, pax int) Tier {
	best := -1
	for i, t := range tiers {
		if !t.contains(pax) {
			continue
		}
		if best < 0 || t.MaxPax-t.MinPax < tiers[best].MaxPax-tiers[best].MinPax {
			best = i
		}
	}
	if best >= 0 {
		return tiers[best]
	}

	if pax < tiers[0].MinPax {
		return tiers[0]
	}

	// Above all bands, or in a gap: the closest band below.
	below := 0
	for i, t := range tiers {
		if t.MaxPax < pax && t.MaxPax >= tiers[below].MaxPax {
			below = i
		}
	}
	return tiers[below]
}
