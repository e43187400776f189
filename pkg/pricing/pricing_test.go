package pricing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogParses(t *testing.T) {
	t.Parallel()

	c := DefaultCatalog()
	if len(c.Regions) != 8 {
		t.Fatalf("regions = %d, want 8", len(c.Regions))
	}
	if c.DefaultRegion != AsiaHigh {
		t.Fatalf("default region = %q, want %q", c.DefaultRegion, AsiaHigh)
	}
}

func TestQuoteScenarioJapanFivePaxTenDays(t *testing.T) {
	t.Parallel()

	c := DefaultCatalog()
	q, known, err := c.QuoteDestination("Nhật Bản", 5, 10, Modifiers{})
	require.NoError(t, err)
	require.True(t, known)

	require.Equal(t, AsiaHigh, q.Region)
	require.Equal(t, 5, q.Tier.MinPax)
	require.True(t, q.DiscountApplied)
	require.Equal(t, Dollars(342), q.RatePerDay)
	require.Equal(t, Dollars(3420), q.PerPerson)
	require.Equal(t, Dollars(17100), q.Total)
}

func TestQuoteIsDeterministic(t *testing.T) {
	t.Parallel()

	c := DefaultCatalog()
	first, err := c.Quote(AsiaHigh, 5, 10, Modifiers{})
	require.NoError(t, err)
	second, err := c.Quote(AsiaHigh, 5, 10, Modifiers{})
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestLongDurationDiscountLowersRate(t *testing.T) {
	t.Parallel()

	c := DefaultCatalog()
	short, err := c.Quote(AsiaHigh, 5, 7, Modifiers{})
	require.NoError(t, err)
	long, err := c.Quote(AsiaHigh, 5, 8, Modifiers{})
	require.NoError(t, err)

	if short.DiscountApplied {
		t.Fatal("7 days should not be discounted")
	}
	if !long.DiscountApplied {
		t.Fatal("8 days should be discounted")
	}
	if long.PerPerson >= long.BaseRate.MulInt(long.Days) {
		t.Fatalf("per person = %s, want below undiscounted %s", long.PerPerson, long.BaseRate.MulInt(long.Days))
	}
}

func TestTierSelectionBoundaries(t *testing.T) {
	t.Parallel()

	c := DefaultCatalog()
	cases := []struct {
		pax     int
		wantMin int
	}{
		{pax: 1, wantMin: 3},
		{pax: 3, wantMin: 3},
		{pax: 4, wantMin: 3},
		{pax: 5, wantMin: 5},
		{pax: 6, wantMin: 5},
		{pax: 10, wantMin: 7},
		{pax: 16, wantMin: 11},
		{pax: 40, wantMin: 11},
	}
	for _, tc := range cases {
		q, err := c.Quote(AsiaLow, tc.pax, 3, Modifiers{})
		require.NoError(t, err)
		if q.Tier.MinPax != tc.wantMin {
			t.Fatalf("pax %d tier min = %d, want %d", tc.pax, q.Tier.MinPax, tc.wantMin)
		}
	}
}

func TestSelectTierPrefersNarrowestBand(t *testing.T) {
	t.Parallel()

	tiers := []Tier{
		{MinPax: 1, MaxPax: 10, BaseRate: Dollars(100)},
		{MinPax: 4, MaxPax: 5, BaseRate: Dollars(90)},
	}
	if got := selectTier(tiers, 5); got.MinPax != 4 {
		t.Fatalf("selectTier(5).MinPax = %d, want 4", got.MinPax)
	}
	if got := selectTier(tiers, 11); got.MaxPax != 10 {
		t.Fatalf("selectTier(11).MaxPax = %d, want 10", got.MaxPax)
	}
}

func TestModifiersComposeAdditively(t *testing.T) {
	t.Parallel()

	c := DefaultCatalog()
	q, err := c.Quote(AsiaHigh, 5, 5, Modifiers{NoMeal: true, GuideFromStart: true, UpgradeHotel: true})
	require.NoError(t, err)

	// 360 - 40 + 150/5 + 50
	require.Equal(t, Dollars(400), q.RatePerDay)
	require.Equal(t, Dollars(2000), q.PerPerson)
	require.Equal(t, Dollars(10000), q.Total)
}

func TestGuideFeeShareRoundsHalfUp(t *testing.T) {
	t.Parallel()

	tier := Tier{GuideFee: Dollars(100)}
	// 10000 cents / 3 = 3333.33 -> 3333
	if got := ModifierDelta(tier, 3, Modifiers{GuideFromStart: true}); got != Money(3333) {
		t.Fatalf("delta = %d, want 3333", got)
	}
	// 10000 / 8 = 1250
	if got := ModifierDelta(tier, 8, Modifiers{GuideFromStart: true}); got != Money(1250) {
		t.Fatalf("delta = %d, want 1250", got)
	}
}

func TestQuoteInsufficientData(t *testing.T) {
	t.Parallel()

	c := DefaultCatalog()
	for _, tc := range []struct {
		region Region
		pax    int
		days   int
	}{
		{"", 4, 5},
		{AsiaHigh, 0, 5},
		{AsiaHigh, 4, 0},
		{AsiaHigh, -1, 5},
	} {
		_, err := c.Quote(tc.region, tc.pax, tc.days, Modifiers{})
		if !errors.Is(err, ErrInsufficientData) {
			t.Fatalf("Quote(%q,%d,%d) err = %v, want ErrInsufficientData", tc.region, tc.pax, tc.days, err)
		}
	}
}

func TestResolveDestinations(t *testing.T) {
	t.Parallel()

	c := DefaultCatalog()
	cases := map[string]Region{
		"Nhật Bản":      AsiaHigh,
		"hàn quốc":      AsiaHigh,
		"Thái Lan":      AsiaLow,
		"Việt Nam":      AsiaLow,
		"PARIS":         WestEuropeOceania,
		"Thổ Nhĩ Kỳ":    EastEuropeMiddleEast,
		"anh quốc":      UK,
		"New York":      America,
		"Dubai":         MiddleEastAfricaMongolia,
		"Đài Loan":      TaiwanHKRussia,
		"uk":            UK,
	}
	for text, want := range cases {
		got, known := c.Resolve(text)
		if !known || got != want {
			t.Fatalf("Resolve(%q) = %q, %v; want %q, true", text, got, known, want)
		}
	}
}

func TestResolveAcceptsRegionID(t *testing.T) {
	t.Parallel()

	if got, known := DefaultCatalog().Resolve("taiwan_hk_russia"); !known || got != TaiwanHKRussia {
		t.Fatalf("Resolve(region id) = %q, %v", got, known)
	}
}

func TestResolveUnknownFallsBackToDefault(t *testing.T) {
	t.Parallel()

	c := DefaultCatalog()
	got, known := c.Resolve("Nam Cực")
	if known {
		t.Fatal("expected unknown destination")
	}
	if got != AsiaHigh {
		t.Fatalf("Resolve(unknown) = %q, want %q", got, AsiaHigh)
	}
}

func TestParseCatalogValidation(t *testing.T) {
	t.Parallel()

	_, err := ParseCatalog([]byte("regions: []"))
	require.Error(t, err)

	_, err = ParseCatalog([]byte(`
default_region: x
regions:
  - id: x
    tiers:
      - {min_pax: 5, max_pax: 2, base_rate: 10, long_days: 3}
`))
	require.ErrorContains(t, err, "invalid pax range")

	c, err := ParseCatalog([]byte(`
default_region: x
regions:
  - id: x
    label: Test
    tiers:
      - {min_pax: 1, max_pax: 4, base_rate: 99.99, long_discount_pct: 2.5, long_days: 3}
`))
	require.NoError(t, err)
	q, err := c.Quote("x", 2, 3, Modifiers{})
	require.NoError(t, err)
	// 9999 * 0.975 = 9749.025 -> 9749
	require.Equal(t, Money(9749), q.RatePerDay)
}

func TestIncludedServicesFollowModifiers(t *testing.T) {
	t.Parallel()

	c := DefaultCatalog()
	services := c.IncludedServices(Modifiers{NoMeal: true, NoESIM: true})
	require.Contains(t, services, breakfastOnlyService)
	require.NotContains(t, services, mealService)
	require.NotContains(t, services, esimService)
	require.Len(t, services, len(c.Services)-1)
}

func TestMoneyFormatting(t *testing.T) {
	t.Parallel()

	cases := []struct {
		m       Money
		str     string
		display string
	}{
		{Dollars(17100), "17100.00", "17,100"},
		{Money(34250), "342.50", "342.50"},
		{Dollars(-40), "-40.00", "-40"},
		{Money(5), "0.05", "0.05"},
		{Dollars(1234567), "1234567.00", "1,234,567"},
	}
	for _, tc := range cases {
		if got := tc.m.String(); got != tc.str {
			t.Fatalf("String(%d) = %q, want %q", tc.m, got, tc.str)
		}
		if got := tc.m.Display(); got != tc.display {
			t.Fatalf("Display(%d) = %q, want %q", tc.m, got, tc.display)
		}
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	if got := Normalize("  Tôi muốn đi NHẬT BẢN, 5 người!! "); got != "tôi muốn đi nhật bản 5 người" {
		t.Fatalf("Normalize = %q", got)
	}
}
