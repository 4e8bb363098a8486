package matcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNormalizer(now time.Time) *Normalizer {
	n := NewNormalizer(nil)
	n.now = func() time.Time { return now }
	return n
}

func TestNormalizeText(t *testing.T) {
	now := time.Date(2025, 11, 20, 12, 0, 0, 0, time.UTC)
	n := testNormalizer(now)

	cases := []struct {
		in   string
		want string
	}{
		{"NFL | 16 - 8:15PM Giants at Patriots", "giants at patriots"},
		{"(UK) (Sky+ 08) | NFL: Eagles @ Cowboys (2025-11-23)", "eagles at cowboys"},
		{"Spurs v Arsenal", "spurs versus arsenal"},
		{"UFC FN Prelims", "ufc fight night prelims"},
		{"NBA: Lakers vs. Celtics", "lakers versus celtics"},
		{"Atlético Madrid vs Real Sociedad", "atletico madrid versus real sociedad"},
		{"NCAAF | Alabama at Auburn", "alabama at auburn"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, n.Normalize(tc.in).Text)
		})
	}
}

func TestNormalizeExtractsDate(t *testing.T) {
	now := time.Date(2025, 11, 20, 12, 0, 0, 0, time.UTC)
	n := testNormalizer(now)

	got := n.Normalize("Eagles @ Cowboys (2025-11-23)")
	require.NotNil(t, got.Date)
	assert.Equal(t, time.Date(2025, 11, 23, 0, 0, 0, 0, time.UTC), *got.Date)

	// Year-less named month infers the nearest season year.
	got = n.Normalize("Giants at Patriots Nov 30")
	require.NotNil(t, got.Date)
	assert.Equal(t, 2025, got.Date.Year())
	assert.Equal(t, time.November, got.Date.Month())

	// January next year, seen from November.
	got = n.Normalize("Giants at Patriots Jan 5")
	require.NotNil(t, got.Date)
	assert.Equal(t, 2026, got.Date.Year())
}

func TestNormalizeExtractsClock(t *testing.T) {
	n := testNormalizer(time.Date(2025, 11, 20, 12, 0, 0, 0, time.UTC))

	got := n.Normalize("NFL | 16 - 8:15PM Giants at Patriots")
	require.NotNil(t, got.Clock)
	assert.Equal(t, 20, got.Clock.Hour)
	assert.Equal(t, 15, got.Clock.Minute)
	assert.Equal(t, "giants at patriots", got.Text)

	got = n.Normalize("20:15 Bayern vs Dortmund")
	require.NotNil(t, got.Clock)
	assert.Equal(t, 20, got.Clock.Hour)

	got = n.Normalize("12:05AM Dodgers at Padres")
	require.NotNil(t, got.Clock)
	assert.Equal(t, 0, got.Clock.Hour)
	assert.Equal(t, 5, got.Clock.Minute)
}

func TestNormalizePreservesRanks(t *testing.T) {
	n := testNormalizer(time.Date(2025, 11, 20, 12, 0, 0, 0, time.UTC))

	got := n.Normalize("NCAAF | #8 Alabama vs #1 Georgia")
	assert.Equal(t, []int{8, 1}, got.Ranks)
	assert.Equal(t, "alabama versus georgia", got.Text)
}

func TestNormalizeKeepsContentBrackets(t *testing.T) {
	n := testNormalizer(time.Date(2025, 11, 20, 12, 0, 0, 0, time.UTC))

	// A bracketed team name is content, not region noise.
	got := n.Normalize("(Man City) vs Liverpool")
	assert.Equal(t, "man city versus liverpool", got.Text)
}

func TestSplitIndicator(t *testing.T) {
	cases := []struct {
		in          string
		left, right string
		ind         Indicator
		ok          bool
	}{
		{"giants at patriots", "giants", "patriots", IndicatorAt, true},
		{"spurs versus arsenal", "spurs", "arsenal", IndicatorVersus, true},
		{"new york giants at new england patriots", "new york giants", "new england patriots", IndicatorAt, true},
		{"ufc fight night prelims", "", "", "", false},
		{"at patriots", "", "", "", false},
	}
	for _, tc := range cases {
		left, right, ind, ok := splitIndicator(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		if tc.ok {
			assert.Equal(t, tc.left, left, tc.in)
			assert.Equal(t, tc.right, right, tc.in)
			assert.Equal(t, tc.ind, ind, tc.in)
		}
	}
}
