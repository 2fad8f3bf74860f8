package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input     string
		canonical string
		wantErr   bool
	}{
		{"1.2.3", "1.2.3", false},
		{"1.2", "1.2.0", false},
		{"v2", "2.0.0", false},
		{"0.5.8+1.20.1", "0.5.8+1.20.1", false},
		{"1.0.0-beta.2", "1.0.0-beta.2", false},
		{"1.20.1.4", "1.20.1.4", false},
		{"r5-fabric", "r5-fabric", false},
		{"", "", true},
		{"not a version", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, err := Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				var pe *ParseError
				assert.ErrorAs(t, err, &pe)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.canonical, v.String())
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.2", "1.2.0", 0},
		{"1.0.0", "2.0.0", -1},
		{"1.10.0", "1.9.0", 1},
		{"1.0.0-alpha", "1.0.0", -1},
		{"1.0.0-alpha", "1.0.0-beta", -1},
		{"1.0.0-2", "1.0.0-10", -1},
		{"1.0.0+a", "1.0.0+b", -1},
		{"1.20.1.4", "1.20.1.10", -1},
		{"1.20.1.4", "1.20.1", 1},
		{"1.20.1", "1.20.1.0", -1},
		{"2.0.0", "1.99.99.99", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			a, b := MustParse(tt.a), MustParse(tt.b)
			assert.Equal(t, tt.want, Compare(a, b))
			assert.Equal(t, -tt.want, Compare(b, a), "comparison must be antisymmetric")
		})
	}
}

func TestCompareZero(t *testing.T) {
	assert.Equal(t, 0, Compare(Version{}, Version{}))
	assert.Equal(t, -1, Compare(Version{}, MustParse("0.0.1")))
	assert.True(t, Version{}.IsZero())
}

func TestCompareIsTransitive(t *testing.T) {
	raw := []string{"0.1", "1.0.0-rc.1", "1.0.0", "1.0.0+build", "1.0.0.1", "1.2.x-dev", "1.2", "1.10", "2.0.0.0"}
	vs := make([]Version, 0, len(raw))
	for _, r := range raw {
		v, err := Parse(r)
		if err != nil {
			continue
		}
		vs = append(vs, v)
	}

	for _, a := range vs {
		for _, b := range vs {
			for _, c := range vs {
				if Compare(a, b) <= 0 && Compare(b, c) <= 0 {
					assert.LessOrEqual(t, Compare(a, c), 0, "%s <= %s <= %s", a, b, c)
				}
			}
		}
	}
}

func TestSortDescending(t *testing.T) {
	vs := []Version{MustParse("1.0.0"), MustParse("2.1.0"), MustParse("1.5.0-beta"), MustParse("1.5.0")}
	SortDescending(vs)

	got := make([]string, len(vs))
	for i, v := range vs {
		got[i] = v.String()
	}
	assert.Equal(t, []string{"2.1.0", "1.5.0", "1.5.0-beta", "1.0.0"}, got)
}

func TestVersionText(t *testing.T) {
	var v Version
	require.NoError(t, v.UnmarshalText([]byte("1.4")))
	text, err := v.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1.4.0", string(text))
	assert.Equal(t, "1.4", v.Original())
}
