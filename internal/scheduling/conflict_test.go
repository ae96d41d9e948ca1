package scheduling

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var monday = time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC)

func iv(startH, startM, endH, endM int) Interval {
	return Interval{
		Start: monday.Add(time.Duration(startH)*time.Hour + time.Duration(startM)*time.Minute),
		End:   monday.Add(time.Duration(endH)*time.Hour + time.Duration(endM)*time.Minute),
	}
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"identical", iv(10, 0, 10, 30), iv(10, 0, 10, 30), true},
		{"partial", iv(10, 0, 10, 30), iv(10, 15, 10, 45), true},
		{"contained", iv(9, 0, 12, 0), iv(10, 0, 10, 30), true},
		{"touching end to start", iv(10, 0, 10, 30), iv(10, 30, 11, 0), false},
		{"touching start to end", iv(10, 30, 11, 0), iv(10, 0, 10, 30), false},
		{"disjoint", iv(8, 0, 9, 0), iv(10, 0, 11, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.a, tt.b))
			assert.Equal(t, tt.want, Overlaps(tt.b, tt.a), "overlap must be symmetric")
		})
	}
}

func TestMerge(t *testing.T) {
	assert.Nil(t, Merge(nil))

	got := Merge([]Interval{
		iv(13, 0, 17, 0),
		iv(9, 0, 12, 0),
		iv(11, 0, 12, 30),
		iv(12, 30, 13, 0), // touches both neighbours
		iv(18, 0, 18, 0),  // empty, ignored
	})
	assert.Equal(t, []Interval{iv(9, 0, 17, 0)}, got)

	got = Merge([]Interval{iv(9, 0, 10, 0), iv(11, 0, 12, 0)})
	assert.Equal(t, []Interval{iv(9, 0, 10, 0), iv(11, 0, 12, 0)}, got)
}

func TestSubtract(t *testing.T) {
	base := []Interval{iv(9, 0, 17, 0)}

	t.Run("NoBusy", func(t *testing.T) {
		assert.Equal(t, base, Subtract(base, nil))
	})

	t.Run("Middle", func(t *testing.T) {
		got := Subtract(base, []Interval{iv(10, 0, 10, 30)})
		assert.Equal(t, []Interval{iv(9, 0, 10, 0), iv(10, 30, 17, 0)}, got)
	})

	t.Run("OverlappingBusy", func(t *testing.T) {
		got := Subtract(base, []Interval{iv(8, 0, 9, 30), iv(12, 0, 13, 0), iv(12, 30, 14, 0), iv(16, 30, 18, 0)})
		assert.Equal(t, []Interval{iv(9, 30, 12, 0), iv(14, 0, 16, 30)}, got)
	})

	t.Run("Everything", func(t *testing.T) {
		assert.Empty(t, Subtract(base, []Interval{iv(0, 0, 23, 0)}))
	})
}

func TestBucket(t *testing.T) {
	free := []Interval{iv(9, 0, 10, 10), iv(11, 0, 11, 30)}

	t.Run("ZeroDurationKeepsIntervals", func(t *testing.T) {
		assert.Equal(t, free, Bucket(free, 0))
	})

	t.Run("DropsRemainder", func(t *testing.T) {
		got := Bucket(free, 30*time.Minute)
		assert.Equal(t, []Interval{iv(9, 0, 9, 30), iv(9, 30, 10, 0), iv(11, 0, 11, 30)}, got)
	})

	t.Run("TooShort", func(t *testing.T) {
		assert.Empty(t, Bucket([]Interval{iv(9, 0, 9, 20)}, 30*time.Minute))
	})
}

func TestIntervalContains(t *testing.T) {
	window := iv(9, 0, 17, 0)
	assert.True(t, window.Contains(iv(9, 0, 17, 0)))
	assert.True(t, window.Contains(iv(16, 30, 17, 0)))
	assert.False(t, window.Contains(iv(16, 30, 17, 30)))
	assert.False(t, window.Contains(iv(8, 59, 9, 30)))
}

func TestTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("09:30")
	assert.NoError(t, err)
	assert.Equal(t, NewTimeOfDay(9, 30), tod)
	assert.Equal(t, "09:30", tod.String())

	tod, err = ParseTimeOfDay("17:00:15")
	assert.NoError(t, err)
	assert.Equal(t, "17:00:15", tod.String())

	tod, err = ParseTimeOfDay("24:00")
	assert.NoError(t, err)
	assert.Equal(t, EndOfDay, tod)
	assert.Equal(t, "24:00", tod.String())

	tod, err = ParseTimeOfDay("24:00:00")
	assert.NoError(t, err)
	assert.Equal(t, EndOfDay, tod)

	var decoded struct {
		EndTime TimeOfDay `json:"end_time"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"end_time":"24:00"}`), &decoded))
	assert.Equal(t, EndOfDay, decoded.EndTime)
	assert.Equal(t, monday.Add(24*time.Hour), EndOfDay.On(monday))

	for _, bad := range []string{"", "9", "24:01", "24:00:01", "25:00", "12:60", "aa:bb", "1:2:3:4"} {
		_, err := ParseTimeOfDay(bad)
		assert.Error(t, err, bad)
	}

	assert.Equal(t, monday.Add(9*time.Hour+30*time.Minute), NewTimeOfDay(9, 30).On(monday.Add(15*time.Hour)))
	assert.Equal(t, Monday, WeekdayOf(monday))
	assert.Equal(t, Sunday, WeekdayOf(monday.Add(-time.Minute)))
}
