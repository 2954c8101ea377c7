package markethours

import (
	"testing"
	"time"
)

func et(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, ET)
}

func TestIsMarketOpen(t *testing.T) {
	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"monday midday", et(2026, time.August, 24, 14, 0), true},
		{"monday at open", et(2026, time.August, 24, 9, 30), true},
		{"monday before open", et(2026, time.August, 24, 9, 29), false},
		{"monday at close", et(2026, time.August, 24, 16, 0), false},
		{"monday after hours", et(2026, time.August, 24, 18, 0), false},
		{"saturday", et(2026, time.August, 22, 14, 0), false},
		{"sunday", et(2026, time.August, 23, 14, 0), false},
		{"july 4th observed", et(2026, time.July, 3, 14, 0), false},
		{"thanksgiving", et(2026, time.November, 26, 14, 0), false},
	}
	for _, c := range cases {
		if got := IsMarketOpen(c.at); got != c.want {
			t.Errorf("%s: IsMarketOpen = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestNextOpen_SkipsWeekend(t *testing.T) {
	// Friday 5 PM -> Monday 9:30 AM.
	got := NextOpen(et(2026, time.August, 21, 17, 0))
	want := et(2026, time.August, 24, 9, 30)
	if !got.Equal(want) {
		t.Errorf("NextOpen = %v, want %v", got, want)
	}
}

func TestNextOpen_SkipsHoliday(t *testing.T) {
	// Thursday July 2 after close -> Friday July 3 is observed Independence
	// Day, July 4/5 are the weekend -> Monday July 6.
	got := NextOpen(et(2026, time.July, 2, 17, 0))
	want := et(2026, time.July, 6, 9, 30)
	if !got.Equal(want) {
		t.Errorf("NextOpen = %v, want %v", got, want)
	}
}

func TestNextOpen_SameDayBeforeOpen(t *testing.T) {
	got := NextOpen(et(2026, time.August, 24, 8, 0))
	want := et(2026, time.August, 24, 9, 30)
	if !got.Equal(want) {
		t.Errorf("NextOpen = %v, want %v", got, want)
	}
}

func TestTimeUntilClose(t *testing.T) {
	d := TimeUntilClose(et(2026, time.August, 24, 15, 0))
	if d != time.Hour {
		t.Errorf("TimeUntilClose = %v, want 1h", d)
	}
	if TimeUntilClose(et(2026, time.August, 24, 17, 0)) != 0 {
		t.Error("TimeUntilClose after close should be 0")
	}
}

func TestIsTradingDay(t *testing.T) {
	if !IsTradingDay(et(2026, time.August, 24, 12, 0)) {
		t.Error("regular Monday should be a trading day")
	}
	if IsTradingDay(et(2026, time.December, 25, 12, 0)) {
		t.Error("Christmas should not be a trading day")
	}
	if IsTradingDay(et(2026, time.August, 23, 12, 0)) {
		t.Error("Sunday should not be a trading day")
	}
}
