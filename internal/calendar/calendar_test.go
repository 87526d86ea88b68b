package calendar

import (
	"testing"
	"time"
)

func d(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestIsTradingDay_WeekendsAndHolidays(t *testing.T) {
	c := New("NYSE")

	cases := []struct {
		date string
		want bool
	}{
		{"2024-01-25", true},  // regular Thursday
		{"2024-01-27", false}, // Saturday
		{"2024-01-28", false}, // Sunday
		{"2024-01-01", false}, // New Year's Day (Monday)
		{"2024-01-15", false}, // MLK Day
		{"2024-02-19", false}, // Washington's Birthday
		{"2024-03-29", false}, // Good Friday
		{"2024-05-27", false}, // Memorial Day
		{"2024-06-19", false}, // Juneteenth
		{"2024-07-04", false}, // Independence Day
		{"2024-09-02", false}, // Labor Day
		{"2024-11-28", false}, // Thanksgiving
		{"2024-12-25", false}, // Christmas
		{"2026-07-03", false}, // July 4 2026 is a Saturday, observed Friday
		{"2021-06-18", true},  // Juneteenth not observed before 2022
	}
	for _, tc := range cases {
		if got := c.IsTradingDay(d(tc.date)); got != tc.want {
			t.Errorf("IsTradingDay(%s) = %v, want %v", tc.date, got, tc.want)
		}
	}
}

func TestNextTradingDay_SkipsWeekendAndHoliday(t *testing.T) {
	c := New("NYSE")

	// Friday before MLK weekend 2024: next trading day is Tuesday.
	next, err := c.NextTradingDay(d("2024-01-12"))
	if err != nil {
		t.Fatalf("NextTradingDay: %v", err)
	}
	if !next.Equal(d("2024-01-16")) {
		t.Fatalf("want 2024-01-16, got %s", next.Format("2006-01-02"))
	}
}

func TestNextTradingDay_AlwaysStrictlyAfter(t *testing.T) {
	c := New("NYSE")

	cur := d("2024-01-01")
	for i := 0; i < 400; i++ {
		next, err := c.NextTradingDay(cur)
		if err != nil {
			t.Fatalf("NextTradingDay(%s): %v", cur.Format("2006-01-02"), err)
		}
		if !next.After(cur) {
			t.Fatalf("next %s not after %s", next, cur)
		}
		if !c.IsTradingDay(next) {
			t.Fatalf("next %s is not a trading day", next.Format("2006-01-02"))
		}
		cur = cur.AddDate(0, 0, 1)
	}
}

func TestAddTradingDays_CountRoundTrip(t *testing.T) {
	c := New("NYSE")

	start := d("2024-01-25")
	for _, n := range []int{1, 5, 10, 29, 30} {
		end, err := c.AddTradingDays(start, n)
		if err != nil {
			t.Fatalf("AddTradingDays(%d): %v", n, err)
		}
		if got := c.CountTradingDays(start, end); got != n {
			t.Fatalf("CountTradingDays(%s, %s) = %d, want %d",
				start.Format("2006-01-02"), end.Format("2006-01-02"), got, n)
		}
	}
}

func TestAddTradingDays_RejectsNonPositive(t *testing.T) {
	c := New("NYSE")
	if _, err := c.AddTradingDays(d("2024-01-25"), 0); err == nil {
		t.Fatal("expected error for n=0")
	}
	if _, err := c.AddTradingDays(d("2024-01-25"), -3); err == nil {
		t.Fatal("expected error for n<0")
	}
}

func TestTradingDates_ThursdayEvent(t *testing.T) {
	c := New("NYSE")

	td, err := c.TradingDates(d("2024-01-25"), 30)
	if err != nil {
		t.Fatalf("TradingDates: %v", err)
	}
	if !td.EntryDate.Equal(d("2024-01-26")) {
		t.Fatalf("entry = %s, want 2024-01-26", td.EntryDate.Format("2006-01-02"))
	}
	// 29 further trading days past 2024-01-26, skipping Washington's Birthday.
	if !td.ExitDate.Equal(d("2024-03-08")) {
		t.Fatalf("exit = %s, want 2024-03-08", td.ExitDate.Format("2006-01-02"))
	}
	if td.TradingDaysBetween != 29 {
		t.Fatalf("trading days between = %d, want 29", td.TradingDaysBetween)
	}
	if !td.EntryDate.After(td.TDay) || !td.ExitDate.After(td.EntryDate) {
		t.Fatal("date ordering invariant violated")
	}
}

func TestTradingDates_FridayEventEntersMonday(t *testing.T) {
	c := New("NYSE")

	td, err := c.TradingDates(d("2024-02-02"), 30)
	if err != nil {
		t.Fatalf("TradingDates: %v", err)
	}
	if !td.EntryDate.Equal(d("2024-02-05")) {
		t.Fatalf("entry = %s, want 2024-02-05", td.EntryDate.Format("2006-01-02"))
	}
}

func TestExitDate_SingleDayHold(t *testing.T) {
	c := New("NYSE")

	exit, err := c.ExitDate(d("2024-01-25"), 1)
	if err != nil {
		t.Fatalf("ExitDate: %v", err)
	}
	// Entry counts as day 1, so a 1-day hold exits on the entry date.
	if !exit.Equal(d("2024-01-26")) {
		t.Fatalf("exit = %s, want 2024-01-26", exit.Format("2006-01-02"))
	}
}

func TestTradingDaysBetween_Inclusive(t *testing.T) {
	c := New("NYSE")

	days := c.TradingDaysBetween(d("2024-01-12"), d("2024-01-16"))
	if len(days) != 2 {
		t.Fatalf("got %d days, want 2 (Fri + Tue around MLK weekend)", len(days))
	}
	if !days[0].Equal(d("2024-01-12")) || !days[1].Equal(d("2024-01-16")) {
		t.Fatalf("unexpected days: %v", days)
	}
}
