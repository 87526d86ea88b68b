package freeze

import (
	"fmt"
	"time"
)

// Period is a walk-forward validation window. The split is fixed: tune picks
// parameters, validate picks models, final is a one-shot test whose results
// never feed back into tuning, paper is live forward trading.
type Period string

const (
	PeriodTune     Period = "tune"
	PeriodValidate Period = "validate"
	PeriodFinal    Period = "final"
	PeriodPaper    Period = "paper"
)

// PeriodWindow is the date range and permissions of one period.
type PeriodWindow struct {
	Name            Period
	Start           time.Time
	End             time.Time
	AllowTuning     bool
	AllowValidation bool
}

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

var periodWindows = []PeriodWindow{
	{Name: PeriodTune, Start: d(2017, 1, 1), End: d(2021, 12, 31), AllowTuning: true},
	{Name: PeriodValidate, Start: d(2022, 1, 1), End: d(2023, 12, 31), AllowValidation: true},
	{Name: PeriodFinal, Start: d(2024, 1, 1), End: d(2025, 12, 31)},
	{Name: PeriodPaper, Start: d(2026, 1, 1), End: d(2099, 12, 31)},
}

// Window returns the date range for a named period.
func Window(p Period) (PeriodWindow, error) {
	for _, w := range periodWindows {
		if w.Name == p {
			return w, nil
		}
	}
	return PeriodWindow{}, fmt.Errorf("unknown walk-forward period %q", p)
}

// PeriodFor returns the period containing a date.
func PeriodFor(date time.Time) (PeriodWindow, error) {
	day := date.UTC().Truncate(24 * time.Hour)
	for _, w := range periodWindows {
		if !day.Before(w.Start) && !day.After(w.End) {
			return w, nil
		}
	}
	return PeriodWindow{}, fmt.Errorf("date %s precedes the walk-forward range", day.Format("2006-01-02"))
}

// MayTune reports whether parameter tuning is permitted on a date. Tuning
// against validate/final/paper data is the overfitting failure mode this
// package exists to prevent.
func MayTune(date time.Time) bool {
	w, err := PeriodFor(date)
	return err == nil && w.AllowTuning
}
