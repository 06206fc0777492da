package features

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// MonthDay is a fixed annual date.
type MonthDay struct {
	Month time.Month
	Day   int
}

// ParseMonthDay reads "MM-DD".
func ParseMonthDay(s string) (MonthDay, error) {
	t, err := time.Parse("01-02", strings.TrimSpace(s))
	if err != nil {
		return MonthDay{}, fmt.Errorf("parse month-day %q: %w", s, err)
	}
	return MonthDay{Month: t.Month(), Day: t.Day()}, nil
}

// Window is an inclusive day range inside one month.
type Window struct {
	Month time.Month
	From  int
	To    int
}

func (w Window) contains(t time.Time) bool {
	return t.Month() == w.Month && t.Day() >= w.From && t.Day() <= w.To
}

// MonthSet is a fixed-size set of months. Being an array it is copied by value.
type MonthSet [13]bool

func Months(ms ...time.Month) MonthSet {
	var s MonthSet
	for _, m := range ms {
		s[m] = true
	}
	return s
}

func (s MonthSet) Has(m time.Month) bool { return s[m] }

// Locale holds the regional calendar knowledge used by the feature builder.
type Locale struct {
	Name string

	FixedHolidays []MonthDay
	// EasterOffsets are days relative to Easter Sunday (-2 is Good Friday).
	EasterOffsets []int
	// ObserveSunday moves a fixed holiday falling on Sunday to the Monday after.
	ObserveSunday bool

	RainyMonths         MonthSet
	DryMonths           MonthSet
	SchoolHolidayMonths MonthSet
	BackToSchool        []Window

	// PaydayFrom is the first day of month counted as end-of-month payday week.
	PaydayFrom int
}

// Kenya returns the default East African retail calendar.
func Kenya() Locale {
	return Locale{
		Name: "kenya",
		FixedHolidays: []MonthDay{
			{time.January, 1},
			{time.May, 1},
			{time.June, 1},
			{time.October, 10},
			{time.October, 20},
			{time.December, 25},
			{time.December, 26},
		},
		EasterOffsets:       []int{-2, 1},
		ObserveSunday:       true,
		RainyMonths:         Months(time.March, time.April, time.May, time.October, time.November),
		DryMonths:           Months(time.January, time.June, time.July, time.August, time.September, time.December),
		SchoolHolidayMonths: Months(time.April, time.August, time.December),
		BackToSchool: []Window{
			{Month: time.January, From: 1, To: 15},
			{Month: time.May, From: 1, To: 10},
			{Month: time.September, From: 1, To: 10},
		},
		PaydayFrom: 25,
	}
}

// LocaleByName resolves a configured locale.
func LocaleByName(name string) (Locale, error) {
	switch strings.ToLower(name) {
	case "", "kenya", "ke":
		return Kenya(), nil
	default:
		return Locale{}, fmt.Errorf("unknown locale %q", name)
	}
}

// WithHolidays returns a copy of l with extra fixed holidays.
func (l Locale) WithHolidays(extra ...MonthDay) Locale {
	out := l.clone()
	out.FixedHolidays = append(out.FixedHolidays, extra...)
	return out
}

func (l Locale) clone() Locale {
	l.FixedHolidays = slices.Clone(l.FixedHolidays)
	l.EasterOffsets = slices.Clone(l.EasterOffsets)
	l.BackToSchool = slices.Clone(l.BackToSchool)
	return l
}

// IsHoliday reports whether t is a public holiday, including observed Mondays.
func (l Locale) IsHoliday(t time.Time) bool {
	t = Day(t)
	if l.isFixed(t) {
		return true
	}
	if l.ObserveSunday && t.Weekday() == time.Monday && l.isFixed(t.AddDate(0, 0, -1)) {
		return true
	}
	if len(l.EasterOffsets) > 0 {
		easter := Easter(t.Year())
		for _, off := range l.EasterOffsets {
			if easter.AddDate(0, 0, off).Equal(t) {
				return true
			}
		}
	}
	return false
}

func (l Locale) isFixed(t time.Time) bool {
	for _, h := range l.FixedHolidays {
		if t.Month() == h.Month && t.Day() == h.Day {
			return true
		}
	}
	return false
}

func (l Locale) isBackToSchool(t time.Time) bool {
	for _, w := range l.BackToSchool {
		if w.contains(t) {
			return true
		}
	}
	return false
}

// Easter returns Easter Sunday of the Gregorian calendar (anonymous algorithm).
func Easter(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
