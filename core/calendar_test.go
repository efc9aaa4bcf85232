package core

import (
	"math/rand"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestEpochRoundTrip(t *testing.T) {
	c := qt.New(t)

	var epochs []uint32
	// Dense around boundaries.
	for _, base := range []uint32{0, 951782400, 4107542400, MaxEpoch - 100} {
		for d := uint32(0); d <= 100; d++ {
			epochs = append(epochs, base+d)
		}
	}
	for _, e := range []uint32{0x0000FFFF, 0x00010000, 0x7FFFFFFF, 0x80000000, MaxEpoch} {
		epochs = append(epochs, e)
	}
	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 20000; i++ {
		epochs = append(epochs, rnd.Uint32())
	}

	for _, e := range epochs {
		dt := ToDateTime(e)
		got := ToEpoch(&dt)
		if got != e {
			c.Fatalf("ToEpoch(ToDateTime(%d)) = %d (%s)", e, got, dt)
		}
		c.Assert(dt.Epoch, qt.Equals, e)
	}
}

func TestEpochMatchesTimePackage(t *testing.T) {
	c := qt.New(t)
	rnd := rand.New(rand.NewSource(2))
	for i := 0; i < 5000; i++ {
		e := rnd.Uint32()
		want := time.Unix(int64(e), 0).UTC()
		dt := ToDateTime(e)
		c.Assert(int(dt.Year), qt.Equals, want.Year())
		c.Assert(time.Month(dt.Month), qt.Equals, want.Month())
		c.Assert(int(dt.Day), qt.Equals, want.Day())
		c.Assert(int(dt.Hours), qt.Equals, want.Hour())
		c.Assert(int(dt.Minutes), qt.Equals, want.Minute())
		c.Assert(int(dt.Seconds), qt.Equals, want.Second())
		c.Assert(time.Weekday(dt.Weekday), qt.Equals, want.Weekday())
	}
}

func TestCalendarRoundTrip(t *testing.T) {
	c := qt.New(t)

	// Every day of the range at a few times of day.
	end := time.Date(2106, 2, 7, 0, 0, 0, 0, time.UTC)
	for day := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC); !day.After(end); day = day.AddDate(0, 0, 1) {
		for _, hms := range [][3]int{{0, 0, 0}, {12, 0, 0}, {23, 59, 59}} {
			if day.Equal(end) && hms[0] > 6 {
				continue
			}
			dt := DateTime{
				Year:    uint16(day.Year()),
				Month:   uint8(day.Month()),
				Day:     uint8(day.Day()),
				Hours:   uint8(hms[0]),
				Minutes: uint8(hms[1]),
				Seconds: uint8(hms[2]),
			}
			got := ToDateTime(ToEpoch(&dt))
			if got.Year != dt.Year || got.Month != dt.Month || got.Day != dt.Day ||
				got.Hours != dt.Hours || got.Minutes != dt.Minutes || got.Seconds != dt.Seconds {
				c.Fatalf("round trip of %v gave %v", dt, got)
			}
		}
	}

	last := DateTime{Year: 2106, Month: 2, Day: 7, Hours: 6, Minutes: 28, Seconds: 15}
	c.Assert(ToEpoch(&last), qt.Equals, MaxEpoch)
}

func TestLeapYears(t *testing.T) {
	c := qt.New(t)

	tests := []struct {
		year int
		days uint32
		feb  int
	}{
		{1970, 365, 28},
		{1972, 366, 29},
		{2000, 366, 29},
		{2020, 366, 29},
		{2100, 365, 28},
	}
	for _, test := range tests {
		c.Assert(IsLeapYear(test.year), qt.Equals, test.days == 366)
		c.Assert(daysInYear(test.year), qt.Equals, test.days)
		c.Assert(DaysInMonth(test.year, 2), qt.Equals, test.feb)

		start := DateTime{Year: uint16(test.year), Month: 1, Day: 1}
		next := DateTime{Year: uint16(test.year + 1), Month: 1, Day: 1}
		c.Assert(ToEpoch(&next)-ToEpoch(&start), qt.Equals, test.days*SecsPerDay)
	}
	c.Assert(DaysInMonth(2000, 0), qt.Equals, 0)
	c.Assert(DaysInMonth(2000, 13), qt.Equals, 0)
}

func TestWeekday(t *testing.T) {
	c := qt.New(t)
	c.Assert(ToDateTime(0).Weekday, qt.Equals, uint8(4))
	c.Assert(WeekdayName(ToDateTime(0).Weekday), qt.Equals, "Thursday")
	c.Assert(WeekdayName(ToDateTime(86400).Weekday), qt.Equals, "Friday")
	c.Assert(WeekdayName(ToDateTime(3*86400).Weekday), qt.Equals, "Sunday")
}

func TestYearsBefore1970Clamp(t *testing.T) {
	c := qt.New(t)
	dt := DateTime{Year: 1900, Month: 1, Day: 1, Hours: 1}
	c.Assert(ToEpoch(&dt), qt.Equals, uint32(SecsPerHour))
}

func TestTwelveHour(t *testing.T) {
	c := qt.New(t)

	tests := []struct {
		hours24 uint8
		hours12 uint8
		pm      bool
	}{
		{0, 12, false},
		{1, 1, false},
		{11, 11, false},
		{12, 12, true},
		{13, 1, true},
		{23, 11, true},
	}
	for _, test := range tests {
		dt := DateTime{Year: 2020, Month: 6, Day: 22, Hours: test.hours24}
		To12Hour(&dt)
		c.Assert(dt.Hours, qt.Equals, test.hours12)
		c.Assert(dt.PM, qt.Equals, test.pm)
		c.Assert(dt.HourFormat, qt.Equals, Hour12)
		c.Assert(dt.Hours24(), qt.Equals, test.hours24)

		// 12-hour input converts back to the same instant.
		ref := DateTime{Year: 2020, Month: 6, Day: 22, Hours: test.hours24}
		c.Assert(ToEpoch(&dt), qt.Equals, ToEpoch(&ref))
	}

	// To12Hour leaves 12-hour values alone.
	dt := DateTime{HourFormat: Hour12, Hours: 5, PM: true}
	To12Hour(&dt)
	c.Assert(dt.Hours, qt.Equals, uint8(5))
	c.Assert(dt.PM, qt.Equals, true)
}

func TestPMAddsHalfDay(t *testing.T) {
	c := qt.New(t)
	am := DateTime{HourFormat: Hour12, Year: 2020, Month: 6, Day: 22, Hours: 8, Minutes: 39}
	pm := am
	pm.PM = true
	c.Assert(ToEpoch(&pm)-ToEpoch(&am), qt.Equals, uint32(12*SecsPerHour))
}

func TestNames(t *testing.T) {
	c := qt.New(t)
	c.Assert(WeekdayName(6), qt.Equals, "Saturday")
	c.Assert(WeekdayName(7), qt.Equals, "Sunday")
	c.Assert(MonthName(1), qt.Equals, "January")
	c.Assert(MonthName(12), qt.Equals, "December")
	c.Assert(MonthName(0), qt.Equals, "January")
	c.Assert(MonthName(13), qt.Equals, "January")
}

func TestDateTimeString(t *testing.T) {
	c := qt.New(t)
	dt := DateTime{Year: 2020, Month: 6, Day: 22, Hours: 8, Minutes: 39}
	ToEpoch(&dt)
	dt = ToDateTime(dt.Epoch)
	c.Assert(dt.String(), qt.Equals, "Monday, June 22, 2020 08:39:00")

	dt.Hours = 20
	To12Hour(&dt)
	c.Assert(dt.String(), qt.Equals, "Monday, June 22, 2020 08:39:00 PM")
}

func TestTimeConversion(t *testing.T) {
	c := qt.New(t)
	want := time.Date(2038, 1, 19, 3, 14, 8, 0, time.UTC)
	dt := FromTime(want)
	c.Assert(dt.Time().Equal(want), qt.Equals, true)
	c.Assert(dt.Epoch, qt.Equals, uint32(want.Unix()))

	c.Assert(FromTime(time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC)).Epoch, qt.Equals, uint32(0))
	c.Assert(FromTime(time.Date(2200, 1, 1, 0, 0, 0, 0, time.UTC)).Epoch, qt.Equals, MaxEpoch)
}
