package core

import "time"

const (
	SecsPerMin  = 60
	SecsPerHour = 60 * SecsPerMin
	SecsPerDay  = 24 * SecsPerHour

	// EpochYear is the year of epoch 0. Earlier years clamp to it.
	EpochYear = 1970

	// MaxEpoch is 2106-02-07T06:28:15Z. The counter wraps after it.
	MaxEpoch = ^uint32(0)
)

// HourFormat selects 24-hour or 12-hour AM/PM representation.
type HourFormat uint8

const (
	Hour24 HourFormat = iota
	Hour12
)

// DateTime is the calendar view of an epoch. Epoch is canonical; the other
// fields are derived from it at the time of the last conversion.
type DateTime struct {
	HourFormat HourFormat
	PM         bool // only meaningful with Hour12
	Seconds    uint8
	Minutes    uint8
	Hours      uint8 // 0-23, or 1-12 with Hour12
	Epoch      uint32
	Day        uint8 // 1-31
	Weekday    uint8 // 0 = Sunday
	Month      uint8 // 1-12
	Year       uint16
}

var monthDays = [12]uint8{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

var weekdayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

var monthNames = [12]string{"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December"}

// IsLeapYear applies the Gregorian rule.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInMonth returns the length of month (1-12) in year, or 0 for an
// invalid month.
func DaysInMonth(year, month int) int {
	if month < 1 || month > 12 {
		return 0
	}
	if month == 2 && IsLeapYear(year) {
		return 29
	}
	return int(monthDays[month-1])
}

func daysInYear(year int) uint32 {
	if IsLeapYear(year) {
		return 366
	}
	return 365
}

// ToEpoch converts the calendar fields of dt into seconds since 1970 and
// stores the result in dt.Epoch. Fields are not range checked. A 12-hour
// value is normalized to 24-hour first (12 AM is 00h, 12 PM is 12h).
func ToEpoch(dt *DateTime) uint32 {
	year := int(dt.Year)
	if year < EpochYear {
		year = EpochYear
	}

	var secs uint32
	for y := EpochYear; y < year; y++ {
		secs += daysInYear(y) * SecsPerDay
	}
	for m := 1; m < int(dt.Month) && m <= 12; m++ {
		secs += uint32(DaysInMonth(year, m)) * SecsPerDay
	}
	secs += (uint32(dt.Day) - 1) * SecsPerDay

	hours := uint32(dt.Hours)
	if dt.HourFormat == Hour12 {
		hours %= 12
		if dt.PM {
			hours += 12
		}
	}
	secs += hours*SecsPerHour + uint32(dt.Minutes)*SecsPerMin + uint32(dt.Seconds)

	dt.Epoch = secs
	return secs
}

// ToDateTime expands an epoch into 24-hour calendar fields.
func ToDateTime(epoch uint32) DateTime {
	dt := DateTime{Epoch: epoch}

	t := epoch
	dt.Seconds = uint8(t % 60)
	t /= 60
	dt.Minutes = uint8(t % 60)
	t /= 60
	dt.Hours = uint8(t % 24)
	days := t / 24

	// 1970-01-01 was a Thursday
	dt.Weekday = uint8((days + 4) % 7)

	year := EpochYear
	for {
		n := daysInYear(year)
		if days < n {
			break
		}
		days -= n
		year++
	}

	month := 1
	for ; month < 12; month++ {
		n := uint32(DaysInMonth(year, month))
		if days < n {
			break
		}
		days -= n
	}

	dt.Year = uint16(year)
	dt.Month = uint8(month)
	dt.Day = uint8(days + 1)
	return dt
}

// To12Hour rewrites 24-hour fields in 12-hour AM/PM form. There is no zero
// o'clock: 00h becomes 12 AM.
func To12Hour(dt *DateTime) {
	if dt.HourFormat == Hour12 {
		return
	}
	dt.PM = dt.Hours >= 12
	dt.Hours %= 12
	if dt.Hours == 0 {
		dt.Hours = 12
	}
	dt.HourFormat = Hour12
}

// Hours24 returns the hour in 24-hour form regardless of HourFormat.
func (dt DateTime) Hours24() uint8 {
	if dt.HourFormat != Hour12 {
		return dt.Hours
	}
	h := dt.Hours % 12
	if dt.PM {
		h += 12
	}
	return h
}

// WeekdayName returns the English day name; 0 is Sunday. Out of range
// values return Sunday.
func WeekdayName(weekday uint8) string {
	if weekday > 6 {
		weekday = 0
	}
	return weekdayNames[weekday]
}

// MonthName returns the English month name; 1 is January. Out of range
// values return January.
func MonthName(month uint8) string {
	if month < 1 || month > 12 {
		month = 1
	}
	return monthNames[month-1]
}

// String formats dt as "Monday, June 22, 2020 08:39:00", with an AM/PM
// suffix in 12-hour form.
func (dt DateTime) String() string {
	s := WeekdayName(dt.Weekday) + ", " + MonthName(dt.Month) + " " +
		itoa(int(dt.Day)) + ", " + itoa(int(dt.Year)) + " " +
		pad2(dt.Hours) + ":" + pad2(dt.Minutes) + ":" + pad2(dt.Seconds)
	if dt.HourFormat == Hour12 {
		if dt.PM {
			s += " PM"
		} else {
			s += " AM"
		}
	}
	return s
}

// Time converts the calendar fields of dt to a UTC time.Time.
func (dt DateTime) Time() time.Time {
	c := dt
	return time.Unix(int64(ToEpoch(&c)), 0).UTC()
}

// FromTime converts t to 24-hour calendar fields. Times outside the
// representable range clamp to its bounds; sub-second precision is dropped.
func FromTime(t time.Time) DateTime {
	secs := t.Unix()
	switch {
	case secs < 0:
		secs = 0
	case secs > int64(MaxEpoch):
		secs = int64(MaxEpoch)
	}
	return ToDateTime(uint32(secs))
}
