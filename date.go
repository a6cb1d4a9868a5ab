package fatnav

import (
	"time"
)

// ParseDate reads a FAT date stamp:
//  Bits 0–4: Day of month, valid value range 1-31 inclusive.
//  Bits 5–8: Month of year, 1 = January, valid value range 1–12 inclusive.
//  Bits 9–15: Count of years from 1980, valid value range 0–127 inclusive (1980–2107).
// The result always has a time of 00:00:00 UTC.
//
// Day or month 0 are invalid, time.Time{} is returned for them so that time.Time.IsZero() works.
// A month bigger than 12 rolls over into the next year.
func ParseDate(input uint16) time.Time {
	day := int(input & 0x1F)
	month := time.Month(input >> 5 & 0x0F)
	year := 1980 + int(input>>9)

	if day == 0 || month == 0 {
		return time.Time{}
	}

	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseTime reads a FAT time stamp with a granularity of 2 seconds:
//  Bits 0–4: 2-second count, valid value range 0–29 inclusive (0 – 58 seconds).
//  Bits 5–10: Minutes, valid value range 0–59 inclusive.
//  Bits 11–15: Hours, valid value range 0–23 inclusive.
// The result is on January 1, year 1, so midnight is time.Time{}.
//
// Out of range fields are added up, but the result never leaves the day: it is capped at 23:59:59.
func ParseTime(input uint16) time.Time {
	seconds := int(input&0x1F) * 2
	minutes := int(input >> 5 & 0x3F)
	hours := int(input >> 11)

	result := time.Date(1, 1, 1, hours, minutes, seconds, 0, time.UTC)
	if result.Day() > 1 {
		return time.Date(1, 1, 1, 23, 59, 59, 0, time.UTC)
	}
	return result
}

// DOSTimestamp combines the date and time stamps of a directory entry.
// An invalid date results in time.Time{}, regardless of the time.
func DOSTimestamp(date, clock uint16) time.Time {
	day := ParseDate(date)
	if day.IsZero() {
		return time.Time{}
	}

	t := ParseTime(clock)
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}
