package validation

import "time"

var peselWeights = [10]int{1, 3, 7, 9, 1, 3, 7, 9, 1, 3}

// ValidPESEL reports whether s is a well-formed Polish national identification
// number: 11 digits, a matching check digit, and an encoded birth date that
// exists on the calendar.
func ValidPESEL(s string) bool {
	if len(s) != 11 {
		return false
	}
	var d [11]int
	for i := 0; i < 11; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
		d[i] = int(s[i] - '0')
	}

	sum := 0
	for i, w := range peselWeights {
		sum += d[i] * w
	}
	if (10-sum%10)%10 != d[10] {
		return false
	}

	_, ok := PESELBirthDate(s)
	return ok
}

// PESELBirthDate decodes the birth date from the first six digits of a PESEL.
// The month carries the century: +80 for 1800s, +0 for 1900s, +20 for 2000s,
// +40 for 2100s and +60 for 2200s.
func PESELBirthDate(s string) (time.Time, bool) {
	if len(s) < 6 {
		return time.Time{}, false
	}
	for i := 0; i < 6; i++ {
		if s[i] < '0' || s[i] > '9' {
			return time.Time{}, false
		}
	}
	yy := int(s[0]-'0')*10 + int(s[1]-'0')
	mm := int(s[2]-'0')*10 + int(s[3]-'0')
	dd := int(s[4]-'0')*10 + int(s[5]-'0')

	century := 0
	switch {
	case mm >= 81 && mm <= 92:
		century, mm = 1800, mm-80
	case mm >= 1 && mm <= 12:
		century = 1900
	case mm >= 21 && mm <= 32:
		century, mm = 2000, mm-20
	case mm >= 41 && mm <= 52:
		century, mm = 2100, mm-40
	case mm >= 61 && mm <= 72:
		century, mm = 2200, mm-60
	default:
		return time.Time{}, false
	}

	year := century + yy
	date := time.Date(year, time.Month(mm), dd, 0, 0, 0, 0, time.UTC)
	if date.Year() != year || int(date.Month()) != mm || date.Day() != dd {
		return time.Time{}, false
	}
	return date, true
}
